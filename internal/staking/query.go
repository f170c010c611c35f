package staking

import (
	"encoding/json"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/registry"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Queries returns the staking read-only messages.
func Queries() map[string]call.Handler {
	return map[string]call.Handler{
		"halt_statuses":             queryHaltStatuses,
		"states":                    queryStates,
		"my_ingredients":            queryMyIngredients,
		"my_staking":                queryMyStaking,
		"user_eligible_for_bonus":   queryUserBonus,
		"tokens_eligible_for_bonus": queryTokenBonus,
		"materials":                 queryMaterials,
		"ingredients":               queryIngredients,
		"ingredient_sets":           queryIngredientSets,
		"staking_table":             queryStakingTable,
	}
}

func queryHaltStatuses(c *call.Context, raw json.RawMessage) (interface{}, error) {
	halts, err := call.LoadHalts(c.Txn())
	if err != nil {
		return nil, err
	}
	return call.Answer("halt_statuses", HaltStatuses{StakingIsHalted: halts.Staking, AlchemyIsHalted: halts.Alchemy}), nil
}

func queryStates(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	state, err := LoadState(c.Txn())
	if err != nil {
		return nil, err
	}
	alc, err := LoadAlchemyState(c.Txn())
	if err != nil {
		return nil, err
	}
	halts, err := call.LoadHalts(c.Txn())
	if err != nil {
		return nil, err
	}
	return call.Answer("states", map[string]interface{}{
		"staking_state": map[string]interface{}{
			"halt":      halts.Staking,
			"skull_idx": state.SkullIdx,
			"cooldown":  state.Cooldown,
		},
		"alchemy_state": map[string]interface{}{
			"halt":    halts.Alchemy,
			"cyclops": alc.Cyclops,
			"jawless": alc.Jawless,
		},
	}), nil
}

func queryMyIngredients(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	user, err := msg.Querier(c)
	if err != nil {
		return nil, err
	}
	inv, err := Inventory(c.Txn(), user)
	if err != nil {
		return nil, err
	}
	return call.Answer("my_ingredients", map[string][]IngredientQty{"inventory": inv}), nil
}

func queryMyStaking(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	user, err := msg.Querier(c)
	if err != nil {
		return nil, err
	}
	t := c.Txn()
	state, err := LoadState(t)
	if err != nil {
		return nil, err
	}
	halts, err := call.LoadHalts(t)
	if err != nil {
		return nil, err
	}
	list, staked, err := stakeList(t, user)
	if err != nil {
		return nil, err
	}
	var mine []owned
	if !halts.Staking {
		if mine, _, err = verifyOwnership(c, user, list); err != nil {
			return nil, err
		}
	}
	now := c.Env().Now
	infos := []ChargeInfo{}
	for _, o := range mine {
		rec, _, err := loadRecord(t, o.id)
		if err != nil {
			return nil, err
		}
		if rec.Addr != user {
			continue
		}
		infos = append(infos, ChargeInfo{
			TokenID:     o.id,
			ChargeStart: rec.Stake,
			Charges:     chargesSince(now, rec.Stake, state.Cooldown),
		})
	}
	inv, err := Inventory(t, user)
	if err != nil {
		return nil, err
	}
	return call.Answer("my_staking", map[string]interface{}{
		"first_stake_bonus_available": !staked,
		"charge_infos":                infos,
		"inventory":                   inv,
		"staking_is_halted":           halts.Staking,
	}), nil
}

func queryUserBonus(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	user, err := msg.Querier(c)
	if err != nil {
		return nil, err
	}
	_, staked, err := stakeList(c.Txn(), user)
	if err != nil {
		return nil, err
	}
	return call.Answer("user_eligible_for_bonus", map[string]bool{"is_eligible": !staked}), nil
}

func queryTokenBonus(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		TokenIDs []string `json:"token_ids"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	user, err := msg.Querier(c)
	if err != nil {
		return nil, err
	}
	t := c.Txn()
	_, staked, err := stakeList(t, user)
	if err != nil {
		return nil, err
	}
	out := []Eligibility{}
	if !staked {
		state, err := LoadState(t)
		if err != nil {
			return nil, err
		}
		_, notMine, err := verifyOwnership(c, user, msg.TokenIDs)
		if err != nil {
			return nil, err
		}
		now := c.Env().Now
		var cutoff uint64
		if now > state.Cooldown {
			cutoff = now - state.Cooldown
		}
		for _, id := range msg.TokenIDs {
			e := Eligibility{TokenID: id}
			if indexOf(notMine, id) < 0 {
				rec, _, err := loadRecord(t, id)
				if err != nil {
					return nil, err
				}
				ok := rec.Claim <= cutoff
				e.IsEligible = &ok
				if !ok {
					at := rec.Claim
					e.ClaimedAt = &at
				}
			}
			out = append(out, e)
		}
	}
	return call.Answer("tokens_eligible_for_bonus", map[string]interface{}{
		"user_is_eligible":  !staked,
		"token_eligibility": out,
	}), nil
}

func queryMaterials(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	materials, err := Materials(c.Txn())
	if err != nil {
		return nil, err
	}
	out := make([]registry.VariantIdxName, 0, len(materials))
	for i, m := range materials {
		out = append(out, registry.VariantIdxName{Idx: uint8(i), Name: m})
	}
	return call.Answer("materials", map[string]interface{}{"materials": out}), nil
}

func queryIngredients(c *call.Context, raw json.RawMessage) (interface{}, error) {
	list, err := Ingredients(c.Txn())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return call.Answer("ingredients", map[string][]string{"ingredients": list}), nil
}

func queryIngredientSets(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		Page     *uint16 `json:"page"`
		PageSize *uint16 `json:"page_size"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	t := c.Txn()
	sets, err := IngredientSets(t)
	if err != nil {
		return nil, err
	}
	names, err := Ingredients(t)
	if err != nil {
		return nil, err
	}
	page, size := 0, 30
	if msg.Page != nil {
		page = int(*msg.Page)
	}
	if msg.PageSize != nil {
		size = int(*msg.PageSize)
	}
	out := []IngredientSet{}
	for i := page * size; i < len(sets) && i < (page+1)*size; i++ {
		members := make([]string, 0, len(sets[i].List))
		for _, idx := range sets[i].List {
			if int(idx) >= len(names) {
				return nil, apierror.StorageCorrupt("Ingredient set references an unknown ingredient")
			}
			members = append(members, names[idx])
		}
		out = append(out, IngredientSet{Name: sets[i].Name, Members: members})
	}
	return call.Answer("ingredient_sets", map[string][]IngredientSet{"ingredient_sets": out}), nil
}

func queryStakingTable(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		ByName  *string `json:"by_name"`
		ByIndex *uint8  `json:"by_index"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	t := c.Txn()
	materials, err := Materials(t)
	if err != nil {
		return nil, err
	}
	var idx uint8
	switch {
	case msg.ByName != nil:
		pos := indexOf(materials, *msg.ByName)
		if pos < 0 {
			return nil, apierror.NotFound("Skull material", *msg.ByName)
		}
		idx = uint8(pos)
	case msg.ByIndex != nil:
		idx = *msg.ByIndex
	default:
		return nil, apierror.BadInput("Must provide either a name or index")
	}
	if int(idx) >= len(materials) {
		return nil, apierror.BadInput("Invalid material index")
	}
	tbl, ok, err := loadTable(t, idx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierror.NotFound("Staking table for", materials[idx])
	}
	sets, err := IngredientSets(t)
	if err != nil {
		return nil, err
	}
	weights := make([]SetWeight, 0, len(tbl))
	for _, w := range tbl {
		if int(w.Set) >= len(sets) {
			return nil, apierror.StorageCorrupt("Staking table references an unknown ingredient set")
		}
		weights = append(weights, SetWeight{IngredientSet: sets[w.Set].Name, Weight: w.Weight})
	}
	return call.Answer("staking_table", map[string]Table{
		"staking_table": {Material: materials[idx], IngredientSetWeights: weights},
	}), nil
}
