package staking

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/registry"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Handlers returns the staking messages.
func Handlers() map[string]call.Handler {
	return map[string]call.Handler{
		"set_stake":              setStake,
		"claim_stake":            claimStake,
		"set_charge_time":        adminOnly(setChargeTime),
		"set_halt_status":        adminOnly(setHaltStatus),
		"add_ingredients":        adminOnly(addIngredients),
		"define_ingredient_sets": adminOnly(defineIngredientSets),
		"set_staking_tables":     adminOnly(setStakingTables),
		"get_skull_type_info":    adminOnly(getSkullTypeInfo),
	}
}

func adminOnly(h call.Handler) call.Handler {
	return func(c *call.Context, raw json.RawMessage) (interface{}, error) {
		if err := auth.RequireAdmin(c.Txn(), c.Env().Caller); err != nil {
			return nil, err
		}
		return h(c, raw)
	}
}

// SetChargeTime changes the seconds per charge.
func SetChargeTime(t *store.Txn, secs uint64) (uint64, error) {
	if secs == 0 {
		return 0, apierror.BadInput("Charge time must be at least one second")
	}
	state, err := LoadState(t)
	if err != nil {
		return 0, err
	}
	if state.Cooldown != secs {
		state.Cooldown = secs
		if err := SaveState(t, state); err != nil {
			return 0, err
		}
	}
	return state.Cooldown, nil
}

func setChargeTime(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		ChargeTime uint64 `json:"charge_time"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	secs, err := SetChargeTime(c.Txn(), msg.ChargeTime)
	if err != nil {
		return nil, err
	}
	return call.Answer("set_charge_time", map[string]uint64{"charge_time": secs}), nil
}

// HaltStatuses shows the staking and alchemy kill-switches.
type HaltStatuses struct {
	StakingIsHalted bool `json:"staking_is_halted"`
	AlchemyIsHalted bool `json:"alchemy_is_halted"`
}

// SetHalts sets the staking and alchemy kill-switches. Staking can only be
// resumed once every material has a staking table.
func SetHalts(t *store.Txn, staking, alchemy *bool) (HaltStatuses, error) {
	halts, err := call.LoadHalts(t)
	if err != nil {
		return HaltStatuses{}, err
	}
	changed := false
	if staking != nil && halts.Staking != *staking {
		if !*staking {
			if err := checkTables(t); err != nil {
				return HaltStatuses{}, err
			}
		}
		halts.Staking = *staking
		changed = true
	}
	if alchemy != nil && halts.Alchemy != *alchemy {
		halts.Alchemy = *alchemy
		changed = true
	}
	if changed {
		if err := call.SaveHalts(t, halts); err != nil {
			return HaltStatuses{}, err
		}
	}
	return HaltStatuses{StakingIsHalted: halts.Staking, AlchemyIsHalted: halts.Alchemy}, nil
}

func checkTables(t *store.Txn) error {
	materials, err := Materials(t)
	if err != nil {
		return err
	}
	if len(materials) == 0 {
		return apierror.PreconditionFailed("Skull materials are undefined")
	}
	for i, mat := range materials {
		_, ok, err := loadTable(t, uint8(i))
		if err != nil {
			return err
		}
		if !ok {
			return apierror.PreconditionFailed(fmt.Sprintf("%s staking table has not been defined", mat))
		}
	}
	return nil
}

func setHaltStatus(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Staking *bool `json:"staking"`
		Alchemy *bool `json:"alchemy"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	st, err := SetHalts(c.Txn(), msg.Staking, msg.Alchemy)
	if err != nil {
		return nil, err
	}
	return call.Answer("set_halt_status", st), nil
}

// AddIngredients appends new ingredient names and returns the full list.
func AddIngredients(t *store.Txn, names []string) ([]string, error) {
	list, err := Ingredients(t)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		if indexOf(list, n) >= 0 {
			continue
		}
		if len(list) > math.MaxUint8 {
			return nil, apierror.IndexOverflow("Reached maximum number of ingredients")
		}
		list = append(list, n)
	}
	if list == nil {
		list = []string{}
	}
	if err := store.Save(t, ingredientsKey, list); err != nil {
		return nil, err
	}
	return list, nil
}

func addIngredients(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	list, err := AddIngredients(c.Txn(), msg.Ingredients)
	if err != nil {
		return nil, err
	}
	return call.Answer("add_ingredients", map[string][]string{"ingredients": list}), nil
}

// DefineIngredientSets creates or replaces ingredient sets by name and
// returns the number of sets.
func DefineIngredientSets(t *store.Txn, sets []IngredientSet) (int, error) {
	names, err := Ingredients(t)
	if err != nil {
		return 0, err
	}
	stored, err := IngredientSets(t)
	if err != nil {
		return 0, err
	}
	for _, set := range sets {
		var list []uint8
		for _, member := range set.Members {
			pos := indexOf(names, member)
			if pos < 0 {
				return 0, apierror.NotFound("Ingredient", member)
			}
			if !containsU8(list, uint8(pos)) {
				list = append(list, uint8(pos))
			}
		}
		replaced := false
		for i := range stored {
			if stored[i].Name == set.Name {
				stored[i].List = list
				replaced = true
				break
			}
		}
		if !replaced {
			if len(stored) > math.MaxUint8 {
				return 0, apierror.IndexOverflow("Reached maximum number of ingredient sets")
			}
			stored = append(stored, StoredIngredientSet{Name: set.Name, List: list})
		}
	}
	if err := store.Save(t, ingredientSetKey, stored); err != nil {
		return 0, err
	}
	return len(stored), nil
}

func defineIngredientSets(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Sets []IngredientSet `json:"sets"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	n, err := DefineIngredientSets(c.Txn(), msg.Sets)
	if err != nil {
		return nil, err
	}
	return call.Answer("define_ingredient_sets", map[string]int{"count": n}), nil
}

// SetStakingTables stores the set weights rolled for each listed material.
func SetStakingTables(t *store.Txn, tables []Table) error {
	materials, err := Materials(t)
	if err != nil {
		return err
	}
	sets, err := IngredientSets(t)
	if err != nil {
		return err
	}
	for _, tbl := range tables {
		mat := indexOf(materials, tbl.Material)
		if mat < 0 {
			return apierror.NotFound("Skull material", tbl.Material)
		}
		weights := make([]StoredSetWeight, 0, len(tbl.IngredientSetWeights))
		var total uint32
		for _, sw := range tbl.IngredientSetWeights {
			set := -1
			for i, s := range sets {
				if s.Name == sw.IngredientSet {
					set = i
					break
				}
			}
			if set < 0 {
				return apierror.NotFound("IngredientSet", sw.IngredientSet)
			}
			for _, w := range weights {
				if int(w.Set) == set {
					return apierror.BadInput(fmt.Sprintf("%s has been duplicated in the staking table", sw.IngredientSet))
				}
			}
			total += uint32(sw.Weight)
			if total > math.MaxUint16 {
				return apierror.BadInput(fmt.Sprintf("The weights of the %s staking table overflow", tbl.Material))
			}
			weights = append(weights, StoredSetWeight{Set: uint8(set), Weight: sw.Weight})
		}
		if err := store.Save(t, tableKey(uint8(mat)), weights); err != nil {
			return err
		}
	}
	return nil
}

func setStakingTables(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Tables []Table `json:"tables"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if err := SetStakingTables(c.Txn(), msg.Tables); err != nil {
		return nil, err
	}
	return call.Answer("set_staking_tables", map[string]string{"status": "success"}), nil
}

// RefreshSkullTypes copies the skull category index, the classification
// layers and the material names from the registry.
func RefreshSkullTypes(c *call.Context) error {
	t := c.Txn()
	plus, err := registry.NewServer(c).SkullTypePlus()
	if err != nil {
		return err
	}
	state, err := LoadState(t)
	if err != nil {
		return err
	}
	state.SkullIdx = plus.SkullIdx
	if err := SaveState(t, state); err != nil {
		return err
	}
	if err := store.Save(t, alchemyKey, AlchemyState{Cyclops: plus.Cyclops, Jawless: plus.Jawless}); err != nil {
		return err
	}
	materials := make([]string, len(plus.SkullVariants))
	for _, v := range plus.SkullVariants {
		if int(v.Idx) >= len(materials) {
			return apierror.StorageCorrupt("Skull material index out of range")
		}
		materials[v.Idx] = v.Name
	}
	for _, m := range materials {
		if m == "" {
			return apierror.StorageCorrupt("Blank Name in skull material list")
		}
	}
	return store.Save(t, materialsKey, materials)
}

func getSkullTypeInfo(c *call.Context, raw json.RawMessage) (interface{}, error) {
	if err := RefreshSkullTypes(c); err != nil {
		return nil, err
	}
	materials, err := Materials(c.Txn())
	if err != nil {
		return nil, err
	}
	return call.Answer("get_skull_type_info", map[string][]string{"materials": materials}), nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func containsU8(list []uint8, v uint8) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
