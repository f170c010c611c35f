package potion

import (
	"encoding/json"
	"math"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Handlers returns the potion administration messages.
func (a *Applicator) Handlers() map[string]call.Handler {
	return map[string]call.Handler{
		"set_potion":              adminOnly(setPotion),
		"add_potion_contracts":    adminOnly(addContracts),
		"remove_potion_contracts": adminOnly(removeContracts),
		"set_potion_halt_status":  adminOnly(setHaltStatus),
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

// SetPotion creates or replaces a potion by name. It reports the potion
// count and whether an existing potion was replaced.
func SetPotion(t *store.Txn, info Info) (uint16, bool, error) {
	if info.Name == "" {
		return 0, false, apierror.BadInput("A potion must have a name")
	}
	if info.SvgServer == "" {
		return 0, false, apierror.BadInput("A potion must name its svg server")
	}
	state, err := LoadState(t)
	if err != nil {
		return 0, false, err
	}
	idx, exists, err := Index(t, info.Name)
	if err != nil {
		return 0, false, err
	}
	if !exists {
		if state.PotionCount == math.MaxUint16 {
			return 0, false, apierror.IndexOverflow("Reached the implementation limit for the number of potions")
		}
		idx = state.PotionCount
		state.PotionCount++
		if err := store.Save(t, indexKey(info.Name), idx); err != nil {
			return 0, false, err
		}
	}
	if info.PotionContract != nil {
		contracts, err := Contracts(t)
		if err != nil {
			return 0, false, err
		}
		if contracts, changed := appendUnique(contracts, *info.PotionContract); changed {
			if err := saveContracts(t, contracts); err != nil {
				return 0, false, err
			}
		}
	}
	svg := indexOf(state.SvgServers, info.SvgServer)
	if svg < 0 {
		if len(state.SvgServers) > math.MaxUint8 {
			return 0, false, apierror.IndexOverflow("Reached the implementation limit for the number of svg servers")
		}
		state.SvgServers = append(state.SvgServers, info.SvgServer)
		svg = len(state.SvgServers) - 1
	}
	if err := saveState(t, state); err != nil {
		return 0, false, err
	}
	stored := Stored{Name: info.Name, SvgServer: uint8(svg), Variants: info.Variants}
	if err := save(t, idx, stored); err != nil {
		return 0, false, err
	}
	return state.PotionCount, exists, nil
}

func setPotion(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Potion Info `json:"potion"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	count, existed, err := SetPotion(c.Txn(), msg.Potion)
	if err != nil {
		return nil, err
	}
	return call.Answer("set_potion", map[string]interface{}{
		"count":            count,
		"updated_existing": existed,
	}), nil
}

// ContractsAnswer lists the registered potion collections and svg servers.
type ContractsAnswer struct {
	PotionContracts []string `json:"potion_contracts"`
	SvgServers      []string `json:"svg_servers,omitempty"`
}

func addContracts(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		PotionContracts []string `json:"potion_contracts"`
		SvgServers      []string `json:"svg_servers"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	t := c.Txn()
	contracts, err := Contracts(t)
	if err != nil {
		return nil, err
	}
	contracts, changed := appendUnique(contracts, msg.PotionContracts...)
	if changed {
		if err := saveContracts(t, contracts); err != nil {
			return nil, err
		}
	}
	state, err := LoadState(t)
	if err != nil {
		return nil, err
	}
	var added bool
	if state.SvgServers, added = appendUnique(state.SvgServers, msg.SvgServers...); added {
		if len(state.SvgServers) > math.MaxUint8+1 {
			return nil, apierror.IndexOverflow("Reached the implementation limit for the number of svg servers")
		}
		if err := saveState(t, state); err != nil {
			return nil, err
		}
	}
	if contracts == nil {
		contracts = []string{}
	}
	return call.Answer("add_potion_contracts", ContractsAnswer{PotionContracts: contracts, SvgServers: state.SvgServers}), nil
}

func removeContracts(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		PotionContracts []string `json:"potion_contracts"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	t := c.Txn()
	contracts, err := Contracts(t)
	if err != nil {
		return nil, err
	}
	kept := make([]string, 0, len(contracts))
	for _, addr := range contracts {
		if indexOf(msg.PotionContracts, addr) < 0 {
			kept = append(kept, addr)
		}
	}
	if len(kept) != len(contracts) {
		if err := saveContracts(t, kept); err != nil {
			return nil, err
		}
	}
	return call.Answer("remove_potion_contracts", ContractsAnswer{PotionContracts: kept}), nil
}

func setHaltStatus(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Potion *string `json:"potion"`
		Halt   bool    `json:"halt"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	t := c.Txn()
	if msg.Potion != nil {
		idx, p, err := ByName(t, *msg.Potion)
		if err != nil {
			return nil, err
		}
		if p.Halt != msg.Halt {
			p.Halt = msg.Halt
			if err := save(t, idx, p); err != nil {
				return nil, err
			}
		}
	} else {
		halts, err := call.LoadHalts(t)
		if err != nil {
			return nil, err
		}
		if halts.Alchemy != msg.Halt {
			halts.Alchemy = msg.Halt
			if err := call.SaveHalts(t, halts); err != nil {
				return nil, err
			}
		}
	}
	return call.Answer("set_potion_halt_status", map[string]interface{}{
		"potion": msg.Potion,
		"halted": msg.Halt,
	}), nil
}
