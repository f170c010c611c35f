package potion

import (
	"encoding/json"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Queries returns the potion read-only messages.
func (a *Applicator) Queries() map[string]call.Handler {
	return map[string]call.Handler{
		"potions":          queryPotions,
		"potion_info":      queryPotionInfo,
		"potion_contracts": queryContracts,
		"svg_servers":      querySvgServers,
	}
}

func queryPotions(c *call.Context, raw json.RawMessage) (interface{}, error) {
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
	state, err := LoadState(t)
	if err != nil {
		return nil, err
	}
	page, size := 0, 100
	if msg.Page != nil {
		page = int(*msg.Page)
	}
	if msg.PageSize != nil {
		size = int(*msg.PageSize)
	}
	list := []NameIdx{}
	for i := page * size; i < int(state.PotionCount) && i < (page+1)*size; i++ {
		p, err := Load(t, uint16(i))
		if err != nil {
			return nil, err
		}
		list = append(list, NameIdx{Name: p.Name, Index: uint16(i)})
	}
	return call.Answer("potions", map[string]interface{}{
		"count":   state.PotionCount,
		"potions": list,
	}), nil
}

func queryPotionInfo(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		Name  *string `json:"name"`
		Index *uint16 `json:"index"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	t := c.Txn()
	var p Stored
	var err error
	switch {
	case msg.Index != nil:
		state, err := LoadState(t)
		if err != nil {
			return nil, err
		}
		if *msg.Index >= state.PotionCount {
			return nil, apierror.BadInput("Potion index out of range")
		}
		p, err = Load(t, *msg.Index)
		if err != nil {
			return nil, err
		}
	case msg.Name != nil:
		if _, p, err = ByName(t, *msg.Name); err != nil {
			return nil, err
		}
	default:
		return nil, apierror.BadInput("The potion name or index must be provided")
	}
	state, err := LoadState(t)
	if err != nil {
		return nil, err
	}
	svg, err := svgServer(state, p.SvgServer)
	if err != nil {
		return nil, err
	}
	return call.Answer("potion_info", map[string]interface{}{
		"halted": p.Halt,
		"potion": Info{Name: p.Name, SvgServer: svg, Variants: p.Variants},
	}), nil
}

func queryContracts(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	list, err := Contracts(c.Txn())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return call.Answer("potion_contracts", map[string][]string{"potion_contracts": list}), nil
}

func querySvgServers(c *call.Context, raw json.RawMessage) (interface{}, error) {
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
	list := state.SvgServers
	if list == nil {
		list = []string{}
	}
	return call.Answer("svg_servers", map[string][]string{"svg_servers": list}), nil
}
