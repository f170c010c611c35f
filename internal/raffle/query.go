package raffle

import (
	"encoding/json"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Queries returns the raffle read-only messages.
func Queries() map[string]call.Handler {
	return map[string]call.Handler{
		"which_are_winners": queryWhich,
		"redeemable":        queryRedeemable,
		"claimed":           queryClaimed,
		"raffle_state":      queryState,
	}
}

func currentRound(cfg Config) (uint16, error) {
	if cfg.Round == nil {
		return 0, apierror.PreconditionFailed("No winners have been drawn yet")
	}
	return *cfg.Round, nil
}

func queryWhich(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Skulls  []string `json:"skulls"`
		Partner []string `json:"partner"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	t := c.Txn()
	cfg, err := LoadConfig(t)
	if err != nil {
		return nil, err
	}
	round, err := currentRound(cfg)
	if err != nil {
		return nil, err
	}
	halts, err := call.LoadHalts(t)
	if err != nil {
		return nil, err
	}
	winners := func(coll Collection, ids []string) ([]string, error) {
		res := OpenReservoir(t, coll, round, 0)
		list := []string{}
		for _, id := range ids {
			ok, err := res.IsWinner(id)
			if err != nil {
				return nil, err
			}
			if ok {
				list = append(list, id)
			}
		}
		return list, nil
	}
	skulls, err := winners(Skulls, msg.Skulls)
	if err != nil {
		return nil, err
	}
	partner, err := winners(Partner, msg.Partner)
	if err != nil {
		return nil, err
	}
	return call.Answer("which_are_winners", map[string]interface{}{
		"halted":  halts.Claims,
		"skulls":  skulls,
		"partner": partner,
	}), nil
}

func queryRedeemable(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Skulls   bool    `json:"skulls"`
		Round    *uint16 `json:"round"`
		Page     *uint32 `json:"page"`
		PageSize *uint32 `json:"page_size"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	t := c.Txn()
	cfg, err := LoadConfig(t)
	if err != nil {
		return nil, err
	}
	round, err := currentRound(cfg)
	if err != nil {
		return nil, err
	}
	if msg.Round != nil {
		round = *msg.Round
	}
	counts, err := LoadCounts(t, round)
	if err != nil {
		return nil, err
	}
	halts, err := call.LoadHalts(t)
	if err != nil {
		return nil, err
	}
	coll, name := Partner, cfg.PartnerName
	if msg.Skulls {
		coll, name = Skulls, SkullsName
	}
	page, size := uint32(0), uint32(100)
	if msg.Page != nil {
		page = *msg.Page
	}
	if msg.PageSize != nil {
		size = *msg.PageSize
	}
	res := OpenReservoir(t, coll, round, *counts.of(coll))
	ids, err := res.Page(page*size, size)
	if err != nil {
		return nil, err
	}
	return call.Answer("redeemable", map[string]interface{}{
		"halted":     halts.Claims,
		"round":      round,
		"collection": name,
		"count":      res.Count,
		"token_ids":  ids,
	}), nil
}

func queryClaimed(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		Page     *uint32 `json:"page"`
		PageSize *uint32 `json:"page_size"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	t := c.Txn()
	cfg, err := LoadConfig(t)
	if err != nil {
		return nil, err
	}
	page, size := uint32(0), uint32(30)
	if msg.Page != nil {
		page = *msg.Page
	}
	if msg.PageSize != nil {
		size = *msg.PageSize
	}
	claims, err := Claims(t, cfg, uint64(page)*uint64(size), size)
	if err != nil {
		return nil, err
	}
	return call.Answer("claimed", map[string]interface{}{
		"count":  cfg.Claimed,
		"claims": claims,
	}), nil
}

// Claims lists up to limit redeemed claims starting at claim number start.
func Claims(t *store.Txn, cfg Config, start uint64, limit uint32) ([]ClaimInfo, error) {
	list := []ClaimInfo{}
	for n := start; n < uint64(cfg.Claimed) && uint32(len(list)) < limit; n++ {
		r, err := loadRedeemed(t, uint32(n))
		if err != nil {
			return nil, err
		}
		coll := cfg.PartnerName
		if r.IsSkull {
			coll = SkullsName
		}
		list = append(list, ClaimInfo{Collection: coll, TokenID: r.TokenID, Owner: r.Owner, Round: r.Round})
	}
	return list, nil
}

func queryState(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	t := c.Txn()
	cfg, err := LoadConfig(t)
	if err != nil {
		return nil, err
	}
	halts, err := call.LoadHalts(t)
	if err != nil {
		return nil, err
	}
	skulls, err := SkullsCollection(t, cfg)
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"halted":             halts.Claims,
		"partner":            cfg.PartnerName,
		"partner_collection": cfg.PartnerCollection,
		"skulls_collection":  skulls,
		"potion_collection":  cfg.PotionCollection,
		"num_tokens":         cfg.NumTokens,
		"start_one":          cfg.StartOne,
		"round":              cfg.Round,
		"claimed":            cfg.Claimed,
	}
	if cfg.Round != nil {
		counts, err := LoadCounts(t, *cfg.Round)
		if err != nil {
			return nil, err
		}
		body["unredeemed"] = counts
	}
	return call.Answer("raffle_state", body), nil
}
