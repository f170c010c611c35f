package raffle

import (
	"encoding/json"
	"fmt"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Handlers returns the raffle administration messages.
func Handlers() map[string]call.Handler {
	return map[string]call.Handler{
		"set_raffle_config":     adminOnly(setConfig),
		"raffle":                adminOnly(raffle),
		"set_claim_halt_status": adminOnly(setHaltStatus),
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

// ConfigUpdate changes the fields it sets.
type ConfigUpdate struct {
	Partner           *string         `json:"partner" yaml:"partner"`
	PartnerCollection *string         `json:"partner_collection" yaml:"partner_collection"`
	SkullsCollection  *string         `json:"skulls_collection" yaml:"skulls_collection"`
	PotionCollection  *string         `json:"potion_collection" yaml:"potion_collection"`
	NumTokens         *uint32         `json:"num_tokens" yaml:"num_tokens"`
	StartOne          *bool           `json:"start_one" yaml:"start_one"`
	MintMetadata      *model.Metadata `json:"mint_metadata" yaml:"mint_metadata"`
}

// Apply merges u into cfg.
func (u ConfigUpdate) Apply(cfg *Config) {
	if u.Partner != nil {
		cfg.PartnerName = *u.Partner
	}
	if u.PartnerCollection != nil {
		cfg.PartnerCollection = *u.PartnerCollection
	}
	if u.SkullsCollection != nil {
		cfg.SkullsCollection = *u.SkullsCollection
	}
	if u.PotionCollection != nil {
		cfg.PotionCollection = *u.PotionCollection
	}
	if u.NumTokens != nil {
		cfg.NumTokens = *u.NumTokens
	}
	if u.StartOne != nil {
		cfg.StartOne = *u.StartOne
	}
	if u.MintMetadata != nil {
		cfg.MintMetadata = u.MintMetadata
	}
}

func setConfig(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var u ConfigUpdate
	if err := call.Decode(raw, &u); err != nil {
		return nil, err
	}
	t := c.Txn()
	cfg, err := LoadConfig(t)
	if err != nil {
		return nil, err
	}
	u.Apply(&cfg)
	if err := SaveConfig(t, cfg); err != nil {
		return nil, err
	}
	return call.Answer("set_raffle_config", map[string]string{"status": "success"}), nil
}

// Raffle opens the next round and draws its winners. partnerPercent of
// the picks, rounded down, go to the partner collection.
func Raffle(c *call.Context, picks uint32, partnerPercent uint8, entropy string) (Counts, error) {
	if partnerPercent > 100 {
		return Counts{}, apierror.BadInput("The percentage of picks given to the partner collection can not be more than 100")
	}
	t := c.Txn()
	cfg, err := LoadConfig(t)
	if err != nil {
		return Counts{}, err
	}
	var round uint16
	if cfg.Round != nil {
		if *cfg.Round == ^uint16(0) {
			return Counts{}, apierror.IndexOverflow("Reached the implementation limit for the number of raffle rounds")
		}
		round = *cfg.Round + 1
	}
	partner := uint32(uint64(picks) * uint64(partnerPercent) / 100)
	counts := Counts{Skulls: picks - partner, Partner: partner}
	if counts.Partner > 0 && cfg.PartnerCollection == "" {
		return Counts{}, apierror.PreconditionFailed("The partner collection has not been configured")
	}
	rng, err := c.Rng([]byte(entropy))
	if err != nil {
		return Counts{}, err
	}
	skulls := OpenReservoir(t, Skulls, round, 0)
	if _, err := skulls.Draw(rng, counts.Skulls, SkullPool, 0); err != nil {
		return Counts{}, err
	}
	var modifier uint32
	if cfg.StartOne {
		modifier = 1
	}
	ptnr := OpenReservoir(t, Partner, round, 0)
	if _, err := ptnr.Draw(rng, counts.Partner, cfg.NumTokens, modifier); err != nil {
		return Counts{}, err
	}
	if err := saveCounts(t, round, counts); err != nil {
		return Counts{}, err
	}
	cfg.Round = &round
	if err := SaveConfig(t, cfg); err != nil {
		return Counts{}, err
	}
	c.Log("raffle round", fmt.Sprint(round))
	return counts, nil
}

func raffle(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		NumPicks       uint32 `json:"num_picks"`
		PartnerPercent uint8  `json:"partner_percent"`
		Entropy        string `json:"entropy"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	counts, err := Raffle(c, msg.NumPicks, msg.PartnerPercent, msg.Entropy)
	if err != nil {
		return nil, err
	}
	return call.Answer("raffle", counts), nil
}

func setHaltStatus(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Halt bool `json:"halt"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	t := c.Txn()
	halts, err := call.LoadHalts(t)
	if err != nil {
		return nil, err
	}
	if halts.Claims != msg.Halt {
		halts.Claims = msg.Halt
		if err := call.SaveHalts(t, halts); err != nil {
			return nil, err
		}
	}
	return call.Answer("set_claim_halt_status", map[string]bool{"halted": msg.Halt}), nil
}

// IsClaimCollection reports whether addr is one of the collections whose
// tokens can be redeemed.
func IsClaimCollection(c *call.Context, addr string) (bool, error) {
	t := c.Txn()
	cfg, err := LoadConfig(t)
	if err != nil {
		return false, err
	}
	if cfg.PartnerCollection != "" && addr == cfg.PartnerCollection {
		return true, nil
	}
	skulls, err := SkullsCollection(t, cfg)
	if err != nil {
		return false, err
	}
	return addr == skulls, nil
}

// Redeem mints a potion for every winner of the latest round among the
// tokens from sent, then returns all the tokens to from. Tokens that are
// not winners are returned without a potion.
func Redeem(c *call.Context, from string, tokenIDs []string) ([]string, error) {
	t := c.Txn()
	halts, err := call.LoadHalts(t)
	if err != nil {
		return nil, err
	}
	if halts.Claims {
		return nil, apierror.New(apierror.KindHalted, "Claims have been halted")
	}
	cfg, err := LoadConfig(t)
	if err != nil {
		return nil, err
	}
	if cfg.Round == nil {
		return nil, apierror.PreconditionFailed("No winners have been drawn yet")
	}
	round := *cfg.Round
	counts, err := LoadCounts(t, round)
	if err != nil {
		return nil, err
	}
	skullsAddr, err := SkullsCollection(t, cfg)
	if err != nil {
		return nil, err
	}
	sender := c.Env().Caller
	var coll Collection
	var name string
	switch {
	case sender == skullsAddr:
		coll, name = Skulls, SkullsName
	case cfg.PartnerCollection != "" && sender == cfg.PartnerCollection:
		coll, name = Partner, cfg.PartnerName
	default:
		return nil, apierror.Unauthorized("This can only be called by either the mystic skulls token contract or the partner collection contract")
	}

	res := OpenReservoir(t, coll, round, *counts.of(coll))
	redeemed := []string{}
	var mints []model.Mint
	for _, id := range tokenIDs {
		won, err := res.Consume(id)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}
		if cfg.Claimed == ^uint32(0) {
			return nil, apierror.IndexOverflow("Reached the implementation limit for the number of claims")
		}
		claim := Redeemed{IsSkull: coll == Skulls, TokenID: id, Owner: from, Round: round}
		if err := store.Save(t, redeemedKey(cfg.Claimed), claim); err != nil {
			return nil, err
		}
		cfg.Claimed++
		mints = append(mints, model.Mint{
			Owner:          from,
			PublicMetadata: cfg.MintMetadata,
			Memo:           fmt.Sprintf("Claimed with %s %s", name, id),
		})
		redeemed = append(redeemed, id)
	}

	c.Emit(model.BatchSendNft(sender, from, tokenIDs, fmt.Sprintf("Returning %s sent to claim potions", name)))
	if len(mints) > 0 {
		if cfg.PotionCollection == "" {
			return nil, apierror.PreconditionFailed("The potion collection has not been configured")
		}
		c.Emit(model.BatchMintNft(cfg.PotionCollection, mints))
		*counts.of(coll) = res.Count
		if err := saveCounts(t, round, counts); err != nil {
			return nil, err
		}
		if err := SaveConfig(t, cfg); err != nil {
			return nil, err
		}
	}
	c.Log("redeemed", fmt.Sprintf("%q", redeemed))
	return redeemed, nil
}
