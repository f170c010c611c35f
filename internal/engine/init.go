package engine

import (
	"context"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/prng"
	"github.com/baedrik/skulls2/internal/raffle"
	"github.com/baedrik/skulls2/internal/rewind"
	"github.com/baedrik/skulls2/internal/staking"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// InitParams are the deployment parameters of a fresh engine.
type InitParams struct {
	Entropy          string   `json:"entropy" yaml:"entropy"`
	Admins           []string `json:"admins" yaml:"admins"`
	SkullsCollection string   `json:"skulls_collection" yaml:"skulls_collection"`
	SvgServer        string   `json:"svg_server" yaml:"svg_server"`
	// ChargeTime is the staking cooldown in seconds.
	ChargeTime     uint64               `json:"charge_time" yaml:"charge_time"`
	RewindCooldown uint64               `json:"rewind_cooldown" yaml:"rewind_cooldown"`
	Raffle         *raffle.ConfigUpdate `json:"raffle,omitempty" yaml:"raffle,omitempty"`
}

// Instantiate writes the initial state. The caller becomes an admin.
// Staking and alchemy start halted until their tables are defined.
func (e *Engine) Instantiate(ctx context.Context, env Env, p InitParams) (Result, error) {
	return e.run(ctx, env, "instantiate", func(c *call.Context) (interface{}, error) {
		t := c.Txn()
		if _, ok, err := t.Get(store.Single(store.PrefixPrngSeed)); err != nil {
			return nil, err
		} else if ok {
			return nil, apierror.PreconditionFailed("Engine has already been instantiated")
		}
		if p.SkullsCollection == "" {
			return nil, apierror.BadInput("The skulls collection address is required")
		}
		if p.ChargeTime == 0 {
			return nil, apierror.BadInput("Charge time must be greater than zero")
		}
		seed := prng.InitialSeed(p.Entropy)
		t.Set(store.Single(store.PrefixPrngSeed), seed)
		rng, err := c.Rng(nil)
		if err != nil {
			return nil, err
		}
		vk := rng.RandBytes()
		call.SaveViewingKeySeed(t, vk[:])

		admins := append([]string{env.Caller}, p.Admins...)
		if err := auth.SaveList(t, auth.RoleAdmin, dedup(admins)); err != nil {
			return nil, err
		}
		svg := p.SvgServer
		if svg == "" {
			svg = "local"
		}
		if err := call.SaveSettings(t, call.Settings{SkullsCollection: p.SkullsCollection, SvgServer: svg}); err != nil {
			return nil, err
		}
		if err := call.SaveHalts(t, call.Halts{Staking: true, Alchemy: true}); err != nil {
			return nil, err
		}
		if err := staking.SaveState(t, staking.State{Cooldown: p.ChargeTime}); err != nil {
			return nil, err
		}
		if err := rewind.SaveConfig(t, rewind.Config{Cooldown: p.RewindCooldown}); err != nil {
			return nil, err
		}
		var cfg raffle.Config
		if p.Raffle != nil {
			p.Raffle.Apply(&cfg)
		}
		if err := raffle.SaveConfig(t, cfg); err != nil {
			return nil, err
		}
		return call.Answer("instantiate", map[string]string{"status": "success"}), nil
	})
}

func dedup(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
