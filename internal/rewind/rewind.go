// Package rewind restores a transmuted skull to its previous image.
package rewind

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/internal/registry"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Config holds the rewind cooldown in seconds.
type Config struct {
	Cooldown uint64 `json:"cooldown"`
}

// TokenTime is the last rewind of a token, if any.
type TokenTime struct {
	TokenID   string  `json:"token_id"`
	Timestamp *uint64 `json:"timestamp"`
}

var configKey = store.Key(store.PrefixState, store.Str("rewind"))

func timeKey(id string) []byte {
	return store.Key(store.PrefixRewindTimestamp, store.Str(id))
}

// LoadConfig reads the rewind configuration.
func LoadConfig(t *store.Txn) (Config, error) {
	cfg, _, err := store.MayLoad[Config](t, configKey)
	return cfg, err
}

// SaveConfig writes the rewind configuration.
func SaveConfig(t *store.Txn, cfg Config) error {
	return store.Save(t, configKey, cfg)
}

// LastRewind returns when id was last rewound.
func LastRewind(t *store.Txn, id string) (uint64, bool, error) {
	return store.MayLoad[uint64](t, timeKey(id))
}

// Rewind sets a skull's current image back to its previous image and
// returns the names of the categories that changed.
func Rewind(c *call.Context, tokenID string) ([]string, error) {
	t := c.Txn()
	halts, err := call.LoadHalts(t)
	if err != nil {
		return nil, err
	}
	if halts.Rewind {
		return nil, apierror.New(apierror.KindHalted, "Rewinds have been halted")
	}
	cfg, err := LoadConfig(t)
	if err != nil {
		return nil, err
	}
	settings, err := call.LoadSettings(t)
	if err != nil {
		return nil, err
	}
	if c.NFT == nil {
		return nil, apierror.ExternalFailure("NFT service", errors.New("not configured"))
	}
	resp, err := c.NFT.ImageInfo(c.Ctx(), settings.SkullsCollection, tokenID)
	if errors.Is(err, nft.ErrUnknownToken) {
		return nil, apierror.NotFound("Skull", tokenID)
	}
	if err != nil {
		return nil, apierror.ExternalFailure("NFT service", err)
	}
	if resp.Owner != c.Env().Caller {
		return nil, apierror.Unauthorized("Only the owner of a skull can rewind it")
	}
	last, ok, err := LastRewind(t, tokenID)
	if err != nil {
		return nil, err
	}
	if ok && last+cfg.Cooldown > c.Env().Now {
		return nil, apierror.PreconditionFailed(fmt.Sprintf("This skull can not be rewound until %d", last+cfg.Cooldown))
	}
	info := resp.ImageInfo
	if !info.Current.FullyRevealed() {
		return nil, apierror.PreconditionFailed("Only fully revealed skulls may be rewound")
	}
	if !info.Previous.FullyRevealed() {
		return nil, apierror.PreconditionFailed("Can not rewind if the previous state was not fully revealed")
	}
	if info.Previous.Equal(info.Current) {
		return nil, apierror.PreconditionFailed("This skull has not been altered from its last save point")
	}
	names, err := registry.CategoryNames(t)
	if err != nil {
		return nil, err
	}
	rewound := []string{}
	for i := range info.Current {
		if i >= len(info.Previous) || info.Current[i] == info.Previous[i] {
			continue
		}
		if i >= len(names) {
			return nil, apierror.StorageCorrupt(fmt.Sprintf("Image has more layers than the %d known categories", len(names)))
		}
		rewound = append(rewound, names[i])
	}
	if err := store.Save(t, timeKey(tokenID), c.Env().Now); err != nil {
		return nil, err
	}
	info.Current = info.Previous.Clone()
	c.Emit(model.SetImageInfo(settings.SkullsCollection, tokenID, info))
	return rewound, nil
}

// Handlers returns the rewind messages.
func Handlers() map[string]call.Handler {
	return map[string]call.Handler{
		"rewind":              rewind,
		"set_rewind_cooldown": adminOnly(setCooldown),
		"set_cooldown":        adminOnly(setCooldown),
		"set_rewind_status":   adminOnly(setStatus),
	}
}

// Queries returns the rewind read-only messages.
func Queries() map[string]call.Handler {
	return map[string]call.Handler{
		"rewind_status":     queryStatus,
		"rewind_cooldown":   queryCooldown,
		"last_rewind_times": queryTimes,
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

func rewind(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		TokenID string `json:"token_id"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	cats, err := Rewind(c, msg.TokenID)
	if err != nil {
		return nil, err
	}
	return call.Answer("rewind", map[string][]string{"categories_rewound": cats}), nil
}

func setCooldown(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Cooldown uint64 `json:"cooldown"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	t := c.Txn()
	cfg, err := LoadConfig(t)
	if err != nil {
		return nil, err
	}
	if cfg.Cooldown != msg.Cooldown {
		cfg.Cooldown = msg.Cooldown
		if err := SaveConfig(t, cfg); err != nil {
			return nil, err
		}
	}
	return call.Answer("set_cooldown", map[string]uint64{"cooldown": cfg.Cooldown}), nil
}

func setStatus(c *call.Context, raw json.RawMessage) (interface{}, error) {
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
	if halts.Rewind != msg.Halt {
		halts.Rewind = msg.Halt
		if err := call.SaveHalts(t, halts); err != nil {
			return nil, err
		}
	}
	return call.Answer("set_rewind_status", map[string]bool{"rewind_has_halted": msg.Halt}), nil
}

func queryStatus(c *call.Context, _ json.RawMessage) (interface{}, error) {
	halts, err := call.LoadHalts(c.Txn())
	if err != nil {
		return nil, err
	}
	return call.Answer("rewind_status", map[string]bool{"rewind_has_halted": halts.Rewind}), nil
}

func queryCooldown(c *call.Context, _ json.RawMessage) (interface{}, error) {
	cfg, err := LoadConfig(c.Txn())
	if err != nil {
		return nil, err
	}
	return call.Answer("cooldown", map[string]uint64{"cooldown": cfg.Cooldown}), nil
}

// queryTimes only answers an authenticated owner of every listed token.
func queryTimes(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		TokenIDs []string `json:"token_ids"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	querier, err := msg.Querier(c)
	if err != nil {
		return nil, err
	}
	t := c.Txn()
	settings, err := call.LoadSettings(t)
	if err != nil {
		return nil, err
	}
	if c.NFT == nil {
		return nil, apierror.ExternalFailure("NFT service", errors.New("not configured"))
	}
	times := make([]TokenTime, 0, len(msg.TokenIDs))
	for _, id := range msg.TokenIDs {
		resp, err := c.NFT.ImageInfo(c.Ctx(), settings.SkullsCollection, id)
		if err != nil && !errors.Is(err, nft.ErrUnknownToken) {
			return nil, apierror.ExternalFailure("NFT service", err)
		}
		if err != nil || resp.Owner != querier {
			return nil, apierror.Unauthorized("You do not own all of these skulls")
		}
		last, ok, err := LastRewind(t, id)
		if err != nil {
			return nil, err
		}
		tt := TokenTime{TokenID: id}
		if ok {
			tt.Timestamp = &last
		}
		times = append(times, tt)
	}
	return call.Answer("last_rewind_times", map[string][]TokenTime{"last_rewinds": times}), nil
}
