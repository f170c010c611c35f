package raffle

import (
	"errors"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

var configKey = store.Single(store.PrefixRaffleConfig)

func countsKey(round uint16) []byte {
	return store.Key(store.PrefixCounts, store.U16(round))
}

func redeemedKey(n uint32) []byte {
	return store.Key(store.PrefixRedeemed, store.U32(n))
}

// LoadConfig reads the raffle configuration. An unconfigured raffle has
// the zero Config.
func LoadConfig(t *store.Txn) (Config, error) {
	cfg, _, err := store.MayLoad[Config](t, configKey)
	return cfg, err
}

// SaveConfig writes the raffle configuration.
func SaveConfig(t *store.Txn, cfg Config) error {
	return store.Save(t, configKey, cfg)
}

// SkullsCollection is the skull contract redemptions accept.
func SkullsCollection(t *store.Txn, cfg Config) (string, error) {
	if cfg.SkullsCollection != "" {
		return cfg.SkullsCollection, nil
	}
	settings, err := call.LoadSettings(t)
	if err != nil {
		return "", err
	}
	return settings.SkullsCollection, nil
}

// LoadCounts reads the unredeemed counts of a round.
func LoadCounts(t *store.Txn, round uint16) (Counts, error) {
	c, err := store.Load[Counts](t, countsKey(round))
	if errors.Is(err, store.ErrNotFound) {
		return c, apierror.StorageCorrupt("Counts storage is corrupt")
	}
	return c, err
}

func saveCounts(t *store.Txn, round uint16, c Counts) error {
	return store.Save(t, countsKey(round), c)
}

func loadRedeemed(t *store.Txn, n uint32) (Redeemed, error) {
	r, err := store.Load[Redeemed](t, redeemedKey(n))
	if errors.Is(err, store.ErrNotFound) {
		return r, apierror.StorageCorrupt("Redeemed storage is corrupt")
	}
	return r, err
}
