package call

import (
	"context"
	"errors"

	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

var (
	settingsKey = store.Key(store.PrefixState, store.Str("settings"))
	haltsKey    = store.Key(store.PrefixState, store.Str("halts"))
	vkSeedKey   = store.Key(store.PrefixState, store.Str("vk_seed"))
)

// Settings are the deployment-wide addresses every domain reads.
type Settings struct {
	// SkullsCollection is the address of the skull NFT contract.
	SkullsCollection string `json:"skulls_collection"`
	// SvgServer is the address the in-process registry answers to.
	SvgServer string `json:"svg_server"`
}

// Halts are the independent kill-switches of the engines.
type Halts struct {
	Staking bool `json:"staking"`
	Alchemy bool `json:"alchemy"`
	Claims  bool `json:"claims"`
	Rewind  bool `json:"rewind"`
}

// LoadSettings reads the deployment settings.
func LoadSettings(t *store.Txn) (Settings, error) {
	s, err := store.Load[Settings](t, settingsKey)
	if errors.Is(err, store.ErrNotFound) {
		return s, apierror.StorageCorrupt("Engine has not been instantiated")
	}
	return s, err
}

// SaveSettings writes the deployment settings.
func SaveSettings(t *store.Txn, s Settings) error {
	return store.Save(t, settingsKey, s)
}

// LoadHalts reads the kill-switches. Missing means nothing is halted.
func LoadHalts(t *store.Txn) (Halts, error) {
	h, _, err := store.MayLoad[Halts](t, haltsKey)
	return h, err
}

// SaveHalts writes the kill-switches.
func SaveHalts(t *store.Txn, h Halts) error {
	return store.Save(t, haltsKey, h)
}

// LoadViewingKeySeed returns the secret mixed into new viewing keys.
func LoadViewingKeySeed(t *store.Txn) ([]byte, error) {
	seed, ok, err := t.Get(vkSeedKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierror.StorageCorrupt("Viewing key seed has not been initialized")
	}
	return seed, nil
}

// SaveViewingKeySeed stores the viewing key secret.
func SaveViewingKeySeed(t *store.Txn, seed []byte) {
	t.Set(vkSeedKey, seed)
}

// PermitValidator verifies a permit's signature and returns the signer.
type PermitValidator interface {
	Validate(ctx context.Context, permit model.Permit) (string, error)
}

// RejectPermits is the validator used when no signature checker is
// configured. Every permit fails.
type RejectPermits struct{}

// Validate always fails.
func (RejectPermits) Validate(context.Context, model.Permit) (string, error) {
	return "", apierror.Unauthorized("Permit validation is not available")
}

// StaticPermits accepts a permit whose name is registered to a signer.
// It backs tests and local development.
type StaticPermits map[string]string

// Validate returns the signer registered for the permit's name.
func (s StaticPermits) Validate(_ context.Context, permit model.Permit) (string, error) {
	signer, ok := s[permit.Params.PermitName]
	if !ok {
		return "", apierror.Unauthorized("Failed to verify permit signature")
	}
	return signer, nil
}
