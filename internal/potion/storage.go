package potion

import (
	"errors"
	"fmt"

	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

var (
	stateKey     = store.Key(store.PrefixState, store.Str("potion"))
	contractsKey = store.Single(store.PrefixPotionContracts)
)

func potionKey(idx uint16) []byte {
	return store.Key(store.PrefixPotion, store.U16(idx))
}

func indexKey(name string) []byte {
	return store.Key(store.PrefixPotionIndex, store.Str(name))
}

// LoadState reads the potion count and svg servers.
func LoadState(t *store.Txn) (State, error) {
	s, _, err := store.MayLoad[State](t, stateKey)
	return s, err
}

func saveState(t *store.Txn, s State) error {
	return store.Save(t, stateKey, s)
}

// Contracts lists the potion collections allowed to send potions.
func Contracts(t *store.Txn) ([]string, error) {
	list, _, err := store.MayLoad[[]string](t, contractsKey)
	return list, err
}

func saveContracts(t *store.Txn, list []string) error {
	if list == nil {
		list = []string{}
	}
	return store.Save(t, contractsKey, list)
}

// Index looks up a potion index by name.
func Index(t *store.Txn, name string) (uint16, bool, error) {
	return store.MayLoad[uint16](t, indexKey(name))
}

// Load reads the potion at idx.
func Load(t *store.Txn, idx uint16) (Stored, error) {
	p, err := store.Load[Stored](t, potionKey(idx))
	if errors.Is(err, store.ErrNotFound) {
		return p, apierror.StorageCorrupt("Potion storage is corrupt")
	}
	return p, err
}

func save(t *store.Txn, idx uint16, p Stored) error {
	return store.Save(t, potionKey(idx), p)
}

// ByName reads a potion by name.
func ByName(t *store.Txn, name string) (uint16, Stored, error) {
	idx, ok, err := Index(t, name)
	if err != nil {
		return 0, Stored{}, err
	}
	if !ok {
		return 0, Stored{}, apierror.New(apierror.KindNotFound, fmt.Sprintf("No potion called %s", name))
	}
	p, err := Load(t, idx)
	return idx, p, err
}

func svgServer(s State, idx uint8) (string, error) {
	if int(idx) >= len(s.SvgServers) {
		return "", apierror.StorageCorrupt("Svg server storage is corrupt")
	}
	return s.SvgServers[idx], nil
}

func appendUnique(list []string, addrs ...string) ([]string, bool) {
	changed := false
	for _, a := range addrs {
		if indexOf(list, a) < 0 {
			list = append(list, a)
			changed = true
		}
	}
	return list, changed
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
