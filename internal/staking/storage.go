package staking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

var (
	stateKey         = store.Key(store.PrefixState, store.Str("staking"))
	alchemyKey       = store.Key(store.PrefixState, store.Str("alchemy"))
	ingredientsKey   = store.Single(store.PrefixIngredients)
	ingredientSetKey = store.Single(store.PrefixIngredientSets)
	materialsKey     = store.Single(store.PrefixMaterials)
)

func tableKey(material uint8) []byte {
	return store.Key(store.PrefixStakingTable, store.U8(material))
}

func skullKey(tokenID string) []byte {
	return store.Key(store.PrefixSkullStake, store.Str(tokenID))
}

func userKey(addr string) []byte {
	return store.Key(store.PrefixUserStake, store.Str(addr))
}

func inventoryKey(addr string) []byte {
	return store.Key(store.PrefixUserInventory, store.Str(addr))
}

// LoadState reads the staking parameters.
func LoadState(t *store.Txn) (State, error) {
	s, err := store.Load[State](t, stateKey)
	if errors.Is(err, store.ErrNotFound) {
		return s, apierror.StorageCorrupt("Staking state has not been initialized")
	}
	return s, err
}

// SaveState writes the staking parameters.
func SaveState(t *store.Txn, s State) error {
	return store.Save(t, stateKey, s)
}

// LoadAlchemyState reads the skull classification layers.
func LoadAlchemyState(t *store.Txn) (AlchemyState, error) {
	s, _, err := store.MayLoad[AlchemyState](t, alchemyKey)
	return s, err
}

// Ingredients lists the ingredient names in index order.
func Ingredients(t *store.Txn) ([]string, error) {
	list, _, err := store.MayLoad[[]string](t, ingredientsKey)
	return list, err
}

// Materials lists the skull material names in index order.
func Materials(t *store.Txn) ([]string, error) {
	list, _, err := store.MayLoad[[]string](t, materialsKey)
	return list, err
}

// IngredientSets lists the stored ingredient sets.
func IngredientSets(t *store.Txn) ([]StoredIngredientSet, error) {
	list, _, err := store.MayLoad[[]StoredIngredientSet](t, ingredientSetKey)
	return list, err
}

func loadTable(t *store.Txn, material uint8) ([]StoredSetWeight, bool, error) {
	return store.MayLoad[[]StoredSetWeight](t, tableKey(material))
}

// stakeList returns the user's staked token ids. ok is false if the user
// never staked.
func stakeList(t *store.Txn, addr string) ([]string, bool, error) {
	return store.MayLoad[[]string](t, userKey(addr))
}

func rawInventory(t *store.Txn, addr string, count int) ([]uint32, error) {
	inv, _, err := store.MayLoad[[]uint32](t, inventoryKey(addr))
	if err != nil {
		return nil, err
	}
	// ingredients added after the inventory was saved start at zero
	for len(inv) < count {
		inv = append(inv, 0)
	}
	return inv, nil
}

// Inventory lists every ingredient with the user's quantity of it.
func Inventory(t *store.Txn, addr string) ([]IngredientQty, error) {
	names, err := Ingredients(t)
	if err != nil {
		return nil, err
	}
	inv, err := rawInventory(t, addr, len(names))
	if err != nil {
		return nil, err
	}
	out := make([]IngredientQty, 0, len(names))
	for i, name := range names {
		out = append(out, IngredientQty{Ingredient: name, Quantity: inv[i]})
	}
	return out, nil
}

// credit adds generated ingredients to the user's inventory and returns the
// nonzero amounts.
func credit(t *store.Txn, addr string, names []string, generated []uint32) ([]IngredientQty, error) {
	inv, err := rawInventory(t, addr, len(names))
	if err != nil {
		return nil, err
	}
	rewards := []IngredientQty{}
	for i, qty := range generated {
		inv[i] += qty
		if qty > 0 {
			rewards = append(rewards, IngredientQty{Ingredient: names[i], Quantity: qty})
		}
	}
	if err := store.Save(t, inventoryKey(addr), inv); err != nil {
		return nil, err
	}
	return rewards, nil
}

// verifyOwnership splits token ids into those owned by owner, with their
// images, and those that are not. Duplicates are dropped.
func verifyOwnership(c *call.Context, owner string, ids []string) ([]owned, []string, error) {
	if c.NFT == nil {
		return nil, nil, apierror.ExternalFailure("NFT service", errors.New("not configured"))
	}
	settings, err := call.LoadSettings(c.Txn())
	if err != nil {
		return nil, nil, err
	}
	var mine []owned
	var notMine []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		resp, err := c.NFT.ImageInfo(c.Ctx(), settings.SkullsCollection, id)
		if errors.Is(err, nft.ErrUnknownToken) {
			notMine = append(notMine, id)
			continue
		}
		if err != nil {
			return nil, nil, apierror.ExternalFailure("NFT service", err)
		}
		if resp.Owner != owner {
			notMine = append(notMine, id)
			continue
		}
		mine = append(mine, owned{id: id, image: resp.ImageInfo})
	}
	return mine, notMine, nil
}

// material returns the material index of a skull. The natural image is
// used so potions never change what a skull yields.
func material(o owned, skullIdx uint8, count int) (uint8, error) {
	img := o.image.Natural
	if len(img) == 0 {
		img = o.image.Current
	}
	if int(skullIdx) >= len(img) || int(img[skullIdx]) >= count {
		return 0, apierror.PreconditionFailed(fmt.Sprintf("Skull %s has an unknown material", o.id))
	}
	return img[skullIdx], nil
}

func ids(list []owned) []string {
	out := make([]string, len(list))
	for i, o := range list {
		out[i] = o.id
	}
	return out
}

func joinIDs(list []string) string {
	return strings.Join(list, ", ")
}
