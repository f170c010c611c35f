package registry

import (
	"fmt"

	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

var (
	stateKey        = store.Key(store.PrefixState, store.Str("registry"))
	couplingKey     = store.Key(store.PrefixState, store.Str("coupling"))
	dependenciesKey = store.Single(store.PrefixDependencies)
	metadataKey     = store.Single(store.PrefixMetadata)
)

func categoryKey(idx uint8) []byte {
	return store.Key(store.PrefixCategory, store.U8(idx))
}

func categoryMapKey(name string) []byte {
	return store.Key(store.PrefixCategoryMap, store.Str(name))
}

func variantKey(cat, idx uint8) []byte {
	return store.Key(store.PrefixVariant, store.U8(cat), store.U8(idx))
}

func variantMapKey(cat uint8, name string) []byte {
	return store.Key(store.PrefixVariantMap, store.U8(cat), store.Str(name))
}

func errNoCategory(name string) error {
	return apierror.New(apierror.KindNotFound, fmt.Sprintf("Category name: %s does not exist", name))
}

func errNoVariant(cat, name string) error {
	return apierror.New(apierror.KindNotFound, fmt.Sprintf("Category %s does not have a variant named %s", cat, name))
}

// LoadState returns the registry state, empty before the first category.
func LoadState(t *store.Txn) (State, error) {
	s, ok, err := store.MayLoad[State](t, stateKey)
	if err != nil {
		return s, err
	}
	if !ok || s.Skip == nil {
		s.Skip = []uint8{}
	}
	return s, nil
}

func saveState(t *store.Txn, s State) error {
	return store.Save(t, stateKey, s)
}

// LoadCoupling returns the coupling config or the default one.
func LoadCoupling(t *store.Txn) (Coupling, error) {
	c, ok, err := store.MayLoad[Coupling](t, couplingKey)
	if err != nil || !ok {
		return DefaultCoupling(), err
	}
	return c, nil
}

// CategoryIndex looks a category up by name.
func CategoryIndex(t *store.Txn, name string) (uint8, bool, error) {
	return store.MayLoad[uint8](t, categoryMapKey(name))
}

// MustCategoryIndex looks a category up by name and fails if it is unknown.
func MustCategoryIndex(t *store.Txn, name string) (uint8, error) {
	idx, ok, err := CategoryIndex(t, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errNoCategory(name)
	}
	return idx, nil
}

// LoadCategory returns the category at idx.
func LoadCategory(t *store.Txn, idx uint8) (Category, error) {
	cat, ok, err := store.MayLoad[Category](t, categoryKey(idx))
	if err != nil {
		return cat, err
	}
	if !ok {
		return cat, apierror.StorageCorrupt("Category storage is corrupt")
	}
	return cat, nil
}

// VariantIndex looks a variant up by name within a category.
func VariantIndex(t *store.Txn, cat uint8, name string) (uint8, bool, error) {
	return store.MayLoad[uint8](t, variantMapKey(cat, name))
}

// LoadVariant returns a variant by index.
func LoadVariant(t *store.Txn, cat, idx uint8) (VariantInfo, error) {
	v, ok, err := store.MayLoad[VariantInfo](t, variantKey(cat, idx))
	if err != nil {
		return v, err
	}
	if !ok {
		return v, apierror.StorageCorrupt("Variant storage is corrupt")
	}
	return v, nil
}

// LoadDependencies returns every stored dependency in insertion order.
func LoadDependencies(t *store.Txn) ([]StoredDependencies, error) {
	deps, _, err := store.MayLoad[[]StoredDependencies](t, dependenciesKey)
	return deps, err
}

func saveDependencies(t *store.Txn, deps []StoredDependencies) error {
	return store.Save(t, dependenciesKey, deps)
}

// LoadCommonMetadata returns the metadata shared by every token.
func LoadCommonMetadata(t *store.Txn) (CommonMetadata, error) {
	m, _, err := store.MayLoad[CommonMetadata](t, metadataKey)
	return m, err
}

// ToStored resolves a named layer to indices.
func ToStored(t *store.Txn, id model.LayerId) (model.StoredLayerId, error) {
	cat, err := MustCategoryIndex(t, id.Category)
	if err != nil {
		return model.StoredLayerId{}, err
	}
	v, ok, err := VariantIndex(t, cat, id.Variant)
	if err != nil {
		return model.StoredLayerId{}, err
	}
	if !ok {
		return model.StoredLayerId{}, errNoVariant(id.Category, id.Variant)
	}
	return model.StoredLayerId{Category: cat, Variant: v}, nil
}

// ToDisplay resolves an indexed layer to names.
func ToDisplay(t *store.Txn, id model.StoredLayerId) (model.LayerId, error) {
	cat, err := LoadCategory(t, id.Category)
	if err != nil {
		return model.LayerId{}, err
	}
	v, err := LoadVariant(t, id.Category, id.Variant)
	if err != nil {
		return model.LayerId{}, err
	}
	return model.LayerId{Category: cat.Name, Variant: v.Name}, nil
}

func dependenciesToStored(t *store.Txn, d Dependencies) (StoredDependencies, error) {
	id, err := ToStored(t, d.ID)
	if err != nil {
		return StoredDependencies{}, err
	}
	out := StoredDependencies{ID: id, Correlated: make([]model.StoredLayerId, 0, len(d.Correlated))}
	for _, l := range d.Correlated {
		s, err := ToStored(t, l)
		if err != nil {
			return StoredDependencies{}, err
		}
		out.Correlated = append(out.Correlated, s)
	}
	return out, nil
}

func dependenciesToDisplay(t *store.Txn, d StoredDependencies) (Dependencies, error) {
	id, err := ToDisplay(t, d.ID)
	if err != nil {
		return Dependencies{}, err
	}
	out := Dependencies{ID: id, Correlated: make([]model.LayerId, 0, len(d.Correlated))}
	for _, l := range d.Correlated {
		n, err := ToDisplay(t, l)
		if err != nil {
			return Dependencies{}, err
		}
		out.Correlated = append(out.Correlated, n)
	}
	return out, nil
}

// CategoryNames returns every category name in index order.
func CategoryNames(t *store.Txn) ([]string, error) {
	state, err := LoadState(t)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, state.CategoryCount)
	for i := 0; i < int(state.CategoryCount); i++ {
		cat, err := LoadCategory(t, uint8(i))
		if err != nil {
			return nil, err
		}
		names = append(names, cat.Name)
	}
	return names, nil
}

// variantPlus builds the display form of a variant.
func variantPlus(t *store.Txn, id model.StoredLayerId, deps []StoredDependencies, svgs bool) (VariantInfoPlus, error) {
	includes := []model.LayerId{}
	for _, d := range deps {
		if d.ID != id {
			continue
		}
		for _, l := range d.Correlated {
			n, err := ToDisplay(t, l)
			if err != nil {
				return VariantInfoPlus{}, err
			}
			includes = append(includes, n)
		}
		break
	}
	v, err := LoadVariant(t, id.Category, id.Variant)
	if err != nil {
		return VariantInfoPlus{}, err
	}
	if !svgs {
		v.Svg = nil
	}
	return VariantInfoPlus{Index: id.Variant, VariantInfo: v, Includes: includes}, nil
}
