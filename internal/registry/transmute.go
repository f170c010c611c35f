package registry

import (
	"fmt"

	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Composer rewrites image vectors. It caches every name it resolves so a
// name is read from storage at most once per Composer.
type Composer struct {
	txn      *store.Txn
	coupling Coupling
	deps     []StoredDependencies
	count    uint8

	categories map[string]uint8
	variants   map[uint8]map[string]uint8

	// Notes collects the non-fatal conditions met while composing.
	Notes []string
}

// NewComposer loads what composition needs from the transaction.
func NewComposer(t *store.Txn) (*Composer, error) {
	state, err := LoadState(t)
	if err != nil {
		return nil, err
	}
	coupling, err := LoadCoupling(t)
	if err != nil {
		return nil, err
	}
	deps, err := LoadDependencies(t)
	if err != nil {
		return nil, err
	}
	return &Composer{
		txn:        t,
		coupling:   coupling,
		deps:       deps,
		count:      state.CategoryCount,
		categories: make(map[string]uint8),
		variants:   make(map[uint8]map[string]uint8),
	}, nil
}

func (cp *Composer) category(name string) (uint8, error) {
	if idx, ok := cp.categories[name]; ok {
		return idx, nil
	}
	idx, err := MustCategoryIndex(cp.txn, name)
	if err != nil {
		return 0, err
	}
	cp.categories[name] = idx
	return idx, nil
}

// variant resolves a variant name. ok is false when the category has no
// such variant.
func (cp *Composer) variant(cat uint8, name string) (uint8, bool, error) {
	cache, ok := cp.variants[cat]
	if !ok {
		cache = make(map[string]uint8)
		cp.variants[cat] = cache
	}
	if idx, ok := cache[name]; ok {
		return idx, true, nil
	}
	idx, ok, err := VariantIndex(cp.txn, cat, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	cache[name] = idx
	return idx, true, nil
}

func (cp *Composer) mustVariant(cat uint8, catName, name string) (uint8, error) {
	idx, ok, err := cp.variant(cat, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errNoVariant(catName, name)
	}
	return idx, nil
}

func (cp *Composer) noneOf(cat uint8) (uint8, error) {
	idx, ok, err := cp.variant(cat, NoneVariant)
	if err != nil {
		return 0, err
	}
	if !ok {
		c, err := LoadCategory(cp.txn, cat)
		if err != nil {
			return 0, err
		}
		return 0, apierror.PreconditionFailed(fmt.Sprintf("Category %s does not have a %s variant", c.Name, NoneVariant))
	}
	return idx, nil
}

func (cp *Composer) dependenciesOf(id model.StoredLayerId) []model.StoredLayerId {
	if i := findDependency(cp.deps, id); i >= 0 {
		return cp.deps[i].Correlated
	}
	return nil
}

func (cp *Composer) checkIndex(img model.Image, cat uint8) error {
	if int(cat) >= len(img) {
		return apierror.BadInput(fmt.Sprintf("Image has %d layers but category index %d was requested", len(img), cat))
	}
	return nil
}

// Transmute applies layers to a fully revealed image and returns the new
// image. The input is not modified.
func (cp *Composer) Transmute(current model.Image, layers []model.LayerId) (model.Image, error) {
	if !current.FullyRevealed() {
		return nil, apierror.PreconditionFailed("Only fully revealed skulls may be transmuted")
	}
	if len(current) != int(cp.count) {
		return nil, apierror.BadInput(fmt.Sprintf("Image has %d layers but there are %d categories", len(current), cp.count))
	}
	img := current.Clone()
	if err := cp.upgradeBackground(img); err != nil {
		return nil, err
	}
	for _, layer := range layers {
		var err error
		if layer.Category == cp.coupling.SkullCategory {
			err = cp.replaceSkull(img, layer.Variant)
		} else {
			err = cp.replaceLayer(img, layer)
		}
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

// upgradeBackground swaps a raw background for its transmuted form. A raw
// background without a transmuted form is left alone.
func (cp *Composer) upgradeBackground(img model.Image) error {
	bg, ok, err := CategoryIndex(cp.txn, cp.coupling.BackgroundCategory)
	if err != nil || !ok {
		return err
	}
	if err := cp.checkIndex(img, bg); err != nil {
		return err
	}
	if img[bg] >= cp.coupling.RawBackgroundLimit {
		return nil
	}
	v, err := LoadVariant(cp.txn, bg, img[bg])
	if err != nil {
		return err
	}
	name := fmt.Sprintf(cp.coupling.TransmutedBackground, v.DisplayName)
	idx, ok, err := cp.variant(bg, name)
	if err != nil {
		return err
	}
	if !ok {
		cp.Notes = append(cp.Notes, fmt.Sprintf("Did not find Background variant %s", name))
		return nil
	}
	img[bg] = idx
	return nil
}

// replaceSkull changes the skull variant and moves the jaw to the
// same-named variant unless the skull is jawless. The new skull's declared
// correlates are applied; the old skull's are left in place.
func (cp *Composer) replaceSkull(img model.Image, variant string) error {
	skull, err := cp.category(cp.coupling.SkullCategory)
	if err != nil {
		return err
	}
	if err := cp.checkIndex(img, skull); err != nil {
		return err
	}
	newVar, err := cp.mustVariant(skull, cp.coupling.SkullCategory, variant)
	if err != nil {
		return err
	}
	if img[skull] == newVar {
		return nil
	}
	jaw, err := cp.category(cp.coupling.JawCategory)
	if err != nil {
		return err
	}
	if err := cp.checkIndex(img, jaw); err != nil {
		return err
	}
	jawless, err := cp.mustVariant(jaw, cp.coupling.JawCategory, cp.coupling.JawNoneVariant)
	if err != nil {
		return err
	}
	if img[jaw] != jawless {
		if match, ok, err := cp.variant(jaw, variant); err != nil {
			return err
		} else if ok {
			img[jaw] = match
		}
	}
	for _, dep := range cp.dependenciesOf(model.StoredLayerId{Category: skull, Variant: newVar}) {
		if err := cp.checkIndex(img, dep.Category); err != nil {
			return err
		}
		img[dep.Category] = dep.Variant
	}
	img[skull] = newVar
	return nil
}

// replaceLayer sets one layer, clearing the old variant's correlates to
// None and applying the new variant's. Correlates are not followed
// further.
func (cp *Composer) replaceLayer(img model.Image, layer model.LayerId) error {
	cat, err := cp.category(layer.Category)
	if err != nil {
		return err
	}
	if err := cp.checkIndex(img, cat); err != nil {
		return err
	}
	newVar, err := cp.mustVariant(cat, layer.Category, layer.Variant)
	if err != nil {
		return err
	}
	oldVar := img[cat]
	if newVar == oldVar {
		return nil
	}
	for _, dep := range cp.dependenciesOf(model.StoredLayerId{Category: cat, Variant: oldVar}) {
		if err := cp.checkIndex(img, dep.Category); err != nil {
			return err
		}
		none, err := cp.noneOf(dep.Category)
		if err != nil {
			return err
		}
		img[dep.Category] = none
	}
	for _, dep := range cp.dependenciesOf(model.StoredLayerId{Category: cat, Variant: newVar}) {
		if err := cp.checkIndex(img, dep.Category); err != nil {
			return err
		}
		img[dep.Category] = dep.Variant
	}
	img[cat] = newVar
	return nil
}

// SkullType reports whether an image is a cyclops and whether it is jawless.
func (cp *Composer) SkullType(img model.Image) (cyclops, jawless bool, err error) {
	cyc, jaw, err := cp.TypeLayers()
	if err != nil {
		return false, false, err
	}
	if err := cp.checkIndex(img, cyc.Category); err != nil {
		return false, false, err
	}
	if err := cp.checkIndex(img, jaw.Category); err != nil {
		return false, false, err
	}
	return img[cyc.Category] == cyc.Variant, img[jaw.Category] == jaw.Variant, nil
}

// TypeLayers resolves the cyclops and jawless markers.
func (cp *Composer) TypeLayers() (cyclops, jawless model.StoredLayerId, err error) {
	cyclops, err = ToStored(cp.txn, cp.coupling.Cyclops)
	if err != nil {
		return
	}
	jawless, err = ToStored(cp.txn, cp.coupling.Jawless)
	return
}
