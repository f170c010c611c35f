package registry

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Handlers returns the registry's execute messages. Every one of them is
// admin only.
func Handlers() map[string]call.Handler {
	return map[string]call.Handler{
		"add_categories":      adminOnly(addCategories),
		"add_variants":        adminOnly(addVariants),
		"modify_category":     adminOnly(modifyCategory),
		"modify_variants":     adminOnly(modifyVariants),
		"add_dependencies":    adminOnly(dependencyHandler(DepAdd)),
		"remove_dependencies": adminOnly(dependencyHandler(DepRemove)),
		"modify_dependencies": adminOnly(dependencyHandler(DepModify)),
		"set_metadata":        adminOnly(setMetadata),
		"set_coupling":        adminOnly(setCoupling),
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

func status() map[string]string {
	return map[string]string{"status": "success"}
}

// AddCategories appends categories with their initial variants and
// returns the new category count.
func AddCategories(t *store.Txn, categories []CategoryInfo) (uint8, error) {
	state, err := LoadState(t)
	if err != nil {
		return 0, err
	}
	for _, info := range categories {
		_, exists, err := CategoryIndex(t, info.Name)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, apierror.New(apierror.KindDuplicate, fmt.Sprintf("Category name: %s already exists", info.Name))
		}
		if state.CategoryCount == model.Unrevealed {
			return 0, apierror.IndexOverflow("Reached maximum number of trait categories")
		}
		idx := state.CategoryCount
		if err := store.Save(t, categoryMapKey(info.Name), idx); err != nil {
			return 0, err
		}
		cat := Category{Name: info.Name, Skip: info.Skip}
		if err := appendVariants(t, idx, &cat, info.Variants); err != nil {
			return 0, err
		}
		if err := store.Save(t, categoryKey(idx), cat); err != nil {
			return 0, err
		}
		if info.Skip {
			state.Skip = append(state.Skip, idx)
		}
		state.CategoryCount++
	}
	if err := saveState(t, state); err != nil {
		return 0, err
	}
	log.Printf("[Registry] %d categories defined", state.CategoryCount)
	return state.CategoryCount, nil
}

func addCategories(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Categories []CategoryInfo `json:"categories"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	count, err := AddCategories(c.Txn(), msg.Categories)
	if err != nil {
		return nil, err
	}
	return call.Answer("add_categories", map[string]uint8{"count": count}), nil
}

func appendVariants(t *store.Txn, catIdx uint8, cat *Category, variants []VariantInfo) error {
	for _, v := range variants {
		_, exists, err := VariantIndex(t, catIdx, v.Name)
		if err != nil {
			return err
		}
		if exists {
			return apierror.New(apierror.KindDuplicate, fmt.Sprintf("Variant name: %s already exists under category: %s", v.Name, cat.Name))
		}
		if cat.Count == model.Unrevealed {
			return apierror.IndexOverflow(fmt.Sprintf("Reached maximum number of variants for category: %s", cat.Name))
		}
		if err := store.Save(t, variantMapKey(catIdx, v.Name), cat.Count); err != nil {
			return err
		}
		if err := store.Save(t, variantKey(catIdx, cat.Count), v); err != nil {
			return err
		}
		cat.Count++
	}
	return nil
}

// AddVariants appends variants to existing categories.
func AddVariants(t *store.Txn, variants []AddVariantInfo) error {
	for _, info := range variants {
		idx, err := MustCategoryIndex(t, info.CategoryName)
		if err != nil {
			return err
		}
		cat, err := LoadCategory(t, idx)
		if err != nil {
			return err
		}
		if err := appendVariants(t, idx, &cat, info.Variants); err != nil {
			return err
		}
		if err := store.Save(t, categoryKey(idx), cat); err != nil {
			return err
		}
	}
	return nil
}

func addVariants(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Variants []AddVariantInfo `json:"variants"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if err := AddVariants(c.Txn(), msg.Variants); err != nil {
		return nil, err
	}
	return call.Answer("add_variants", status()), nil
}

// ModifyCategory renames a category and/or flips its skip flag.
func ModifyCategory(t *store.Txn, name string, newName *string, newSkip *bool) error {
	idx, err := MustCategoryIndex(t, name)
	if err != nil {
		return err
	}
	cat, err := LoadCategory(t, idx)
	if err != nil {
		return err
	}
	changed := false
	if newName != nil && *newName != name {
		_, taken, err := CategoryIndex(t, *newName)
		if err != nil {
			return err
		}
		if taken {
			return apierror.New(apierror.KindDuplicate, fmt.Sprintf("Category name: %s already exists", *newName))
		}
		store.Remove(t, categoryMapKey(name))
		if err := store.Save(t, categoryMapKey(*newName), idx); err != nil {
			return err
		}
		cat.Name = *newName
		changed = true
	}
	if newSkip != nil && *newSkip != cat.Skip {
		state, err := LoadState(t)
		if err != nil {
			return err
		}
		state.Skip = setSkip(state.Skip, idx, *newSkip)
		if err := saveState(t, state); err != nil {
			return err
		}
		cat.Skip = *newSkip
		changed = true
	}
	if !changed {
		return nil
	}
	return store.Save(t, categoryKey(idx), cat)
}

func setSkip(skip []uint8, idx uint8, on bool) []uint8 {
	for i, s := range skip {
		if s == idx {
			if on {
				return skip
			}
			// order of the skip set is not significant
			skip[i] = skip[len(skip)-1]
			return skip[:len(skip)-1]
		}
	}
	if on {
		return append(skip, idx)
	}
	return skip
}

func modifyCategory(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Name    string  `json:"name"`
		NewName *string `json:"new_name"`
		NewSkip *bool   `json:"new_skip"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if err := ModifyCategory(c.Txn(), msg.Name, msg.NewName, msg.NewSkip); err != nil {
		return nil, err
	}
	return call.Answer("modify_category", status()), nil
}

// ModifyVariants replaces variants in place. Indices never change.
func ModifyVariants(t *store.Txn, modifications []VariantModInfo) error {
	for _, info := range modifications {
		catIdx, err := MustCategoryIndex(t, info.Category)
		if err != nil {
			return err
		}
		for _, mod := range info.Modifications {
			varIdx, ok, err := VariantIndex(t, catIdx, mod.Name)
			if err != nil {
				return err
			}
			if !ok {
				return errNoVariant(info.Category, mod.Name)
			}
			if newName := mod.ModifiedVariant.Name; newName != mod.Name {
				_, taken, err := VariantIndex(t, catIdx, newName)
				if err != nil {
					return err
				}
				if taken {
					return apierror.New(apierror.KindDuplicate, fmt.Sprintf("Variant name: %s already exists under category: %s", newName, info.Category))
				}
				store.Remove(t, variantMapKey(catIdx, mod.Name))
				if err := store.Save(t, variantMapKey(catIdx, newName), varIdx); err != nil {
					return err
				}
			}
			if err := store.Save(t, variantKey(catIdx, varIdx), mod.ModifiedVariant); err != nil {
				return err
			}
		}
	}
	return nil
}

func modifyVariants(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Modifications []VariantModInfo `json:"modifications"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if err := ModifyVariants(c.Txn(), msg.Modifications); err != nil {
		return nil, err
	}
	return call.Answer("modify_variants", status()), nil
}

// DepAction selects how UpdateDependencies changes the list.
type DepAction int

const (
	DepAdd DepAction = iota
	DepRemove
	DepModify
)

// UpdateDependencies adds, removes or replaces dependency records.
// Adding an id that already has dependencies is a no-op; modifying one
// that has none fails.
func UpdateDependencies(t *store.Txn, list []Dependencies, action DepAction) error {
	deps, err := LoadDependencies(t)
	if err != nil {
		return err
	}
	changed := false
	switch action {
	case DepAdd:
		for _, d := range list {
			s, err := dependenciesToStored(t, d)
			if err != nil {
				return err
			}
			if findDependency(deps, s.ID) < 0 {
				deps = append(deps, s)
				changed = true
			}
		}
	case DepRemove:
		drop := make(map[model.StoredLayerId]bool, len(list))
		for _, d := range list {
			s, err := dependenciesToStored(t, d)
			if err != nil {
				return err
			}
			drop[s.ID] = true
		}
		kept := deps[:0:0]
		for _, d := range deps {
			if !drop[d.ID] {
				kept = append(kept, d)
			}
		}
		changed = len(kept) != len(deps)
		deps = kept
	case DepModify:
		for _, d := range list {
			s, err := dependenciesToStored(t, d)
			if err != nil {
				return err
			}
			i := findDependency(deps, s.ID)
			if i < 0 {
				return apierror.New(apierror.KindNotFound, fmt.Sprintf("No existing dependencies for Variant: %s in Category: %s", d.ID.Variant, d.ID.Category))
			}
			deps[i] = s
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return saveDependencies(t, deps)
}

func findDependency(deps []StoredDependencies, id model.StoredLayerId) int {
	for i, d := range deps {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func dependencyHandler(action DepAction) call.Handler {
	tag := [...]string{"add_dependencies", "remove_dependencies", "modify_dependencies"}[action]
	return func(c *call.Context, raw json.RawMessage) (interface{}, error) {
		var msg struct {
			Dependencies []Dependencies `json:"dependencies"`
		}
		if err := call.Decode(raw, &msg); err != nil {
			return nil, err
		}
		if err := UpdateDependencies(c.Txn(), msg.Dependencies, action); err != nil {
			return nil, err
		}
		return call.Answer(tag, status()), nil
	}
}

// filterMetadata rejects metadata with both a token_uri and an extension
// and maps metadata with neither to nil.
func filterMetadata(m model.Metadata) (*model.Metadata, error) {
	hasURI := m.TokenURI != nil
	hasExt := m.Extension != nil
	if hasURI && hasExt {
		return nil, apierror.BadInput("Metadata can not have BOTH token_uri AND extension")
	}
	if !hasURI && !hasExt {
		return nil, nil
	}
	return &m, nil
}

// SetMetadata updates the common metadata. Omitted fields are unchanged;
// an empty Metadata clears that field.
func SetMetadata(t *store.Txn, public, private *model.Metadata) (CommonMetadata, error) {
	common, err := LoadCommonMetadata(t)
	if err != nil {
		return common, err
	}
	if public != nil {
		if common.Public, err = filterMetadata(*public); err != nil {
			return common, err
		}
	}
	if private != nil {
		if common.Private, err = filterMetadata(*private); err != nil {
			return common, err
		}
	}
	if common.Public == nil && common.Private == nil {
		store.Remove(t, metadataKey)
		return common, nil
	}
	return common, store.Save(t, metadataKey, common)
}

func setMetadata(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		PublicMetadata  *model.Metadata `json:"public_metadata"`
		PrivateMetadata *model.Metadata `json:"private_metadata"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	common, err := SetMetadata(c.Txn(), msg.PublicMetadata, msg.PrivateMetadata)
	if err != nil {
		return nil, err
	}
	return call.Answer("set_metadata", map[string]CommonMetadata{"metadata": common}), nil
}

// SetCoupling replaces the coupling config. Named categories must exist.
func SetCoupling(t *store.Txn, cp Coupling) error {
	for _, name := range []string{cp.BackgroundCategory, cp.SkullCategory, cp.JawCategory} {
		if _, err := MustCategoryIndex(t, name); err != nil {
			return err
		}
	}
	if cp.TransmutedBackground == "" {
		return apierror.BadInput("The transmuted background name format can not be blank")
	}
	return store.Save(t, couplingKey, cp)
}

func setCoupling(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Coupling Coupling `json:"coupling"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if err := SetCoupling(c.Txn(), msg.Coupling); err != nil {
		return nil, err
	}
	return call.Answer("set_coupling", status()), nil
}
