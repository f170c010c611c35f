package registry

import (
	"encoding/json"
	"fmt"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Queries returns the registry's read-only messages.
func Queries() map[string]call.Handler {
	return map[string]call.Handler{
		"state":                queryState,
		"authorized_addresses": queryAddresses,
		"category":             queryCategory,
		"variant":              queryVariant,
		"dependencies":         queryDependencies,
		"common_metadata":      queryCommonMetadata,
		"token_metadata":       queryTokenMetadata,
		"serve_alchemy":        queryServeAlchemy,
		"skull_type":           querySkullType,
		"skull_type_plus":      querySkullTypePlus,
		"transmute":            queryTransmute,
		"coupling":             queryCoupling,
	}
}

func queryState(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	state, err := LoadState(c.Txn())
	if err != nil {
		return nil, err
	}
	skip := make([]string, 0, len(state.Skip))
	for _, idx := range state.Skip {
		cat, err := LoadCategory(c.Txn(), idx)
		if err != nil {
			return nil, err
		}
		skip = append(skip, cat.Name)
	}
	return call.Answer("state", map[string]interface{}{
		"category_count": state.CategoryCount,
		"skip":           skip,
	}), nil
}

func queryAddresses(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	out := make(map[string][]string, 3)
	for key, role := range map[string]auth.Role{"admins": auth.RoleAdmin, "minters": auth.RoleMinter, "viewers": auth.RoleViewer} {
		list, err := auth.List(c.Txn(), role)
		if err != nil {
			return nil, err
		}
		if list == nil {
			list = []string{}
		}
		out[key] = list
	}
	return call.Answer("authorized_addresses", out), nil
}

// CategoryAnswer displays a category and a page of its variants.
type CategoryAnswer struct {
	CategoryCount uint8             `json:"category_count"`
	Index         uint8             `json:"index"`
	Name          string            `json:"name"`
	Skip          bool              `json:"skip"`
	VariantCount  uint8             `json:"variant_count"`
	Variants      []VariantInfoPlus `json:"variants"`
}

func queryCategory(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		Name       *string `json:"name"`
		Index      *uint8  `json:"index"`
		StartAt    *uint8  `json:"start_at"`
		Limit      *uint8  `json:"limit"`
		DisplaySvg bool    `json:"display_svg"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	t := c.Txn()
	state, err := LoadState(t)
	if err != nil {
		return nil, err
	}
	var idx uint8
	switch {
	case msg.Name != nil:
		if idx, err = MustCategoryIndex(t, *msg.Name); err != nil {
			return nil, err
		}
	case msg.Index != nil:
		if *msg.Index >= state.CategoryCount {
			return nil, apierror.BadInput(fmt.Sprintf("There are only %d categories", state.CategoryCount))
		}
		idx = *msg.Index
	}
	limit := 30
	if msg.DisplaySvg {
		limit = 5
	}
	if msg.Limit != nil {
		limit = int(*msg.Limit)
	}
	start := 0
	if msg.StartAt != nil {
		start = int(*msg.StartAt)
	}
	deps, err := LoadDependencies(t)
	if err != nil {
		return nil, err
	}
	cat, err := LoadCategory(t, idx)
	if err != nil {
		return nil, err
	}
	end := start + limit
	if end > int(cat.Count) {
		end = int(cat.Count)
	}
	variants := []VariantInfoPlus{}
	for v := start; v < end; v++ {
		plus, err := variantPlus(t, model.StoredLayerId{Category: idx, Variant: uint8(v)}, deps, msg.DisplaySvg)
		if err != nil {
			return nil, err
		}
		variants = append(variants, plus)
	}
	return call.Answer("category", CategoryAnswer{
		CategoryCount: state.CategoryCount,
		Index:         idx,
		Name:          cat.Name,
		Skip:          cat.Skip,
		VariantCount:  cat.Count,
		Variants:      variants,
	}), nil
}

func queryVariant(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		ByName     *model.LayerId       `json:"by_name"`
		ByIndex    *model.StoredLayerId `json:"by_index"`
		DisplaySvg bool                 `json:"display_svg"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	t := c.Txn()
	var id model.StoredLayerId
	switch {
	case msg.ByIndex != nil:
		id = *msg.ByIndex
		state, err := LoadState(t)
		if err != nil {
			return nil, err
		}
		if id.Category >= state.CategoryCount {
			return nil, apierror.BadInput(fmt.Sprintf("There are only %d categories", state.CategoryCount))
		}
		cat, err := LoadCategory(t, id.Category)
		if err != nil {
			return nil, err
		}
		if id.Variant >= cat.Count {
			return nil, apierror.BadInput(fmt.Sprintf("Category %s only has %d variants", cat.Name, cat.Count))
		}
	case msg.ByName != nil:
		var err error
		if id, err = ToStored(t, *msg.ByName); err != nil {
			return nil, err
		}
	default:
		return nil, apierror.BadInput("Must specify a layer ID by either names or indices")
	}
	deps, err := LoadDependencies(t)
	if err != nil {
		return nil, err
	}
	info, err := variantPlus(t, id, deps, msg.DisplaySvg)
	if err != nil {
		return nil, err
	}
	return call.Answer("variant", map[string]interface{}{
		"category_index": id.Category,
		"info":           info,
	}), nil
}

func queryDependencies(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		StartAt *uint16 `json:"start_at"`
		Limit   *uint16 `json:"limit"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	deps, err := LoadDependencies(c.Txn())
	if err != nil {
		return nil, err
	}
	start, limit := 0, 100
	if msg.StartAt != nil {
		start = int(*msg.StartAt)
	}
	if msg.Limit != nil {
		limit = int(*msg.Limit)
	}
	list := []Dependencies{}
	for i := start; i < len(deps) && i < start+limit; i++ {
		d, err := dependenciesToDisplay(c.Txn(), deps[i])
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return call.Answer("dependencies", map[string]interface{}{
		"count":        len(deps),
		"dependencies": list,
	}), nil
}

func viewerOrMinter(c *call.Context, cr auth.Credentials) error {
	addr, err := cr.Querier(c)
	if err != nil {
		return err
	}
	return auth.RequireViewerOrMinter(c.Txn(), addr)
}

func queryCommonMetadata(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if err := viewerOrMinter(c, msg); err != nil {
		return nil, err
	}
	common, err := LoadCommonMetadata(c.Txn())
	if err != nil {
		return nil, err
	}
	return call.Answer("metadata", Rendered{PublicMetadata: common.Public, PrivateMetadata: common.Private}), nil
}

func queryTokenMetadata(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		Image model.Image `json:"image"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if err := viewerOrMinter(c, msg.Credentials); err != nil {
		return nil, err
	}
	out, err := Render(c.Txn(), msg.Image)
	if err != nil {
		return nil, err
	}
	return call.Answer("metadata", out), nil
}

// ServeAlchemy is what the alchemy engines need from the registry.
type ServeAlchemy struct {
	Skip          []uint8              `json:"skip"`
	Dependencies  []StoredDependencies `json:"dependencies"`
	CategoryNames []string             `json:"category_names"`
}

func queryServeAlchemy(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsViewer(c); err != nil {
		return nil, err
	}
	state, err := LoadState(c.Txn())
	if err != nil {
		return nil, err
	}
	names, err := CategoryNames(c.Txn())
	if err != nil {
		return nil, err
	}
	deps, err := LoadDependencies(c.Txn())
	if err != nil {
		return nil, err
	}
	if deps == nil {
		deps = []StoredDependencies{}
	}
	return call.Answer("serve_alchemy", ServeAlchemy{Skip: state.Skip, Dependencies: deps, CategoryNames: names}), nil
}

func querySkullType(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		Image model.Image `json:"image"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsViewer(c); err != nil {
		return nil, err
	}
	cyclops, jawless, err := NewServer(c).SkullType(msg.Image)
	if err != nil {
		return nil, err
	}
	return call.Answer("skull_type", map[string]bool{"is_cyclops": cyclops, "is_jawless": jawless}), nil
}

func querySkullTypePlus(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsViewer(c); err != nil {
		return nil, err
	}
	plus, err := NewServer(c).SkullTypePlus()
	if err != nil {
		return nil, err
	}
	return call.Answer("skull_type_plus", plus), nil
}

func queryTransmute(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		auth.Credentials
		Current   model.Image     `json:"current"`
		NewLayers []model.LayerId `json:"new_layers"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsViewer(c); err != nil {
		return nil, err
	}
	img, err := NewServer(c).Transmute(msg.Current, msg.NewLayers)
	if err != nil {
		return nil, err
	}
	return call.Answer("transmute", map[string]model.Image{"image": img}), nil
}

func queryCoupling(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg auth.Credentials
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.AsAdmin(c); err != nil {
		return nil, err
	}
	cp, err := LoadCoupling(c.Txn())
	if err != nil {
		return nil, err
	}
	return call.Answer("coupling", cp), nil
}
