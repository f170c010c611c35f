package registry

import (
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// VariantIdxName pairs a variant index with its display name.
type VariantIdxName struct {
	Idx  uint8  `json:"idx"`
	Name string `json:"name"`
}

// SkullTypePlus describes the skull classification layers and materials.
type SkullTypePlus struct {
	Cyclops       model.StoredLayerId `json:"cyclops"`
	Jawless       model.StoredLayerId `json:"jawless"`
	SkullIdx      uint8               `json:"skull_idx"`
	SkullVariants []VariantIdxName    `json:"skull_variants"`
}

// Server answers the svg server requests of the other engines from the
// registry, inside the caller's transaction.
type Server struct {
	c *call.Context
}

// NewServer binds a Server to a message context.
func NewServer(c *call.Context) *Server {
	return &Server{c: c}
}

// Transmute applies layers to an image. Skipped background upgrades are
// logged on the message.
func (s *Server) Transmute(current model.Image, layers []model.LayerId) (model.Image, error) {
	cp, err := NewComposer(s.c.Txn())
	if err != nil {
		return nil, err
	}
	img, err := cp.Transmute(current, layers)
	for _, note := range cp.Notes {
		s.c.Log("transmute", note)
	}
	return img, err
}

// SkullType classifies an image.
func (s *Server) SkullType(image model.Image) (cyclops, jawless bool, err error) {
	cp, err := NewComposer(s.c.Txn())
	if err != nil {
		return false, false, err
	}
	return cp.SkullType(image)
}

// SkullTypePlus lists the classification layers and the skull materials.
func (s *Server) SkullTypePlus() (SkullTypePlus, error) {
	t := s.c.Txn()
	cp, err := NewComposer(t)
	if err != nil {
		return SkullTypePlus{}, err
	}
	cyclops, jawless, err := cp.TypeLayers()
	if err != nil {
		return SkullTypePlus{}, err
	}
	skullIdx, ok, err := CategoryIndex(t, cp.coupling.SkullCategory)
	if err != nil {
		return SkullTypePlus{}, err
	}
	if !ok {
		return SkullTypePlus{}, apierror.NotFound("Layer category", cp.coupling.SkullCategory)
	}
	cat, err := LoadCategory(t, skullIdx)
	if err != nil {
		return SkullTypePlus{}, err
	}
	variants := make([]VariantIdxName, 0, cat.Count)
	for i := 0; i < int(cat.Count); i++ {
		v, err := LoadVariant(t, skullIdx, uint8(i))
		if err != nil {
			return SkullTypePlus{}, err
		}
		variants = append(variants, VariantIdxName{Idx: uint8(i), Name: v.DisplayName})
	}
	return SkullTypePlus{
		Cyclops:       cyclops,
		Jawless:       jawless,
		SkullIdx:      skullIdx,
		SkullVariants: variants,
	}, nil
}

// CategoryNames lists every category name in index order.
func (s *Server) CategoryNames() ([]string, error) {
	return CategoryNames(s.c.Txn())
}
