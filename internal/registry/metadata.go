package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

const (
	svgProlog = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 -0.5 24 24" shape-rendering="crispEdges">`
	svgEpilog = `</svg>`
	unknown   = "???"
)

// Rendered is the metadata synthesized for an image vector.
type Rendered struct {
	PublicMetadata  *model.Metadata `json:"public_metadata"`
	PrivateMetadata *model.Metadata `json:"private_metadata"`
}

// Render builds token metadata from an image vector. The public metadata
// is the common public metadata with image_data and attributes replaced.
func Render(t *store.Txn, image model.Image) (Rendered, error) {
	state, err := LoadState(t)
	if err != nil {
		return Rendered{}, err
	}
	if len(image) > int(state.CategoryCount) {
		return Rendered{}, apierror.BadInput(fmt.Sprintf("Image has %d layers but there are only %d categories", len(image), state.CategoryCount))
	}
	coupling, err := LoadCoupling(t)
	if err != nil {
		return Rendered{}, err
	}
	common, err := LoadCommonMetadata(t)
	if err != nil {
		return Rendered{}, err
	}
	hair := -1
	if coupling.HairCategory != "" {
		if idx, ok, err := CategoryIndex(t, coupling.HairCategory); err != nil {
			return Rendered{}, err
		} else if ok {
			hair = int(idx)
		}
	}
	skip := make(map[uint8]bool, len(state.Skip))
	for _, s := range state.Skip {
		skip[s] = true
	}

	var svg strings.Builder
	svg.WriteString(svgProlog)
	var attributes []model.Trait
	traits, revealed, nones := 0, 0, 0

	for i, v := range image {
		catIdx := uint8(i)
		cat, err := LoadCategory(t, catIdx)
		if err != nil {
			return Rendered{}, err
		}
		display := !skip[catIdx]
		value := unknown

		if v != model.Unrevealed || i == hair {
			varIdx := v
			if v == model.Unrevealed {
				// unrevealed hair still draws the bald layer
				none, ok, err := VariantIndex(t, catIdx, NoneVariant)
				if err != nil {
					return Rendered{}, err
				}
				if !ok {
					return Rendered{}, apierror.StorageCorrupt(fmt.Sprintf("Missing %s variant of %s Category", NoneVariant, cat.Name))
				}
				varIdx = none
			} else if display {
				revealed++
			}
			variant, err := LoadVariant(t, catIdx, varIdx)
			if err != nil {
				return Rendered{}, err
			}
			if variant.Svg != nil {
				svg.WriteString(*variant.Svg)
			}
			if v != model.Unrevealed {
				value = variant.DisplayName
			}
		}
		if !display {
			continue
		}
		if value == NoneVariant {
			nones++
		}
		attributes = append(attributes, trait(cat.Name, value))
		traits++
	}
	svg.WriteString(svgEpilog)

	hidden := traits - revealed
	attributes = append(attributes, trait("Unrevealed Trait Categories", strconv.Itoa(hidden)))
	if hidden == 0 {
		attributes = append(attributes, trait("Trait Count", strconv.Itoa(traits-nones)))
	} else {
		attributes = append(attributes, trait("Clean Traits (Nones) Currently Revealed", strconv.Itoa(nones)))
	}
	status := "Raw"
	if bg, ok, err := CategoryIndex(t, coupling.BackgroundCategory); err != nil {
		return Rendered{}, err
	} else if ok && int(bg) < len(image) && image[bg] >= coupling.RawBackgroundLimit {
		status = "Transmuted"
	}
	attributes = append(attributes, trait("Alchemical Status", status))

	public := model.Metadata{}
	if common.Public != nil {
		public = *common.Public
	}
	ext := model.Extension{}
	if public.Extension != nil {
		ext = *public.Extension
	}
	ext.ImageData = model.StrPtr(svg.String())
	ext.Attributes = attributes
	public.Extension = &ext

	return Rendered{PublicMetadata: &public, PrivateMetadata: common.Private}, nil
}

func trait(kind, value string) model.Trait {
	return model.Trait{TraitType: model.StrPtr(kind), Value: value}
}
