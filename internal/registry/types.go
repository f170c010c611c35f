// Package registry is the trait registry: categories, variants and the
// dependencies between them, plus the composition rules that rewrite an
// image vector and the renderer that turns one into metadata.
package registry

import "github.com/baedrik/skulls2/internal/model"

// NoneVariant is the variant name meaning "no trait" within a category.
const NoneVariant = "None"

// Category is a stored trait category.
type Category struct {
	Name string `json:"name"`
	// Skip categories are neither rolled nor listed in metadata attributes.
	Skip  bool  `json:"skip"`
	Count uint8 `json:"count"`
}

// State is the registry's global state.
type State struct {
	CategoryCount uint8   `json:"category_count"`
	Skip          []uint8 `json:"skip"`
}

// VariantInfo is a stored trait variant.
type VariantInfo struct {
	Name        string  `json:"name" yaml:"name"`
	DisplayName string  `json:"display_name" yaml:"display_name"`
	Svg         *string `json:"svg,omitempty" yaml:"svg,omitempty"`
}

// VariantInfoPlus is a variant with its index and the layers it includes.
type VariantInfoPlus struct {
	Index       uint8           `json:"index"`
	VariantInfo VariantInfo     `json:"variant_info"`
	Includes    []model.LayerId `json:"includes"`
}

// CategoryInfo describes a new category and its initial variants.
type CategoryInfo struct {
	Name     string        `json:"name" yaml:"name"`
	Skip     bool          `json:"skip" yaml:"skip"`
	Variants []VariantInfo `json:"variants" yaml:"variants"`
}

// AddVariantInfo lists variants to append to a category.
type AddVariantInfo struct {
	CategoryName string        `json:"category_name" yaml:"category_name"`
	Variants     []VariantInfo `json:"variants" yaml:"variants"`
}

// VariantModInfo lists variant replacements within a category.
type VariantModInfo struct {
	Category      string               `json:"category"`
	Modifications []VariantModification `json:"modifications"`
}

// VariantModification replaces the variant called Name.
type VariantModification struct {
	Name            string      `json:"name"`
	ModifiedVariant VariantInfo `json:"modified_variant"`
}

// Dependencies requires the Correlated layers whenever ID is present.
type Dependencies struct {
	ID         model.LayerId   `json:"id" yaml:"id"`
	Correlated []model.LayerId `json:"correlated" yaml:"correlated"`
}

// StoredDependencies is Dependencies by index.
type StoredDependencies struct {
	ID         model.StoredLayerId   `json:"id"`
	Correlated []model.StoredLayerId `json:"correlated"`
}

// CommonMetadata is merged into every rendered token's metadata.
type CommonMetadata struct {
	Public  *model.Metadata `json:"public,omitempty"`
	Private *model.Metadata `json:"private,omitempty"`
}

// Coupling names the categories and variants that composition and
// rendering treat specially.
type Coupling struct {
	BackgroundCategory string `json:"background_category" yaml:"background_category"`
	// Background variants below RawBackgroundLimit are raw; transmuting
	// upgrades them to TransmutedBackground formatted with the display name.
	RawBackgroundLimit   uint8  `json:"raw_background_limit" yaml:"raw_background_limit"`
	TransmutedBackground string `json:"transmuted_background" yaml:"transmuted_background"`
	// Changing the skull variant moves the jaw to the same-named variant
	// unless the jaw is JawNoneVariant.
	SkullCategory  string        `json:"skull_category" yaml:"skull_category"`
	JawCategory    string        `json:"jaw_category" yaml:"jaw_category"`
	JawNoneVariant string        `json:"jaw_none_variant" yaml:"jaw_none_variant"`
	Cyclops        model.LayerId `json:"cyclops" yaml:"cyclops"`
	Jawless        model.LayerId `json:"jawless" yaml:"jawless"`
	// HairCategory renders its None svg while still unrevealed. Empty disables it.
	HairCategory string `json:"hair_category,omitempty" yaml:"hair_category,omitempty"`
}

// DefaultCoupling is the Mystic Skulls layout.
func DefaultCoupling() Coupling {
	return Coupling{
		BackgroundCategory:   "Background",
		RawBackgroundLimit:   6,
		TransmutedBackground: "Background.%s.Transmuted",
		SkullCategory:        "Skull",
		JawCategory:          "Jaw Type",
		JawNoneVariant:       NoneVariant,
		Cyclops:              model.LayerId{Category: "Eye Type", Variant: "EyeType.Cyclops"},
		Jawless:              model.LayerId{Category: "Jaw Type", Variant: NoneVariant},
		HairCategory:         "Hair",
	}
}
