package model

// Metadata is token metadata: either a token_uri or an on-chain extension.
type Metadata struct {
	TokenURI  *string    `json:"token_uri,omitempty" yaml:"token_uri,omitempty"`
	Extension *Extension `json:"extension,omitempty" yaml:"extension,omitempty"`
}

// Extension is the on-chain metadata body.
type Extension struct {
	Image           *string `json:"image,omitempty" yaml:"image,omitempty"`
	ImageData       *string `json:"image_data,omitempty" yaml:"image_data,omitempty"`
	ExternalURL     *string `json:"external_url,omitempty" yaml:"external_url,omitempty"`
	Description     *string `json:"description,omitempty" yaml:"description,omitempty"`
	Name            *string `json:"name,omitempty" yaml:"name,omitempty"`
	Attributes      []Trait `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	BackgroundColor *string `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	AnimationURL    *string `json:"animation_url,omitempty" yaml:"animation_url,omitempty"`
	YoutubeURL      *string `json:"youtube_url,omitempty" yaml:"youtube_url,omitempty"`
	TokenSubtype    *string `json:"token_subtype,omitempty" yaml:"token_subtype,omitempty"`
}

// Trait is one metadata attribute.
type Trait struct {
	DisplayType *string `json:"display_type,omitempty" yaml:"display_type,omitempty"`
	TraitType   *string `json:"trait_type,omitempty" yaml:"trait_type,omitempty"`
	Value       string  `json:"value" yaml:"value"`
	MaxValue    *string `json:"max_value,omitempty" yaml:"max_value,omitempty"`
}

// NftInfo is a collection's public description of a token.
type NftInfo struct {
	TokenURI  *string    `json:"token_uri,omitempty"`
	Extension *Extension `json:"extension,omitempty"`
}

// Name returns the extension name or "".
func (n NftInfo) Name() string {
	if n.Extension == nil || n.Extension.Name == nil {
		return ""
	}
	return *n.Extension.Name
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
