package model

import (
	"encoding/json"
	"fmt"
)

// Unrevealed marks an image byte whose trait has not been revealed yet.
const Unrevealed uint8 = 255

// Image is an NFT's image vector: one variant index per trait category.
// It encodes as a JSON array of numbers.
type Image []uint8

// MarshalJSON encodes the image as a numeric array.
func (img Image) MarshalJSON() ([]byte, error) {
	if img == nil {
		return []byte("[]"), nil
	}
	out := make([]uint16, len(img))
	for i, v := range img {
		out[i] = uint16(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a numeric array, rejecting values above 255.
func (img *Image) UnmarshalJSON(b []byte) error {
	var raw []uint16
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Image, len(raw))
	for i, v := range raw {
		if v > 255 {
			return fmt.Errorf("image index %d out of range: %d", i, v)
		}
		out[i] = uint8(v)
	}
	*img = out
	return nil
}

// FullyRevealed reports whether no byte is Unrevealed.
func (img Image) FullyRevealed() bool {
	for _, v := range img {
		if v == Unrevealed {
			return false
		}
	}
	return true
}

// Clone returns a copy of img.
func (img Image) Clone() Image {
	if img == nil {
		return nil
	}
	return append(Image(nil), img...)
}

// Equal reports whether both images hold the same bytes.
func (img Image) Equal(other Image) bool {
	if len(img) != len(other) {
		return false
	}
	for i := range img {
		if img[i] != other[i] {
			return false
		}
	}
	return true
}

// LayerId names a trait variant by its category and variant names.
type LayerId struct {
	Category string `json:"category" yaml:"category"`
	Variant  string `json:"variant" yaml:"variant"`
}

// StoredLayerId identifies a trait variant by index.
type StoredLayerId struct {
	Category uint8 `json:"category"`
	Variant  uint8 `json:"variant"`
}

// ImageInfo is the image state an NFT collection keeps per token.
type ImageInfo struct {
	Current  Image `json:"current"`
	Previous Image `json:"previous"`
	Natural  Image `json:"natural"`
	// SvgServer overrides the collection's default svg server when set.
	SvgServer *string `json:"svg_server,omitempty"`
}

// ImageInfoResponse is a collection's answer to an image info request.
type ImageInfoResponse struct {
	Owner      string    `json:"owner"`
	ServerUsed string    `json:"server_used"`
	ImageInfo  ImageInfo `json:"image_info"`
}
