package model

// EffectKind names an outbound NFT operation.
type EffectKind string

const (
	EffectSetImageInfo EffectKind = "set_image_info"
	EffectBurnNft      EffectKind = "burn_nft"
	EffectBatchSendNft EffectKind = "batch_send_nft"
	EffectBatchMintNft EffectKind = "batch_mint_nft"
)

// Effect is a side effect the host must apply, in order, after a
// message commits. Collection is the NFT contract it targets.
type Effect struct {
	Kind       EffectKind `json:"kind"`
	Collection string     `json:"collection"`
	TokenID    string     `json:"token_id,omitempty"`
	TokenIDs   []string   `json:"token_ids,omitempty"`
	Recipient  string     `json:"recipient,omitempty"`
	ImageInfo  *ImageInfo `json:"image_info,omitempty"`
	Mints      []Mint     `json:"mints,omitempty"`
	Memo       string     `json:"memo,omitempty"`
}

// Mint describes one token of a batch mint.
type Mint struct {
	Owner          string    `json:"owner"`
	PublicMetadata *Metadata `json:"public_metadata,omitempty"`
	Memo           string    `json:"memo,omitempty"`
}

// SetImageInfo replaces the image state of a token.
func SetImageInfo(collection, tokenID string, info ImageInfo) Effect {
	return Effect{
		Kind:       EffectSetImageInfo,
		Collection: collection,
		TokenID:    tokenID,
		ImageInfo:  &info,
	}
}

// BurnNft destroys a token.
func BurnNft(collection, tokenID, memo string) Effect {
	return Effect{
		Kind:       EffectBurnNft,
		Collection: collection,
		TokenID:    tokenID,
		Memo:       memo,
	}
}

// BatchSendNft transfers tokens to recipient.
func BatchSendNft(collection, recipient string, tokenIDs []string, memo string) Effect {
	return Effect{
		Kind:       EffectBatchSendNft,
		Collection: collection,
		Recipient:  recipient,
		TokenIDs:   tokenIDs,
		Memo:       memo,
	}
}

// BatchMintNft mints new tokens.
func BatchMintNft(collection string, mints []Mint) Effect {
	return Effect{
		Kind:       EffectBatchMintNft,
		Collection: collection,
		Mints:      mints,
	}
}

// Attribute is a key/value entry of a message's log.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
