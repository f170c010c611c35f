// Package nft talks to the NFT collections the engine reads ownership and
// image state from.
package nft

import (
	"context"
	"errors"

	"github.com/baedrik/skulls2/internal/model"
)

// ErrUnknownToken is returned when a collection has no such token.
var ErrUnknownToken = errors.New("nft: unknown token")

// Service is the remote NFT collaborator.
type Service interface {
	// ImageInfo returns the owner and image state of a token.
	ImageInfo(ctx context.Context, collection, tokenID string) (model.ImageInfoResponse, error)

	// NftInfo returns a token's public metadata.
	NftInfo(ctx context.Context, collection, tokenID string) (model.NftInfo, error)
}
