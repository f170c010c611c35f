package nft

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/baedrik/skulls2/internal/model"
)

type token struct {
	owner string
	info  model.ImageInfo
	meta  model.NftInfo
}

// MemoryService is an in-process set of collections. Apply replays the
// engine's effects so state stays consistent across messages.
type MemoryService struct {
	mu          sync.RWMutex
	collections map[string]map[string]*token
	defaultSvg  map[string]string
	minted      map[string]int
}

var _ Service = (*MemoryService)(nil)

// NewMemoryService creates an empty MemoryService.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		collections: make(map[string]map[string]*token),
		defaultSvg:  make(map[string]string),
		minted:      make(map[string]int),
	}
}

// SetDefaultServer sets the svg server reported for tokens without an override.
func (m *MemoryService) SetDefaultServer(collection, server string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultSvg[collection] = server
}

// Put creates or replaces a token whose current, previous and natural
// images all equal image.
func (m *MemoryService) Put(collection, tokenID, owner string, image model.Image) {
	m.PutInfo(collection, tokenID, owner, model.ImageInfo{
		Current:  image.Clone(),
		Previous: image.Clone(),
		Natural:  image.Clone(),
	})
}

// PutInfo creates or replaces a token with explicit image state.
func (m *MemoryService) PutInfo(collection, tokenID, owner string, info model.ImageInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens(collection)[tokenID] = &token{owner: owner, info: info}
}

// SetName sets a token's public metadata name.
func (m *MemoryService) SetName(collection, tokenID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens(collection)[tokenID]
	if !ok {
		tok = &token{}
		m.tokens(collection)[tokenID] = tok
	}
	tok.meta.Extension = &model.Extension{Name: model.StrPtr(name)}
}

// Owner returns a token's owner.
func (m *MemoryService) Owner(collection, tokenID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.collections[collection][tokenID]
	if !ok {
		return "", false
	}
	return tok.owner, true
}

func (m *MemoryService) tokens(collection string) map[string]*token {
	c, ok := m.collections[collection]
	if !ok {
		c = make(map[string]*token)
		m.collections[collection] = c
	}
	return c
}

// ImageInfo implements Service.
func (m *MemoryService) ImageInfo(_ context.Context, collection, tokenID string) (model.ImageInfoResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.collections[collection][tokenID]
	if !ok {
		return model.ImageInfoResponse{}, fmt.Errorf("%w: %s in %s", ErrUnknownToken, tokenID, collection)
	}
	server := m.defaultSvg[collection]
	if tok.info.SvgServer != nil {
		server = *tok.info.SvgServer
	}
	return model.ImageInfoResponse{
		Owner:      tok.owner,
		ServerUsed: server,
		ImageInfo: model.ImageInfo{
			Current:   tok.info.Current.Clone(),
			Previous:  tok.info.Previous.Clone(),
			Natural:   tok.info.Natural.Clone(),
			SvgServer: tok.info.SvgServer,
		},
	}, nil
}

// NftInfo implements Service.
func (m *MemoryService) NftInfo(_ context.Context, collection, tokenID string) (model.NftInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.collections[collection][tokenID]
	if !ok {
		return model.NftInfo{}, fmt.Errorf("%w: %s in %s", ErrUnknownToken, tokenID, collection)
	}
	return tok.meta, nil
}

// Apply replays effects in order.
func (m *MemoryService) Apply(effects []model.Effect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range effects {
		switch e.Kind {
		case model.EffectSetImageInfo:
			tok, ok := m.collections[e.Collection][e.TokenID]
			if !ok {
				return fmt.Errorf("%w: %s in %s", ErrUnknownToken, e.TokenID, e.Collection)
			}
			if e.ImageInfo != nil {
				tok.info = *e.ImageInfo
			}
		case model.EffectBurnNft:
			delete(m.collections[e.Collection], e.TokenID)
		case model.EffectBatchSendNft:
			for _, id := range e.TokenIDs {
				tok, ok := m.collections[e.Collection][id]
				if !ok {
					return fmt.Errorf("%w: %s in %s", ErrUnknownToken, id, e.Collection)
				}
				tok.owner = e.Recipient
			}
		case model.EffectBatchMintNft:
			for _, mint := range e.Mints {
				id := strconv.Itoa(m.minted[e.Collection])
				m.minted[e.Collection]++
				tok := &token{owner: mint.Owner}
				if mint.PublicMetadata != nil {
					tok.meta = model.NftInfo{
						TokenURI:  mint.PublicMetadata.TokenURI,
						Extension: mint.PublicMetadata.Extension,
					}
				}
				m.tokens(e.Collection)["minted-"+id] = tok
			}
		default:
			return fmt.Errorf("nft: unknown effect %q", e.Kind)
		}
	}
	return nil
}
