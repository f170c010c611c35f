package engine

import (
	"log"
	"net/http"

	"github.com/baedrik/skulls2/internal/config"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/internal/store"
)

// FromConfig opens the configured backend and builds an engine over it.
// The caller owns the returned backend and must close it.
func FromConfig(cfg *config.Config) (*Engine, store.Backend, error) {
	backend, err := store.Open(&cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Engine.NFTServiceURL != "" {
		svc := nft.NewHTTPService(cfg.Engine.NFTServiceURL, &http.Client{Timeout: cfg.Engine.NFTTimeout})
		log.Printf("[Engine] NFT service at %s", cfg.Engine.NFTServiceURL)
		return New(backend, WithNFT(svc)), backend, nil
	}
	// In-memory collections only see what this process commits.
	mem := nft.NewMemoryService()
	log.Printf("[Engine] No NFT_SERVICE_URL set, using in-memory collections")
	return New(backend, WithNFT(mem), WithEffectSink(mem.Apply)), backend, nil
}
