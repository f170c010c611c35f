package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/baedrik/skulls2/internal/cache"
	"github.com/baedrik/skulls2/internal/engine"
)

// Engine is the part of the engine the gateway drives.
type Engine interface {
	Execute(ctx context.Context, env engine.Env, raw json.RawMessage) (engine.Result, error)
	Query(ctx context.Context, env engine.Env, raw json.RawMessage) (interface{}, error)
	Generation() uint64
}

var _ Engine = (*engine.Engine)(nil)

// cachedQueries are answered from the render cache. Entries are keyed by
// caller and body, and failures are never stored.
var cachedQueries = map[string]bool{
	"token_metadata": true,
	"serve_alchemy":  true,
}

// Gateway stamps host time and block height onto messages and caches
// rendered metadata between commits.
type Gateway struct {
	engine Engine
	cache  cache.Cache
	ttl    time.Duration
	height atomic.Uint64
	now    func() time.Time
}

// NewGateway creates a gateway. Heights continue from startHeight.
func NewGateway(e Engine, c cache.Cache, ttl time.Duration, startHeight uint64) *Gateway {
	g := &Gateway{engine: e, cache: c, ttl: ttl, now: time.Now}
	g.height.Store(startHeight)
	return g
}

// Env builds the environment of the next message from caller.
func (g *Gateway) Env(caller string, entropy []byte) engine.Env {
	return engine.Env{
		Now:     uint64(g.now().Unix()),
		Height:  g.height.Add(1),
		Caller:  caller,
		Entropy: entropy,
	}
}

// Execute runs a message for caller.
func (g *Gateway) Execute(ctx context.Context, caller string, raw json.RawMessage) (engine.Result, error) {
	return g.engine.Execute(ctx, g.Env(caller, nil), raw)
}

// Query runs a query for caller, who may be empty.
func (g *Gateway) Query(ctx context.Context, caller string, raw json.RawMessage) (json.RawMessage, error) {
	run := func() ([]byte, error) {
		out, err := g.engine.Query(ctx, engine.Env{Now: uint64(g.now().Unix()), Caller: caller}, raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}
	if g.cache == nil || !cacheable(raw) {
		return run()
	}
	sum := sha256.Sum256(append([]byte(caller+"\x00"), raw...))
	key := fmt.Sprintf("render:%d:%s", g.engine.Generation(), hex.EncodeToString(sum[:]))
	return g.cache.GetOrSet(ctx, key, g.ttl, run)
}

func cacheable(raw json.RawMessage) bool {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil || len(tagged) != 1 {
		return false
	}
	for name := range tagged {
		return cachedQueries[name]
	}
	return false
}
