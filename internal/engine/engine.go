// Package engine dispatches tagged messages to the skull domains. Every
// message runs alone inside one store transaction that commits with all of
// its writes or none of them.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/internal/potion"
	"github.com/baedrik/skulls2/internal/raffle"
	"github.com/baedrik/skulls2/internal/registry"
	"github.com/baedrik/skulls2/internal/rewind"
	"github.com/baedrik/skulls2/internal/staking"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Env is what the host knows about a message.
type Env = call.Env

// Result is the outcome of a committed message.
type Result struct {
	Data    interface{}       `json:"data"`
	Effects []model.Effect    `json:"effects"`
	Log     []model.Attribute `json:"log"`
}

// Engine runs messages against a Backend.
type Engine struct {
	mu       sync.RWMutex
	backend  store.Backend
	nfts     nft.Service
	permits  call.PermitValidator
	sink     func([]model.Effect) error
	potions  *potion.Applicator
	handlers map[string]call.Handler
	queries  map[string]call.Handler

	executed   atomic.Int64
	failed     atomic.Int64
	queried    atomic.Int64
	generation atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithNFT sets the NFT collection service.
func WithNFT(s nft.Service) Option {
	return func(e *Engine) { e.nfts = s }
}

// WithEffectSink replays the effects of every committed message into sink.
// Sink failures are logged; the message stays committed.
func WithEffectSink(sink func([]model.Effect) error) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithPermits sets the permit validator.
func WithPermits(p call.PermitValidator) Option {
	return func(e *Engine) { e.permits = p }
}

// WithSvgResolver sets how potions reach svg servers other than the
// in-process registry.
func WithSvgResolver(r potion.Resolver) Option {
	return func(e *Engine) { e.potions = potion.NewApplicator(r) }
}

// New creates an Engine over backend.
func New(backend store.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		permits: call.RejectPermits{},
		potions: potion.NewApplicator(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handlers = merge(
		auth.Handlers(),
		registry.Handlers(),
		staking.Handlers(),
		e.potions.Handlers(),
		raffle.Handlers(),
		rewind.Handlers(),
		map[string]call.Handler{"batch_receive_nft": e.receive},
	)
	e.queries = merge(
		registry.Queries(),
		staking.Queries(),
		e.potions.Queries(),
		raffle.Queries(),
		rewind.Queries(),
	)
	return e
}

func merge(sets ...map[string]call.Handler) map[string]call.Handler {
	out := make(map[string]call.Handler)
	for _, set := range sets {
		for name, h := range set {
			if _, dup := out[name]; dup {
				panic(fmt.Sprintf("engine: message %q registered twice", name))
			}
			out[name] = h
		}
	}
	return out
}

// Messages lists the execute message names in order.
func (e *Engine) Messages() []string {
	return names(e.handlers)
}

// QueryNames lists the query names in order.
func (e *Engine) QueryNames() []string {
	return names(e.queries)
}

func names(m map[string]call.Handler) []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// decode splits a tagged message {"name": {...}}.
func decode(raw json.RawMessage) (string, json.RawMessage, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", nil, apierror.Malformed(fmt.Sprintf("message is not a JSON object: %v", err))
	}
	if len(tagged) != 1 {
		return "", nil, apierror.Malformed(fmt.Sprintf("message must have exactly one tag, got %d", len(tagged)))
	}
	for name, body := range tagged {
		return name, body, nil
	}
	return "", nil, nil
}

// Execute runs one state-changing message.
func (e *Engine) Execute(ctx context.Context, env Env, raw json.RawMessage) (Result, error) {
	name, body, err := decode(raw)
	if err != nil {
		return Result{}, err
	}
	h, ok := e.handlers[name]
	if !ok {
		return Result{}, apierror.Malformed(fmt.Sprintf("unknown message: %s", name))
	}
	return e.run(ctx, env, name, func(c *call.Context) (interface{}, error) {
		return h(c, body)
	})
}

func (e *Engine) run(ctx context.Context, env Env, name string, fn func(c *call.Context) (interface{}, error)) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	txn := store.Begin(ctx, e.backend)
	c := call.New(txn, env, e.nfts, e.permits)
	data, err := fn(c)
	if err == nil {
		c.Finish()
		err = txn.Commit()
	}
	if err != nil {
		txn.Discard()
		e.failed.Add(1)
		err = classify(err)
		log.Printf("[Engine] %s from %s failed: %v", name, env.Caller, err)
		return Result{}, err
	}
	e.executed.Add(1)
	e.generation.Add(1)
	log.Printf("[Engine] committed %s from %s in %v", name, env.Caller, time.Since(start))
	effects := c.Effects()
	if effects == nil {
		effects = []model.Effect{}
	}
	logs := c.Logs()
	if logs == nil {
		logs = []model.Attribute{}
	}
	if e.sink != nil && len(effects) > 0 {
		if err := e.sink(effects); err != nil {
			log.Printf("[Engine] effects of %s not delivered: %v", name, err)
		}
	}
	return Result{Data: data, Effects: effects, Log: logs}, nil
}

// classify keeps typed failures and reports anything else as storage
// corruption.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apierror.As(err); ok {
		return err
	}
	return apierror.StorageCorrupt(err.Error())
}

// Query runs a read-only message. Its writes, if any, are discarded.
func (e *Engine) Query(ctx context.Context, env Env, raw json.RawMessage) (interface{}, error) {
	name, body, err := decode(raw)
	if err != nil {
		return nil, err
	}
	h, ok := e.queries[name]
	if !ok {
		return nil, apierror.Malformed(fmt.Sprintf("unknown query: %s", name))
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	e.queried.Add(1)
	txn := store.Begin(ctx, e.backend)
	defer txn.Discard()
	out, err := h(call.New(txn, env, e.nfts, e.permits), body)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// receive routes a batch of NFTs sent to the engine. Raffle collections
// redeem prizes and anything else must be a potion.
func (e *Engine) receive(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		From     string          `json:"from"`
		TokenIDs []string        `json:"token_ids"`
		Msg      json.RawMessage `json:"msg"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	claim, err := raffle.IsClaimCollection(c, c.Env().Caller)
	if err != nil {
		return nil, err
	}
	if claim {
		redeemed, err := raffle.Redeem(c, msg.From, msg.TokenIDs)
		if err != nil {
			return nil, err
		}
		return call.Answer("redeem", map[string][]string{"redeemed": redeemed}), nil
	}
	applied, err := e.potions.Receive(c, msg.From, msg.TokenIDs, msg.Msg)
	if err != nil {
		return nil, err
	}
	return call.Answer("apply_potion", applied), nil
}

// Generation counts committed messages. Anything derived from engine state
// is stale once it changes.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// CheckViewingKey verifies addr's viewing key.
func (e *Engine) CheckViewingKey(ctx context.Context, addr, key string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	txn := store.Begin(ctx, e.backend)
	defer txn.Discard()
	return classify(auth.CheckViewingKey(txn, addr, key))
}

// Instantiated reports whether the initial state has been written. It also
// proves the backend answers reads.
func (e *Engine) Instantiated(ctx context.Context) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	txn := store.Begin(ctx, e.backend)
	defer txn.Discard()
	_, ok, err := txn.Get(store.Single(store.PrefixPrngSeed))
	return ok, err
}

// Stats describes the engine and its backend.
func (e *Engine) Stats(ctx context.Context) map[string]interface{} {
	out := map[string]interface{}{
		"executed":   e.executed.Load(),
		"failed":     e.failed.Load(),
		"queried":    e.queried.Load(),
		"messages":   len(e.handlers),
		"queries":    len(e.queries),
		"generation": e.generation.Load(),
	}
	if sp, ok := e.backend.(store.StatsProvider); ok {
		st, err := sp.Stats(ctx)
		if err != nil {
			out["store_error"] = err.Error()
		} else {
			out["store"] = st
		}
	}
	return out
}

// Checkpoint runs the backend's housekeeping when it has any.
func (e *Engine) Checkpoint(ctx context.Context) error {
	cp, ok := e.backend.(store.Checkpointer)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cp.Checkpoint(ctx)
}
