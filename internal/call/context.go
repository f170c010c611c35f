// Package call carries the per-message execution context shared by every
// engine domain: the open transaction, the host-supplied environment, the
// lazily opened PRNG and the ordered list of outbound effects.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/internal/prng"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Env is what the host knows about a message: block time, block height,
// the authenticated sender and any entropy the sender supplied.
type Env struct {
	Now     uint64 `json:"now"`
	Height  uint64 `json:"height"`
	Caller  string `json:"caller"`
	Entropy []byte `json:"entropy,omitempty"`
}

// Handler executes one decoded message body.
type Handler func(c *Context, raw json.RawMessage) (interface{}, error)

// Context is the state of one message in flight. It is not safe for
// concurrent use.
type Context struct {
	txn     *store.Txn
	env     Env
	NFT     nft.Service
	Permits PermitValidator

	rng     *prng.Prng
	effects []model.Effect
	logs    []model.Attribute
}

// New binds a context to an open transaction.
func New(txn *store.Txn, env Env, nfts nft.Service, permits PermitValidator) *Context {
	if permits == nil {
		permits = RejectPermits{}
	}
	return &Context{
		txn:     txn,
		env:     env,
		NFT:     nfts,
		Permits: permits,
	}
}

// Ctx returns the request context.
func (c *Context) Ctx() context.Context {
	return c.txn.Context()
}

// Txn returns the message's transaction.
func (c *Context) Txn() *store.Txn {
	return c.txn
}

// Env returns the host environment of the message.
func (c *Context) Env() Env {
	return c.env
}

// Rng opens the message's PRNG on first use. The stream is keyed by the
// persisted seed and the message environment plus extra.
func (c *Context) Rng(extra []byte) (*prng.Prng, error) {
	if c.rng != nil {
		return c.rng, nil
	}
	seed, ok, err := c.txn.Get(store.Single(store.PrefixPrngSeed))
	if err != nil {
		return nil, fmt.Errorf("load prng seed: %w", err)
	}
	if !ok {
		return nil, apierror.StorageCorrupt("PRNG seed has not been initialized")
	}
	entropy := append(append([]byte(nil), c.env.Entropy...), extra...)
	c.rng = prng.New(seed, prng.ExtendEntropy(c.env.Height, c.env.Now, c.env.Caller, entropy))
	return c.rng, nil
}

// Finish persists a fresh seed when the PRNG was used so a later message
// can never replay the same draws.
func (c *Context) Finish() {
	if c.rng == nil {
		return
	}
	next := c.rng.RandBytes()
	c.txn.Set(store.Single(store.PrefixPrngSeed), next[:])
}

// Emit appends outbound effects in order.
func (c *Context) Emit(effects ...model.Effect) {
	c.effects = append(c.effects, effects...)
}

// Log records a response attribute and writes it to the process log.
func (c *Context) Log(key, value string) {
	log.Printf("[Engine] %s: %s", key, value)
	c.logs = append(c.logs, model.Attribute{Key: key, Value: value})
}

// Effects returns the effects emitted so far.
func (c *Context) Effects() []model.Effect {
	return c.effects
}

// Logs returns the attributes logged so far.
func (c *Context) Logs() []model.Attribute {
	return c.logs
}

// Decode unmarshals a message body, reporting failures as Malformed.
func Decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierror.Malformed(fmt.Sprintf("invalid message body: %v", err))
	}
	return nil
}

// Answer wraps a response body in its tag.
func Answer(tag string, body interface{}) map[string]interface{} {
	return map[string]interface{}{tag: body}
}
