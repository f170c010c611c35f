package potion

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Applicator runs potion applications and potion administration.
type Applicator struct {
	resolve Resolver
}

// NewApplicator creates an Applicator. A nil resolver serves only the
// in-process registry.
func NewApplicator(resolve Resolver) *Applicator {
	if resolve == nil {
		resolve = LocalResolver
	}
	return &Applicator{resolve: resolve}
}

// SendMsg is the message a potion transfer carries.
type SendMsg struct {
	Skull   string `json:"skull"`
	Entropy string `json:"entropy"`
}

// Applied answers a potion application.
type Applied struct {
	Skull      string      `json:"skull"`
	Image      model.Image `json:"image"`
	Categories []string    `json:"categories"`
}

// Receive applies the single potion sent by from to the skull named in msg.
// The caller must be a registered potion collection.
func (a *Applicator) Receive(c *call.Context, from string, tokenIDs []string, msg json.RawMessage) (Applied, error) {
	t := c.Txn()
	potionColl := c.Env().Caller
	halts, err := call.LoadHalts(t)
	if err != nil {
		return Applied{}, err
	}
	if halts.Alchemy {
		return Applied{}, apierror.Halted("Alchemy")
	}
	contracts, err := Contracts(t)
	if err != nil {
		return Applied{}, err
	}
	if indexOf(contracts, potionColl) < 0 {
		return Applied{}, apierror.Unauthorized("This can only be called by an official Mystic Skulls potion contract")
	}
	if len(tokenIDs) != 1 {
		return Applied{}, apierror.BadInput("Alchemy will only process one potion at a time")
	}
	if c.NFT == nil {
		return Applied{}, apierror.ExternalFailure("NFT service", errors.New("not configured"))
	}
	meta, err := c.NFT.NftInfo(c.Ctx(), potionColl, tokenIDs[0])
	if err != nil {
		return Applied{}, apierror.ExternalFailure("NFT service", err)
	}
	idx, ok, err := Index(t, meta.Name())
	if err != nil {
		return Applied{}, err
	}
	if !ok {
		return Applied{}, apierror.New(apierror.KindNotFound, fmt.Sprintf("Unknown potion: %s", meta.Name()))
	}
	p, err := Load(t, idx)
	if err != nil {
		return Applied{}, err
	}
	if p.Halt {
		return Applied{}, apierror.Halted(fmt.Sprintf("Alchemy for potion: %s", p.Name))
	}
	state, err := LoadState(t)
	if err != nil {
		return Applied{}, err
	}
	svg, err := svgServer(state, p.SvgServer)
	if err != nil {
		return Applied{}, err
	}
	if len(msg) == 0 || string(msg) == "null" {
		return Applied{}, apierror.Malformed("Skull ID and entropy not provided")
	}
	var send SendMsg
	if err := json.Unmarshal(msg, &send); err != nil {
		return Applied{}, apierror.Malformed("Invalid msg supplied with BatchSendNft")
	}

	settings, err := call.LoadSettings(t)
	if err != nil {
		return Applied{}, err
	}
	resp, err := c.NFT.ImageInfo(c.Ctx(), settings.SkullsCollection, send.Skull)
	if errors.Is(err, nft.ErrUnknownToken) {
		return Applied{}, apierror.New(apierror.KindNotFound, fmt.Sprintf("Unknown skull: %s", send.Skull))
	}
	if err != nil {
		return Applied{}, apierror.ExternalFailure("NFT service", err)
	}
	if resp.Owner != from {
		return Applied{}, apierror.Unauthorized("Potions can only be applied to skulls you own")
	}
	info := resp.ImageInfo
	if !info.Current.FullyRevealed() {
		return Applied{}, apierror.PreconditionFailed("Potions can only be applied to completely revealed skulls")
	}
	used := resp.ServerUsed
	if used == "" {
		used = svg
	}
	if used != svg {
		info.SvgServer = model.StrPtr(svg)
	}

	classifier, err := a.resolve(c, used)
	if err != nil {
		return Applied{}, err
	}
	cyclops, jawless, err := classifier.SkullType(info.Current)
	if err != nil {
		return Applied{}, err
	}
	rng, err := c.Rng([]byte(send.Entropy))
	if err != nil {
		return Applied{}, err
	}
	winner, err := Pick(p, cyclops, jawless, rng.Uniform)
	if err != nil {
		return Applied{}, err
	}

	layers := p.Variants[winner].Layers
	server, err := a.resolve(c, svg)
	if err != nil {
		return Applied{}, err
	}
	current, err := server.Transmute(info.Current, layers)
	if err != nil {
		return Applied{}, err
	}
	info.Previous = info.Current
	info.Current = current

	cats := make([]string, len(layers))
	for i, l := range layers {
		cats[i] = l.Category
	}
	c.Emit(
		model.SetImageInfo(settings.SkullsCollection, send.Skull, info),
		model.BurnNft(potionColl, tokenIDs[0], fmt.Sprintf("Applied to Mystic Skull #%s", send.Skull)),
	)
	c.Log("transmuted categories", fmt.Sprintf("%q", cats))
	return Applied{Skull: send.Skull, Image: current, Categories: cats}, nil
}

// Pick draws a variant index by weight for a skull type. uniform draws from
// [0, n).
func Pick(p Stored, cyclops, jawless bool, uniform func(n uint64) uint64) (int, error) {
	weights := make([]uint64, len(p.Variants))
	var total uint64
	for i, v := range p.Variants {
		weights[i] = uint64(v.Weight(cyclops, jawless))
		total += weights[i]
	}
	if total == 0 {
		return 0, apierror.PreconditionFailed(fmt.Sprintf("Potion %s has no variant for this skull", p.Name))
	}
	draw := uniform(total)
	var tally uint64
	for i, w := range weights {
		tally += w
		if tally > draw {
			return i, nil
		}
	}
	return len(weights) - 1, nil
}
