package potion

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/internal/prng"
	"github.com/baedrik/skulls2/internal/registry"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/google/go-cmp/cmp"
)

const (
	skulls  = "skulls"
	potions = "potions"
	svg     = "svg"
)

func u16(v uint16) *uint16 { return &v }

type fixture struct {
	txn  *store.Txn
	nfts *nft.MemoryService
}

func (f *fixture) as(caller string) *call.Context {
	return call.New(f.txn, call.Env{Now: 100, Height: 5, Caller: caller}, f.nfts, nil)
}

func names(prefix string, n int) []registry.VariantInfo {
	out := make([]registry.VariantInfo, n)
	for i := range out {
		name := fmt.Sprintf("%s%d", prefix, i)
		out[i] = registry.VariantInfo{Name: name, DisplayName: name}
	}
	return out
}

func named(list ...string) []registry.VariantInfo {
	out := make([]registry.VariantInfo, len(list))
	for i, n := range list {
		out[i] = registry.VariantInfo{Name: n, DisplayName: n}
	}
	return out
}

// newFixture registers an eye drop potion whose Red variant never lands on
// a cyclops. alice owns the cyclops s1 and the two-eyed s2.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	txn := store.Begin(context.Background(), store.NewMemoryBackend())
	if err := auth.SaveList(txn, auth.RoleAdmin, []string{"admin"}); err != nil {
		t.Fatal(err)
	}
	if err := call.SaveSettings(txn, call.Settings{SkullsCollection: skulls, SvgServer: svg}); err != nil {
		t.Fatal(err)
	}
	txn.Set(store.Single(store.PrefixPrngSeed), prng.InitialSeed("potion"))
	_, err := registry.AddCategories(txn, []registry.CategoryInfo{
		{Name: "Background", Variants: names("B", 12)},
		{Name: "Skull", Variants: named("Bone")},
		{Name: "Jaw Type", Variants: named("None", "Standard")},
		{Name: "Eye Type", Variants: named("Normal", "EyeType.Cyclops")},
		{Name: "Eye Color", Variants: named("Red", "Blue")},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = SetPotion(txn, Info{
		Name:           "Eye Drops",
		PotionContract: model.StrPtr(potions),
		SvgServer:      svg,
		Variants: []Variant{
			{Layers: []model.LayerId{{Category: "Eye Color", Variant: "Red"}}, NormalWeight: 10, CyclopsWeight: u16(0)},
			{Layers: []model.LayerId{{Category: "Eye Color", Variant: "Blue"}}, NormalWeight: 10},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	nfts := nft.NewMemoryService()
	nfts.SetDefaultServer(skulls, svg)
	nfts.Put(skulls, "s1", "alice", model.Image{6, 0, 1, 1, 0})
	nfts.Put(skulls, "s2", "alice", model.Image{6, 0, 1, 0, 0})
	nfts.Put(skulls, "s3", "alice", model.Image{6, 0, 1, 1, model.Unrevealed})
	nfts.SetName(potions, "p1", "Eye Drops")
	return &fixture{txn: txn, nfts: nfts}
}

func TestApplyPotionOnCyclops(t *testing.T) {
	f := newFixture(t)
	c := f.as(potions)
	got, err := NewApplicator(nil).Receive(c, "alice", []string{"p1"}, json.RawMessage(`{"skull":"s1","entropy":"abc"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := Applied{Skull: "s1", Image: model.Image{6, 0, 1, 1, 1}, Categories: []string{"Eye Color"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Receive mismatch (-want +got):\n%s", diff)
	}
	wantEffects := []model.Effect{
		model.SetImageInfo(skulls, "s1", model.ImageInfo{
			Current:  model.Image{6, 0, 1, 1, 1},
			Previous: model.Image{6, 0, 1, 1, 0},
			Natural:  model.Image{6, 0, 1, 1, 0},
		}),
		model.BurnNft(potions, "p1", "Applied to Mystic Skull #s1"),
	}
	if diff := cmp.Diff(wantEffects, c.Effects()); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Attribute{{Key: "transmuted categories", Value: `["Eye Color"]`}}, c.Logs()); diff != "" {
		t.Errorf("logs mismatch (-want +got):\n%s", diff)
	}
	seed, _, _ := f.txn.Get(store.Single(store.PrefixPrngSeed))
	c.Finish()
	next, _, _ := f.txn.Get(store.Single(store.PrefixPrngSeed))
	if cmp.Equal(seed, next) {
		t.Error("seed was not advanced")
	}
}

func TestApplyPotionRecordsServerOverride(t *testing.T) {
	f := newFixture(t)
	f.nfts.SetDefaultServer(skulls, "old-svg")
	resolve := func(c *call.Context, address string) (SvgServer, error) {
		return registry.NewServer(c), nil
	}
	c := f.as(potions)
	if _, err := NewApplicator(resolve).Receive(c, "alice", []string{"p1"}, json.RawMessage(`{"skull":"s2","entropy":"x"}`)); err != nil {
		t.Fatal(err)
	}
	info := c.Effects()[0].ImageInfo
	if info.SvgServer == nil || *info.SvgServer != svg {
		t.Errorf("svg server = %v, want %q", info.SvgServer, svg)
	}
	if !info.Previous.Equal(model.Image{6, 0, 1, 0, 0}) {
		t.Errorf("previous = %v", info.Previous)
	}
}

func TestReceiveRefusals(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture)
		caller string
		from   string
		tokens []string
		msg    string
		kind   apierror.Kind
		text   string
	}{
		{
			name:   "halted",
			setup:  func(f *fixture) { _ = call.SaveHalts(f.txn, call.Halts{Alchemy: true}) },
			caller: potions, from: "alice", tokens: []string{"p1"}, msg: `{"skull":"s1"}`,
			kind: apierror.KindHalted, text: "Alchemy has been halted",
		},
		{
			name:   "unknown collection",
			caller: "fake", from: "alice", tokens: []string{"p1"}, msg: `{"skull":"s1"}`,
			kind: apierror.KindUnauthorized, text: "This can only be called by an official Mystic Skulls potion contract",
		},
		{
			name:   "two potions",
			caller: potions, from: "alice", tokens: []string{"p1", "p2"}, msg: `{"skull":"s1"}`,
			kind: apierror.KindBadInput, text: "Alchemy will only process one potion at a time",
		},
		{
			name: "potion halted",
			setup: func(f *fixture) {
				h := NewApplicator(nil).Handlers()
				_, _ = h["set_potion_halt_status"](f.as("admin"), json.RawMessage(`{"potion":"Eye Drops","halt":true}`))
			},
			caller: potions, from: "alice", tokens: []string{"p1"}, msg: `{"skull":"s1"}`,
			kind: apierror.KindHalted, text: "Alchemy for potion: Eye Drops has been halted",
		},
		{
			name:   "no message",
			caller: potions, from: "alice", tokens: []string{"p1"},
			kind: apierror.KindMalformed, text: "Skull ID and entropy not provided",
		},
		{
			name:   "not the owner",
			caller: potions, from: "bob", tokens: []string{"p1"}, msg: `{"skull":"s1"}`,
			kind: apierror.KindUnauthorized, text: "Potions can only be applied to skulls you own",
		},
		{
			name:   "unrevealed",
			caller: potions, from: "alice", tokens: []string{"p1"}, msg: `{"skull":"s3"}`,
			kind: apierror.KindPreconditionFailed, text: "Potions can only be applied to completely revealed skulls",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			var msg json.RawMessage
			if tt.msg != "" {
				msg = json.RawMessage(tt.msg)
			}
			_, err := NewApplicator(nil).Receive(f.as(tt.caller), tt.from, tt.tokens, msg)
			apiErr, ok := apierror.As(err)
			if !ok {
				t.Fatalf("err = %v, want an api error", err)
			}
			if apiErr.Kind != tt.kind || apiErr.Message != tt.text {
				t.Errorf("err = %s %q, want %s %q", apiErr.Kind, apiErr.Message, tt.kind, tt.text)
			}
		})
	}
}

func TestPick(t *testing.T) {
	p := Stored{Name: "Eye Drops", Variants: []Variant{
		{NormalWeight: 10, CyclopsWeight: u16(0)},
		{NormalWeight: 10},
		{NormalWeight: 0, JawlessWeight: u16(5)},
	}}
	tests := []struct {
		name             string
		cyclops, jawless bool
		draw             uint64
		want             int
	}{
		{"cyclops skips the zero weight", true, false, 0, 1},
		{"normal first", false, false, 9, 0},
		{"normal second", false, false, 10, 1},
		{"jawless weight", false, true, 20, 2},
		{"cyclops wins over jawless", true, true, 9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Pick(p, tt.cyclops, tt.jawless, func(n uint64) uint64 { return tt.draw % n })
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Pick = %d, want %d", got, tt.want)
			}
		})
	}
	if _, err := Pick(Stored{Variants: []Variant{{NormalWeight: 0}}}, false, false, func(uint64) uint64 { return 0 }); !apierror.IsKind(err, apierror.KindPreconditionFailed) {
		t.Errorf("zero weight err = %v", err)
	}
}

func TestAdminMessages(t *testing.T) {
	f := newFixture(t)
	a := NewApplicator(nil)
	h := a.Handlers()
	c := f.as("admin")

	got, err := h["set_potion"](c, json.RawMessage(`{"potion":{"name":"Eye Drops","svg_server":"svg2","variants":[]}}`))
	if err != nil {
		t.Fatal(err)
	}
	want := call.Answer("set_potion", map[string]interface{}{"count": uint16(1), "updated_existing": true})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("set_potion mismatch (-want +got):\n%s", diff)
	}
	state, _ := LoadState(f.txn)
	if diff := cmp.Diff([]string{svg, "svg2"}, state.SvgServers); diff != "" {
		t.Errorf("svg servers mismatch (-want +got):\n%s", diff)
	}

	got, err = h["add_potion_contracts"](c, json.RawMessage(`{"potion_contracts":["more","potions"]}`))
	if err != nil {
		t.Fatal(err)
	}
	want = call.Answer("add_potion_contracts", ContractsAnswer{PotionContracts: []string{potions, "more"}, SvgServers: []string{svg, "svg2"}})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("add contracts mismatch (-want +got):\n%s", diff)
	}
	got, err = h["remove_potion_contracts"](c, json.RawMessage(`{"potion_contracts":["potions"]}`))
	if err != nil {
		t.Fatal(err)
	}
	want = call.Answer("remove_potion_contracts", ContractsAnswer{PotionContracts: []string{"more"}})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("remove contracts mismatch (-want +got):\n%s", diff)
	}

	q := a.Queries()
	got, err = q["potion_info"](c, json.RawMessage(`{"index":0}`))
	if err != nil {
		t.Fatal(err)
	}
	want = call.Answer("potion_info", map[string]interface{}{
		"halted": false,
		"potion": Info{Name: "Eye Drops", SvgServer: "svg2", Variants: []Variant{}},
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("potion_info mismatch (-want +got):\n%s", diff)
	}
	if _, err := q["potion_info"](c, json.RawMessage(`{"name":"Elixir"}`)); !apierror.IsKind(err, apierror.KindNotFound) {
		t.Errorf("unknown potion err = %v", err)
	}
	if _, err := h["set_potion"](f.as("alice"), json.RawMessage(`{"potion":{"name":"x","svg_server":"svg"}}`)); !apierror.IsKind(err, apierror.KindUnauthorized) {
		t.Errorf("non-admin err = %v", err)
	}
}
