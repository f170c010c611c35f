package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/internal/raffle"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/google/go-cmp/cmp"
)

type harness struct {
	t       *testing.T
	eng     *Engine
	backend *store.MemoryBackend
	nfts    *nft.MemoryService
	height  uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := store.NewMemoryBackend()
	nfts := nft.NewMemoryService()
	h := &harness{t: t, eng: New(backend, WithNFT(nfts)), backend: backend, nfts: nfts}
	_, err := h.eng.Instantiate(context.Background(), h.env("admin"), InitParams{
		Entropy:          "genesis",
		SkullsCollection: "skulls",
		ChargeTime:       3600,
		Raffle: &raffle.ConfigUpdate{
			PotionCollection: strPtr("potions"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func strPtr(s string) *string { return &s }

func (h *harness) env(caller string) Env {
	h.height++
	return Env{Now: 1_000 + h.height, Height: h.height, Caller: caller}
}

func (h *harness) exec(caller, msg string) (Result, error) {
	return h.eng.Execute(context.Background(), h.env(caller), json.RawMessage(msg))
}

func (h *harness) must(caller, msg string) Result {
	h.t.Helper()
	res, err := h.exec(caller, msg)
	if err != nil {
		h.t.Fatalf("%s: %v", msg, err)
	}
	return res
}

const categories = `{"add_categories":{"categories":[
	{"name":"Background","variants":[
		{"name":"B0","display_name":"B0"},{"name":"B1","display_name":"B1"},{"name":"B2","display_name":"B2"},
		{"name":"B3","display_name":"B3"},{"name":"B4","display_name":"B4"},{"name":"B5","display_name":"B5"},
		{"name":"B6","display_name":"B6"},{"name":"B7","display_name":"B7"}]},
	{"name":"Skull","variants":[{"name":"Bone","display_name":"Bone"}]},
	{"name":"Jaw Type","variants":[{"name":"None","display_name":"None"},{"name":"Standard","display_name":"Standard"}]},
	{"name":"Eye Type","variants":[{"name":"Normal","display_name":"Normal"},{"name":"EyeType.Cyclops","display_name":"Cyclops"}]},
	{"name":"Eye Color","variants":[{"name":"Red","display_name":"Red"},{"name":"Blue","display_name":"Blue"}]}
]}}`

const redEyes = `{"set_potion":{"potion":{"name":"Red Eyes","potion_contract":"potions","svg_server":"local",
	"variants":[{"layers":[{"category":"Eye Color","variant":"Red"}],"normal_weight":1}]}}}`

func TestPotionThenRewind(t *testing.T) {
	h := newHarness(t)
	h.must("admin", categories)
	h.must("admin", redEyes)
	h.must("admin", `{"set_halt_status":{"alchemy":false}}`)
	h.nfts.Put("skulls", "s1", "alice", model.Image{6, 0, 1, 0, 1})
	h.nfts.SetName("potions", "p1", "Red Eyes")

	res := h.must("potions", `{"batch_receive_nft":{"from":"alice","token_ids":["p1"],"msg":{"skull":"s1","entropy":"e"}}}`)
	wantInfo := model.ImageInfo{
		Current:  model.Image{6, 0, 1, 0, 0},
		Previous: model.Image{6, 0, 1, 0, 1},
		Natural:  model.Image{6, 0, 1, 0, 1},
	}
	wantEffects := []model.Effect{
		model.SetImageInfo("skulls", "s1", wantInfo),
		model.BurnNft("potions", "p1", "Applied to Mystic Skull #s1"),
	}
	if diff := cmp.Diff(wantEffects, res.Effects); diff != "" {
		t.Fatalf("potion effects mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Attribute{{Key: "transmuted categories", Value: `["Eye Color"]`}}, res.Log); diff != "" {
		t.Errorf("potion log mismatch (-want +got):\n%s", diff)
	}
	if err := h.nfts.Apply(res.Effects); err != nil {
		t.Fatal(err)
	}

	res = h.must("alice", `{"rewind":{"token_id":"s1"}}`)
	if diff := cmp.Diff(call.Answer("rewind", map[string][]string{"categories_rewound": {"Eye Color"}}), res.Data); diff != "" {
		t.Errorf("rewind answer mismatch (-want +got):\n%s", diff)
	}
	restored := wantInfo
	restored.Current = model.Image{6, 0, 1, 0, 1}
	if diff := cmp.Diff([]model.Effect{model.SetImageInfo("skulls", "s1", restored)}, res.Effects); diff != "" {
		t.Errorf("rewind effects mismatch (-want +got):\n%s", diff)
	}
	if err := h.nfts.Apply(res.Effects); err != nil {
		t.Fatal(err)
	}
	_, err := h.exec("alice", `{"rewind":{"token_id":"s1"}}`)
	if !apierror.IsKind(err, apierror.KindPreconditionFailed) {
		t.Errorf("second rewind error = %v, want PRECONDITION_FAILED", err)
	}
}

func TestFailedMessageRollsBack(t *testing.T) {
	h := newHarness(t)
	h.must("admin", categories)
	before, err := h.backend.Scan(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	// the first category is new, the second collides, so neither is kept
	_, err = h.exec("admin", `{"add_categories":{"categories":[{"name":"Hat","variants":[]},{"name":"Skull","variants":[]}]}}`)
	if !apierror.IsKind(err, apierror.KindDuplicate) {
		t.Fatalf("error = %v, want DUPLICATE", err)
	}
	after, err := h.backend.Scan(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("failed message changed storage (-before +after):\n%s", diff)
	}
}

func TestDispatchErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		msg  string
		kind apierror.Kind
	}{
		{"not an object", `[1,2]`, apierror.KindMalformed},
		{"two tags", `{"rewind":{},"raffle":{}}`, apierror.KindMalformed},
		{"unknown tag", `{"fly":{}}`, apierror.KindMalformed},
		{"bad body", `{"add_categories":{"categories":7}}`, apierror.KindMalformed},
		{"not admin", `{"add_categories":{"categories":[]}}`, apierror.KindUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.exec("mallory", tc.msg)
			if !apierror.IsKind(err, tc.kind) {
				t.Errorf("error = %v, want %s", err, tc.kind)
			}
		})
	}
}

func TestInstantiateOnce(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Instantiate(context.Background(), h.env("admin"), InitParams{SkullsCollection: "skulls", ChargeTime: 1})
	if !apierror.IsKind(err, apierror.KindPreconditionFailed) {
		t.Errorf("second instantiate error = %v, want PRECONDITION_FAILED", err)
	}
	out, err := h.eng.Query(context.Background(), Env{Caller: "admin"}, json.RawMessage(`{"halt_statuses":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(out)
	if want := `{"halt_statuses":{"staking_is_halted":true,"alchemy_is_halted":true}}`; string(raw) != want {
		t.Errorf("halt statuses = %s, want %s", raw, want)
	}
}

func TestRaffleRedemptionRouting(t *testing.T) {
	h := newHarness(t)
	h.must("admin", `{"raffle":{"num_picks":2,"partner_percent":0,"entropy":"r"}}`)
	out, err := h.eng.Query(context.Background(), Env{}, json.RawMessage(`{"redeemable":{"skulls":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(out)
	var page struct {
		Redeemable struct {
			TokenIDs []string `json:"token_ids"`
		} `json:"redeemable"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Redeemable.TokenIDs) != 2 {
		t.Fatalf("redeemable = %v, want two winners", page.Redeemable.TokenIDs)
	}
	won := page.Redeemable.TokenIDs[0]
	body, _ := json.Marshal(map[string]interface{}{"batch_receive_nft": map[string]interface{}{
		"from": "alice", "token_ids": []string{won},
	}})
	res := h.must("skulls", string(body))
	if diff := cmp.Diff(call.Answer("redeem", map[string][]string{"redeemed": {won}}), res.Data); diff != "" {
		t.Errorf("redeem answer mismatch (-want +got):\n%s", diff)
	}
	if len(res.Effects) != 2 || res.Effects[1].Kind != model.EffectBatchMintNft {
		t.Errorf("effects = %+v, want a return then a mint", res.Effects)
	}
}

func TestSeedAdvancesPerDraw(t *testing.T) {
	h := newHarness(t)
	seed := func() []byte {
		v, err := h.backend.Get(context.Background(), store.Single(store.PrefixPrngSeed))
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	first := seed()
	h.must("admin", `{"raffle":{"num_picks":1,"entropy":"x"}}`)
	if cmp.Equal(first, seed()) {
		t.Error("raffle did not persist a new seed")
	}
	second := seed()
	h.must("admin", `{"set_rewind_status":{"halt":false}}`)
	if !cmp.Equal(second, seed()) {
		t.Error("a message without draws changed the seed")
	}
}
