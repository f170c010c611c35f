package raffle

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/baedrik/skulls2/internal/auth"
	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/prng"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/google/go-cmp/cmp"
)

type seqSource struct {
	vals []uint64
	i    int
}

func (s *seqSource) Uniform(n uint64) uint64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v % n
}

func newTxn(t *testing.T) *store.Txn {
	t.Helper()
	txn := store.Begin(context.Background(), store.NewMemoryBackend())
	if err := auth.SaveList(txn, auth.RoleAdmin, []string{"admin"}); err != nil {
		t.Fatal(err)
	}
	if err := call.SaveSettings(txn, call.Settings{SkullsCollection: "skulls", SvgServer: "svg"}); err != nil {
		t.Fatal(err)
	}
	txn.Set(store.Single(store.PrefixPrngSeed), prng.InitialSeed("raffle"))
	meta := &model.Metadata{TokenURI: model.StrPtr("https://potions/claim.json")}
	if err := SaveConfig(txn, Config{
		PartnerName:       "Pals",
		PartnerCollection: "pals",
		PotionCollection:  "potions",
		NumTokens:         5,
		StartOne:          true,
		MintMetadata:      meta,
	}); err != nil {
		t.Fatal(err)
	}
	return txn
}

func as(txn *store.Txn, caller string) *call.Context {
	return call.New(txn, call.Env{Now: 1000, Height: 7, Caller: caller}, nil, nil)
}

func TestReservoirDrawAndConsume(t *testing.T) {
	txn := newTxn(t)
	res := OpenReservoir(txn, Skulls, 0, 0)
	got, err := res.Draw(&seqSource{vals: []uint64{7, 7, 2, 4}}, 3, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"7", "2", "4"}, got); diff != "" {
		t.Errorf("draw mismatch (-want +got):\n%s", diff)
	}
	if res.Count != 3 {
		t.Fatalf("count = %d, want 3", res.Count)
	}

	ok, err := res.Consume("2")
	if err != nil || !ok {
		t.Fatalf("Consume(2) = %v, %v", ok, err)
	}
	if res.Count != 2 {
		t.Errorf("count = %d, want 2", res.Count)
	}
	page, err := res.Page(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"7", "4"}, page); diff != "" {
		t.Errorf("winners mismatch (-want +got):\n%s", diff)
	}
	for i, id := range page {
		idx, err := store.Load[uint32](txn, res.mapKey(id))
		if err != nil {
			t.Fatal(err)
		}
		if idx != uint32(i) {
			t.Errorf("map[%s] = %d, want %d", id, idx, i)
		}
	}
	if _, found, _ := txn.Get(res.winnerKey(2)); found {
		t.Error("stale winner left at the old last index")
	}

	again, err := res.Consume("2")
	if err != nil || again {
		t.Errorf("second Consume(2) = %v, %v; want false", again, err)
	}
	if res.Count != 2 {
		t.Errorf("count = %d after a repeat consume", res.Count)
	}
}

func TestDrawNeverRepeatsAcrossRounds(t *testing.T) {
	txn := newTxn(t)
	first, err := OpenReservoir(txn, Partner, 0, 0).Draw(&seqSource{vals: []uint64{0, 1}}, 2, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := OpenReservoir(txn, Partner, 1, 0).Draw(&seqSource{vals: []uint64{0, 1, 2}}, 1, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, append(first, second...)); diff != "" {
		t.Errorf("draws mismatch (-want +got):\n%s", diff)
	}
	_, err = OpenReservoir(txn, Partner, 2, 0).Draw(&seqSource{vals: []uint64{0}}, 1, 3, 1)
	if !apierror.IsKind(err, apierror.KindLimitExceeded) {
		t.Errorf("exhausted pool error = %v, want LIMIT_EXCEEDED", err)
	}
	n, err := Drawn(txn, Skulls)
	if err != nil || n != 0 {
		t.Errorf("skull draws = %d, %v; want 0", n, err)
	}
}

func TestRaffleSplitsPicks(t *testing.T) {
	txn := newTxn(t)
	out, err := Handlers()["raffle"](as(txn, "admin"), json.RawMessage(`{"num_picks":15,"partner_percent":34,"entropy":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(call.Answer("raffle", Counts{Skulls: 10, Partner: 5}), out); diff != "" {
		t.Errorf("answer mismatch (-want +got):\n%s", diff)
	}
	cfg, _ := LoadConfig(txn)
	if cfg.Round == nil || *cfg.Round != 0 {
		t.Fatalf("round = %v, want 0", cfg.Round)
	}
	// five picks from five partner tokens take every id from 1
	partner, err := OpenReservoir(txn, Partner, 0, 5).Page(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(partner)
	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5"}, partner); diff != "" {
		t.Errorf("partner winners mismatch (-want +got):\n%s", diff)
	}
	if _, err := Raffle(as(txn, "admin"), 2, 0, "y"); err != nil {
		t.Fatal(err)
	}
	cfg, _ = LoadConfig(txn)
	if *cfg.Round != 1 {
		t.Errorf("round = %d, want 1", *cfg.Round)
	}
}

func TestRaffleRefusals(t *testing.T) {
	txn := newTxn(t)
	tests := []struct {
		name   string
		caller string
		body   string
		kind   apierror.Kind
	}{
		{"not admin", "alice", `{"num_picks":1}`, apierror.KindUnauthorized},
		{"percent over 100", "admin", `{"num_picks":1,"partner_percent":101}`, apierror.KindBadInput},
		{"partner pool too small", "admin", `{"num_picks":12,"partner_percent":50}`, apierror.KindLimitExceeded},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Handlers()["raffle"](as(txn, tc.caller), json.RawMessage(tc.body))
			if !apierror.IsKind(err, tc.kind) {
				t.Errorf("error = %v, want %s", err, tc.kind)
			}
		})
	}
}

func TestRedeem(t *testing.T) {
	txn := newTxn(t)
	if _, err := Raffle(as(txn, "admin"), 3, 0, "z"); err != nil {
		t.Fatal(err)
	}
	winners, err := OpenReservoir(txn, Skulls, 0, 3).Page(0, 3)
	if err != nil {
		t.Fatal(err)
	}
	c := as(txn, "skulls")
	got, err := Redeem(c, "alice", []string{winners[1], "loser"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{winners[1]}, got); diff != "" {
		t.Errorf("redeemed mismatch (-want +got):\n%s", diff)
	}
	cfg, _ := LoadConfig(txn)
	wantEffects := []model.Effect{
		model.BatchSendNft("skulls", "alice", []string{winners[1], "loser"}, "Returning Mystic Skulls sent to claim potions"),
		model.BatchMintNft("potions", []model.Mint{{
			Owner:          "alice",
			PublicMetadata: cfg.MintMetadata,
			Memo:           "Claimed with Mystic Skulls " + winners[1],
		}}),
	}
	if diff := cmp.Diff(wantEffects, c.Effects()); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
	if cfg.Claimed != 1 {
		t.Errorf("claimed = %d, want 1", cfg.Claimed)
	}
	counts, _ := LoadCounts(txn, 0)
	if counts.Skulls != 2 {
		t.Errorf("unredeemed skulls = %d, want 2", counts.Skulls)
	}
	claims, err := Claims(txn, cfg, 0, 30)
	if err != nil {
		t.Fatal(err)
	}
	want := []ClaimInfo{{Collection: SkullsName, TokenID: winners[1], Owner: "alice", Round: 0}}
	if diff := cmp.Diff(want, claims); diff != "" {
		t.Errorf("claims mismatch (-want +got):\n%s", diff)
	}

	c = as(txn, "skulls")
	if _, err := Redeem(c, "alice", []string{winners[1]}); err != nil {
		t.Fatal(err)
	}
	if len(c.Effects()) != 1 {
		t.Errorf("repeat redeem emitted %d effects, want only the return", len(c.Effects()))
	}
}

func TestRedeemRefusals(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, txn *store.Txn)
		caller string
		kind   apierror.Kind
	}{
		{"no round", func(*testing.T, *store.Txn) {}, "skulls", apierror.KindPreconditionFailed},
		{"unknown collection", drawOne, "potions", apierror.KindUnauthorized},
		{"halted", func(t *testing.T, txn *store.Txn) {
			drawOne(t, txn)
			if err := call.SaveHalts(txn, call.Halts{Claims: true}); err != nil {
				t.Fatal(err)
			}
		}, "skulls", apierror.KindHalted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			txn := newTxn(t)
			tc.setup(t, txn)
			_, err := Redeem(as(txn, tc.caller), "alice", []string{"1"})
			if !apierror.IsKind(err, tc.kind) {
				t.Errorf("error = %v, want %s", err, tc.kind)
			}
		})
	}
}

func drawOne(t *testing.T, txn *store.Txn) {
	t.Helper()
	if _, err := Raffle(as(txn, "admin"), 1, 0, ""); err != nil {
		t.Fatal(err)
	}
}

func TestWhichAreWinners(t *testing.T) {
	txn := newTxn(t)
	if _, err := Raffle(as(txn, "admin"), 4, 50, ""); err != nil {
		t.Fatal(err)
	}
	skulls, _ := OpenReservoir(txn, Skulls, 0, 2).Page(0, 2)
	out, err := Queries()["which_are_winners"](as(txn, "anyone"), json.RawMessage(
		`{"skulls":["`+skulls[0]+`","none"],"partner":["0","6"]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := call.Answer("which_are_winners", map[string]interface{}{
		"halted":  false,
		"skulls":  []string{skulls[0]},
		"partner": []string{},
	})
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("answer mismatch (-want +got):\n%s", diff)
	}
}
