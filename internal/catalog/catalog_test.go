package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/baedrik/skulls2/internal/engine"
	"github.com/baedrik/skulls2/internal/nft"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/google/go-cmp/cmp"
)

const seed = `
init:
  entropy: genesis
  skulls_collection: skulls
  charge_time: 3600
  rewind_cooldown: 60
viewers: [watcher]
categories:
  - name: Background
    variants:
      - {name: B0, display_name: B0}
      - {name: B1, display_name: B1}
  - name: Skull
    variants:
      - {name: Bone, display_name: Bone}
      - {name: Gold, display_name: Gold}
  - name: Jaw Type
    variants:
      - {name: None, display_name: None}
      - {name: Bone, display_name: Bone}
      - {name: Gold, display_name: Gold}
  - name: Eye Type
    variants:
      - {name: Normal, display_name: Normal}
      - {name: EyeType.Cyclops, display_name: Cyclops}
ingredients: [Ash, Dust, Ember]
ingredient_sets:
  - {name: Common, members: [Ash, Dust]}
  - {name: Rare, members: [Ember]}
staking_tables:
  - material: Bone
    ingredient_set_weights:
      - {ingredient_set: Common, weight: 9}
      - {ingredient_set: Rare, weight: 1}
  - material: Gold
    ingredient_set_weights:
      - {ingredient_set: Rare, weight: 1}
potions:
  - name: Gold Skull
    potion_contract: potions
    svg_server: local
    variants:
      - layers: [{category: Skull, variant: Gold}]
        normal_weight: 1
raffle:
  potion_collection: potions
open:
  staking: true
`

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("init:\n  entropy: x\nbogus: 1\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown key")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error %q does not name the key", err)
	}
}

func TestStepsOrder(t *testing.T) {
	f, err := Parse([]byte(seed))
	if err != nil {
		t.Fatal(err)
	}
	steps, err := f.Steps()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range steps {
		names = append(names, s.Name)
	}
	want := []string{
		"add_viewers",
		"add_categories",
		"add_ingredients",
		"define_ingredient_sets",
		"get_skull_type_info",
		"set_staking_tables",
		"set_potion",
		"set_raffle_config",
		"set_halt_status",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	if got := string(steps[len(steps)-1].Msg); got != `{"set_halt_status":{"alchemy":null,"staking":false}}` {
		t.Errorf("halt message = %s", got)
	}
}

func TestApplySeedsEngine(t *testing.T) {
	f, err := Parse([]byte(seed))
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New(store.NewMemoryBackend(), engine.WithNFT(nft.NewMemoryService()))
	var height uint64
	env := func() engine.Env {
		height++
		return engine.Env{Now: 1000 + height, Height: height}
	}
	if err := f.Apply(context.Background(), eng, "admin", env); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query string
		want  string
	}{
		{`{"halt_statuses":{}}`, `{"halt_statuses":{"staking_is_halted":false,"alchemy_is_halted":true}}`},
		{`{"materials":{}}`, `{"materials":{"materials":[{"idx":0,"name":"Bone"},{"idx":1,"name":"Gold"}]}}`},
		{`{"potion_contracts":{}}`, `{"potion_contracts":{"potion_contracts":["potions"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			out, err := eng.Query(context.Background(), engine.Env{Caller: "admin"}, json.RawMessage(tt.query))
			if err != nil {
				t.Fatal(err)
			}
			raw, _ := json.Marshal(out)
			if string(raw) != tt.want {
				t.Errorf("got %s, want %s", raw, tt.want)
			}
		})
	}

	if err := f.Apply(context.Background(), eng, "admin", env); err == nil {
		t.Error("applying a seed twice should fail at instantiate")
	}
}
