// Package catalog loads a deployment seed file and turns it into the
// instantiate parameters plus the ordered admin messages that define the
// registry, staking tables, potions and raffle.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/baedrik/skulls2/internal/engine"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/potion"
	"github.com/baedrik/skulls2/internal/raffle"
	"github.com/baedrik/skulls2/internal/registry"
	"github.com/baedrik/skulls2/internal/staking"

	"gopkg.in/yaml.v3"
)

// File is a seed file.
type File struct {
	Init engine.InitParams `yaml:"init"`

	Viewers []string `yaml:"viewers"`
	Minters []string `yaml:"minters"`

	Coupling     *registry.Coupling      `yaml:"coupling"`
	Categories   []registry.CategoryInfo `yaml:"categories"`
	Dependencies []registry.Dependencies `yaml:"dependencies"`
	Metadata     struct {
		Public  *model.Metadata `yaml:"public"`
		Private *model.Metadata `yaml:"private"`
	} `yaml:"metadata"`

	Ingredients    []string                `yaml:"ingredients"`
	IngredientSets []staking.IngredientSet `yaml:"ingredient_sets"`
	StakingTables  []staking.Table         `yaml:"staking_tables"`

	Potions         []potion.Info `yaml:"potions"`
	PotionContracts []string      `yaml:"potion_contracts"`
	SvgServers      []string      `yaml:"svg_servers"`

	Raffle *raffle.ConfigUpdate `yaml:"raffle"`

	// Open lifts the halts the engine starts with once everything above is
	// defined.
	Open struct {
		Staking bool `yaml:"staking"`
		Alchemy bool `yaml:"alchemy"`
	} `yaml:"open"`
}

// Step is one admin message of a seed.
type Step struct {
	Name string
	Msg  json.RawMessage
}

// Load reads a seed file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(raw []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &f, nil
}

// Steps lists the admin messages in the order the engine accepts them.
// Sections left empty produce no message.
func (f *File) Steps() ([]Step, error) {
	var steps []Step
	add := func(name string, body interface{}) error {
		msg, err := json.Marshal(map[string]interface{}{name: body})
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		steps = append(steps, Step{Name: name, Msg: msg})
		return nil
	}

	type kv = map[string]interface{}
	var err error
	try := func(ok bool, name string, body interface{}) {
		if err == nil && ok {
			err = add(name, body)
		}
	}

	try(len(f.Viewers) > 0, "add_viewers", kv{"viewers": f.Viewers})
	try(len(f.Minters) > 0, "add_minters", kv{"minters": f.Minters})
	try(len(f.Categories) > 0, "add_categories", kv{"categories": f.Categories})
	try(f.Coupling != nil, "set_coupling", kv{"coupling": f.Coupling})
	try(len(f.Dependencies) > 0, "add_dependencies", kv{"dependencies": f.Dependencies})
	try(f.Metadata.Public != nil || f.Metadata.Private != nil, "set_metadata",
		kv{"public_metadata": f.Metadata.Public, "private_metadata": f.Metadata.Private})
	try(len(f.Ingredients) > 0, "add_ingredients", kv{"ingredients": f.Ingredients})
	try(len(f.IngredientSets) > 0, "define_ingredient_sets", kv{"sets": f.IngredientSets})
	// Materials come from the skull category, so they are refreshed after
	// the registry is in place and before tables reference them.
	try(len(f.Categories) > 0, "get_skull_type_info", kv{})
	try(len(f.StakingTables) > 0, "set_staking_tables", kv{"tables": f.StakingTables})
	try(len(f.PotionContracts) > 0 || len(f.SvgServers) > 0, "add_potion_contracts",
		kv{"potion_contracts": f.PotionContracts, "svg_servers": f.SvgServers})
	for _, p := range f.Potions {
		try(true, "set_potion", kv{"potion": p})
	}
	try(f.Raffle != nil, "set_raffle_config", f.Raffle)
	try(f.Open.Staking || f.Open.Alchemy, "set_halt_status", kv{
		"staking": boolOrNil(!f.Open.Staking),
		"alchemy": boolOrNil(!f.Open.Alchemy),
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}

// boolOrNil leaves a halt untouched unless it is being lifted.
func boolOrNil(halt bool) *bool {
	if halt {
		return nil
	}
	return &halt
}

// Runner is the part of the engine a seed drives.
type Runner interface {
	Instantiate(ctx context.Context, env engine.Env, p engine.InitParams) (engine.Result, error)
	Execute(ctx context.Context, env engine.Env, raw json.RawMessage) (engine.Result, error)
}

var _ Runner = (*engine.Engine)(nil)

// Apply instantiates the engine as admin and runs every step. env supplies
// the environment of each message; its caller is replaced by admin. Apply
// stops at the first failure.
func (f *File) Apply(ctx context.Context, r Runner, admin string, env func() engine.Env) error {
	steps, err := f.Steps()
	if err != nil {
		return err
	}
	e := env()
	e.Caller = admin
	if _, err := r.Instantiate(ctx, e, f.Init); err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	for i, s := range steps {
		e := env()
		e.Caller = admin
		if _, err := r.Execute(ctx, e, s.Msg); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Name, err)
		}
	}
	log.Printf("[Catalog] Applied instantiate and %d messages", len(steps))
	return nil
}
