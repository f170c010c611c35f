// Package staking lets skull owners park their skulls to accrue charges and
// converts claimed charges into ingredients by rolling weighted staking
// tables.
package staking

import "github.com/baedrik/skulls2/internal/model"

const (
	// MaxStaked is the most skulls one user may stake at once.
	MaxStaked = 5
	// MaxCharges caps the charges a skull accrues between claims.
	MaxCharges = 4
)

// State holds the staking parameters.
type State struct {
	// SkullIdx is the image index whose variant names the skull material.
	SkullIdx uint8 `json:"skull_idx"`
	// Cooldown is the number of seconds it takes to accrue one charge.
	Cooldown uint64 `json:"cooldown"`
}

// AlchemyState holds the layers that classify a skull.
type AlchemyState struct {
	Cyclops model.StoredLayerId `json:"cyclops"`
	Jawless model.StoredLayerId `json:"jawless"`
}

// SkullStake is the latest staker of a skull with its stake and claim times.
type SkullStake struct {
	Addr  string `json:"addr"`
	Stake uint64 `json:"stake"`
	Claim uint64 `json:"claim"`
}

// IngredientSet is a named group of ingredients.
type IngredientSet struct {
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members" yaml:"members"`
}

// StoredIngredientSet is an IngredientSet keyed by ingredient index.
type StoredIngredientSet struct {
	Name string  `json:"name"`
	List []uint8 `json:"list"`
}

// SetWeight is the weight of an ingredient set in a staking table.
type SetWeight struct {
	IngredientSet string `json:"ingredient_set" yaml:"ingredient_set"`
	Weight        uint16 `json:"weight" yaml:"weight"`
}

// StoredSetWeight is a SetWeight keyed by set index.
type StoredSetWeight struct {
	Set    uint8  `json:"set"`
	Weight uint16 `json:"weight"`
}

// Table lists the ingredient set weights rolled for one skull material.
type Table struct {
	Material             string      `json:"material" yaml:"material"`
	IngredientSetWeights []SetWeight `json:"ingredient_set_weights" yaml:"ingredient_set_weights"`
}

// IngredientQty is an amount of one ingredient.
type IngredientQty struct {
	Ingredient string `json:"ingredient"`
	Quantity   uint32 `json:"quantity"`
}

// ChargeInfo shows when a staked skull started charging and how many
// charges it holds.
type ChargeInfo struct {
	TokenID     string `json:"token_id"`
	ChargeStart uint64 `json:"charge_start"`
	Charges     uint8  `json:"charges"`
}

// StakeInfo answers both staking messages.
type StakeInfo struct {
	ChargeInfos []ChargeInfo    `json:"charge_infos"`
	Rewards     []IngredientQty `json:"rewards"`
}

// Eligibility reports whether a token can still earn the first stake bonus.
// Both fields are nil when the querier does not own the token.
type Eligibility struct {
	TokenID    string  `json:"token_id"`
	IsEligible *bool   `json:"is_eligible,omitempty"`
	ClaimedAt  *uint64 `json:"claimed_at,omitempty"`
}

// owned is a verified token and its image.
type owned struct {
	id    string
	image model.ImageInfo
}
