// Package raffle draws winning tokens from the skull and partner collections
// and lets their owners redeem them for freshly minted potions.
package raffle

import "github.com/baedrik/skulls2/internal/model"

// Collection identifies which pool a token was drawn from.
type Collection uint8

const (
	Skulls Collection = iota
	Partner
)

// SkullsName is how skull claims are described in memos.
const SkullsName = "Mystic Skulls"

// SkullPool is the number of skull ids a raffle draws from.
const SkullPool = 10000

// Config is the raffle's persistent configuration and progress.
type Config struct {
	PartnerName       string          `json:"partner"`
	PartnerCollection string          `json:"partner_collection"`
	SkullsCollection  string          `json:"skulls_collection,omitempty"`
	PotionCollection  string          `json:"potion_collection"`
	NumTokens         uint32          `json:"num_tokens"`
	StartOne          bool            `json:"start_one"`
	MintMetadata      *model.Metadata `json:"mint_metadata,omitempty"`
	Round             *uint16         `json:"round,omitempty"`
	Claimed           uint32          `json:"claimed"`
}

// Counts are the unredeemed winners of a round.
type Counts struct {
	Skulls  uint32 `json:"skulls"`
	Partner uint32 `json:"partner"`
}

func (c *Counts) of(coll Collection) *uint32 {
	if coll == Skulls {
		return &c.Skulls
	}
	return &c.Partner
}

// Redeemed records one claim.
type Redeemed struct {
	IsSkull bool   `json:"is_skull"`
	TokenID string `json:"token_id"`
	Owner   string `json:"owner"`
	Round   uint16 `json:"round"`
}

// ClaimInfo is a redeemed claim as queries report it.
type ClaimInfo struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Owner      string `json:"owner"`
	Round      uint16 `json:"round"`
}
