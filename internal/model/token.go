package model

import "time"

// SessionData is what a session token stands for: an address that proved
// its viewing key.
type SessionData struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
