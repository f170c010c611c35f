package model

import "encoding/json"

// ViewerInfo is the address and viewing key presented with a query.
type ViewerInfo struct {
	Address    string `json:"address"`
	ViewingKey string `json:"viewing_key"`
}

// Permit is a signed query permit. Signature checking is done by a
// PermitValidator; the engine only reads the params.
type Permit struct {
	Params    PermitParams    `json:"params"`
	Signature json.RawMessage `json:"signature"`
}

// PermitParams are the signed fields of a Permit.
type PermitParams struct {
	PermitName    string   `json:"permit_name"`
	AllowedTokens []string `json:"allowed_tokens"`
	ChainID       string   `json:"chain_id"`
	Permissions   []string `json:"permissions"`
}

// PermissionOwner grants full owner access.
const PermissionOwner = "owner"

// HasPermission reports whether the permit grants perm.
func (p Permit) HasPermission(perm string) bool {
	for _, have := range p.Params.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}
