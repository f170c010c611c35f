package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// ViewingKeyPrefix starts every generated viewing key.
const ViewingKeyPrefix = "api_key_"

// CreateViewingKey derives a new key for the caller from the stored secret
// and the message environment, stores its hash and returns it.
func CreateViewingKey(c *call.Context, entropy string) (string, error) {
	seed, err := call.LoadViewingKeySeed(c.Txn())
	if err != nil {
		return "", err
	}
	env := c.Env()
	h := sha256.New()
	h.Write(seed)
	h.Write(binary.BigEndian.AppendUint64(nil, env.Height))
	h.Write(binary.BigEndian.AppendUint64(nil, env.Now))
	h.Write([]byte(env.Caller))
	h.Write([]byte(entropy))
	key := ViewingKeyPrefix + base64.StdEncoding.EncodeToString(h.Sum(nil))

	SetViewingKey(c.Txn(), env.Caller, key)
	return key, nil
}

// SetViewingKey stores the hash of key for addr.
func SetViewingKey(t *store.Txn, addr, key string) {
	sum := sha256.Sum256([]byte(key))
	t.Set(store.Key(store.PrefixViewingKeys, store.Str(addr)), sum[:])
}

// CheckViewingKey verifies key against the hash stored for addr.
func CheckViewingKey(t *store.Txn, addr, key string) error {
	stored, ok, err := t.Get(store.Key(store.PrefixViewingKeys, store.Str(addr)))
	if err != nil {
		return fmt.Errorf("load viewing key: %w", err)
	}
	sum := sha256.Sum256([]byte(key))
	// compare even when unset so timing does not reveal whether a key exists
	if !ok {
		stored = make([]byte, sha256.Size)
	}
	if subtle.ConstantTimeCompare(stored, sum[:]) != 1 || !ok {
		return apierror.Unauthorized("Wrong viewing key for this address or viewing key not set")
	}
	return nil
}

func revokedKey(addr, name string) []byte {
	return store.Key(store.PrefixRevokedPermits, store.Str(addr), store.Str(name))
}

// RevokePermit marks a permit name of addr as unusable.
func RevokePermit(t *store.Txn, addr, name string) {
	t.Set(revokedKey(addr, name), []byte{1})
}

// IsRevoked reports whether addr revoked the permit name.
func IsRevoked(t *store.Txn, addr, name string) (bool, error) {
	_, ok, err := t.Get(revokedKey(addr, name))
	return ok, err
}

// Querier resolves the address behind a query from either a permit or a
// viewing key. A permit takes precedence.
func Querier(c *call.Context, viewer *model.ViewerInfo, permit *model.Permit) (string, error) {
	if permit != nil {
		signer, err := c.Permits.Validate(c.Ctx(), *permit)
		if err != nil {
			if _, ok := apierror.As(err); ok {
				return "", err
			}
			return "", apierror.Unauthorized(err.Error())
		}
		revoked, err := IsRevoked(c.Txn(), signer, permit.Params.PermitName)
		if err != nil {
			return "", err
		}
		if revoked {
			return "", apierror.Unauthorized(fmt.Sprintf("Permit %q was revoked by account %q", permit.Params.PermitName, signer))
		}
		if !permit.HasPermission(model.PermissionOwner) {
			return "", apierror.Unauthorized(fmt.Sprintf("Owner permission is required for queries, got permissions %v", permit.Params.Permissions))
		}
		return signer, nil
	}
	if viewer != nil {
		if err := CheckViewingKey(c.Txn(), viewer.Address, viewer.ViewingKey); err != nil {
			return "", err
		}
		return viewer.Address, nil
	}
	return "", apierror.Unauthorized("A permit or viewing key must be provided")
}

// Credentials are the optional authentication fields carried by a query.
type Credentials struct {
	Viewer *model.ViewerInfo `json:"viewer,omitempty"`
	Permit *model.Permit     `json:"permit,omitempty"`
}

// Querier resolves the querier from the credentials. Without credentials
// the host-authenticated caller of the query is used, if any.
func (cr Credentials) Querier(c *call.Context) (string, error) {
	if cr.Viewer == nil && cr.Permit == nil && c.Env().Caller != "" {
		return c.Env().Caller, nil
	}
	return Querier(c, cr.Viewer, cr.Permit)
}

// AsAdmin resolves the querier and requires them to be an admin.
func (cr Credentials) AsAdmin(c *call.Context) (string, error) {
	addr, err := cr.Querier(c)
	if err != nil {
		return "", err
	}
	return addr, RequireAdmin(c.Txn(), addr)
}

// AsViewer resolves the querier and requires them to be a viewer or admin.
func (cr Credentials) AsViewer(c *call.Context) (string, error) {
	addr, err := cr.Querier(c)
	if err != nil {
		return "", err
	}
	return addr, RequireViewer(c.Txn(), addr)
}
