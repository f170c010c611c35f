// Package auth holds the admin, viewer and minter lists and resolves who is
// behind a query (viewing key or permit).
package auth

import (
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Role names an authorization list.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
	RoleMinter Role = "minter"
)

func (r Role) key() []byte {
	switch r {
	case RoleViewer:
		return store.Single(store.PrefixViewers)
	case RoleMinter:
		return store.Single(store.PrefixMinters)
	default:
		return store.Single(store.PrefixAdmins)
	}
}

// List returns the addresses holding role.
func List(t *store.Txn, role Role) ([]string, error) {
	addrs, _, err := store.MayLoad[[]string](t, role.key())
	return addrs, err
}

// SaveList replaces the addresses holding role.
func SaveList(t *store.Txn, role Role, addrs []string) error {
	if addrs == nil {
		addrs = []string{}
	}
	return store.Save(t, role.key(), addrs)
}

// IsAuthorized reports whether addr holds role. Admins hold every role.
func IsAuthorized(t *store.Txn, role Role, addr string) (bool, error) {
	admins, err := List(t, RoleAdmin)
	if err != nil {
		return false, err
	}
	if contains(admins, addr) {
		return true, nil
	}
	if role == RoleAdmin {
		return false, nil
	}
	holders, err := List(t, role)
	if err != nil {
		return false, err
	}
	return contains(holders, addr), nil
}

// RequireAdmin fails unless addr is an admin.
func RequireAdmin(t *store.Txn, addr string) error {
	ok, err := IsAuthorized(t, RoleAdmin, addr)
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Unauthorized("Not an admin")
	}
	return nil
}

// RequireViewer fails unless addr is a viewer or an admin.
func RequireViewer(t *store.Txn, addr string) error {
	return requireAny(t, addr, "Not a viewer", RoleViewer)
}

// RequireViewerOrMinter fails unless addr is a viewer, minter or admin.
func RequireViewerOrMinter(t *store.Txn, addr string) error {
	return requireAny(t, addr, "Not authorized", RoleViewer, RoleMinter)
}

func requireAny(t *store.Txn, addr, msg string, roles ...Role) error {
	for _, r := range roles {
		ok, err := IsAuthorized(t, r, addr)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apierror.Unauthorized(msg)
}

// addAll appends the addresses not yet present and reports whether the
// list changed.
func addAll(list []string, addrs []string) ([]string, bool) {
	changed := false
	for _, a := range addrs {
		if !contains(list, a) {
			list = append(list, a)
			changed = true
		}
	}
	return list, changed
}

// removeAll drops every address in addrs and reports whether the list changed.
func removeAll(list []string, addrs []string) ([]string, bool) {
	kept := list[:0:0]
	for _, a := range list {
		if !contains(addrs, a) {
			kept = append(kept, a)
		}
	}
	return kept, len(kept) != len(list)
}

func contains(list []string, addr string) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
