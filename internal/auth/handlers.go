package auth

import (
	"encoding/json"

	"github.com/baedrik/skulls2/internal/call"
)

// Handlers returns the role and key management messages.
func Handlers() map[string]call.Handler {
	return map[string]call.Handler{
		"add_admins":         listHandler(RoleAdmin, true),
		"remove_admins":      listHandler(RoleAdmin, false),
		"add_viewers":        listHandler(RoleViewer, true),
		"remove_viewers":     listHandler(RoleViewer, false),
		"add_minters":        listHandler(RoleMinter, true),
		"remove_minters":     listHandler(RoleMinter, false),
		"create_viewing_key": createViewingKey,
		"set_viewing_key":    setViewingKey,
		"revoke_permit":      revokePermit,
	}
}

type listMsg struct {
	Admins  []string `json:"admins"`
	Viewers []string `json:"viewers"`
	Minters []string `json:"minters"`
}

// AdminsList answers an admin list update.
type AdminsList struct {
	Admins []string `json:"admins"`
}

// ViewersList answers a viewer list update.
type ViewersList struct {
	Viewers []string `json:"viewers"`
}

// MintersList answers a minter list update.
type MintersList struct {
	Minters []string `json:"minters"`
}

func listHandler(role Role, add bool) call.Handler {
	return func(c *call.Context, raw json.RawMessage) (interface{}, error) {
		txn := c.Txn()
		if err := RequireAdmin(txn, c.Env().Caller); err != nil {
			return nil, err
		}
		var msg listMsg
		if err := call.Decode(raw, &msg); err != nil {
			return nil, err
		}
		update := msg.Admins
		switch role {
		case RoleViewer:
			update = msg.Viewers
		case RoleMinter:
			update = msg.Minters
		}

		current, err := List(txn, role)
		if err != nil {
			return nil, err
		}
		var changed bool
		if add {
			current, changed = addAll(current, update)
		} else {
			current, changed = removeAll(current, update)
		}
		if changed {
			if err := SaveList(txn, role, current); err != nil {
				return nil, err
			}
		}
		if current == nil {
			current = []string{}
		}

		switch role {
		case RoleViewer:
			return call.Answer("viewers_list", ViewersList{Viewers: current}), nil
		case RoleMinter:
			return call.Answer("minters_list", MintersList{Minters: current}), nil
		default:
			return call.Answer("admins_list", AdminsList{Admins: current}), nil
		}
	}
}

// ViewingKey answers a viewing key message.
type ViewingKey struct {
	Key string `json:"key"`
}

func createViewingKey(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Entropy string `json:"entropy"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	key, err := CreateViewingKey(c, msg.Entropy)
	if err != nil {
		return nil, err
	}
	return call.Answer("viewing_key", ViewingKey{Key: key}), nil
}

func setViewingKey(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		Key string `json:"key"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	SetViewingKey(c.Txn(), c.Env().Caller, msg.Key)
	return call.Answer("viewing_key", ViewingKey{Key: msg.Key}), nil
}

func revokePermit(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		PermitName string `json:"permit_name"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	RevokePermit(c.Txn(), c.Env().Caller, msg.PermitName)
	return call.Answer("revoke_permit", map[string]string{"status": "success"}), nil
}
