package auth

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/google/go-cmp/cmp"
)

func newContext(t *testing.T, caller string) *call.Context {
	t.Helper()
	txn := store.Begin(context.Background(), store.NewMemoryBackend())
	if err := SaveList(txn, RoleAdmin, []string{"admin"}); err != nil {
		t.Fatal(err)
	}
	call.SaveViewingKeySeed(txn, []byte("seed"))
	return call.New(txn, call.Env{Now: 100, Height: 7, Caller: caller}, nil, call.StaticPermits{"p1": "alice"})
}

func TestListHandlers(t *testing.T) {
	c := newContext(t, "admin")
	h := Handlers()

	if _, err := h["add_viewers"](c, json.RawMessage(`{"viewers":["v1","v2","v1"]}`)); err != nil {
		t.Fatal(err)
	}
	got, err := h["remove_viewers"](c, json.RawMessage(`{"viewers":["v1"]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := call.Answer("viewers_list", ViewersList{Viewers: []string{"v2"}})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	ok, err := IsAuthorized(c.Txn(), RoleViewer, "admin")
	if err != nil || !ok {
		t.Errorf("admins should hold every role: %v, %v", ok, err)
	}

	outsider := call.New(c.Txn(), call.Env{Caller: "mallory"}, nil, nil)
	_, err = h["add_admins"](outsider, json.RawMessage(`{"admins":["mallory"]}`))
	if !apierror.IsKind(err, apierror.KindUnauthorized) {
		t.Errorf("err = %v, want Unauthorized", err)
	}
}

func TestViewingKeys(t *testing.T) {
	c := newContext(t, "bob")
	key, err := CreateViewingKey(c, "some entropy")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(key, ViewingKeyPrefix) {
		t.Errorf("key %q lacks prefix", key)
	}

	tests := []struct {
		name    string
		viewer  *model.ViewerInfo
		want    string
		wantErr bool
	}{
		{"right key", &model.ViewerInfo{Address: "bob", ViewingKey: key}, "bob", false},
		{"wrong key", &model.ViewerInfo{Address: "bob", ViewingKey: "nope"}, "", true},
		{"no key set", &model.ViewerInfo{Address: "carol", ViewingKey: key}, "", true},
		{"nothing", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Querier(c, tt.viewer, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("querier = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPermits(t *testing.T) {
	c := newContext(t, "alice")
	owner := &model.Permit{Params: model.PermitParams{PermitName: "p1", Permissions: []string{"owner"}}}
	noOwner := &model.Permit{Params: model.PermitParams{PermitName: "p1", Permissions: []string{"balance"}}}
	unknown := &model.Permit{Params: model.PermitParams{PermitName: "other", Permissions: []string{"owner"}}}

	if got, err := Querier(c, nil, owner); err != nil || got != "alice" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := Querier(c, nil, noOwner); err == nil {
		t.Error("permit without owner permission accepted")
	}
	if _, err := Querier(c, nil, unknown); err == nil {
		t.Error("unverifiable permit accepted")
	}

	if _, err := Handlers()["revoke_permit"](c, json.RawMessage(`{"permit_name":"p1"}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := Querier(c, nil, owner); !apierror.IsKind(err, apierror.KindUnauthorized) {
		t.Errorf("revoked permit: err = %v", err)
	}
}
