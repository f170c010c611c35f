package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baedrik/skulls2/internal/engine"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/google/go-cmp/cmp"
)

const seed = `
init:
  entropy: cli
  skulls_collection: skulls
  charge_time: 60
viewers: [watcher]
categories:
  - name: Background
    variants:
      - {name: B0, display_name: Dusk}
  - name: Skull
    variants:
      - {name: Bone, display_name: Bone}
  - name: Jaw Type
    variants:
      - {name: None, display_name: None}
  - name: Eye Type
    variants:
      - {name: Normal, display_name: Normal}
      - {name: EyeType.Cyclops, display_name: Cyclops}
`

func run(t *testing.T, e *engine.Engine, args ...string) (string, error) {
	t.Helper()
	open := func() (Runner, func() error, error) {
		return e, func() error { return nil }, nil
	}
	root := NewRootCommand(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseImage(t *testing.T) {
	tests := []struct {
		in      string
		want    model.Image
		wantErr bool
	}{
		{in: "0,1,2", want: model.Image{0, 1, 2}},
		{in: "3, u ,0", want: model.Image{3, model.Unrevealed, 0}},
		{in: "1,256", wantErr: true},
		{in: "a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseImage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); !tt.wantErr && diff != "" {
				t.Errorf("image mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInitExecQueryRender(t *testing.T) {
	e := engine.New(store.NewMemoryBackend())
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, e, "init", "--catalog", path, "--admin", "admin")
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "instantiated by admin") {
		t.Errorf("init output = %q", out)
	}

	if out, err := run(t, e, "exec", "--caller", "admin", "--msg", `{"set_charge_time":{"charge_time":120}}`); err != nil {
		t.Fatalf("exec: %v\n%s", err, out)
	} else if !strings.Contains(out, `"charge_time": 120`) {
		t.Errorf("exec output = %s", out)
	}

	if out, err := run(t, e, "exec", "--caller", "stranger", "--msg", `{"set_charge_time":{"charge_time":1}}`); err == nil {
		t.Errorf("non-admin exec succeeded: %s", out)
	}

	out, err = run(t, e, "query", "--caller", "admin", "--msg", `{"halt_statuses":{}}`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, `"staking_is_halted": true`) {
		t.Errorf("query output = %s", out)
	}

	out, err = run(t, e, "render", "--caller", "watcher", "--image", "0,0,0,1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `"metadata"`) {
		t.Errorf("render output = %s", out)
	}

	if _, err := run(t, e, "query", "--msg", `{not json`); err == nil {
		t.Error("invalid JSON accepted")
	}
}

func TestMessagesListsDispatch(t *testing.T) {
	out, err := run(t, engine.New(store.NewMemoryBackend()), "messages")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"set_stake", "raffle", "rewind", "token_metadata"} {
		if !strings.Contains(out, `"`+name+`"`) {
			t.Errorf("messages output lacks %s", name)
		}
	}
}

func TestHostEnvFollowsClock(t *testing.T) {
	a := &app{now: func() time.Time { return time.Unix(1700000000, 0) }}
	env := a.hostEnv("alice")
	if diff := cmp.Diff(engine.Env{Now: 1700000000, Height: 1700000000, Caller: "alice"}, env); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
}
