// Package cli is the operator command line: it seeds a deployment from a
// catalog and runs single messages and queries against the configured store.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/baedrik/skulls2/internal/catalog"
	"github.com/baedrik/skulls2/internal/config"
	"github.com/baedrik/skulls2/internal/engine"
	"github.com/baedrik/skulls2/internal/model"

	"github.com/spf13/cobra"
)

// Runner is the engine surface the commands drive.
type Runner interface {
	catalog.Runner
	Query(ctx context.Context, env engine.Env, raw json.RawMessage) (interface{}, error)
	Messages() []string
	QueryNames() []string
}

var _ Runner = (*engine.Engine)(nil)

// Opener connects a Runner. The returned func releases it.
type Opener func() (Runner, func() error, error)

// FromConfig opens the engine described by the environment.
func FromConfig() (Runner, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	e, backend, err := engine.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return e, backend.Close, nil
}

type app struct {
	open Opener
	now  func() time.Time
}

// hostEnv stamps a message. A one-shot process has no block counter of its
// own, so the height follows the clock.
func (a *app) hostEnv(caller string) engine.Env {
	now := a.now()
	return engine.Env{Now: uint64(now.Unix()), Height: uint64(now.Unix()), Caller: caller}
}

// NewRootCommand builds the skullctl command tree over open.
func NewRootCommand(open Opener) *cobra.Command {
	a := &app{open: open, now: time.Now}
	root := &cobra.Command{
		Use:           "skullctl",
		Short:         "Operate a skull alchemy engine",
		Long:          "skullctl seeds an engine from a catalog and runs messages and queries against its store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(a.initCmd(), a.execCmd(), a.queryCmd(), a.renderCmd(), a.messagesCmd())
	return root
}

// Execute runs skullctl against the configured store.
func Execute() {
	if err := NewRootCommand(FromConfig).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) with(fn func(r Runner) error) error {
	r, closeFn, err := a.open()
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(r)
}

func (a *app) initCmd() *cobra.Command {
	var path, admin string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Instantiate the engine and apply a seed catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.Load(path)
			if err != nil {
				return err
			}
			return a.with(func(r Runner) error {
				if err := f.Apply(cmd.Context(), r, admin, func() engine.Env { return a.hostEnv(admin) }); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "instantiated by %s from %s\n", admin, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "", "seed catalog (yaml)")
	cmd.Flags().StringVar(&admin, "admin", "", "address that instantiates and becomes the first admin")
	_ = cmd.MarkFlagRequired("catalog")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}

func readMsg(cmd *cobra.Command, msg string) (json.RawMessage, error) {
	if msg == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read message: %w", err)
		}
		msg = string(raw)
	}
	if !json.Valid([]byte(msg)) {
		return nil, fmt.Errorf("message is not valid JSON")
	}
	return json.RawMessage(msg), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) execCmd() *cobra.Command {
	var caller, msg string
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run one state-changing message",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readMsg(cmd, msg)
			if err != nil {
				return err
			}
			return a.with(func(r Runner) error {
				res, err := r.Execute(cmd.Context(), a.hostEnv(caller), raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "address the message is sent from")
	cmd.Flags().StringVar(&msg, "msg", "", "message JSON, or - for stdin")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("msg")
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	var caller, msg string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one read-only query",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readMsg(cmd, msg)
			if err != nil {
				return err
			}
			return a.with(func(r Runner) error {
				out, err := r.Query(cmd.Context(), a.hostEnv(caller), raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "address the query runs as (optional)")
	cmd.Flags().StringVar(&msg, "msg", "", "query JSON, or - for stdin")
	_ = cmd.MarkFlagRequired("msg")
	return cmd
}

// ParseImage reads a comma separated image vector. "u" marks an unrevealed
// trait.
func ParseImage(s string) (model.Image, error) {
	parts := strings.Split(s, ",")
	img := make(model.Image, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "u" {
			img = append(img, model.Unrevealed)
			continue
		}
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("image position %d: %q is not a variant index", i, p)
		}
		img = append(img, uint8(v))
	}
	return img, nil
}

func (a *app) renderCmd() *cobra.Command {
	var caller, image string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the metadata of an image vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := ParseImage(image)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(map[string]interface{}{
				"token_metadata": map[string]model.Image{"image": img},
			})
			if err != nil {
				return err
			}
			return a.with(func(r Runner) error {
				out, err := r.Query(cmd.Context(), a.hostEnv(caller), raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "viewer or minter address")
	cmd.Flags().StringVar(&image, "image", "", "comma separated variant indices, u for unrevealed")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func (a *app) messagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages",
		Short: "List the messages and queries the engine accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(func(r Runner) error {
				return printJSON(cmd.OutOrStdout(), map[string][]string{
					"messages": r.Messages(),
					"queries":  r.QueryNames(),
				})
			})
		},
	}
}
