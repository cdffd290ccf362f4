package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/database"
	"github.com/nerrad567/onroad-manager/internal/params"
)

// errNotSet is returned by "params get" for a known key with no value.
var errNotSet = errors.New("key not set")

// paramsFlags holds flags for the params subcommands.
type paramsFlags struct {
	Reveal bool
	Scope  string
}

func newParamsCmd(global *globalFlags) *cobra.Command {
	flags := &paramsFlags{}

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Inspect or edit the primary params partition",
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Print one key, or every set key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrimary(cmd.Context(), global, func(store params.Store) error {
				return paramsGet(cmd.Context(), cmd.OutOrStdout(), store, args, flags.Reveal)
			})
		},
	}
	getCmd.Flags().BoolVar(&flags.Reveal, "reveal", false, "print values of dont_log keys")

	putCmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Set a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrimary(cmd.Context(), global, func(store params.Store) error {
				return store.Put(cmd.Context(), args[0], []byte(args[1]))
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear [key]",
		Short: "Unset a key, or every key in --scope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrimary(cmd.Context(), global, func(store params.Store) error {
				return paramsClear(cmd.Context(), store, args, flags.Scope)
			})
		},
	}
	clearCmd.Flags().StringVar(&flags.Scope, "scope", "", "clear every key with this scope (e.g. clear_on_manager_start)")

	cmd.AddCommand(getCmd, putCmd, clearCmd)
	return cmd
}

// withPrimary opens the primary partition named in the config for fn.
func withPrimary(ctx context.Context, global *globalFlags, fn func(params.Store) error) error {
	cfg, err := config.Load(configPath(global.ConfigPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	table, err := params.BuiltinKeyTable()
	if err != nil {
		return err
	}
	store, err := params.OpenSQLite(ctx, partition(cfg.Params.Primary), table)
	if err != nil {
		return fmt.Errorf("opening params: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func paramsGet(ctx context.Context, out io.Writer, store params.Store, args []string, reveal bool) error {
	show := func(key string, v []byte) string {
		if reveal {
			return string(v)
		}
		return params.Redact(store.Table(), key, v)
	}

	if len(args) == 1 {
		v, ok, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", errNotSet, args[0])
		}
		fmt.Fprintln(out, show(args[0], v))
		return nil
	}

	view, err := store.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, k := range view.Keys() {
		v, _ := view.Get(k)
		fmt.Fprintf(out, "%s=%s\n", k, show(k, v))
	}
	return nil
}

func paramsClear(ctx context.Context, store params.Store, args []string, scopeName string) error {
	switch {
	case len(args) == 1 && scopeName != "":
		return errors.New("pass a key or --scope, not both")
	case len(args) == 1:
		return store.Delete(ctx, args[0])
	case scopeName != "":
		scope, err := params.ParseScope(scopeName)
		if err != nil {
			return err
		}
		return store.ClearAll(ctx, scope)
	default:
		return errors.New("nothing to clear: pass a key or --scope")
	}
}

// partition converts a partition config to database settings.
func partition(p config.PartitionConfig) database.Config {
	return database.Config{
		Path:        p.Path,
		WALMode:     p.WALMode,
		BusyTimeout: p.BusyTimeout,
	}
}
