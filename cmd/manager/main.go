// onroad-manager supervises the on-device driving processes.
//
// It bootstraps the params store and device identity, then runs the
// reconciliation loop that starts and stops processes as the vehicle goes
// onroad and offroad, until a signal or an exit flag ends the run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Build information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=0.9.7 -X main.branch=release3"
var (
	version    = "dev"
	commit     = "unknown"
	commitDate = "unknown"
	branch     = "unknown"
	remote     = "unknown"
	dirty      = "false"
)

// defaultConfigPath is used when neither --config nor MANAGER_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configPath returns the configuration file path.
// MANAGER_CONFIG overrides the default; an explicit flag overrides both.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("MANAGER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
