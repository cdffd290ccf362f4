package identity

import (
	"context"
	"fmt"
	"slices"

	"github.com/nerrad567/onroad-manager/internal/params"
)

// Terms and training versions the UI compares against the accepted ones.
const (
	TermsVersion    = "2"
	TrainingVersion = "0.2.0"
)

// Branches treated as release or tested builds.
var (
	releaseBranches = []string{"release3", "release3-staging", "FrogPilot"}
	testedBranches  = []string{"release3", "release3-staging", "nightly", "devel", "FrogPilot", "FrogPilot-Staging"}
)

// BuildInfo describes the installed software.
type BuildInfo struct {
	Version    string
	GitCommit  string
	CommitDate string
	GitBranch  string
	GitRemote  string
	Dirty      bool
}

// Release reports whether the branch is a release branch.
func (b BuildInfo) Release() bool {
	return slices.Contains(releaseBranches, b.GitBranch)
}

// Tested reports whether the branch receives testing.
func (b BuildInfo) Tested() bool {
	return slices.Contains(testedBranches, b.GitBranch)
}

// WriteVersionParams records the build in params for the UI and uploader.
//
// Parameters:
//   - ctx: Context for the store calls
//   - store: Primary params store
//   - info: Build information
//
// Returns:
//   - error: First failed write
func WriteVersionParams(ctx context.Context, store params.Store, info BuildInfo) error {
	writes := []struct {
		key   string
		value string
	}{
		{"Version", info.Version},
		{"TermsVersion", TermsVersion},
		{"TrainingVersion", TrainingVersion},
		{"GitCommit", info.GitCommit},
		{"GitCommitDate", info.CommitDate},
		{"GitBranch", info.GitBranch},
		{"GitRemote", info.GitRemote},
	}
	for _, w := range writes {
		if err := store.Put(ctx, w.key, []byte(w.value)); err != nil {
			return fmt.Errorf("writing %s: %w", w.key, err)
		}
	}
	if err := store.PutBool(ctx, "IsTestedBranch", info.Tested()); err != nil {
		return fmt.Errorf("writing IsTestedBranch: %w", err)
	}
	if err := store.PutBool(ctx, "IsReleaseBranch", info.Release()); err != nil {
		return fmt.Errorf("writing IsReleaseBranch: %w", err)
	}
	return nil
}
