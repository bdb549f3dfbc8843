package progress

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pagefold/trackd/internal/remote"
)

// MergeResult is the outcome of a login merge.
type MergeResult struct {
	// Merged is the union of local and remote completed sets, ascending.
	Merged []int
	// Pushed lists the local-only chapters that were pushed to remote.
	Pushed []int
}

// Merger reconciles the device-local completed set with the remote store.
// It runs once per login transition.
type Merger struct {
	local  *LocalStore
	remote remote.Store
}

// NewMerger creates a merger over the given stores.
func NewMerger(local *LocalStore, store remote.Store) *Merger {
	return &Merger{local: local, remote: store}
}

// Run performs the merge for an authenticated user: union the local and
// remote completed sets, push local-only chapters to remote, and return the
// union. Run never writes locally; the caller decides whether the result is
// still current before persisting it, so a merge that resolves after the
// identity changed again cannot clobber the newer identity's document. A
// failed remote fetch degrades to an empty remote set, and individual push
// failures are logged but never abort the merge, so Run always produces a
// usable result.
func (m *Merger) Run(ctx context.Context, userID string) MergeResult {
	doc := m.local.Load()

	remoteSet, err := m.remote.FetchUnits(ctx, userID)
	if err != nil {
		remote.LogError("fetch", userID, err)
		remoteSet = map[int]struct{}{}
	}

	var pushed []int
	for _, id := range doc.CompletedChapters {
		if _, ok := remoteSet[id]; ok {
			continue
		}
		pushed = append(pushed, id)
		if err := m.remote.UpsertCompletion(ctx, userID, id, true); err != nil {
			remote.LogError("upsert", userID, err)
		}
	}

	merged := unionUnits(doc.CompletedChapters, remoteSet)

	slog.Info("progress merged",
		"user_id", userID,
		"merged_units", len(merged),
		"pushed_units", len(pushed),
	)

	return MergeResult{Merged: merged, Pushed: pushed}
}

// unionUnits returns the ascending union of a sorted slice and a set.
func unionUnits(units []int, set map[int]struct{}) []int {
	seen := make(map[int]struct{}, len(units)+len(set))
	out := make([]int, 0, len(units)+len(set))
	for _, id := range units {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for id := range set {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
