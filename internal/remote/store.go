// Package remote talks to the shared completion store that reconciles
// progress across devices. Every implementation is keyed by (user, chapter)
// and every operation is idempotent, so retries and duplicate pushes are safe.
package remote

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"sync"
	"syscall"
)

// Store is the remote completion store consumed by the progress engine.
type Store interface {
	// FetchUnits returns the completed chapter set for a user.
	FetchUnits(ctx context.Context, userID string) (map[int]struct{}, error)
	// UpsertCompletion ensures a (user, chapter) completion row exists when
	// completed is true, and removes it when false. Idempotent either way.
	UpsertCompletion(ctx context.Context, userID string, unitID int, completed bool) error
}

// Noop is the store used when remote sync is not configured. Every call
// succeeds with empty results so the engine operates local-only.
type Noop struct{}

func (Noop) FetchUnits(context.Context, string) (map[int]struct{}, error) {
	return map[int]struct{}{}, nil
}

func (Noop) UpsertCompletion(context.Context, string, int, bool) error {
	return nil
}

// Call records one UpsertCompletion invocation against a Memory store.
type Call struct {
	UserID    string
	UnitID    int
	Completed bool
}

// Memory is an in-memory Store for tests. It records every upsert call so
// tests can assert on exactly which pushes happened.
type Memory struct {
	mu      sync.Mutex
	units   map[string]map[int]struct{}
	calls   []Call
	fetches int

	// FetchErr, when set, is returned by every FetchUnits call.
	FetchErr error
	// UpsertErr, when set, is returned by every UpsertCompletion call.
	UpsertErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{units: map[string]map[int]struct{}{}}
}

// Seed marks chapters completed for a user without recording calls.
func (m *Memory) Seed(userID string, unitIDs ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.units[userID]
	if set == nil {
		set = map[int]struct{}{}
		m.units[userID] = set
	}
	for _, id := range unitIDs {
		set[id] = struct{}{}
	}
}

func (m *Memory) FetchUnits(_ context.Context, userID string) (map[int]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	out := map[int]struct{}{}
	for id := range m.units[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *Memory) UpsertCompletion(_ context.Context, userID string, unitID int, completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{UserID: userID, UnitID: unitID, Completed: completed})
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	set := m.units[userID]
	if set == nil {
		set = map[int]struct{}{}
		m.units[userID] = set
	}
	if completed {
		set[unitID] = struct{}{}
	} else {
		delete(set, unitID)
	}
	return nil
}

// Calls returns the recorded upsert calls in order.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call{}, m.calls...)
}

// Fetches returns how many FetchUnits calls have been made.
func (m *Memory) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// Units returns the completed set for a user, sorted ascending.
func (m *Memory) Units(userID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.units[userID]))
	for id := range m.units[userID] {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// IsConnectivityError reports whether err looks like a plain network or
// timeout failure. These are expected whenever the device is offline, so
// callers log them at reduced severity.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

// LogError logs a remote failure with connectivity errors demoted to debug,
// since they are routine when offline.
func LogError(op string, userID string, err error) {
	if err == nil {
		return
	}
	if IsConnectivityError(err) {
		slog.Debug("remote store unreachable", "op", op, "user_id", userID, "error", err)
		return
	}
	slog.Error("remote store operation failed", "op", op, "user_id", userID, "error", err)
}
