package progress

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pagefold/trackd/internal/remote"
)

// Event types published to the Notifier as progress changes.
const (
	EventUnitCompleted   = "unit_completed"
	EventUnitUncompleted = "unit_uncompleted"
	EventQuizRecorded    = "quiz_recorded"
	EventLastVisited     = "last_visited"
	EventMergeStarted    = "merge_started"
	EventMergeFinished   = "merge_finished"
	EventReset           = "reset"
)

// Event describes one progress change for UI collaborators.
type Event struct {
	Type   string
	UnitID int
	UserID string
}

// Notifier receives progress-change events. Implementations must not call
// back into the Tracker.
type Notifier interface {
	Publish(Event)
}

// PhaseProgress summarizes completion over one phase's chapters.
type PhaseProgress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Snapshot is a read-only view of the tracker's current state.
type Snapshot struct {
	UserID         string            `json:"user_id,omitempty"`
	CompletedUnits []int             `json:"completed_units"`
	QuizScores     map[int]QuizScore `json:"quiz_scores"`
	LastVisited    *LastVisited      `json:"last_visited,omitempty"`
	Percentage     int               `json:"percentage"`
	Syncing        bool              `json:"syncing"`
}

// TrackerConfig holds dependencies for the progress tracker.
type TrackerConfig struct {
	Local      *LocalStore
	Remote     remote.Store
	TotalUnits int      // denominator for CompletionPercentage
	Notifier   Notifier // optional
	PushBuffer int      // background push queue size (default 64)
}

// Tracker is the single owner of in-memory progress state. Every mutation
// takes effect in memory immediately, writes through to the local store
// synchronously, and propagates to the remote store on a background worker.
// No operation ever fails from the caller's point of view.
type Tracker struct {
	local      *LocalStore
	remote     remote.Store
	merger     *Merger
	pusher     *pusher
	notifier   Notifier
	totalUnits int

	mu        sync.Mutex
	doc       *Document
	userID    string // empty while anonymous
	mergedFor string // identity already merged this session
	loginSeq  int    // guards against stale merge results
	syncing   bool
}

// NewTracker loads the persisted document and returns a ready tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	store := cfg.Remote
	if store == nil {
		store = remote.Noop{}
	}
	t := &Tracker{
		local:      cfg.Local,
		remote:     store,
		merger:     NewMerger(cfg.Local, store),
		pusher:     newPusher(cfg.PushBuffer),
		notifier:   cfg.Notifier,
		totalUnits: cfg.TotalUnits,
		doc:        cfg.Local.Load(),
	}
	slog.Info("progress tracker ready",
		"completed_units", len(t.doc.CompletedChapters),
		"device_id", t.doc.DeviceID,
	)
	return t
}

// Close drains pending remote pushes and stops the background worker.
func (t *Tracker) Close() {
	t.pusher.close()
}

// SetIdentity handles an identity transition from the external identity
// provider. A non-empty userID means the user authenticated (or switched
// accounts): the one-time merge runs in the background, at most once per
// distinct identity per session. An empty userID means logout, which clears
// the merge flag so a future login merges again. Repeat calls with the same
// identity (token refreshes) do nothing.
func (t *Tracker) SetIdentity(ctx context.Context, userID string) {
	t.mu.Lock()
	if userID == t.userID {
		t.mu.Unlock()
		return
	}
	t.userID = userID

	if userID == "" {
		t.mergedFor = ""
		t.syncing = false
		t.mu.Unlock()
		slog.Info("identity cleared, operating anonymously")
		return
	}

	if t.mergedFor == userID {
		t.mu.Unlock()
		return
	}

	t.loginSeq++
	seq := t.loginSeq
	t.syncing = true
	t.mu.Unlock()

	slog.Info("identity changed, starting merge", "user_id", userID)
	t.notify(Event{Type: EventMergeStarted, UserID: userID})
	go t.runMerge(context.WithoutCancel(ctx), userID, seq)
}

func (t *Tracker) runMerge(ctx context.Context, userID string, seq int) {
	result := t.merger.Run(ctx, userID)

	t.mu.Lock()
	if seq != t.loginSeq || t.userID != userID {
		t.mu.Unlock()
		slog.Debug("discarding merge result for stale identity", "user_id", userID)
		return
	}
	// Keep any chapters completed while the merge was in flight.
	for _, id := range result.Merged {
		t.doc.Add(id)
	}
	t.doc.LastUpdated = time.Now().UTC()
	t.local.Save(t.doc)
	t.mergedFor = userID
	t.syncing = false
	t.mu.Unlock()

	t.notify(Event{Type: EventMergeFinished, UserID: userID})
}

// Syncing reports whether a login merge is in flight.
func (t *Tracker) Syncing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.syncing
}

// Identity returns the current authenticated user ID, empty if anonymous.
func (t *Tracker) Identity() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userID
}

// IsUnitCompleted reports whether the chapter is in the completed set.
func (t *Tracker) IsUnitCompleted(unitID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc.Contains(unitID)
}

// CompletedUnits returns the completed chapter set, ascending.
func (t *Tracker) CompletedUnits() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int{}, t.doc.CompletedChapters...)
}

// MarkComplete adds the chapter to the completed set. Marking an already
// completed chapter is a no-op.
func (t *Tracker) MarkComplete(unitID int) {
	if unitID <= 0 {
		return
	}
	t.mu.Lock()
	if t.doc.Contains(unitID) {
		t.mu.Unlock()
		return
	}
	t.doc.Add(unitID)
	t.doc.LastUpdated = time.Now().UTC()
	t.local.Save(t.doc)
	userID := t.userID
	t.mu.Unlock()

	t.pushCompletion(userID, unitID, true)
	t.notify(Event{Type: EventUnitCompleted, UnitID: unitID, UserID: userID})
}

// ToggleComplete flips the chapter's membership in the completed set.
func (t *Tracker) ToggleComplete(unitID int) {
	if unitID <= 0 {
		return
	}
	t.mu.Lock()
	completed := !t.doc.Contains(unitID)
	if completed {
		t.doc.Add(unitID)
	} else {
		t.doc.Remove(unitID)
	}
	t.doc.LastUpdated = time.Now().UTC()
	t.local.Save(t.doc)
	userID := t.userID
	t.mu.Unlock()

	t.pushCompletion(userID, unitID, completed)
	eventType := EventUnitCompleted
	if !completed {
		eventType = EventUnitUncompleted
	}
	t.notify(Event{Type: eventType, UnitID: unitID, UserID: userID})
}

// RecordQuizScore stores a quiz result for the chapter. A first attempt
// always stores; afterwards the stored entry is replaced only when the new
// score is strictly greater, so an equal or worse retake never overwrites a
// better earlier run.
func (t *Tracker) RecordQuizScore(unitID, score, totalQuestions int, passed bool) {
	if unitID <= 0 || score < 0 || totalQuestions <= 0 {
		return
	}
	t.mu.Lock()
	if existing, ok := t.doc.Score(unitID); ok && score <= existing.Score {
		t.mu.Unlock()
		return
	}
	t.doc.SetScore(unitID, QuizScore{
		Score:          score,
		TotalQuestions: totalQuestions,
		Passed:         passed,
		Timestamp:      time.Now().UTC(),
	})
	t.doc.LastUpdated = time.Now().UTC()
	t.local.Save(t.doc)
	userID := t.userID
	t.mu.Unlock()

	t.notify(Event{Type: EventQuizRecorded, UnitID: unitID, UserID: userID})
}

// QuizScore returns the stored quiz score for a chapter.
func (t *Tracker) QuizScore(unitID int) (QuizScore, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc.Score(unitID)
}

// RecordLastVisited stamps the current reading position.
func (t *Tracker) RecordLastVisited(unitID int, section string) {
	if unitID <= 0 {
		return
	}
	t.mu.Lock()
	t.doc.LastVisited = &LastVisited{
		ChapterID: unitID,
		Section:   section,
		Timestamp: time.Now().UTC(),
	}
	t.doc.LastUpdated = time.Now().UTC()
	t.local.Save(t.doc)
	userID := t.userID
	t.mu.Unlock()

	t.notify(Event{Type: EventLastVisited, UnitID: unitID, UserID: userID})
}

// LastVisited returns the most recent reading position, nil if none.
func (t *Tracker) LastVisited() *LastVisited {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doc.LastVisited == nil {
		return nil
	}
	lv := *t.doc.LastVisited
	return &lv
}

// Reset clears the completed set, quiz scores, and reading position in one
// local write. When authenticated it then removes every previously completed
// chapter from remote, sequentially to bound remote load.
func (t *Tracker) Reset() {
	t.mu.Lock()
	previous := append([]int{}, t.doc.CompletedChapters...)
	deviceID := t.doc.DeviceID
	t.doc = NewDocument()
	t.doc.DeviceID = deviceID
	t.doc.LastUpdated = time.Now().UTC()
	t.local.Save(t.doc)
	userID := t.userID
	t.mu.Unlock()

	if userID != "" && len(previous) > 0 {
		t.pusher.enqueue("reset", func(ctx context.Context) error {
			for _, id := range previous {
				if err := t.remote.UpsertCompletion(ctx, userID, id, false); err != nil {
					remote.LogError("upsert", userID, err)
				}
			}
			return nil
		})
	}
	t.notify(Event{Type: EventReset, UserID: userID})
}

// CompletionPercentage returns the overall completion percent, rounded to
// the nearest integer. Zero when the course size is unknown.
func (t *Tracker) CompletionPercentage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return roundPercent(len(t.doc.CompletedChapters), t.totalUnits)
}

// PhaseProgress summarizes completion over the given chapter IDs.
func (t *Tracker) PhaseProgress(unitIDs []int) PhaseProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	completed := 0
	for _, id := range unitIDs {
		if t.doc.Contains(id) {
			completed++
		}
	}
	return PhaseProgress{
		Completed:  completed,
		Total:      len(unitIDs),
		Percentage: roundPercent(completed, len(unitIDs)),
	}
}

// Snapshot returns a copy of the current state for read-only consumers.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := Snapshot{
		UserID:         t.userID,
		CompletedUnits: append([]int{}, t.doc.CompletedChapters...),
		QuizScores:     t.doc.Scores(),
		Percentage:     roundPercent(len(t.doc.CompletedChapters), t.totalUnits),
		Syncing:        t.syncing,
	}
	if t.doc.LastVisited != nil {
		lv := *t.doc.LastVisited
		snap.LastVisited = &lv
	}
	return snap
}

// Document returns a deep copy of the current document, for exports.
func (t *Tracker) Document() *Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc.Clone()
}

// Flush blocks until every queued remote push has finished. Intended for
// tests and shutdown.
func (t *Tracker) Flush() {
	t.pusher.flush()
}

// pushCompletion queues a remote completion write when authenticated.
func (t *Tracker) pushCompletion(userID string, unitID int, completed bool) {
	if userID == "" {
		return
	}
	t.pusher.enqueue("completion", func(ctx context.Context) error {
		if err := t.remote.UpsertCompletion(ctx, userID, unitID, completed); err != nil {
			remote.LogError("upsert", userID, err)
		}
		return nil
	})
}

func (t *Tracker) notify(e Event) {
	if t.notifier == nil {
		return
	}
	t.notifier.Publish(e)
}

func roundPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
