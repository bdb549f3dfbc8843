// Package progress implements the course-progress engine: the durable local
// document, the login merge, and the tracker that owns all in-memory state.
package progress

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// QuizScore records the best quiz attempt for a single chapter.
type QuizScore struct {
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Passed         bool      `json:"passed"`
	Timestamp      time.Time `json:"timestamp"`
}

// LastVisited is the most recent reading position, for resume-where-you-left-off.
type LastVisited struct {
	ChapterID int       `json:"chapterId"`
	Section   string    `json:"section,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is the persisted progress state for one device. Quiz score keys are
// decimal chapter IDs because JSON object keys are strings.
type Document struct {
	CompletedChapters []int                `json:"completedChapters"`
	QuizScores        map[string]QuizScore `json:"quizScores"`
	LastVisited       *LastVisited         `json:"lastVisited,omitempty"`
	LastUpdated       time.Time            `json:"lastUpdated"`
	DeviceID          string               `json:"deviceId,omitempty"`
}

// NewDocument returns an empty document with a fresh device ID.
func NewDocument() *Document {
	return &Document{
		CompletedChapters: []int{},
		QuizScores:        map[string]QuizScore{},
		DeviceID:          uuid.NewString(),
	}
}

// Normalize repairs a document loaded from an older or partial payload:
// nil containers become empty, completed chapters are deduplicated, sorted
// ascending, and stripped of non-positive IDs.
func (d *Document) Normalize() {
	if d.QuizScores == nil {
		d.QuizScores = map[string]QuizScore{}
	}
	seen := make(map[int]struct{}, len(d.CompletedChapters))
	units := make([]int, 0, len(d.CompletedChapters))
	for _, id := range d.CompletedChapters {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		units = append(units, id)
	}
	sort.Ints(units)
	d.CompletedChapters = units
}

// Contains reports whether the chapter is in the completed set.
func (d *Document) Contains(unitID int) bool {
	i := sort.SearchInts(d.CompletedChapters, unitID)
	return i < len(d.CompletedChapters) && d.CompletedChapters[i] == unitID
}

// Add inserts the chapter into the completed set, keeping ascending order.
// Adding an already-present chapter is a no-op.
func (d *Document) Add(unitID int) {
	i := sort.SearchInts(d.CompletedChapters, unitID)
	if i < len(d.CompletedChapters) && d.CompletedChapters[i] == unitID {
		return
	}
	d.CompletedChapters = append(d.CompletedChapters, 0)
	copy(d.CompletedChapters[i+1:], d.CompletedChapters[i:])
	d.CompletedChapters[i] = unitID
}

// Remove deletes the chapter from the completed set if present.
func (d *Document) Remove(unitID int) {
	i := sort.SearchInts(d.CompletedChapters, unitID)
	if i >= len(d.CompletedChapters) || d.CompletedChapters[i] != unitID {
		return
	}
	d.CompletedChapters = append(d.CompletedChapters[:i], d.CompletedChapters[i+1:]...)
}

// Score returns the stored quiz score for a chapter.
func (d *Document) Score(unitID int) (QuizScore, bool) {
	s, ok := d.QuizScores[strconv.Itoa(unitID)]
	return s, ok
}

// SetScore stores a quiz score for a chapter, replacing any previous one.
func (d *Document) SetScore(unitID int, s QuizScore) {
	d.QuizScores[strconv.Itoa(unitID)] = s
}

// Scores returns quiz scores keyed by integer chapter ID. Entries whose keys
// do not parse as positive integers are skipped.
func (d *Document) Scores() map[int]QuizScore {
	out := make(map[int]QuizScore, len(d.QuizScores))
	for k, v := range d.QuizScores {
		id, err := strconv.Atoi(k)
		if err != nil || id <= 0 {
			continue
		}
		out[id] = v
	}
	return out
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		CompletedChapters: append([]int{}, d.CompletedChapters...),
		QuizScores:        make(map[string]QuizScore, len(d.QuizScores)),
		LastUpdated:       d.LastUpdated,
		DeviceID:          d.DeviceID,
	}
	for k, v := range d.QuizScores {
		c.QuizScores[k] = v
	}
	if d.LastVisited != nil {
		lv := *d.LastVisited
		c.LastVisited = &lv
	}
	return c
}
