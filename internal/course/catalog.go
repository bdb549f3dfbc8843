// Package course loads the course catalog from YAML files on disk. The
// catalog supplies the chapter universe: total unit count for percentages and
// per-phase unit lists for phase progress.
package course

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Chapter is one trackable unit of the course.
type Chapter struct {
	ID       int      `yaml:"id"`
	Title    string   `yaml:"title"`
	Sections []string `yaml:"sections"`
}

// phaseFile is the on-disk shape: one file per phase.
type phaseFile struct {
	Phase    string    `yaml:"phase"`
	Chapters []Chapter `yaml:"chapters"`
}

// Catalog holds the loaded course structure.
type Catalog struct {
	mu       sync.RWMutex
	chapters map[int]Chapter
	phases   map[string][]int
}

// NewCatalog walks rootDir and loads every phase YAML file. Files that fail
// to parse are skipped with a warning so one bad file cannot take the
// catalog down.
func NewCatalog(rootDir string) (*Catalog, error) {
	c := &Catalog{
		chapters: make(map[int]Chapter),
		phases:   make(map[string][]int),
	}

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return c.loadPhase(path)
	})
	if err != nil {
		return nil, fmt.Errorf("loading course catalog: %w", err)
	}

	slog.Info("course catalog loaded", "chapters", len(c.chapters), "phases", len(c.phases))
	return c, nil
}

func (c *Catalog) loadPhase(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var pf phaseFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		slog.Warn("skipping invalid phase YAML", "path", path, "error", err)
		return nil
	}
	if pf.Phase == "" || len(pf.Chapters) == 0 {
		return nil // Not a phase file
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range pf.Chapters {
		if ch.ID <= 0 {
			slog.Warn("skipping chapter without positive id", "path", path, "title", ch.Title)
			continue
		}
		c.chapters[ch.ID] = ch
		c.phases[pf.Phase] = append(c.phases[pf.Phase], ch.ID)
	}
	sort.Ints(c.phases[pf.Phase])
	return nil
}

// TotalUnits returns the number of chapters in the catalog.
func (c *Catalog) TotalUnits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chapters)
}

// Chapter returns a chapter by ID.
func (c *Catalog) Chapter(id int) (Chapter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.chapters[id]
	return ch, ok
}

// PhaseUnits returns the chapter IDs belonging to a phase, ascending.
func (c *Catalog) PhaseUnits(phase string) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int{}, c.phases[phase]...)
}

// Phases returns the phase names, sorted.
func (c *Catalog) Phases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.phases))
	for name := range c.phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllChapters returns every chapter, ascending by ID.
func (c *Catalog) AllChapters() []Chapter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int, 0, len(c.chapters))
	for id := range c.chapters {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Chapter, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.chapters[id])
	}
	return out
}
