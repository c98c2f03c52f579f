// internal/progress/progress.go

// Package progress tracks which lessons of a (platform, level) pair have been
// extracted, so an interrupted batch resumes where it stopped.
package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/valpere/LessonFlow/internal/output"
	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// Tracker is the in-memory view of one progress file
type Tracker struct {
	path   string
	logger utils.Logger

	mu        sync.RWMutex
	data      types.ExtractionProgress
	completed map[string]struct{}
}

// Path returns the progress file of a platform and level
func Path(dir, platform, level string) string {
	return filepath.Join(dir, utils.JoinSlug(platform, level)+".json")
}

// Load reads the progress file, or starts empty when it does not exist.
// A corrupt file is logged and replaced on the next Save.
func Load(dir, platform, level string, logger utils.Logger) (*Tracker, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	t := &Tracker{
		path:      Path(dir, platform, level),
		logger:    logger.WithField("component", "progress"),
		completed: make(map[string]struct{}),
	}

	err := output.ReadJSONFile(t.path, &t.data)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		t.logger.Debugf("no progress file at %s, starting fresh", t.path)
	default:
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to read progress file: %w", err)
		}
		t.logger.Warnf("ignoring unreadable progress file %s: %v", t.path, err)
		t.data = types.ExtractionProgress{}
	}

	t.data.Platform = platform
	t.data.Level = level
	if t.data.CompletedLessons == nil {
		t.data.CompletedLessons = []string{}
	}
	if t.data.Lessons == nil {
		t.data.Lessons = []types.LessonSummary{}
	}
	for _, key := range t.data.CompletedLessons {
		t.completed[key] = struct{}{}
	}
	return t, nil
}

// File returns the progress file path
func (t *Tracker) File() string {
	return t.path
}

// IsCompleted reports whether the lesson was already extracted completely
func (t *Tracker) IsCompleted(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.completed[key]
	return ok
}

// Record stores the summary of a finished lesson, replacing an earlier one
// with the same key. Only complete lessons are marked completed.
func (t *Tracker) Record(summary types.LessonSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	replaced := false
	for i := range t.data.Lessons {
		if t.data.Lessons[i].Key == summary.Key {
			t.data.Lessons[i] = summary
			replaced = true
			break
		}
	}
	if !replaced {
		t.data.Lessons = append(t.data.Lessons, summary)
	}

	if summary.Status != types.StatusComplete {
		return
	}
	if _, ok := t.completed[summary.Key]; !ok {
		t.completed[summary.Key] = struct{}{}
		t.data.CompletedLessons = append(t.data.CompletedLessons, summary.Key)
	}
}

// Save writes the progress file atomically
func (t *Tracker) Save() error {
	t.mu.RLock()
	snapshot := t.snapshotLocked()
	t.mu.RUnlock()

	if err := output.WriteJSONFile(t.path, snapshot); err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to save progress")
	}
	return nil
}

// Snapshot returns a copy of the progress state
func (t *Tracker) Snapshot() types.ExtractionProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() types.ExtractionProgress {
	cp := t.data
	cp.CompletedLessons = append([]string{}, t.data.CompletedLessons...)
	cp.Lessons = append([]types.LessonSummary{}, t.data.Lessons...)
	return cp
}

// Counts returns the number of completed and recorded lessons
func (t *Tracker) Counts() (completed, recorded int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.completed), len(t.data.Lessons)
}

// Pending filters lessons down to the ones not completed yet, keeping order
func (t *Tracker) Pending(lessons []types.LessonMeta) []types.LessonMeta {
	pending := make([]types.LessonMeta, 0, len(lessons))
	for _, l := range lessons {
		if !t.IsCompleted(l.Key) {
			pending = append(pending, l)
		}
	}
	return pending
}

// Incomplete returns the recorded lessons that did not complete, sorted by key
func (t *Tracker) Incomplete() []types.LessonSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []types.LessonSummary
	for _, s := range t.data.Lessons {
		if _, ok := t.completed[s.Key]; !ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
