// internal/checkpoint/checkpoint.go

// Package checkpoint persists a lesson extraction while it runs. Every save
// overwrites one partial file; finalizing writes the lesson file and removes
// the partial one.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/valpere/LessonFlow/internal/output"
	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// AutoSaver owns the files of one lesson run
type AutoSaver struct {
	outputDir string
	logger    utils.Logger

	mu          sync.Mutex
	sessionID   string
	partialPath string
	finalPath   string
	saves       int
	finalized   bool
}

// New creates an AutoSaver writing under outputDir
func New(outputDir string, logger utils.Logger) *AutoSaver {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &AutoSaver{
		outputDir: outputDir,
		logger:    logger.WithField("component", "checkpoint"),
	}
}

// SessionID derives a run identifier from the lesson key
func SessionID(lessonKey string) string {
	return fmt.Sprintf("%s-%s", utils.CleanFileName(lessonKey), uuid.NewString()[:8])
}

// PartialPath is where checkpoints of a session are written
func PartialPath(outputDir, lessonKey, sessionID string) string {
	name := fmt.Sprintf("%s.%s.partial.json", utils.CleanFileName(lessonKey), sessionID)
	return filepath.Join(outputDir, output.PartialDirName, name)
}

// FinalPath is where the finished lesson is written:
// <outputDir>/<platform>/<level>/<key>.json
func FinalPath(outputDir string, meta types.LessonMeta) string {
	parts := []string{outputDir}
	if meta.Platform != "" {
		parts = append(parts, utils.CleanFileName(meta.Platform))
	}
	if meta.Level != "" {
		parts = append(parts, utils.CleanFileName(meta.Level))
	}
	parts = append(parts, utils.CleanFileName(meta.Key)+".json")
	return filepath.Join(parts...)
}

// Init starts a new session for the lesson and returns its id
func (a *AutoSaver) Init(meta types.LessonMeta) (string, error) {
	if meta.Key == "" {
		return "", fmt.Errorf("lesson key is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sessionID = SessionID(meta.Key)
	a.partialPath = PartialPath(a.outputDir, meta.Key, a.sessionID)
	a.finalPath = FinalPath(a.outputDir, meta)
	a.saves = 0
	a.finalized = false

	a.logger.Debugf("session %s checkpoints to %s", a.sessionID, a.partialPath)
	return a.sessionID, nil
}

// SessionID returns the current session id
func (a *AutoSaver) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// PartialPath returns the checkpoint path of the current session
func (a *AutoSaver) PartialPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.partialPath
}

// Saves returns the number of checkpoints written in this session
func (a *AutoSaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

// Save overwrites the partial file with the snapshot
func (a *AutoSaver) Save(le *types.LessonExtraction) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessionID == "" {
		return fmt.Errorf("checkpoint session not initialized")
	}
	if a.finalized {
		return nil
	}
	if err := output.WriteJSONFile(a.partialPath, le); err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to save checkpoint")
	}
	a.saves++
	return nil
}

// Finalize writes the lesson file and removes the checkpoint. The file is
// written once per session; later calls return its path untouched.
func (a *AutoSaver) Finalize(le *types.LessonExtraction) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessionID == "" {
		return "", fmt.Errorf("checkpoint session not initialized")
	}
	if a.finalized {
		return a.finalPath, nil
	}
	if err := output.WriteJSONFile(a.finalPath, le); err != nil {
		return "", utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to write lesson file")
	}
	if err := os.Remove(a.partialPath); err != nil && !os.IsNotExist(err) {
		a.logger.Warnf("failed to remove checkpoint %s: %v", a.partialPath, err)
	}
	a.logger.Infof("lesson %s written to %s (%d screens, %s)",
		le.Lesson.Key, a.finalPath, len(le.Screens), le.Status)
	a.finalized = true
	return a.finalPath, nil
}
