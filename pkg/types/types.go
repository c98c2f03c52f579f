// pkg/types/types.go
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExtractionStatus represents the state of a lesson extraction
type ExtractionStatus string

const (
	StatusPartial  ExtractionStatus = "partial"
	StatusComplete ExtractionStatus = "complete"
)

// ValidStatuses returns all valid extraction status values
func ValidStatuses() []ExtractionStatus {
	return []ExtractionStatus{StatusPartial, StatusComplete}
}

// IsValid checks if the status is a valid value
func (s ExtractionStatus) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// AbortReason records why a lesson run stopped before reaching the lesson end.
// It is empty for completed runs.
type AbortReason string

const (
	AbortNone       AbortReason = ""
	AbortStuck      AbortReason = "stuck"
	AbortCeiling    AbortReason = "ceiling"
	AbortDeclined   AbortReason = "declined"
	AbortNavigation AbortReason = "navigation"
	AbortFatal      AbortReason = "fatal"
)

// ValidationStatus is the outcome of a human review of a screen record
type ValidationStatus string

const (
	ValidationAccepted ValidationStatus = "accepted"
	ValidationFlagged  ValidationStatus = "flagged"
	ValidationSkipped  ValidationStatus = "skipped"
)

// Validation is attached to a screen record after review
type Validation struct {
	Status ValidationStatus `json:"status"`
	Note   string           `json:"note,omitempty"`
	At     time.Time        `json:"at"`
}

// LessonMeta identifies a lesson on a platform
type LessonMeta struct {
	Key      string `json:"key"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
	Level    string `json:"level,omitempty"`
}

// ScreenRecord is one recorded lesson screen.
// Content holds the per-type structure produced by the extractor.
type ScreenRecord struct {
	Index        int         `json:"index"`
	TypeID       string      `json:"typeId"`
	TypeName     string      `json:"typeName"`
	Content      interface{} `json:"content"`
	Timestamp    time.Time   `json:"timestamp"`
	Validation   *Validation `json:"validation,omitempty"`
	ParentScreen *int        `json:"parentScreen,omitempty"`
}

// LessonExtraction is the output document of one lesson run
type LessonExtraction struct {
	Lesson      LessonMeta       `json:"lesson"`
	Screens     []ScreenRecord   `json:"screens"`
	ExtractedAt time.Time        `json:"extractedAt"`
	Status      ExtractionStatus `json:"status"`
	AbortReason AbortReason      `json:"abortReason,omitempty"`
}

// ErrExtractionComplete is returned when mutating a completed extraction
var ErrExtractionComplete = fmt.Errorf("extraction is complete and can no longer be modified")

// NewLessonExtraction creates an empty, partial extraction for a lesson
func NewLessonExtraction(meta LessonMeta) *LessonExtraction {
	return &LessonExtraction{
		Lesson:      meta,
		Screens:     make([]ScreenRecord, 0),
		ExtractedAt: time.Now(),
		Status:      StatusPartial,
	}
}

// Append adds a screen record, assigning the next contiguous index.
// The returned record carries the assigned index.
func (le *LessonExtraction) Append(rec ScreenRecord) (ScreenRecord, error) {
	if le.Status == StatusComplete {
		return rec, ErrExtractionComplete
	}
	rec.Index = len(le.Screens)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	le.Screens = append(le.Screens, rec)
	return rec, nil
}

// SetValidation attaches a review result to a recorded screen
func (le *LessonExtraction) SetValidation(index int, v Validation) error {
	if le.Status == StatusComplete {
		return ErrExtractionComplete
	}
	if index < 0 || index >= len(le.Screens) {
		return fmt.Errorf("screen index %d out of range", index)
	}
	le.Screens[index].Validation = &v
	return nil
}

// Complete marks the extraction complete. Further appends fail.
func (le *LessonExtraction) Complete() {
	le.Status = StatusComplete
	le.AbortReason = AbortNone
	le.ExtractedAt = time.Now()
}

// Abort keeps the extraction partial and records why
func (le *LessonExtraction) Abort(reason AbortReason) {
	if le.Status == StatusComplete {
		return
	}
	le.AbortReason = reason
	le.ExtractedAt = time.Now()
}

// Clone returns a deep enough copy for persistence while the run continues
func (le *LessonExtraction) Clone() *LessonExtraction {
	cp := *le
	cp.Screens = make([]ScreenRecord, len(le.Screens))
	copy(cp.Screens, le.Screens)
	return &cp
}

// CountByType returns the number of records with the given type id
func (le *LessonExtraction) CountByType(typeID string) int {
	n := 0
	for _, s := range le.Screens {
		if s.TypeID == typeID {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants of an extraction
func (le *LessonExtraction) Validate() error {
	if !le.Status.IsValid() {
		return fmt.Errorf("invalid status: %q", le.Status)
	}
	if le.Lesson.Key == "" {
		return fmt.Errorf("lesson key is required")
	}
	linked := make(map[int]bool)
	for i, s := range le.Screens {
		if s.Index != i {
			return fmt.Errorf("screen %d has non-contiguous index %d", i, s.Index)
		}
		if s.TypeID == "" {
			return fmt.Errorf("screen %d has no type id", i)
		}
		if s.ParentScreen != nil && (*s.ParentScreen < 0 || *s.ParentScreen >= i) {
			return fmt.Errorf("screen %d has invalid parent %d", i, *s.ParentScreen)
		}
		if s.ParentScreen != nil {
			if linked[*s.ParentScreen] {
				return fmt.Errorf("screen %d: parent %d already has a linked record", i, *s.ParentScreen)
			}
			linked[*s.ParentScreen] = true
		}
	}
	return nil
}

// LessonSummary is the progress-file view of a finished lesson
type LessonSummary struct {
	Key         string           `json:"key"`
	Title       string           `json:"title,omitempty"`
	URL         string           `json:"url"`
	Status      ExtractionStatus `json:"status"`
	AbortReason AbortReason      `json:"abortReason,omitempty"`
	Screens     int              `json:"screens"`
	File        string           `json:"file,omitempty"`
	ExtractedAt time.Time        `json:"extractedAt"`
}

// SummaryOf builds a lesson summary from an extraction
func SummaryOf(le *LessonExtraction, file string) LessonSummary {
	return LessonSummary{
		Key:         le.Lesson.Key,
		Title:       le.Lesson.Title,
		URL:         le.Lesson.URL,
		Status:      le.Status,
		AbortReason: le.AbortReason,
		Screens:     len(le.Screens),
		File:        file,
		ExtractedAt: le.ExtractedAt,
	}
}

// ExtractionProgress is the persisted batch state for one platform and level
type ExtractionProgress struct {
	Platform         string          `json:"platform,omitempty"`
	Level            string          `json:"level,omitempty"`
	CompletedLessons []string        `json:"completedLessons"`
	Lessons          []LessonSummary `json:"lessons"`
}

// SolveResult reports how a solver handled a screen. Diagnostic only.
type SolveResult struct {
	Solved     bool   `json:"solved"`
	Method     string `json:"method"`
	EndsLesson bool   `json:"endsLesson,omitempty"`
}

// String returns a compact representation for logs
func (r SolveResult) String() string {
	if r.EndsLesson {
		return fmt.Sprintf("solved=%t method=%s ends_lesson", r.Solved, r.Method)
	}
	return fmt.Sprintf("solved=%t method=%s", r.Solved, r.Method)
}

// ToJSON converts an extraction to indented JSON
func (le *LessonExtraction) ToJSON() ([]byte, error) {
	return json.MarshalIndent(le, "", "  ")
}
