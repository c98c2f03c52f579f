// pkg/types/types_test.go
package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestExtractionStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  ExtractionStatus
		isValid bool
	}{
		{"partial status", StatusPartial, true},
		{"complete status", StatusComplete, true},
		{"invalid status", ExtractionStatus("done"), false},
		{"empty status", ExtractionStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.isValid {
				t.Errorf("ExtractionStatus.IsValid() = %v, want %v", got, tt.isValid)
			}
		})
	}
}

func newLesson() *LessonExtraction {
	return NewLessonExtraction(LessonMeta{
		Key:      "a1-l1",
		URL:      "https://app.dataqa.example/lesson/a1/l1",
		Platform: "dataqa",
	})
}

func TestAppendAssignsContiguousIndices(t *testing.T) {
	le := newLesson()
	if le.Status != StatusPartial {
		t.Fatalf("new extraction should be partial, got %s", le.Status)
	}

	for i, id := range []string{"vocab", "mcq", "feedback"} {
		rec, err := le.Append(ScreenRecord{TypeID: id, Index: 42})
		if err != nil {
			t.Fatalf("Append(%s) failed: %v", id, err)
		}
		if rec.Index != i {
			t.Errorf("Append(%s) index = %d, want %d", id, rec.Index, i)
		}
		if rec.Timestamp.IsZero() {
			t.Errorf("Append(%s) should stamp the record", id)
		}
	}
	if err := le.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got := le.CountByType("mcq"); got != 1 {
		t.Errorf("CountByType(mcq) = %d, want 1", got)
	}
}

func TestCompleteFreezesExtraction(t *testing.T) {
	le := newLesson()
	le.Append(ScreenRecord{TypeID: "vocab"})
	le.Abort(AbortStuck)
	le.Complete()

	if le.Status != StatusComplete || le.AbortReason != AbortNone {
		t.Errorf("unexpected state after Complete: %s/%s", le.Status, le.AbortReason)
	}
	if _, err := le.Append(ScreenRecord{TypeID: "mcq"}); !errors.Is(err, ErrExtractionComplete) {
		t.Errorf("Append after Complete = %v, want ErrExtractionComplete", err)
	}
	if err := le.SetValidation(0, Validation{Status: ValidationAccepted}); !errors.Is(err, ErrExtractionComplete) {
		t.Errorf("SetValidation after Complete = %v, want ErrExtractionComplete", err)
	}

	le.Abort(AbortCeiling)
	if le.AbortReason != AbortNone {
		t.Errorf("Abort should not touch a complete extraction, got %s", le.AbortReason)
	}
}

func TestSetValidation(t *testing.T) {
	le := newLesson()
	le.Append(ScreenRecord{TypeID: "vocab"})

	if err := le.SetValidation(0, Validation{Status: ValidationFlagged, Note: "typo"}); err != nil {
		t.Fatalf("SetValidation failed: %v", err)
	}
	if v := le.Screens[0].Validation; v == nil || v.Status != ValidationFlagged || v.Note != "typo" {
		t.Errorf("unexpected validation %+v", v)
	}
	if err := le.SetValidation(3, Validation{}); err == nil {
		t.Error("expected out of range error")
	}
}

func TestValidate(t *testing.T) {
	parent := 0
	bad := 5

	tests := []struct {
		name    string
		mutate  func(le *LessonExtraction)
		wantErr string
	}{
		{"valid", func(le *LessonExtraction) {}, ""},
		{"bad status", func(le *LessonExtraction) { le.Status = "done" }, "invalid status"},
		{"missing key", func(le *LessonExtraction) { le.Lesson.Key = "" }, "lesson key"},
		{"gap in indices", func(le *LessonExtraction) { le.Screens[1].Index = 7 }, "non-contiguous"},
		{"missing type", func(le *LessonExtraction) { le.Screens[0].TypeID = "" }, "no type id"},
		{"forward parent", func(le *LessonExtraction) { le.Screens[1].ParentScreen = &bad }, "invalid parent"},
		{"second feedback for one parent", func(le *LessonExtraction) {
			le.Append(ScreenRecord{TypeID: "feedback", ParentScreen: &parent})
		}, "already has a linked record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			le := newLesson()
			le.Append(ScreenRecord{TypeID: "mcq"})
			le.Append(ScreenRecord{TypeID: "feedback", ParentScreen: &parent})
			tt.mutate(le)

			err := le.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	le := newLesson()
	le.Append(ScreenRecord{TypeID: "vocab"})

	cp := le.Clone()
	le.Append(ScreenRecord{TypeID: "mcq"})
	le.Screens[0].TypeID = "changed"

	if len(cp.Screens) != 1 || cp.Screens[0].TypeID != "vocab" {
		t.Errorf("clone shares state with the original: %+v", cp.Screens)
	}
}

func TestSummaryOf(t *testing.T) {
	le := newLesson()
	le.Lesson.Title = "Greetings"
	le.Append(ScreenRecord{TypeID: "vocab"})
	le.Abort(AbortStuck)

	s := SummaryOf(le, "out/a1-l1.json")
	if s.Key != "a1-l1" || s.Title != "Greetings" || s.Screens != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.Status != StatusPartial || s.AbortReason != AbortStuck || s.File != "out/a1-l1.json" {
		t.Errorf("unexpected summary status %+v", s)
	}
}

func TestLessonExtractionJSON(t *testing.T) {
	le := newLesson()
	parent := 0
	le.Append(ScreenRecord{TypeID: "mcq", TypeName: "Multiple choice", Content: map[string]string{"prompt": "Pick"}})
	le.Append(ScreenRecord{TypeID: "feedback", ParentScreen: &parent})
	le.Complete()

	data, err := le.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	out := string(data)
	for _, key := range []string{`"lesson"`, `"screens"`, `"extractedAt"`, `"status": "complete"`, `"typeId"`, `"parentScreen": 0`} {
		if !strings.Contains(out, key) {
			t.Errorf("JSON should contain %s:\n%s", key, out)
		}
	}
	if strings.Contains(out, "abortReason") {
		t.Errorf("complete lesson should omit abortReason:\n%s", out)
	}

	partial := newLesson()
	partial.Abort(AbortCeiling)
	data, _ = json.Marshal(partial)
	if !strings.Contains(string(data), `"abortReason":"ceiling"`) {
		t.Errorf("partial lesson should carry its abort reason: %s", data)
	}
}

func TestSolveResultString(t *testing.T) {
	tests := []struct {
		result   SolveResult
		expected string
	}{
		{SolveResult{Solved: true, Method: "choice"}, "solved=true method=choice"},
		{SolveResult{Solved: true, Method: "complete", EndsLesson: true}, "solved=true method=complete ends_lesson"},
		{SolveResult{Method: "none"}, "solved=false method=none"},
	}
	for _, tt := range tests {
		if got := tt.result.String(); got != tt.expected {
			t.Errorf("String() = %q, want %q", got, tt.expected)
		}
	}
}
