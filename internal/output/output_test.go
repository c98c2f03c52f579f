// internal/output/output_test.go
package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/LessonFlow/internal/config"
	"github.com/valpere/LessonFlow/pkg/types"
)

func sampleLesson(key string, status types.ExtractionStatus) *types.LessonExtraction {
	le := types.NewLessonExtraction(types.LessonMeta{
		Key:      key,
		Title:    "Greetings",
		URL:      "https://app.dataqa.example/lesson/a1/" + key,
		Platform: "dataqa",
		Level:    "a1",
	})
	le.Append(types.ScreenRecord{TypeID: "vocab", TypeName: "Vocabulary card", Content: map[string]string{"word": "hola"}})
	rec, _ := le.Append(types.ScreenRecord{TypeID: "mcq", TypeName: "Multiple choice", Content: map[string]interface{}{"prompt": "Pick"}})
	parent := rec.Index
	le.Append(types.ScreenRecord{TypeID: "feedback", TypeName: "Feedback", Content: map[string]string{"tip": "Nice"}, ParentScreen: &parent})
	if status == types.StatusComplete {
		le.Complete()
	} else {
		le.Abort(types.AbortStuck)
	}
	return le
}

func TestWriteJSONFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataqa", "a1", "lesson.json")

	if err := WriteJSONFile(path, sampleLesson("l1", types.StatusComplete)); err != nil {
		t.Fatalf("WriteJSONFile failed: %v", err)
	}
	if err := WriteJSONFile(path, sampleLesson("l1", types.StatusComplete)); err != nil {
		t.Fatalf("second WriteJSONFile failed: %v", err)
	}

	var got types.LessonExtraction
	if err := ReadJSONFile(path, &got); err != nil {
		t.Fatalf("ReadJSONFile failed: %v", err)
	}
	if got.Status != types.StatusComplete || len(got.Screens) != 3 {
		t.Errorf("unexpected document: status=%s screens=%d", got.Status, len(got.Screens))
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteJSONFileUnencodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := WriteJSONFile(path, map[string]interface{}{"ch": make(chan int)}); err == nil {
		t.Fatal("expected encode error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written on encode failure")
	}
}

func TestSQLiteIndex(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "index", "lessons.db")

	ix, err := NewIndex(ctx, IndexOptions{Driver: DriverSQLite, DSN: dbPath}, nil)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	defer ix.Close()

	partial := sampleLesson("l1", types.StatusPartial)
	if err := ix.Publish(ctx, partial, "out/l1.json"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	summary, ok, err := ix.Lesson(ctx, "l1")
	if err != nil || !ok {
		t.Fatalf("Lesson lookup failed: ok=%v err=%v", ok, err)
	}
	if summary.Status != types.StatusPartial || summary.AbortReason != types.AbortStuck {
		t.Errorf("unexpected summary %+v", summary)
	}

	// republishing replaces rows instead of duplicating them
	complete := sampleLesson("l1", types.StatusComplete)
	if err := ix.Publish(ctx, complete, "out/l1.json"); err != nil {
		t.Fatalf("second Publish failed: %v", err)
	}
	if err := ix.Publish(ctx, sampleLesson("l2", types.StatusComplete), "out/l2.json"); err != nil {
		t.Fatalf("Publish l2 failed: %v", err)
	}

	summary, _, _ = ix.Lesson(ctx, "l1")
	if summary.Status != types.StatusComplete || summary.AbortReason != "" || summary.Screens != 3 {
		t.Errorf("expected replaced complete summary, got %+v", summary)
	}

	counts, err := ix.TypeCounts(ctx, "l1")
	if err != nil {
		t.Fatalf("TypeCounts failed: %v", err)
	}
	if counts["vocab"] != 1 || counts["mcq"] != 1 || counts["feedback"] != 1 {
		t.Errorf("unexpected type counts %v", counts)
	}

	stats, err := ix.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Lessons != 2 || stats.Screens != 6 || stats.Completed != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Driver != DriverSQLite {
		t.Errorf("unexpected driver %q", stats.Driver)
	}

	if _, ok, err := ix.Lesson(ctx, "missing"); err != nil || ok {
		t.Errorf("expected missing lesson, got ok=%v err=%v", ok, err)
	}
}

func TestIndexRebind(t *testing.T) {
	pg := &Index{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("unexpected postgres rebind: %s", got)
	}
	lite := &Index{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite query should be unchanged: %s", got)
	}
	if !strings.Contains(pg.upsertLessonQuery(), "ON CONFLICT (lesson_key)") {
		t.Error("postgres upsert should use ON CONFLICT")
	}
	if !strings.HasPrefix((&Index{driver: DriverMySQL}).upsertLessonQuery(), "REPLACE INTO") {
		t.Error("mysql upsert should use REPLACE INTO")
	}
}

func TestNewIndexErrors(t *testing.T) {
	if _, err := NewIndex(context.Background(), IndexOptions{Driver: DriverSQLite}, nil); err == nil {
		t.Error("expected error for empty DSN")
	}
	if _, err := NewIndex(context.Background(), IndexOptions{Driver: "oracle", DSN: "x"}, nil); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestLessonDocument(t *testing.T) {
	doc, err := lessonDocument(sampleLesson("l1", types.StatusComplete), "out/l1.json")
	if err != nil {
		t.Fatalf("lessonDocument failed: %v", err)
	}
	if doc[0].Key != "_id" || doc[0].Value != "l1" {
		t.Errorf("expected _id first, got %v", doc[0])
	}
	keys := make(map[string]bool)
	for _, e := range doc {
		keys[e.Key] = true
	}
	for _, k := range []string{"lesson", "screens", "extractedAt", "status", "file"} {
		if !keys[k] {
			t.Errorf("document is missing %q", k)
		}
	}
}

func TestExportWorkbook(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "output")
	if err := WriteJSONFile(filepath.Join(outDir, "dataqa", "a1", "l2.json"), sampleLesson("l2", types.StatusComplete)); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSONFile(filepath.Join(outDir, "dataqa", "a1", "l1.json"), sampleLesson("l1", types.StatusPartial)); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSONFile(filepath.Join(outDir, PartialDirName, "l3.s.partial.json"), sampleLesson("l3", types.StatusPartial)); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSONFile(filepath.Join(outDir, "dataqa-a1.json"), types.ExtractionProgress{CompletedLessons: []string{"l2"}}); err != nil {
		t.Fatal(err)
	}

	lessons, err := LoadLessons(outDir)
	if err != nil {
		t.Fatalf("LoadLessons failed: %v", err)
	}
	if len(lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(lessons))
	}

	path := filepath.Join(dir, "review.xlsx")
	if err := ExportWorkbook(path, lessons); err != nil {
		t.Fatalf("ExportWorkbook failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	first, err := f.GetCellValue(lessonsSheet, "A2")
	if err != nil || first != "l1" {
		t.Errorf("expected lessons sorted by key, got %q (%v)", first, err)
	}
	rows, err := f.GetRows(screensSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 7 {
		t.Errorf("expected header plus 6 screen rows, got %d", len(rows))
	}
	if parent := rows[3][4]; parent != "1" {
		t.Errorf("expected feedback parent 1, got %q", parent)
	}
}

type stubMirror struct {
	published []string
	err       error
	closed    bool
}

func (s *stubMirror) Publish(ctx context.Context, le *types.LessonExtraction, file string) error {
	s.published = append(s.published, le.Lesson.Key)
	return s.err
}

func (s *stubMirror) Close() error {
	s.closed = true
	return nil
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(ctx, &config.OutputConfig{}, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if m.Index() != nil {
		t.Error("index should be disabled without a DSN")
	}
	if err := m.Publish(ctx, sampleLesson("l1", types.StatusComplete), "f"); err != nil {
		t.Errorf("publish without mirrors should succeed: %v", err)
	}

	ok := &stubMirror{}
	failing := &stubMirror{err: errors.New("down")}
	var hooked []string
	m.OnError(func(name string, err error) { hooked = append(hooked, name) })
	m.Add("failing", failing)
	m.Add("ok", ok)
	if m.Len() != 2 {
		t.Fatalf("expected two mirrors, got %d", m.Len())
	}

	err = m.Publish(ctx, sampleLesson("l1", types.StatusComplete), "f")
	if err == nil || !strings.Contains(err.Error(), "failing: down") {
		t.Errorf("expected joined mirror error, got %v", err)
	}
	if len(ok.published) != 1 {
		t.Error("a failing mirror must not stop the others")
	}

	// the breaker suspends the failing mirror after three failures
	for i := 0; i < 4; i++ {
		m.Publish(ctx, sampleLesson("l1", types.StatusComplete), "f")
	}
	if len(failing.published) != 3 {
		t.Errorf("expected the failing mirror to be called 3 times, got %d", len(failing.published))
	}
	if len(ok.published) != 5 {
		t.Errorf("expected the healthy mirror to be called 5 times, got %d", len(ok.published))
	}
	if len(hooked) != 3 || hooked[0] != "failing" {
		t.Errorf("unexpected error hook calls %v", hooked)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !ok.closed || !failing.closed {
		t.Error("expected every mirror closed")
	}

	withIndex, err := NewManager(ctx, &config.OutputConfig{
		Index: config.IndexConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "ix.db")},
	}, nil)
	if err != nil {
		t.Fatalf("NewManager with index failed: %v", err)
	}
	defer withIndex.Close()
	if withIndex.Index() == nil {
		t.Fatal("expected index mirror")
	}
	if err := withIndex.Publish(ctx, sampleLesson("l9", types.StatusComplete), "f"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if _, found, _ := withIndex.Index().Lesson(ctx, "l9"); !found {
		t.Error("expected lesson in index")
	}
}
