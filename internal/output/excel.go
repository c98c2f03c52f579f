// internal/output/excel.go
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/LessonFlow/pkg/types"
)

const (
	lessonsSheet = "Lessons"
	screensSheet = "Screens"

	// Excel rejects cells longer than this
	maxCellLength = 32767
)

var (
	lessonHeaders = []interface{}{"Key", "Title", "Level", "Status", "Abort reason", "Screens", "Extracted at", "URL"}
	screenHeaders = []interface{}{"Lesson", "Index", "Type", "Type name", "Parent", "Validation", "Content"}
)

// ExportWorkbook writes a review spreadsheet with one row per lesson and
// one row per recorded screen
func ExportWorkbook(path string, lessons []*types.LessonExtraction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), lessonsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(screensSheet); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := writeSheetRow(f, lessonsSheet, 1, lessonHeaders); err != nil {
		return err
	}
	if err := writeSheetRow(f, screensSheet, 1, screenHeaders); err != nil {
		return err
	}
	for _, sheet := range []string{lessonsSheet, screensSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
			return err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return err
		}
	}

	sorted := make([]*types.LessonExtraction, len(lessons))
	copy(sorted, lessons)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Lesson.Key < sorted[j].Lesson.Key })

	screenRow := 2
	for i, le := range sorted {
		row := []interface{}{
			le.Lesson.Key, le.Lesson.Title, le.Lesson.Level, string(le.Status),
			string(le.AbortReason), len(le.Screens), le.ExtractedAt.UTC().Format(time.RFC3339), le.Lesson.URL,
		}
		if err := writeSheetRow(f, lessonsSheet, i+2, row); err != nil {
			return err
		}
		for _, rec := range le.Screens {
			if err := writeSheetRow(f, screensSheet, screenRow, screenRowValues(le.Lesson.Key, rec)); err != nil {
				return err
			}
			screenRow++
		}
	}

	if err := f.SetColWidth(lessonsSheet, "A", "B", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(screensSheet, "G", "G", 80); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func screenRowValues(lessonKey string, rec types.ScreenRecord) []interface{} {
	parent := ""
	if rec.ParentScreen != nil {
		parent = fmt.Sprintf("%d", *rec.ParentScreen)
	}
	validation := ""
	if rec.Validation != nil {
		validation = string(rec.Validation.Status)
	}
	content := ""
	if data, err := json.Marshal(rec.Content); err == nil {
		content = string(data)
	}
	if len(content) > maxCellLength {
		content = strings.ToValidUTF8(content[:maxCellLength], "")
	}
	return []interface{}{lessonKey, rec.Index, rec.TypeID, rec.TypeName, parent, validation, content}
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// LoadLessons reads every lesson JSON file under dir. Partial checkpoints
// and JSON files that are not lesson documents are skipped.
func LoadLessons(dir string) ([]*types.LessonExtraction, error) {
	var lessons []*types.LessonExtraction
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == PartialDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".json" || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		var le types.LessonExtraction
		if err := ReadJSONFile(path, &le); err != nil || le.Lesson.Key == "" {
			return nil
		}
		lessons = append(lessons, &le)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lessons, nil
}
