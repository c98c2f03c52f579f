// internal/output/index.go
package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// Index is a relational mirror of finalized lessons. One row per lesson and
// one row per recorded screen; republishing a lesson replaces its rows.
type Index struct {
	db     *sql.DB
	driver string
	dsn    string
	logger utils.Logger
}

var _ Mirror = (*Index)(nil)

// NewIndex opens the database and creates the schema when missing
func NewIndex(ctx context.Context, opts IndexOptions, logger utils.Logger) (*Index, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("index DSN is required")
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	var (
		db  *sql.DB
		err error
	)
	switch opts.Driver {
	case DriverSQLite, "":
		opts.Driver = DriverSQLite
		db, err = openSQLite(opts.DSN)
	case DriverPostgres:
		db, err = openPostgres(opts.DSN)
	case DriverMySQL:
		db, err = openMySQL(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported index driver: %s", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	ix := &Index{
		db:     db,
		driver: opts.Driver,
		dsn:    opts.DSN,
		logger: logger.WithField("component", "index"),
	}
	if err := ix.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) createSchema(ctx context.Context) error {
	text := "TEXT"
	if ix.driver == DriverMySQL {
		text = "LONGTEXT"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS lessons (
			lesson_key VARCHAR(255) NOT NULL PRIMARY KEY,
			platform VARCHAR(64) NOT NULL,
			level VARCHAR(64) NOT NULL,
			title ` + text + `,
			url ` + text + ` NOT NULL,
			status VARCHAR(16) NOT NULL,
			abort_reason VARCHAR(32),
			screens INTEGER NOT NULL,
			file ` + text + `,
			extracted_at VARCHAR(40) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS screens (
			lesson_key VARCHAR(255) NOT NULL,
			screen_index INTEGER NOT NULL,
			type_id VARCHAR(64) NOT NULL,
			type_name VARCHAR(255),
			content ` + text + `,
			parent_screen INTEGER,
			validation VARCHAR(16),
			recorded_at VARCHAR(40) NOT NULL,
			PRIMARY KEY (lesson_key, screen_index)
		)`,
	}
	for _, stmt := range statements {
		if _, err := ix.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for drivers that number them
func (ix *Index) rebind(query string) string {
	if ix.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (ix *Index) upsertLessonQuery() string {
	cols := "lesson_key, platform, level, title, url, status, abort_reason, screens, file, extracted_at"
	values := "?, ?, ?, ?, ?, ?, ?, ?, ?, ?"
	switch ix.driver {
	case DriverPostgres:
		return ix.rebind(`INSERT INTO lessons (` + cols + `) VALUES (` + values + `)
			ON CONFLICT (lesson_key) DO UPDATE SET
				platform = EXCLUDED.platform, level = EXCLUDED.level, title = EXCLUDED.title,
				url = EXCLUDED.url, status = EXCLUDED.status, abort_reason = EXCLUDED.abort_reason,
				screens = EXCLUDED.screens, file = EXCLUDED.file, extracted_at = EXCLUDED.extracted_at`)
	case DriverMySQL:
		return `REPLACE INTO lessons (` + cols + `) VALUES (` + values + `)`
	default:
		return `INSERT OR REPLACE INTO lessons (` + cols + `) VALUES (` + values + `)`
	}
}

// Publish replaces the lesson and its screens in one transaction
func (ix *Index) Publish(ctx context.Context, le *types.LessonExtraction, file string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lesson := le.Lesson
	if _, err := tx.ExecContext(ctx, ix.upsertLessonQuery(),
		lesson.Key, lesson.Platform, lesson.Level, lesson.Title, lesson.URL,
		string(le.Status), nullString(string(le.AbortReason)), len(le.Screens), file,
		le.ExtractedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to upsert lesson %s: %w", lesson.Key, err)
	}

	if _, err := tx.ExecContext(ctx, ix.rebind(`DELETE FROM screens WHERE lesson_key = ?`), lesson.Key); err != nil {
		return fmt.Errorf("failed to clear screens of %s: %w", lesson.Key, err)
	}

	stmt, err := tx.PrepareContext(ctx, ix.rebind(`INSERT INTO screens
		(lesson_key, screen_index, type_id, type_name, content, parent_screen, validation, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range le.Screens {
		content, err := json.Marshal(rec.Content)
		if err != nil {
			return fmt.Errorf("failed to encode screen %d: %w", rec.Index, err)
		}
		var parent interface{}
		if rec.ParentScreen != nil {
			parent = *rec.ParentScreen
		}
		var validation interface{}
		if rec.Validation != nil {
			validation = string(rec.Validation.Status)
		}
		if _, err := stmt.ExecContext(ctx,
			lesson.Key, rec.Index, rec.TypeID, rec.TypeName, string(content),
			parent, validation, rec.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("failed to insert screen %d: %w", rec.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lesson %s: %w", lesson.Key, err)
	}
	ix.logger.Debugf("indexed %s with %d screens", lesson.Key, len(le.Screens))
	return nil
}

// Lesson returns the indexed summary of a lesson
func (ix *Index) Lesson(ctx context.Context, key string) (types.LessonSummary, bool, error) {
	var (
		s           types.LessonSummary
		status      string
		abort       sql.NullString
		title, file sql.NullString
		extractedAt string
	)
	err := ix.db.QueryRowContext(ctx, ix.rebind(`SELECT lesson_key, title, url, status, abort_reason, screens, file, extracted_at
		FROM lessons WHERE lesson_key = ?`), key).
		Scan(&s.Key, &title, &s.URL, &status, &abort, &s.Screens, &file, &extractedAt)
	if err == sql.ErrNoRows {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("failed to query lesson %s: %w", key, err)
	}
	s.Title = title.String
	s.File = file.String
	s.Status = types.ExtractionStatus(status)
	s.AbortReason = types.AbortReason(abort.String)
	if t, err := time.Parse(time.RFC3339Nano, extractedAt); err == nil {
		s.ExtractedAt = t
	}
	return s, true, nil
}

// TypeCounts returns the number of recorded screens per type id of a lesson
func (ix *Index) TypeCounts(ctx context.Context, key string) (map[string]int, error) {
	rows, err := ix.db.QueryContext(ctx, ix.rebind(`SELECT type_id, COUNT(*) FROM screens
		WHERE lesson_key = ? GROUP BY type_id`), key)
	if err != nil {
		return nil, fmt.Errorf("failed to query screen types: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typeID string
		var n int
		if err := rows.Scan(&typeID, &n); err != nil {
			return nil, err
		}
		counts[typeID] = n
	}
	return counts, rows.Err()
}

// Stats returns row counts and connection statistics
func (ix *Index) Stats(ctx context.Context) (IndexStats, error) {
	stats := IndexStats{Driver: ix.driver}
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&stats.Lessons); err != nil {
		return stats, fmt.Errorf("failed to count lessons: %w", err)
	}
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM screens`).Scan(&stats.Screens); err != nil {
		return stats, fmt.Errorf("failed to count screens: %w", err)
	}
	if err := ix.db.QueryRowContext(ctx, ix.rebind(`SELECT COUNT(*) FROM lessons WHERE status = ?`),
		string(types.StatusComplete)).Scan(&stats.Completed); err != nil {
		return stats, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	stats.OpenConns = ix.db.Stats().OpenConnections
	if ix.driver == DriverSQLite {
		stats.DatabaseBytes = sqliteFileSize(ix.dsn)
	}
	return stats, nil
}

// Close closes the database
func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	err := ix.db.Close()
	ix.db = nil
	return err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
