// internal/output/types.go

// Package output persists lesson extractions: atomic JSON files, and the
// optional mirrors (relational index, MongoDB documents, spreadsheet export).
package output

import (
	"context"

	"github.com/valpere/LessonFlow/pkg/types"
)

// Mirror receives every finalized lesson after its JSON file is written
type Mirror interface {
	Publish(ctx context.Context, le *types.LessonExtraction, file string) error
	Close() error
}

// IndexOptions configures the relational lesson index
type IndexOptions struct {
	// Driver is sqlite3, postgres or mysql
	Driver string
	DSN    string
}

// IndexStats summarizes the index contents
type IndexStats struct {
	Driver        string `json:"driver"`
	Lessons       int    `json:"lessons"`
	Screens       int    `json:"screens"`
	Completed     int    `json:"completed"`
	OpenConns     int    `json:"open_connections"`
	DatabaseBytes int64  `json:"database_bytes,omitempty"`
}

// PartialDirName is the subdirectory of the output directory that holds
// in-progress checkpoints
const PartialDirName = ".partial"

// Driver names accepted by NewIndex
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)
