// internal/output/manager.go
package output

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/LessonFlow/internal/config"
	lferrors "github.com/valpere/LessonFlow/internal/errors"
	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// mirrorBreaker opens after three consecutive failures of one mirror
var mirrorBreaker = lferrors.CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: 5 * time.Minute}

type guardedMirror struct {
	name    string
	mirror  Mirror
	breaker *lferrors.CircuitBreaker
}

// Manager fans finalized lessons out to the configured mirrors. A mirror
// that keeps failing is skipped until its breaker resets.
type Manager struct {
	mirrors []guardedMirror
	index   *Index
	onError func(mirror string, err error)
	logger  utils.Logger
}

// NewManager opens every mirror enabled in cfg. A manager with no mirrors
// is valid and publishes nothing.
func NewManager(ctx context.Context, cfg *config.OutputConfig, logger utils.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("output configuration is required")
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	m := &Manager{logger: logger}

	if cfg.Index.DSN != "" {
		ix, err := NewIndex(ctx, IndexOptions{Driver: cfg.Index.Driver, DSN: cfg.Index.DSN}, logger)
		if err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to open lesson index")
		}
		m.index = ix
		m.Add("index", ix)
	}

	if cfg.Mongo.URI != "" {
		mm, err := NewMongoMirror(ctx, MongoOptions{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		}, logger)
		if err != nil {
			m.Close()
			return nil, utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to open MongoDB mirror")
		}
		m.Add("mongo", mm)
	}
	return m, nil
}

// Add registers an additional mirror
func (m *Manager) Add(name string, mirror Mirror) {
	m.mirrors = append(m.mirrors, guardedMirror{
		name:    name,
		mirror:  mirror,
		breaker: lferrors.NewCircuitBreaker(name, mirrorBreaker),
	})
}

// OnError registers a callback for failed publishes
func (m *Manager) OnError(fn func(mirror string, err error)) {
	m.onError = fn
}

// Index returns the relational index, or nil when disabled
func (m *Manager) Index() *Index {
	return m.index
}

// Len returns the number of mirrors
func (m *Manager) Len() int {
	return len(m.mirrors)
}

// Publish sends the lesson to every mirror. Failures are logged and
// returned joined; they never affect the JSON output.
func (m *Manager) Publish(ctx context.Context, le *types.LessonExtraction, file string) error {
	var errs []error
	for _, g := range m.mirrors {
		if !g.breaker.CanExecute() {
			m.logger.Debugf("mirror %s suspended, skipping %s", g.name, le.Lesson.Key)
			continue
		}
		if err := g.mirror.Publish(ctx, le, file); err != nil {
			g.breaker.RecordFailure()
			m.logger.Warnf("mirror %s failed for %s: %v", g.name, le.Lesson.Key, err)
			if m.onError != nil {
				m.onError(g.name, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", g.name, err))
			continue
		}
		g.breaker.RecordSuccess()
	}
	return errors.Join(errs...)
}

// Close closes every mirror
func (m *Manager) Close() error {
	var errs []error
	for _, g := range m.mirrors {
		if err := g.mirror.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.mirrors = nil
	m.index = nil
	return errors.Join(errs...)
}
