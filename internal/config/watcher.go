// internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/valpere/LessonFlow/internal/utils"
)

// ConfigWatcher watches the configuration file for changes
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	callbacks  []func(*Config)
	logger     utils.Logger
	mu         sync.RWMutex
	stopped    bool
	done       chan struct{}
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, logger utils.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		absPath = configPath
	}

	cw := &ConfigWatcher{
		watcher:    watcher,
		configPath: filepath.Clean(absPath),
		callbacks:  make([]func(*Config), 0),
		logger:     logger.WithField("component", "config_watcher"),
		done:       make(chan struct{}),
	}

	// Editors replace files via rename, so the directory is watched too
	if err := watcher.Add(filepath.Dir(cw.configPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	go cw.watch()

	return cw, nil
}

// OnChange registers a callback called with every successfully reloaded config
func (cw *ConfigWatcher) OnChange(callback func(*Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// watch handles file system events
func (cw *ConfigWatcher) watch() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == cw.configPath && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				cw.handleConfigChange()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warnf("config watcher error: %v", err)
		}
	}
}

// handleConfigChange reloads the file and notifies callbacks. Invalid files
// are logged and ignored so a half-written edit never stops a run.
func (cw *ConfigWatcher) handleConfigChange() {
	cw.mu.RLock()
	if cw.stopped {
		cw.mu.RUnlock()
		return
	}
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	config, err := LoadFromFile(cw.configPath)
	if err != nil {
		cw.logger.Warnf("failed to reload config: %v", err)
		return
	}
	cw.logger.Infof("configuration reloaded from %s", cw.configPath)

	for _, callback := range callbacks {
		callback(config)
	}
}

// Close stops the watcher and releases resources
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	cw.stopped = true
	cw.mu.Unlock()

	err := cw.watcher.Close()
	<-cw.done
	return err
}

// LiveLimits holds limits that may be replaced while a batch is running
type LiveLimits struct {
	v atomic.Pointer[LimitsConfig]
}

// NewLiveLimits returns holder initialised with l
func NewLiveLimits(l LimitsConfig) *LiveLimits {
	ll := &LiveLimits{}
	ll.Set(l)
	return ll
}

// Get returns the current limits
func (ll *LiveLimits) Get() LimitsConfig {
	if p := ll.v.Load(); p != nil {
		return *p
	}
	return DefaultLimits()
}

// Set replaces the limits when they are valid
func (ll *LiveLimits) Set(l LimitsConfig) bool {
	l.applyDefaults()
	if l.Validate() != nil {
		return false
	}
	ll.v.Store(&l)
	return true
}

// Bind keeps the holder in sync with the watcher
func (ll *LiveLimits) Bind(cw *ConfigWatcher) {
	cw.OnChange(func(c *Config) {
		if ll.Set(c.Limits) {
			cw.logger.Infof("limits updated: max_screens=%d stall=%d/%d/%d",
				c.Limits.MaxScreens, c.Limits.StallBeforeEscape, c.Limits.StallBeforeContinue, c.Limits.StallBeforeAbort)
		}
	})
}
