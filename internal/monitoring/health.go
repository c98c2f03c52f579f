// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name      string                                      `json:"name"`
	Status    HealthStatus                                `json:"status"`
	Message   string                                      `json:"message,omitempty"`
	Error     string                                      `json:"error,omitempty"`
	LastCheck time.Time                                   `json:"last_check"`
	Duration  time.Duration                               `json:"duration"`
	Critical  bool                                        `json:"critical"`
	CheckFunc func(ctx context.Context) HealthCheckResult `json:"-"`
	Timeout   time.Duration                               `json:"-"`
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Error    error                  `json:"-"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SystemHealth is the /healthz response body
type SystemHealth struct {
	Status     HealthStatus  `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	Uptime     string        `json:"uptime"`
	Checks     []HealthCheck `json:"checks"`
	Goroutines int           `json:"goroutines"`
	HeapBytes  uint64        `json:"heap_bytes"`
}

// HealthManager runs registered checks on demand
type HealthManager struct {
	mu             sync.Mutex
	checks         map[string]*HealthCheck
	defaultTimeout time.Duration
	started        time.Time
}

// NewHealthManager creates a new health manager
func NewHealthManager(defaultTimeout time.Duration) *HealthManager {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	return &HealthManager{
		checks:         make(map[string]*HealthCheck),
		defaultTimeout: defaultTimeout,
		started:        time.Now(),
	}
}

// RegisterCheck registers or replaces a health check
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = hm.defaultTimeout
	}
	hm.mu.Lock()
	hm.checks[check.Name] = check
	hm.mu.Unlock()
}

// Check runs every check and aggregates the result. Unhealthy critical
// checks make the whole system unhealthy; anything else only degrades it.
func (hm *HealthManager) Check(ctx context.Context) SystemHealth {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	health := SystemHealth{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
	}

	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := hm.checks[name]
		hm.runCheck(ctx, check)
		health.Checks = append(health.Checks, *check)

		switch check.Status {
		case HealthStatusHealthy:
		case HealthStatusUnhealthy:
			if check.Critical {
				health.Status = HealthStatusUnhealthy
			} else if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		default:
			if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	health.Goroutines = runtime.NumGoroutine()
	health.HeapBytes = m.HeapAlloc
	return health
}

func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	result := HealthCheckResult{Status: HealthStatusUnknown, Message: "No check function defined"}
	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	}

	check.LastCheck = start
	check.Duration = time.Since(start)
	check.Status = result.Status
	check.Message = result.Message
	check.Error = ""
	if result.Error != nil {
		check.Error = result.Error.Error()
	}
}

// HealthHandler serves the aggregated health as JSON
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// DatabaseHealthCheck creates a database connectivity health check
func DatabaseHealthCheck(name string, checkFunc func(ctx context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := checkFunc(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: "Database connection failed",
					Error:   err,
				}
			}
			return HealthCheckResult{
				Status:  HealthStatusHealthy,
				Message: "Database connection successful",
			}
		},
	}
}

// DirectoryHealthCheck verifies that dir exists and accepts new files
func DirectoryHealthCheck(name, dir string) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: true,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return HealthCheckResult{Status: HealthStatusUnhealthy, Message: "Directory unavailable", Error: err}
			}
			f, err := os.CreateTemp(dir, ".healthz-*")
			if err != nil {
				return HealthCheckResult{Status: HealthStatusUnhealthy, Message: "Directory not writable", Error: err}
			}
			f.Close()
			os.Remove(f.Name())
			return HealthCheckResult{Status: HealthStatusHealthy, Message: fmt.Sprintf("%s is writable", dir)}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) *HealthCheck {
	return &HealthCheck{
		Name:     "goroutines",
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()
			if count > maxGoroutines {
				return HealthCheckResult{
					Status:  HealthStatusDegraded,
					Message: fmt.Sprintf("High goroutine count: %d", count),
				}
			}
			return HealthCheckResult{
				Status:  HealthStatusHealthy,
				Message: fmt.Sprintf("Goroutine count normal: %d", count),
			}
		},
	}
}
