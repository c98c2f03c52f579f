// internal/monitoring/status.go
package monitoring

import (
	"sync"
	"time"
)

// LessonStatus describes one lesson of the current run
type LessonStatus struct {
	Key         string        `json:"key"`
	URL         string        `json:"url"`
	State       string        `json:"state"`
	Screens     int           `json:"screens"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	Duration    time.Duration `json:"duration"`
	Status      string        `json:"status,omitempty"`
	AbortReason string        `json:"abort_reason,omitempty"`
}

// RunStatus is the /progress response body
type RunStatus struct {
	Platform  string         `json:"platform"`
	Level     string         `json:"level,omitempty"`
	StartTime time.Time      `json:"start_time"`
	Planned   int            `json:"planned"`
	Completed int            `json:"completed"`
	Partial   int            `json:"partial"`
	Current   *LessonStatus  `json:"current,omitempty"`
	Finished  []LessonStatus `json:"finished"`
}

// RunTracker records the state of the running batch for the status
// server. Methods are safe on a nil receiver.
type RunTracker struct {
	mu         sync.RWMutex
	status     RunStatus
	maxHistory int
}

// NewRunTracker creates a tracker for a platform and level
func NewRunTracker(platform, level string) *RunTracker {
	return &RunTracker{
		status: RunStatus{
			Platform:  platform,
			Level:     level,
			StartTime: time.Now(),
			Finished:  make([]LessonStatus, 0),
		},
		maxHistory: 500,
	}
}

// SetPlanned records how many lessons the batch will attempt
func (rt *RunTracker) SetPlanned(n int) {
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.status.Planned = n
}

// StartLesson marks a lesson as running
func (rt *RunTracker) StartLesson(key, url string) {
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.status.Current = &LessonStatus{
		Key:       key,
		URL:       url,
		State:     "starting",
		StartTime: time.Now(),
	}
}

// UpdateLesson records the orchestrator state of the running lesson
func (rt *RunTracker) UpdateLesson(state string, screens int) {
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if cur := rt.status.Current; cur != nil {
		cur.State = state
		cur.Screens = screens
		cur.Duration = time.Since(cur.StartTime)
	}
}

// FinishLesson moves the running lesson to the history
func (rt *RunTracker) FinishLesson(status, abortReason string) {
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	cur := rt.status.Current
	if cur == nil {
		return
	}
	now := time.Now()
	cur.EndTime = &now
	cur.Duration = now.Sub(cur.StartTime)
	cur.State = "finished"
	cur.Status = status
	cur.AbortReason = abortReason

	if status == "complete" {
		rt.status.Completed++
	} else {
		rt.status.Partial++
	}
	rt.status.Finished = append(rt.status.Finished, *cur)
	if len(rt.status.Finished) > rt.maxHistory {
		rt.status.Finished = rt.status.Finished[len(rt.status.Finished)-rt.maxHistory:]
	}
	rt.status.Current = nil
}

// Snapshot returns a copy of the run status
func (rt *RunTracker) Snapshot() RunStatus {
	if rt == nil {
		return RunStatus{Finished: []LessonStatus{}}
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	cp := rt.status
	if rt.status.Current != nil {
		cur := *rt.status.Current
		cp.Current = &cur
	}
	cp.Finished = append([]LessonStatus{}, rt.status.Finished...)
	return cp
}
