// Package status tracks run state for the HTTP surface. The poll loop
// is the only writer; HTTP handlers read concurrently.
package status

import (
	"sync"
	"time"
)

// State holds the mutable run counters.
type State struct {
	mu sync.RWMutex

	runID     string
	startedAt time.Time

	cycleCount          int
	consecutiveFailures int
	lastResult          string
	lastSuccess         time.Time
	entityCounts        map[string]int
	leagueCount         int
}

// NewState builds a State for one service run.
func NewState(runID string, startedAt time.Time) *State {
	return &State{
		runID:        runID,
		startedAt:    startedAt,
		entityCounts: make(map[string]int),
	}
}

// RecordCycle notes the outcome of one poll cycle.
func (s *State) RecordCycle(result string, at time.Time, consecutiveFailures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycleCount++
	s.lastResult = result
	s.consecutiveFailures = consecutiveFailures
	if result == "success" {
		s.lastSuccess = at
	}
}

// SetEntityCount records the store size for a collection.
func (s *State) SetEntityCount(collection string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entityCounts[collection] = n
}

// SetLeagueCount records the size of the last league catalog.
func (s *State) SetLeagueCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leagueCount = n
}

// View is a point-in-time copy of the state.
type View struct {
	RunID               string         `json:"run_id"`
	StartedAt           time.Time      `json:"started_at"`
	Uptime              string         `json:"uptime"`
	CycleCount          int            `json:"cycle_count"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastResult          string         `json:"last_result"`
	LastSuccess         time.Time      `json:"last_success"`
	EntityCounts        map[string]int `json:"entity_counts"`
	LeagueCount         int            `json:"league_count"`
}

// Snapshot returns a copy safe to serialize.
func (s *State) Snapshot(now time.Time) View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.entityCounts))
	for k, v := range s.entityCounts {
		counts[k] = v
	}
	return View{
		RunID:               s.runID,
		StartedAt:           s.startedAt,
		Uptime:              now.Sub(s.startedAt).Round(time.Second).String(),
		CycleCount:          s.cycleCount,
		ConsecutiveFailures: s.consecutiveFailures,
		LastResult:          s.lastResult,
		LastSuccess:         s.lastSuccess,
		EntityCounts:        counts,
		LeagueCount:         s.leagueCount,
	}
}

// Healthy reports whether the collector produced a successful cycle
// recently enough relative to the poll interval.
func (s *State) Healthy(now time.Time, interval time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cycleCount == 0 {
		// Still starting up.
		return true
	}
	if s.lastSuccess.IsZero() {
		return false
	}
	return now.Sub(s.lastSuccess) <= 3*interval
}
