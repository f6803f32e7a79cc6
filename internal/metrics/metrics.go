package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	EntriesSeen         int64
	EntriesSurvived     int64
	DuplicatesFiltered  int64
	Escalations         int64
	EscalationFallbacks int64
	ItemsPublished      int64
	RefreshSuccesses    int64
	RefreshFailures     int64

	// Timings
	LastRefreshDuration    time.Duration
	AverageRefreshDuration time.Duration
	TotalRefreshDuration   time.Duration
	RefreshCount           int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddEntriesSeen(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesSeen += int64(n)
}

func (m *Metrics) AddEntriesSurvived(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesSurvived += int64(n)
}

func (m *Metrics) AddDuplicatesFiltered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered += int64(n)
}

func (m *Metrics) IncrementEscalations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Escalations++
}

func (m *Metrics) IncrementEscalationFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EscalationFallbacks++
}

func (m *Metrics) AddItemsPublished(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsPublished += int64(n)
}

func (m *Metrics) IncrementRefreshFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshFailures++
}

func (m *Metrics) RecordRefreshDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRefreshDuration = duration
	m.TotalRefreshDuration += duration
	m.RefreshCount++

	if m.RefreshCount > 0 {
		m.AverageRefreshDuration = m.TotalRefreshDuration / time.Duration(m.RefreshCount)
	}
	m.RefreshSuccesses++
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"entries_seen":                m.EntriesSeen,
		"entries_survived":            m.EntriesSurvived,
		"duplicates_filtered":         m.DuplicatesFiltered,
		"escalations":                 m.Escalations,
		"escalation_fallbacks":        m.EscalationFallbacks,
		"items_published":             m.ItemsPublished,
		"refresh_successes":           m.RefreshSuccesses,
		"refresh_failures":            m.RefreshFailures,
		"last_refresh_duration_ms":    m.LastRefreshDuration.Milliseconds(),
		"average_refresh_duration_ms": m.AverageRefreshDuration.Milliseconds(),
		"last_run_time":               m.LastRunTime.Format(time.RFC3339),
		"last_error_time":             m.LastErrorTime.Format(time.RFC3339),
		"last_error":                  m.LastError,
		"is_healthy":                  m.IsHealthy,
	}
}
