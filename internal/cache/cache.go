// Package cache owns the authoritative in-memory ranked result set and its
// refresh lifecycle.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State of the manager's lifecycle.
type State int

const (
	StateEmpty State = iota // no snapshot installed yet
	StateFresh              // snapshot younger than the cache duration
	StateStale              // snapshot old enough to want a refresh
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFresh:
		return "fresh"
	default:
		return "stale"
	}
}

// RefreshFunc produces a complete new generation of items.
type RefreshFunc func(ctx context.Context) ([]Item, error)

// Health is the manager's externally visible status.
type Health struct {
	SnapshotSize    int   `json:"snapshotSize"`
	AgeMinutes      int   `json:"ageMinutes"` // -1 while empty
	Refreshing      bool  `json:"refreshing"`
	ExternalEnabled bool  `json:"externalServiceEnabled"`
	State           State `json:"-"`
}

// Manager guards the current snapshot. Writers serialize through the
// refreshing flag; readers never block on a refresh and always receive
// copies. A failed refresh leaves the prior snapshot untouched.
type Manager struct {
	mu          sync.RWMutex
	items       []Item
	generatedAt time.Time
	refreshing  bool

	duration        time.Duration
	refresh         RefreshFunc
	store           *FileStore // optional persistence across restarts
	externalEnabled bool
	now             func() time.Time
}

func NewManager(duration time.Duration, refresh RefreshFunc) *Manager {
	return &Manager{
		duration: duration,
		refresh:  refresh,
		now:      time.Now,
	}
}

// SetExternalEnabled records whether the escalation adapter has a
// credential, for the health payload.
func (m *Manager) SetExternalEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.externalEnabled = enabled
}

// SetStore attaches snapshot persistence and loads the previous generation
// if one exists, so a restart serves stale data instead of nothing.
func (m *Manager) SetStore(store *FileStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
	if store == nil {
		return
	}
	items, generatedAt, err := store.Load()
	if err != nil {
		slog.Warn("could not load persisted snapshot", "error", err)
		return
	}
	if len(items) > 0 {
		m.items = items
		m.generatedAt = generatedAt
		slog.Info("restored persisted snapshot", "items", len(items), "generated_at", generatedAt)
	}
}

// Snapshot returns a copy of the current generation. Non-blocking and safe
// for concurrent use; an Empty manager yields an empty item list.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Item, len(m.items))
	copy(items, m.items)
	return Snapshot{
		Items:       items,
		GeneratedAt: m.generatedAt,
		Refreshing:  m.refreshing,
	}
}

// State reports where the manager is in its lifecycle.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	if m.generatedAt.IsZero() {
		return StateEmpty
	}
	if m.now().Sub(m.generatedAt) < m.duration {
		return StateFresh
	}
	return StateStale
}

// Health summarizes the manager for the health endpoint.
func (m *Manager) Health() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()

	age := -1
	if !m.generatedAt.IsZero() {
		age = int(m.now().Sub(m.generatedAt).Minutes())
	}
	return Health{
		SnapshotSize:    len(m.items),
		AgeMinutes:      age,
		Refreshing:      m.refreshing,
		ExternalEnabled: m.externalEnabled,
		State:           m.stateLocked(),
	}
}

// ForceRefresh starts an asynchronous refresh unless one is already
// running. Fire-and-forget: a request during an active refresh is dropped,
// not queued. Returns whether a refresh was actually started.
func (m *Manager) ForceRefresh(ctx context.Context) bool {
	if !m.tryBeginRefresh() {
		slog.Info("refresh already in progress, skipping")
		return false
	}
	go m.runRefresh(ctx)
	return true
}

// Refresh runs a refresh synchronously under the same in-progress guard.
// Used by the background loop and by tests.
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.tryBeginRefresh() {
		slog.Info("refresh already in progress, skipping")
		return nil
	}
	return m.runRefresh(ctx)
}

// tryBeginRefresh atomically checks and sets the in-progress flag, so two
// refreshes can never start under a race.
func (m *Manager) tryBeginRefresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refreshing {
		return false
	}
	m.refreshing = true
	return true
}

// runRefresh executes the refresh to completion. The in-progress flag is
// cleared on every exit path, including panics inside the pipeline.
func (m *Manager) runRefresh(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
		m.mu.Lock()
		m.refreshing = false
		m.mu.Unlock()
		if err != nil {
			slog.Error("refresh cycle failed, keeping prior snapshot", "error", err)
		}
	}()

	started := m.now()
	items, err := m.refresh(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.items = items
	m.generatedAt = m.now()
	store := m.store
	m.mu.Unlock()

	slog.Info("cache refreshed", "items", len(items), "took", m.now().Sub(started))

	if store != nil {
		if serr := store.Save(items, m.now()); serr != nil {
			slog.Warn("could not persist snapshot", "error", serr)
		}
	}
	return nil
}

// StartBackground runs the periodic staleness check until ctx is done.
// Each tick refreshes only when the snapshot is empty or stale.
func (m *Manager) StartBackground(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if m.State() != StateFresh {
					slog.Info("background refresh triggered", "state", m.State().String())
					if err := m.Refresh(ctx); err != nil {
						slog.Error("background refresh failed", "error", err)
					}
				}
			}
		}
	}()
}
