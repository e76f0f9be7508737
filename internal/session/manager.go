package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/metrics"
)

// ManagerOptions configures a Manager
type ManagerOptions struct {
	Deps
	Store domain.KeyValueStore
	// IdleTTL is how long an untouched session stays in memory
	IdleTTL time.Duration
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Manager holds the mounted session of every active visitor
type Manager struct {
	opts ManagerOptions
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Slot returns the credential slot of a scope without mounting a session
func (m *Manager) Slot(scope string) CredentialSlot {
	return NewCredentialSlot(m.opts.Store, scope)
}

// Mount returns the session for scope. The first time a scope is seen a
// session is created and its one automatic resolution starts in the
// background; it outlives the request that triggered it.
func (m *Manager) Mount(ctx context.Context, scope string) *Session {
	m.mu.Lock()
	if e, ok := m.sessions[scope]; ok {
		e.lastSeen = m.now()
		m.mu.Unlock()
		return e.session
	}

	s := NewSession(m.Slot(scope), m.opts.Deps)
	seq := s.begin()
	m.sessions[scope] = &entry{session: s, lastSeen: m.now()}
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.SetMountedSessions(count)

	resolveCtx, cancel := s.detach(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		s.resolve(resolveCtx, seq)
	}()

	return s
}

// Unmount forgets the in-memory session of scope. The next Mount starts
// again from the persisted credential.
func (m *Manager) Unmount(scope string) {
	m.mu.Lock()
	delete(m.sessions, scope)
	count := len(m.sessions)
	m.mu.Unlock()
	metrics.SetMountedSessions(count)
}

// Sweep evicts sessions idle for longer than IdleTTL and returns how many
// were removed. Sessions still resolving are kept.
func (m *Manager) Sweep(now time.Time) int {
	if m.opts.IdleTTL <= 0 {
		return 0
	}

	m.mu.Lock()
	removed := 0
	for scope, e := range m.sessions {
		if now.Sub(e.lastSeen) <= m.opts.IdleTTL {
			continue
		}
		if e.session.State().Loading {
			continue
		}
		delete(m.sessions, scope)
		removed++
	}
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.SetMountedSessions(count)
	return removed
}

// ScheduleSweep registers Sweep on c using a cron spec such as "@every 5m"
func (m *Manager) ScheduleSweep(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if removed := m.Sweep(m.now()); removed > 0 {
			slog.Debug("evicted idle sessions", "count", removed, "remaining", m.Len())
		}
	})
}

// Len returns the number of mounted sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Wait blocks until every background resolution has finished or ctx ends
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
