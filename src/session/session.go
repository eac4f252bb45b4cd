package session

import (
	"sync"
	"sync/atomic"
	"time"

	"futuresbot/src/connectors"
	"futuresbot/src/model"
)

// Session is one user's live trading context. The exchange handle is owned by
// the Registry; callers borrow it between Acquire and Release.
type Session struct {
	UserID    string
	CreatedAt time.Time

	client     connectors.ExchangeClient
	settings   atomic.Pointer[model.TradingSettings]
	lastSignal atomic.Int64
	degraded   atomic.Bool

	mu       sync.Mutex
	inflight int
	stopped  bool
	drained  chan struct{}
	isClosed bool
}

func New(userID string, client connectors.ExchangeClient, settings model.TradingSettings) *Session {
	s := &Session{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		client:    client,
		drained:   make(chan struct{}),
	}
	s.settings.Store(&settings)
	return s
}

func (s *Session) Client() connectors.ExchangeClient {
	return s.client
}

// Settings returns the cached settings snapshot.
func (s *Session) Settings() model.TradingSettings {
	return *s.settings.Load()
}

// UpdateSettings swaps the cached snapshot for a freshly read one.
func (s *Session) UpdateSettings(settings model.TradingSettings) {
	s.settings.Store(&settings)
}

func (s *Session) MarkSignal(at time.Time) {
	s.lastSignal.Store(at.UnixNano())
}

// LastSignalTime reports when a signal was last emitted for this session.
func (s *Session) LastSignalTime() (time.Time, bool) {
	n := s.lastSignal.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

// SetDegraded flags a session whose connectivity probe failed. It reports whether the flag changed.
func (s *Session) SetDegraded(v bool) bool {
	return s.degraded.Swap(v) != v
}

func (s *Session) Degraded() bool {
	return s.degraded.Load()
}

// Acquire registers a unit of in-flight work. It fails once the session is stopped.
func (s *Session) Acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.inflight++
	return true
}

func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.closeDrainedLocked()
}

func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// stop prevents new work and returns a channel closed once in-flight work drains.
func (s *Session) stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.closeDrainedLocked()
	return s.drained
}

func (s *Session) closeDrainedLocked() {
	if s.stopped && s.inflight == 0 && !s.isClosed {
		s.isClosed = true
		close(s.drained)
	}
}
