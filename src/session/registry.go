package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"futuresbot/src/connectors"
	"futuresbot/src/model"
)

const DefaultProbeTimeout = 15 * time.Second

// Registry is the set of active sessions and the single owner of their exchange handles.
type Registry struct {
	factory      connectors.ClientFactory
	probeTimeout time.Duration
	log          *logger.Entry

	mu       sync.RWMutex
	sessions map[string]*Session
	releases sync.WaitGroup
}

func NewRegistry(factory connectors.ClientFactory, probeTimeout time.Duration) *Registry {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Registry{
		factory:      factory,
		probeTimeout: probeTimeout,
		log:          logger.WithField("component", "session_registry"),
		sessions:     map[string]*Session{},
	}
}

// Register builds an exchange handle for creds and proves it works with a balance
// fetch before the session becomes visible. A failed probe returns model.ErrAuth.
// Registering a user twice replaces and releases the previous session.
func (r *Registry) Register(ctx context.Context, userID string, creds connectors.Credentials, settings model.TradingSettings) (*Session, error) {
	client, err := r.factory(creds)
	if err != nil {
		return nil, fmt.Errorf("create exchange client: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	if _, err := client.FetchBalance(probeCtx); err != nil {
		_ = client.Close()
		r.log.WithError(err).WithField("user_id", userID).Warn("Exchange probe failed, session not registered")
		return nil, fmt.Errorf("%w: %w", model.ErrAuth, err)
	}

	sess := New(userID, client, settings)

	r.mu.Lock()
	old := r.sessions[userID]
	r.sessions[userID] = sess
	r.mu.Unlock()

	if old != nil {
		r.release(old)
	}

	r.log.WithField("user_id", userID).Info("Session registered")
	return sess, nil
}

// Unregister removes the user's session. In-flight work may finish; the handle is
// closed once it drains. It reports whether a session was removed.
func (r *Registry) Unregister(userID string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.release(sess)
	r.log.WithField("user_id", userID).Info("Session unregistered")
	return true
}

func (r *Registry) release(sess *Session) {
	drained := sess.stop()
	r.releases.Add(1)
	go func() {
		defer r.releases.Done()
		<-drained
		if err := sess.client.Close(); err != nil {
			r.log.WithError(err).WithField("user_id", sess.UserID).Warn("Failed to close exchange client")
		}
	}()
}

func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// List returns a snapshot of the active sessions ordered by user id.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown unregisters every session and waits until their handles are closed or ctx ends.
func (r *Registry) Shutdown(ctx context.Context) error {
	for _, s := range r.List() {
		r.Unregister(s.UserID)
	}

	done := make(chan struct{})
	go func() {
		r.releases.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
