package executors

import "sync"

// keyGuard lets one unit of work hold a key at a time. A second caller is turned
// away instead of waiting.
type keyGuard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newKeyGuard() *keyGuard {
	return &keyGuard{busy: map[string]struct{}{}}
}

func (g *keyGuard) tryLock(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.busy[key]; held {
		return nil, false
	}
	g.busy[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.busy, key)
		g.mu.Unlock()
	}, true
}
