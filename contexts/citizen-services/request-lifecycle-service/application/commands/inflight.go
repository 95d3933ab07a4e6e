package commands

import "sync"

// inFlightGuard admits at most one transition per request id. Acquisition
// never waits: a busy id is reported to the caller as a conflict.
type inFlightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInFlightGuard() *inFlightGuard {
	return &inFlightGuard{active: make(map[string]struct{})}
}

func (g *inFlightGuard) tryAcquire(requestID string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[requestID]; busy {
		return nil, false
	}
	g.active[requestID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, requestID)
			g.mu.Unlock()
		})
	}, true
}
