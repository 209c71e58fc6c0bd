// Package gate defers work until the watch link is up.
//
// A Gate starts NotReady and buffers submitted actions. SignalReady opens it once
// and for good: queued actions run in submission order, and later submissions run
// immediately. Link loss does not close the gate again.
package gate

import "sync"

// State is the gate state.
type State int

const (
	NotReady State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "not_ready"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Gate is safe for concurrent use. Actions never run with the internal lock held,
// so they may call back into the gate.
type Gate struct {
	mu       sync.Mutex
	state    State
	draining bool
	queue    []func()
}

// New returns a closed gate.
func New() *Gate {
	return &Gate{}
}

// RunWhenReady runs action now if the gate is open, otherwise queues it.
// Submissions made while SignalReady is draining are appended to the queue so
// that they still run after everything submitted before them.
func (g *Gate) RunWhenReady(action func()) {
	if action == nil {
		return
	}

	g.mu.Lock()
	if g.state == Ready && !g.draining {
		g.mu.Unlock()
		action()
		return
	}
	g.queue = append(g.queue, action)
	g.mu.Unlock()
}

// SignalReady opens the gate and runs every queued action exactly once, in FIFO
// order, including actions queued while draining. Calls after the first are no-ops.
func (g *Gate) SignalReady() {
	g.mu.Lock()
	if g.state == Ready {
		g.mu.Unlock()
		return
	}
	g.state = Ready
	g.draining = true
	g.mu.Unlock()

	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.draining = false
			g.queue = nil
			g.mu.Unlock()
			return
		}
		action := g.queue[0]
		g.queue[0] = nil
		g.queue = g.queue[1:]
		g.mu.Unlock()

		action()
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the number of queued actions.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}
