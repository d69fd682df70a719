// Package notify implements the host-side notification channels the
// powerwatch coordinator observes: a global power-state chain delivering
// suspend/resume transitions, and a user-visibility chain delivering
// screen-state transitions to level-ordered observers.
//
// The chains are the registration boundary between the host platform
// (which injects events, e.g. via the control server) and the components
// that react to them. Dispatch ordering across visibility observers is a
// contract of the chain itself: suspend-direction calls run from the
// lowest level to the highest, resume-direction calls run from the
// highest level to the lowest.
package notify

import "sync"

// PowerAction identifies a global power-state transition.
type PowerAction string

const (
	// ActionSuspendPrepare fires just before the system suspends to RAM.
	ActionSuspendPrepare PowerAction = "suspend_prepare"
	// ActionHibernatePrepare fires just before the system hibernates.
	ActionHibernatePrepare PowerAction = "hibernate_prepare"
	// ActionPostSuspend fires just after the system resumes from suspend.
	ActionPostSuspend PowerAction = "post_suspend"
	// ActionPostHibernation fires just after the system resumes from hibernation.
	ActionPostHibernation PowerAction = "post_hibernation"
	// ActionRestorePrepare fires before restoring a hibernation image.
	// No powerwatch component handles it; it exists so the chain carries
	// the full set of host action classes.
	ActionRestorePrepare PowerAction = "restore_prepare"
)

// Ack is a handler's acknowledgement of a delivered power action.
type Ack int

const (
	// AckDone means the handler does not care about this action class.
	// It is an acknowledgement, not an error.
	AckDone Ack = iota
	// AckHandled means the handler recognized and processed the action.
	AckHandled
)

// PowerHandler reacts to one power action. Handlers run on the
// dispatching goroutine and must return promptly.
type PowerHandler func(action PowerAction) Ack

// PowerChain is a registration channel for power-state transitions.
// The zero value is not usable; use NewPowerChain.
type PowerChain struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]PowerHandler
	order    []int
}

// NewPowerChain creates an empty power notification chain.
func NewPowerChain() *PowerChain {
	return &PowerChain{handlers: make(map[int]PowerHandler)}
}

// Register adds a handler and returns its registration id.
func (c *PowerChain) Register(h PowerHandler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers[id] = h
	c.order = append(c.order, id)
	return id
}

// Unregister removes a previously registered handler.
// Unregistering an unknown id is a no-op.
func (c *PowerChain) Unregister(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered handlers.
func (c *PowerChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// Dispatch delivers the action to every registered handler in
// registration order and reports how many acknowledged it as handled.
func (c *PowerChain) Dispatch(action PowerAction) (handled int) {
	c.mu.RLock()
	hs := make([]PowerHandler, 0, len(c.order))
	for _, id := range c.order {
		if h, ok := c.handlers[id]; ok {
			hs = append(hs, h)
		}
	}
	c.mu.RUnlock()

	for _, h := range hs {
		if h(action) == AckHandled {
			handled++
		}
	}
	return handled
}
