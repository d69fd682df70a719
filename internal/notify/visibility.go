package notify

import (
	"sort"
	"sync"
)

// Visibility observer levels, lowest first. Suspend-direction dispatch
// runs BlankScreen → StopDrawing → DisableFramebuffer; resume-direction
// dispatch runs the exact reverse.
const (
	// LevelBlankScreen observers turn the screen off while the
	// framebuffer stays accessible.
	LevelBlankScreen = 50
	// LevelStopDrawing observers tell clients to stop touching the
	// framebuffer.
	LevelStopDrawing = 100
	// LevelDisableFramebuffer observers turn the framebuffer itself off.
	// This is the last tier entered on suspend and the first left on resume.
	LevelDisableFramebuffer = 150
)

// VisibilityObserver reacts to user-visible sleep-state transitions.
// Callbacks run on the dispatching goroutine and must not block.
type VisibilityObserver struct {
	// Level orders this observer relative to the rest of the chain.
	Level int
	// Suspend is called when the system leaves the user-visible state.
	Suspend func()
	// Resume is called when the system returns to the user-visible state.
	Resume func()
}

type visibilityEntry struct {
	id  int
	seq int
	obs VisibilityObserver
}

// VisibilityChain is a registration channel for visibility transitions.
// The zero value is not usable; use NewVisibilityChain.
type VisibilityChain struct {
	mu      sync.RWMutex
	nextID  int
	entries []visibilityEntry
}

// NewVisibilityChain creates an empty visibility notification chain.
func NewVisibilityChain() *VisibilityChain {
	return &VisibilityChain{}
}

// Register adds an observer and returns its registration id.
// Observers at the same level dispatch in registration order on suspend.
func (c *VisibilityChain) Register(obs VisibilityObserver) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.entries = append(c.entries, visibilityEntry{id: c.nextID, seq: len(c.entries), obs: obs})
	return c.nextID
}

// Unregister removes a previously registered observer.
// Unregistering an unknown id is a no-op.
func (c *VisibilityChain) Unregister(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.id == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered observers.
func (c *VisibilityChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DispatchSuspend notifies observers that the user-visible state is being
// left, in ascending level order.
func (c *VisibilityChain) DispatchSuspend() {
	for _, e := range c.snapshot(false) {
		if e.obs.Suspend != nil {
			e.obs.Suspend()
		}
	}
}

// DispatchResume notifies observers that the user-visible state is being
// re-entered, in descending level order.
func (c *VisibilityChain) DispatchResume() {
	for _, e := range c.snapshot(true) {
		if e.obs.Resume != nil {
			e.obs.Resume()
		}
	}
}

func (c *VisibilityChain) snapshot(reverse bool) []visibilityEntry {
	c.mu.RLock()
	out := make([]visibilityEntry, len(c.entries))
	copy(out, c.entries)
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if reverse {
			if out[i].obs.Level != out[j].obs.Level {
				return out[i].obs.Level > out[j].obs.Level
			}
			return out[i].seq > out[j].seq
		}
		if out[i].obs.Level != out[j].obs.Level {
			return out[i].obs.Level < out[j].obs.Level
		}
		return out[i].seq < out[j].seq
	})
	return out
}
