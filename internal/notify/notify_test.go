package notify

import (
	"reflect"
	"testing"
)

func TestPowerChain_DispatchCountsHandled(t *testing.T) {
	c := NewPowerChain()

	var seen []PowerAction
	c.Register(func(a PowerAction) Ack {
		seen = append(seen, a)
		if a == ActionSuspendPrepare {
			return AckHandled
		}
		return AckDone
	})
	c.Register(func(a PowerAction) Ack {
		return AckHandled
	})

	if got := c.Dispatch(ActionSuspendPrepare); got != 2 {
		t.Errorf("handled = %d, want 2", got)
	}
	if got := c.Dispatch(ActionRestorePrepare); got != 1 {
		t.Errorf("handled = %d, want 1", got)
	}
	if len(seen) != 2 {
		t.Errorf("first handler saw %d actions, want 2", len(seen))
	}
}

func TestPowerChain_Unregister(t *testing.T) {
	c := NewPowerChain()

	calls := 0
	id := c.Register(func(PowerAction) Ack {
		calls++
		return AckHandled
	})

	c.Dispatch(ActionPostSuspend)
	c.Unregister(id)
	c.Dispatch(ActionPostSuspend)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (handler ran after unregister)", calls)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}

	// Unknown id is a no-op.
	c.Unregister(9999)
}

func TestPowerChain_RegistrationOrder(t *testing.T) {
	c := NewPowerChain()

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		c.Register(func(PowerAction) Ack {
			order = append(order, name)
			return AckDone
		})
	}

	c.Dispatch(ActionHibernatePrepare)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(order, want) {
		t.Errorf("dispatch order = %v, want %v", order, want)
	}
}

func TestVisibilityChain_LevelOrdering(t *testing.T) {
	c := NewVisibilityChain()

	var order []string
	add := func(name string, level int) {
		c.Register(VisibilityObserver{
			Level:   level,
			Suspend: func() { order = append(order, "s:"+name) },
			Resume:  func() { order = append(order, "r:"+name) },
		})
	}
	// Register out of level order on purpose.
	add("fb", LevelDisableFramebuffer)
	add("blank", LevelBlankScreen)
	add("draw", LevelStopDrawing)

	c.DispatchSuspend()
	want := []string{"s:blank", "s:draw", "s:fb"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("suspend order = %v, want %v", order, want)
	}

	order = nil
	c.DispatchResume()
	want = []string{"r:fb", "r:draw", "r:blank"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("resume order = %v, want %v", order, want)
	}
}

func TestVisibilityChain_SameLevelStable(t *testing.T) {
	c := NewVisibilityChain()

	var order []string
	for _, name := range []string{"first", "second"} {
		name := name
		c.Register(VisibilityObserver{
			Level:   LevelBlankScreen,
			Suspend: func() { order = append(order, name) },
		})
	}

	c.DispatchSuspend()
	if want := []string{"first", "second"}; !reflect.DeepEqual(order, want) {
		t.Errorf("same-level suspend order = %v, want %v", order, want)
	}
}

func TestVisibilityChain_Unregister(t *testing.T) {
	c := NewVisibilityChain()

	calls := 0
	id := c.Register(VisibilityObserver{
		Level:   LevelDisableFramebuffer,
		Suspend: func() { calls++ },
	})

	c.DispatchSuspend()
	c.Unregister(id)
	c.DispatchSuspend()

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestVisibilityChain_NilCallbacks(t *testing.T) {
	c := NewVisibilityChain()
	c.Register(VisibilityObserver{Level: LevelStopDrawing})

	// Must not panic.
	c.DispatchSuspend()
	c.DispatchResume()
}
