package coordinator

import (
	"log"
	"time"

	"github.com/powerwatch/host/internal/notify"
	"github.com/powerwatch/host/internal/storage"
)

// emitFiring is the action of all three periodic activities: one log
// line carrying the activity name and the wall-clock time in seconds,
// plus a journal record.
func (c *Coordinator) emitFiring(name string, at time.Time) {
	log.Printf("periodic: %s: %d", name, at.Unix())
	c.record(storage.KindFiring, name, at, "")
}

// onPowerAction reacts to global power-state transitions. The hibernate
// and suspend variants coalesce into the same two observed classes;
// anything else is acknowledged without being handled.
func (c *Coordinator) onPowerAction(action notify.PowerAction) notify.Ack {
	switch action {
	case notify.ActionSuspendPrepare, notify.ActionHibernatePrepare:
		at := c.now()
		log.Printf("pm: suspend")
		c.record(storage.KindPower, sourcePM, at, "suspend")
		return notify.AckHandled
	case notify.ActionPostSuspend, notify.ActionPostHibernation:
		at := c.now()
		log.Printf("pm: resume")
		c.record(storage.KindPower, sourcePM, at, "resume")
		return notify.AckHandled
	}
	return notify.AckDone
}

// onVisibilitySuspend runs when the system leaves the user-visible
// state. Registered at the disable-framebuffer level, so it is the last
// suspend-direction call and the first resume-direction call.
func (c *Coordinator) onVisibilitySuspend() {
	at := c.now()
	log.Printf("visibility: suspend")
	c.record(storage.KindVisibility, sourceVisibility, at, "suspend")
}

// onVisibilityResume runs when the system returns to the user-visible
// state.
func (c *Coordinator) onVisibilityResume() {
	at := c.now()
	log.Printf("visibility: resume")
	c.record(storage.KindVisibility, sourceVisibility, at, "resume")
}

// record journals the event and forwards it to the OnEvent observer.
// Journal failures are logged, not propagated: emission paths must stay
// prompt and must never fail the firing.
func (c *Coordinator) record(kind, source string, at time.Time, detail string) {
	var ev storage.Event
	if c.journal != nil {
		var err error
		ev, err = c.journal.Record(kind, source, at, detail)
		if err != nil {
			log.Printf("coordinator: journal %s/%s: %v", kind, source, err)
			return
		}
	} else {
		ev = storage.Event{
			Kind:      kind,
			Source:    source,
			Seconds:   at.Unix(),
			Detail:    detail,
			CreatedAt: at.UTC().Format(time.RFC3339Nano),
		}
	}
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}
