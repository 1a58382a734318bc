package eventhub

import "time"

// CancelHandle cancels a previously scheduled delayed task. Cancel is
// idempotent: calling it more than once, or after the task has already
// fired, is a no-op.
type CancelHandle interface {
	Cancel(interruptIfRunning bool)
}

// Scheduler is the delayed-task capability the hub requires to run
// response-listener timeouts (§4.2.3). It is an external collaborator
// (§1/§6): the hub never assumes anything about its implementation beyond
// "the task runs once, after at least delay has elapsed, unless cancelled
// first".
type Scheduler interface {
	ScheduleAfter(delay time.Duration, task func()) CancelHandle
}

// timerHandle adapts time.AfterFunc to CancelHandle.
type timerHandle struct {
	timer *time.Timer
}

func (h *timerHandle) Cancel(interruptIfRunning bool) {
	h.timer.Stop()
}

// timerScheduler is the default Scheduler, backed directly by the runtime
// timer wheel. The scheduler is explicitly an external collaborator the
// spec scopes out of the core (§1); a minimal stdlib-backed default is the
// right call here; there is no "domain" scheduling behavior (no calendars,
// no cron expressions) that would justify reaching for a third-party
// scheduling library.
type timerScheduler struct{}

// NewTimerScheduler returns the default Scheduler implementation, used by
// NewHub when no Scheduler is supplied.
func NewTimerScheduler() Scheduler { return timerScheduler{} }

func (timerScheduler) ScheduleAfter(delay time.Duration, task func()) CancelHandle {
	return &timerHandle{timer: time.AfterFunc(delay, task)}
}
