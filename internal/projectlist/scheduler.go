package projectlist

// Scheduler defers a function to the next scheduling tick.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// GoScheduler runs each scheduled function on its own goroutine.
var GoScheduler Scheduler = SchedulerFunc(func(fn func()) { go fn() })
