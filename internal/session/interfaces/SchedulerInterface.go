package interfaces

import "time"

type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
	// ForceResync coalesces with any in-flight poll; callers never wait on it.
	ForceResync(trigger string)
	Stale() bool
	ConsecutiveFailures() int
	LastSync() time.Time
}
