package providers

import "github.com/jonboulle/clockwork"

// NewClockProvider hands out the process-wide wall clock. Tests substitute
// a fake clock at the component level instead.
func NewClockProvider() clockwork.Clock {
	return clockwork.NewRealClock()
}
