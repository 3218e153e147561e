package chrono

import "time"

// API is the clock everything time dependent reads from.
//
// note: fault injection point
type API interface {
	Now() time.Time
}

// StandardImpl reads the system clock, times are in UTC.
type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now().UTC()
}

// Since is time.Since measured on the given clock.
func Since(clock API, t time.Time) time.Duration {
	return clock.Now().Sub(t)
}
