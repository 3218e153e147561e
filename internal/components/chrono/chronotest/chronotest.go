// Package chronotest has manually driven implementations of chrono.API and chrono.CronAPI.
package chronotest

import (
	"sync"
	"time"
)

// Epoch is the time a new Clock starts at.
var Epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Clock only moves when Advance is called.
type Clock struct {
	mutex sync.Mutex
	now   time.Time
}

func NewClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

// Cron records jobs instead of scheduling them, Fire runs every job registered with spec.
type Cron struct {
	mutex sync.Mutex
	specs []string
	jobs  []func()
}

func (c *Cron) Cron(spec string, callback func()) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.specs = append(c.specs, spec)
	c.jobs = append(c.jobs, callback)
	return nil
}

func (c *Cron) Specs() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.specs...)
}

func (c *Cron) Fire(spec string) int {
	c.mutex.Lock()
	var due []func()
	for i, s := range c.specs {
		if s == spec {
			due = append(due, c.jobs[i])
		}
	}
	c.mutex.Unlock()

	for _, job := range due {
		job()
	}
	return len(due)
}
