package domain

import "time"

// Clock abstracts wall-clock reads so cooldown rules stay testable. The
// production clock is RealClock; tests pin time with FixedClock.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

type FixedClock struct {
	Time time.Time
}

func (c FixedClock) Now() time.Time { return c.Time }
