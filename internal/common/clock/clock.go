package clock

import "time"

// Clock abstracts time.Now so presence sweeps and last-write-wins
// ordering can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// DefaultClock implements Clock using the system clock.
type DefaultClock struct{}

// Now returns the current time.
func (c *DefaultClock) Now() time.Time {
	return time.Now()
}

// Fixed is a manually advanced Clock for tests.
type Fixed struct {
	Current time.Time
}

// Now returns the fixed current time.
func (f *Fixed) Now() time.Time {
	return f.Current
}

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
