package memory

import "time"

// Clock abstracts time for the manager so lifecycle tests can control it.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// WithClock swaps the manager's clock. Intended for tests.
func (m *Manager) WithClock(c Clock) *Manager {
	m.clock = c
	return m
}
