package service

import "sync/atomic"

// Maintenance is the process-wide maintenance switch. While on, only librarians may log in.
// The zero value is off.
type Maintenance struct {
	on atomic.Bool
}

func (m *Maintenance) On() bool {
	return m.on.Load()
}

func (m *Maintenance) Set(on bool) {
	m.on.Store(on)
}

// Toggle flips the switch and returns the new state.
func (m *Maintenance) Toggle() bool {
	for {
		old := m.on.Load()
		if m.on.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
