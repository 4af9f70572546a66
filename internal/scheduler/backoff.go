package scheduler

import (
	"sync"
	"time"
)

// backoffState tracks consecutive content NotFound failures for one recipient.
//
// On failure the recipient is held off for base*2^(fails-1), capped at max.
// Success or re-registration drops the state.
type backoffState struct {
	fails int
	until time.Time
}

type backoffStore struct {
	mu sync.Mutex
	m  map[string]*backoffState
}

func (b *backoffStore) open(now time.Time, id string) (bool, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.m[id]
	if st == nil || !now.Before(st.until) {
		return false, time.Time{}
	}
	return true, st.until
}

// fail records a failure and returns the new hold-off deadline.
func (b *backoffStore) fail(now time.Time, id string, base, maxD time.Duration) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.m == nil {
		b.m = make(map[string]*backoffState)
	}
	st := b.m[id]
	if st == nil {
		st = &backoffState{}
		b.m[id] = st
	}
	st.fails++

	d := base
	for i := 1; i < st.fails && d < maxD; i++ {
		d *= 2
	}
	st.until = now.Add(min(d, maxD))
	return st.until
}

func (b *backoffStore) clear(id string) {
	b.mu.Lock()
	delete(b.m, id)
	b.mu.Unlock()
}

// active counts recipients currently held off.
func (b *backoffStore) active(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, st := range b.m {
		if now.Before(st.until) {
			n++
		}
	}
	return n
}
