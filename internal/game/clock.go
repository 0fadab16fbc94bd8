package game

import "time"

// Clock abstracts time so match timers can be driven deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending deferred callback.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

// SystemClock is the wall clock backed by time.AfterFunc.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type pendingTimer struct {
	timer Timer
	seq   uint64
}

// timerSet holds a match's named deferred callbacks. Callers hold the match
// lock. A callback only runs if it is still the registered timer for its name
// when it fires, so anything canceled or replaced becomes a no-op even if the
// underlying timer already fired.
type timerSet struct {
	clock   Clock
	seq     uint64
	pending map[string]pendingTimer
}

func newTimerSet(clock Clock) *timerSet {
	return &timerSet{clock: clock, pending: make(map[string]pendingTimer)}
}

// schedule replaces any timer with the same name. fire receives the sequence
// number to hand back to claim.
func (ts *timerSet) schedule(name string, d time.Duration, fire func(seq uint64)) {
	ts.cancel(name)
	ts.seq++
	seq := ts.seq
	t := ts.clock.AfterFunc(d, func() { fire(seq) })
	ts.pending[name] = pendingTimer{timer: t, seq: seq}
}

// claim removes the named timer if seq is still current.
func (ts *timerSet) claim(name string, seq uint64) bool {
	p, ok := ts.pending[name]
	if !ok || p.seq != seq {
		return false
	}
	delete(ts.pending, name)
	return true
}

func (ts *timerSet) cancel(name string) {
	if p, ok := ts.pending[name]; ok {
		p.timer.Stop()
		delete(ts.pending, name)
	}
}

func (ts *timerSet) cancelAll() {
	for name := range ts.pending {
		ts.cancel(name)
	}
}

func (ts *timerSet) has(name string) bool {
	_, ok := ts.pending[name]
	return ok
}

func (ts *timerSet) len() int {
	return len(ts.pending)
}
