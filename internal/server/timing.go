package server

import (
	"errors"
	"sync"
	"time"
)

// MaxStartTimeAge is how far in the past a start time may be and still be accepted.
const MaxStartTimeAge = 60 * time.Second

var (
	ErrStartTimeSet    = errors.New("start time has already been set")
	ErrStartTimePassed = errors.New("time has already passed")
)

// StartTimer holds a node's start time. It can be set exactly once.
type StartTimer struct {
	mu        sync.Mutex
	startTime int64
	started   bool
	reached   chan struct{}
	timer     *time.Timer

	Now func() time.Time
}

func NewStartTimer() *StartTimer {
	return &StartTimer{
		reached: make(chan struct{}),
		Now:     time.Now,
	}
}

// Set records startMillis and arms Reached. It fails if a start time was already set
// or startMillis is more than MaxStartTimeAge in the past.
func (st *StartTimer) Set(startMillis int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.started {
		return ErrStartTimeSet
	}
	now := st.Now()
	if startMillis < now.Add(-MaxStartTimeAge).UnixMilli() {
		return ErrStartTimePassed
	}

	st.started = true
	st.startTime = startMillis
	wait := time.UnixMilli(startMillis).Sub(now)
	if wait < 0 {
		wait = 0
	}
	st.timer = time.AfterFunc(wait, func() { close(st.reached) })
	return nil
}

// Get returns the start time and whether one has been set.
func (st *StartTimer) Get() (int64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.startTime, st.started
}

// Reached is closed once the start time arrives.
func (st *StartTimer) Reached() <-chan struct{} {
	return st.reached
}

func (st *StartTimer) Stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.timer != nil {
		st.timer.Stop()
	}
}
