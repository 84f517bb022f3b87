package testutil

import (
	"sync"
	"time"
)

// FakeTicker is a manually driven ticker. It satisfies the poller's Ticker
// interface so tests control exactly when a loop iterates.
type FakeTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	resets   []time.Duration
	stopped  bool
}

func NewFakeTicker(d time.Duration) *FakeTicker {
	return &FakeTicker{ch: make(chan time.Time), interval: d}
}

func (f *FakeTicker) C() <-chan time.Time {
	return f.ch
}

func (f *FakeTicker) Reset(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interval = d
	f.resets = append(f.resets, d)
}

func (f *FakeTicker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

// Tick delivers one tick. It returns false when nobody received it within
// a second, which means the loop is no longer listening.
func (f *FakeTicker) Tick() bool {
	select {
	case f.ch <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}

// TryTick delivers a tick only if the loop is waiting right now.
func (f *FakeTicker) TryTick() bool {
	select {
	case f.ch <- time.Now():
		return true
	default:
		return false
	}
}

func (f *FakeTicker) Interval() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interval
}

func (f *FakeTicker) Resets() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.resets...)
}

func (f *FakeTicker) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// FakeTickers hands out FakeTickers and remembers them in creation order.
type FakeTickers struct {
	mu      sync.Mutex
	tickers []*FakeTicker
	created chan *FakeTicker
}

func NewFakeTickers() *FakeTickers {
	return &FakeTickers{created: make(chan *FakeTicker, 16)}
}

// New is the factory passed to the code under test.
func (f *FakeTickers) New(d time.Duration) *FakeTicker {
	t := NewFakeTicker(d)
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	select {
	case f.created <- t:
	default:
	}
	return t
}

// Next waits for the next ticker to be created.
func (f *FakeTickers) Next(timeout time.Duration) (*FakeTicker, bool) {
	select {
	case t := <-f.created:
		return t, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (f *FakeTickers) All() []*FakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeTicker(nil), f.tickers...)
}
