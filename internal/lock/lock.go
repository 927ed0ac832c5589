// Package lock serializes the read-check-write window of a transition on a
// single record. Correctness never depends on it: every write is still a
// conditional update on the prior state.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrBusy is returned when the key could not be acquired before the wait expired.
var ErrBusy = errors.New("lock: record is busy")

// Locker grants exclusive access to a key. The returned unlock func is safe
// to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func AccountKey(id string) string { return "account:" + id }
func PickupKey(id string) string  { return "pickup:" + id }
func AppealKey(id string) string  { return "appeal:" + id }

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// Local is an in-process Locker for single-instance deployments and tests.
type Local struct {
	Wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal(wait time.Duration) *Local {
	return &Local{Wait: wait, slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.slots == nil {
		l.slots = make(map[string]*slot)
	}
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	ctx, cancel := withWait(ctx, l.Wait)
	defer cancel()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, s)
		return nil, errors.Wrapf(ErrBusy, "%s: %v", key, ctx.Err())
	}
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// held reports how many callers hold or wait on key.
func (l *Local) held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		return s.refs
	}
	return 0
}
