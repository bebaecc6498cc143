package lock

import (
	"context"
	"sync"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex for single-replica deployments.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewLocalLocker constructs an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// WithLock implements Locker.
func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if fn == nil {
		return ErrNoCallback
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := l.acquireSlot(key)
	defer l.releaseSlot(key, s)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.ch }()
	return fn(ctx)
}

func (l *LocalLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]*slot)
	}
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
