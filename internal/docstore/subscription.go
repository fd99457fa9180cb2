package docstore

import (
	"context"
	"sync"
)

// Subscription is a live query. C receives the current result set first and
// a fresh one after every change. Only the latest undelivered result set is
// kept, so a slow reader never blocks the producer. C is closed once the
// subscription ends; Err reports why.
type Subscription struct {
	C <-chan []Snapshot

	c      chan []Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

// Emitter pushes one result set into a subscription. It returns false when
// the subscription is gone and the producer should stop.
type Emitter func(ctx context.Context, snaps []Snapshot) bool

// NewSubscription starts run on its own goroutine. run produces result sets
// through emit until ctx is done or it fails; a nil return is a normal end.
func NewSubscription(ctx context.Context, run func(ctx context.Context, emit Emitter) error) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	c := make(chan []Snapshot, 1)
	s := &Subscription{C: c, c: c, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer close(s.c)
		if err := run(ctx, s.emit); err != nil && ctx.Err() == nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()
	return s
}

func (s *Subscription) emit(ctx context.Context, snaps []Snapshot) bool {
	if ctx.Err() != nil {
		return false
	}
	// drop the stale, unread result set
	select {
	case <-s.c:
	default:
	}
	select {
	case s.c <- snaps:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops the listener and waits for it to exit. Safe to call more than
// once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Done is closed when the producer has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
