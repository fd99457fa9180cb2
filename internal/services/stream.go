package services

import (
	"sync"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// Stream is a live, typed view over a store subscription. C receives the
// full current result set first and again after every change; a slow
// reader only sees the latest one. Close is the disposer and must be called
// when the consumer goes away.
type Stream[T any] struct {
	C <-chan []T

	sub  *docstore.Subscription
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

// StatusStream is the live view returned by StatusService.Observe.
type StatusStream = Stream[domain.StatusEntry]

// InboxStream is the live view returned by InboxService.Observe.
type InboxStream = Stream[domain.NotificationRecord]

func newStream[T any](sub *docstore.Subscription, decode func([]docstore.Snapshot) ([]T, error)) *Stream[T] {
	out := make(chan []T, 1)
	s := &Stream[T]{C: out, sub: sub, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer close(out)
		for snaps := range sub.C {
			items, err := decode(snaps)
			if err != nil {
				s.setErr(err)
				go sub.Close()
				continue
			}
			select {
			case <-out:
			default:
			}
			out <- items
		}
		if err := sub.Err(); err != nil {
			s.setErr(err)
		}
	}()
	return s
}

func (s *Stream[T]) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Close releases the underlying listener. Safe to call more than once.
func (s *Stream[T]) Close() {
	s.once.Do(func() {
		s.sub.Close()
		<-s.done
	})
}

// Done is closed once the stream has ended.
func (s *Stream[T]) Done() <-chan struct{} { return s.done }

// Err reports why the stream ended early, if it did.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
