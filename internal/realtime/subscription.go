package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/ent0n29/boardsync/internal/store"
)

// queryFunc materializes the current full snapshot for one query shape.
type queryFunc func(ctx context.Context) (Event, error)

// subscription is one live listener: a goroutine that re-runs its query on
// every store change signal for its collections and hands the snapshot to
// emit. The closed flag is checked under the mutex at delivery time, so a
// callback can never mutate consumer state after Close returns.
type subscription struct {
	shape  string
	query  queryFunc
	emit   func(Event)
	cancel context.CancelFunc
	stop   func()
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func openSubscription(st store.Store, shape string, collections []string, query queryFunc, emit func(Event)) *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	changes, stop := st.Watch(collections...)

	s := &subscription{
		shape:  shape,
		query:  query,
		emit:   emit,
		cancel: cancel,
		stop:   stop,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		s.refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				s.refresh(ctx)
			}
		}
	}()

	return s
}

func (s *subscription) refresh(ctx context.Context) {
	ev, err := s.query(ctx)
	if err != nil {
		// The snapshot that prompted this signal is superseded by the next
		// one; a failed re-query leaves the consumer on last-known-good.
		return
	}
	ev.At = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.emit(ev)
}

func (s *subscription) Shape() string { return s.shape }

// Close is idempotent. After it returns, the subscription's callback cannot
// fire again.
func (s *subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.stop()
}
