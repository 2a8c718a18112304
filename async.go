package ecojuicer

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// AsyncForwarder hands snapshots to a slower forwarder on its own goroutine so
// that polling never waits on it. Only the latest pending snapshot is kept and
// the wrapped forwarder is given the last snapshot it received as the previous
// one.
type AsyncForwarder struct {
	fwd  Forwarder
	wake chan struct{}

	mu      sync.Mutex
	pending *Snapshot

	prev Snapshot
}

func NewAsyncForwarder(fwd Forwarder) *AsyncForwarder {
	return &AsyncForwarder{
		fwd:  fwd,
		wake: make(chan struct{}, 1),
	}
}

func (a *AsyncForwarder) Forward(newSnapshot *Snapshot, prevSnapshot *Snapshot) error {
	snapCopy := *newSnapshot
	a.mu.Lock()
	a.pending = &snapCopy
	a.mu.Unlock()
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start delivers snapshots until ctx is done.
func (a *AsyncForwarder) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.wake:
		}

		a.mu.Lock()
		s := a.pending
		a.pending = nil
		a.mu.Unlock()
		if s == nil {
			continue
		}

		if err := a.fwd.Forward(s, &a.prev); err != nil {
			log.WithField("err", err).Error("unable to forward telemetry")
			// a zero previous snapshot makes the next delivery complete
			a.prev = Snapshot{}
			continue
		}
		a.prev = *s
	}
}
