package ecojuicer

import (
	"context"
	"sync"
)

// Feed holds the latest snapshot. Readers observe the most recent value and
// never slow the producer down; snapshots are stored in publish order.
type Feed struct {
	mu      sync.RWMutex
	latest  Snapshot
	seq     uint64
	changed chan struct{}
}

func NewFeed() *Feed {
	return &Feed{
		changed: make(chan struct{}),
	}
}

func (f *Feed) publish(s Snapshot) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	s.Seq = f.seq
	f.latest = s
	close(f.changed)
	f.changed = make(chan struct{})
	return s
}

// Latest returns the most recent snapshot, or false when nothing has been
// published yet.
func (f *Feed) Latest() (Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest, f.seq > 0
}

// Changed returns a channel that is closed on the next publish.
func (f *Feed) Changed() <-chan struct{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.changed
}

// Next blocks until a snapshot newer than afterSeq is available.
func (f *Feed) Next(ctx context.Context, afterSeq uint64) (Snapshot, error) {
	for {
		f.mu.RLock()
		latest, changed := f.latest, f.changed
		f.mu.RUnlock()
		if latest.Seq > afterSeq {
			return latest, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}
