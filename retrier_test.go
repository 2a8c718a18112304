package ecojuicer

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jd3nn1s/ecojuicer/obd"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDelays() func() {
	origRetrySleep := retrySleep
	retrySleep = 0
	return func() {
		retrySleep = origRetrySleep
	}
}

type retryable struct {
	mu          sync.Mutex
	open        bool
	hasClosed   bool
	openErr     error
	startedChan chan struct{}
	stopChan    chan error
}

func (r *retryable) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil {
		err := r.openErr
		r.openErr = nil
		return err
	}
	r.open = true
	return nil
}

func (r *retryable) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	r.hasClosed = true
	return nil
}

func (r *retryable) Start(ctx context.Context) error {
	r.startedChan <- struct{}{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-r.stopChan:
		return err
	}
}

func (r *retryable) Name() string {
	return "retryable-test"
}

func (r *retryable) state() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open, r.hasClosed
}

func TestRetry(t *testing.T) {
	defer noDelays()()
	r := retryable{
		startedChan: make(chan struct{}),
		stopChan:    make(chan error),
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	var retryErr error
	go func() {
		retryErr = Retry(ctx, &r)
		wg.Done()
	}()
	<-r.startedChan
	open, _ := r.state()
	assert.True(t, open)

	// a clean return from start restarts without reconnecting
	r.stopChan <- nil
	<-r.startedChan
	open, closed := r.state()
	assert.True(t, open)
	assert.False(t, closed)

	r.stopChan <- errors.New("fake error")
	<-r.startedChan
	open, closed = r.state()
	assert.True(t, closed)
	assert.True(t, open)

	cancel()
	wg.Wait()
	assert.Equal(t, context.Canceled, retryErr)
}

func TestRetryOpenFailure(t *testing.T) {
	defer noDelays()()
	r := retryable{
		openErr:     errors.New("no adapter"),
		startedChan: make(chan struct{}),
		stopChan:    make(chan error),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- Retry(ctx, &r)
	}()

	select {
	case <-r.startedChan:
	case <-time.After(time.Second):
		t.Fatal("start was not reached after a failed open")
	}
	open, _ := r.state()
	assert.True(t, open)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestSuperviseSimulatedAdapter(t *testing.T) {
	defer noDelays()()
	sim := NewSimulatedAdapter()
	jc := NewJuicer(Settings{PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- jc.Supervise(ctx, sim.Dial, obd.SessionOptions{})
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	var snap Snapshot
	var err error
	for snap.RPM == 0 {
		snap, err = jc.Feed().Next(waitCtx, snap.Seq)
		require.NoError(t, err)
		require.NoError(t, snap.Err)
	}
	assert.True(t, snap.HasCoolant)
	assert.Equal(t, FuelSourceMAF, snap.FuelSource)
	assert.Equal(t, FuelRateUnsupported, jc.FuelRateSupport())

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestSuperviseReconnects(t *testing.T) {
	defer noDelays()()
	jc := NewJuicer(Settings{PollInterval: time.Millisecond})

	var mu sync.Mutex
	var adapters []*SimulatedAdapter
	dial := func() (io.ReadWriteCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		sim := NewSimulatedAdapter()
		adapters = append(adapters, sim)
		return sim, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- jc.Supervise(ctx, dial, obd.SessionOptions{})
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	snap, err := jc.Feed().Next(waitCtx, 0)
	require.NoError(t, err)

	// pull the link out from under the session
	mu.Lock()
	require.Len(t, adapters, 1)
	_ = adapters[0].Close()
	mu.Unlock()

	for {
		snap, err = jc.Feed().Next(waitCtx, snap.Seq)
		require.NoError(t, err)
		mu.Lock()
		n := len(adapters)
		mu.Unlock()
		if n > 1 && snap.Err == nil {
			break
		}
	}

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}
