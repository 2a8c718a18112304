package ecojuicer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jd3nn1s/ecojuicer/obd"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubQuerier answers from fixed tables and records what was asked.
type stubQuerier struct {
	mu        sync.Mutex
	responses map[obd.Command]string
	errs      map[obd.Command]error
	calls     []obd.Command
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{
		responses: map[obd.Command]string{
			obd.CommandRPM:         "41 0C 1F 40\r\r>",
			obd.CommandSpeed:       "41 0D 24\r\r>",
			obd.CommandCoolantTemp: "41 05 7B\r\r>",
			obd.CommandMAF:         "41 10 03 E8\r\r>",
			obd.CommandFuelRate:    "NO DATA\r\r>",
		},
		errs: map[obd.Command]error{},
	}
}

func (q *stubQuerier) Query(ctx context.Context, cmd obd.Command) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, cmd)
	if err := q.errs[cmd]; err != nil {
		return "", err
	}
	return q.responses[cmd], nil
}

func (q *stubQuerier) set(cmd obd.Command, resp string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.responses[cmd] = resp
	q.errs[cmd] = err
}

func (q *stubQuerier) takeCalls() []obd.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	calls := q.calls
	q.calls = nil
	return calls
}

// fakeClock only moves when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingForwarder struct {
	mu   sync.Mutex
	news []Snapshot
	prev []Snapshot
	err  error
}

func (f *recordingForwarder) Forward(newSnapshot *Snapshot, prevSnapshot *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.news = append(f.news, *newSnapshot)
	f.prev = append(f.prev, *prevSnapshot)
	return f.err
}

func newTestJuicer() (*Juicer, *fakeClock) {
	clock := &fakeClock{now: tripEpoch}
	jc := NewJuicer(Settings{
		PollInterval: time.Millisecond,
		ErrorBackoff: time.Millisecond,
		Clock:        clock.Now,
	})
	return jc, clock
}

func TestNewJuicerDefaults(t *testing.T) {
	jc := NewJuicer(Settings{})
	assert.Equal(t, DefaultPollInterval, jc.pollInterval)
	assert.Equal(t, DefaultErrorBackoff, jc.errorBackoff)
	assert.NotNil(t, jc.estimator)
	assert.Equal(t, DieselFuelModel(), jc.fuel)
	assert.Equal(t, FuelRateUnknown, jc.FuelRateSupport())
	_, ok := jc.Feed().Latest()
	assert.False(t, ok)
}

func TestCycle(t *testing.T) {
	jc, clock := newTestJuicer()
	q := newStubQuerier()
	ctx := context.Background()

	snap, err := jc.cycle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []obd.Command{
		obd.CommandRPM, obd.CommandSpeed, obd.CommandCoolantTemp, obd.CommandMAF, obd.CommandFuelRate,
	}, q.takeCalls())
	assert.Equal(t, 2000, snap.RPM)
	assert.Equal(t, 36.0, snap.SpeedKmh)
	assert.Equal(t, 83, snap.CoolantTempC)
	assert.Equal(t, 10.0, snap.MAFGs)
	assert.Equal(t, FuelSourceMAF, snap.FuelSource)
	assert.Equal(t, FuelRateUnsupported, jc.FuelRateSupport())

	clock.Advance(time.Second)
	snap, err = jc.cycle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []obd.Command{
		obd.CommandRPM, obd.CommandSpeed, obd.CommandCoolantTemp, obd.CommandMAF,
	}, q.takeCalls(), "an unsupported fuel rate is not probed again")
	assert.InDelta(t, 0.01, snap.DistanceKm, 1e-9)
}

func TestCycleDirectFuelRate(t *testing.T) {
	jc, clock := newTestJuicer()
	q := newStubQuerier()
	// (256*0x00 + 0x48) / 20 = 3.6 L/h
	q.set(obd.CommandFuelRate, "41 5E 00 48\r\r>", nil)
	ctx := context.Background()

	_, err := jc.cycle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, FuelRateSupported, jc.FuelRateSupport())

	clock.Advance(2 * time.Second)
	snap, err := jc.cycle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, FuelSourceDirect, snap.FuelSource)
	assert.InDelta(t, 3.6, snap.FuelRateLh, 1e-9)
	assert.InDelta(t, 0.002, snap.FuelUsedL, 1e-9)

	// a bridge that answers in L/h directly
	q.set(obd.CommandFuelRate, "7.2\r\r>", nil)
	clock.Advance(time.Second)
	snap, err = jc.cycle(ctx, q)
	require.NoError(t, err)
	assert.InDelta(t, 7.2, snap.FuelRateLh, 1e-9)
}

func TestCycleQueryError(t *testing.T) {
	jc, _ := newTestJuicer()
	q := newStubQuerier()
	q.set(obd.CommandSpeed, "", obd.ErrReadTimeout)

	_, err := jc.cycle(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, obd.ErrReadTimeout, errors.Cause(err))
	assert.Equal(t, []obd.Command{obd.CommandRPM, obd.CommandSpeed}, q.takeCalls())
}

func TestRunPublishesSnapshots(t *testing.T) {
	jc, clock := newTestJuicer()
	q := newStubQuerier()
	fwd := &recordingForwarder{err: errors.New("forward failed")}
	jc.AddForwarder(fwd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- jc.Run(ctx, q)
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	first, err := jc.Feed().Next(waitCtx, 0)
	require.NoError(t, err)
	require.NoError(t, first.Err)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, 2000, first.RPM)

	clock.Advance(time.Second)
	second, err := jc.Feed().Next(waitCtx, first.Seq)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	cancel()
	assert.Equal(t, context.Canceled, <-done)

	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	require.GreaterOrEqual(t, len(fwd.news), 2, "a failing forwarder keeps receiving snapshots")
	assert.Equal(t, uint64(0), fwd.prev[0].Seq)
	assert.Equal(t, fwd.news[0].Seq, fwd.prev[1].Seq)
}

func TestRunErrorSnapshot(t *testing.T) {
	jc, _ := newTestJuicer()
	q := newStubQuerier()
	q.set(obd.CommandRPM, "NO DATA\r\r>", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- jc.Run(ctx, q)
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	snap, err := jc.Feed().Next(waitCtx, 0)
	require.NoError(t, err)
	require.Error(t, snap.Err)
	assert.Equal(t, obd.NoData, obd.KindOf(snap.Err))
	assert.Equal(t, "-", snap.Gear)

	// polling carries on once the adapter recovers
	q.set(obd.CommandRPM, "41 0C 1F 40\r\r>", nil)
	for snap.Err != nil {
		snap, err = jc.Feed().Next(waitCtx, snap.Seq)
		require.NoError(t, err)
	}
	assert.Equal(t, 2000, snap.RPM)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestRunLinkClosed(t *testing.T) {
	jc, _ := newTestJuicer()
	q := newStubQuerier()
	q.set(obd.CommandRPM, "", errors.Wrap(obd.ErrLinkClosed, "read: EOF"))

	err := jc.Run(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, obd.ErrLinkClosed, errors.Cause(err))

	snap, ok := jc.Feed().Latest()
	require.True(t, ok)
	assert.Error(t, snap.Err)
}

func TestRunAfterOutage(t *testing.T) {
	jc, clock := newTestJuicer()
	q := newStubQuerier()
	ctx := context.Background()

	_, err := jc.cycle(ctx, q)
	require.NoError(t, err)
	clock.Advance(time.Second)
	snap, err := jc.cycle(ctx, q)
	require.NoError(t, err)
	require.InDelta(t, 0.01, snap.DistanceKm, 1e-9)

	// the link was down for a minute before polling restarts
	clock.Advance(time.Minute)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error)
	go func() {
		done <- jc.Run(runCtx, q)
	}()
	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	first, err := jc.Feed().Next(waitCtx, 0)
	require.NoError(t, err)
	require.NoError(t, first.Err)
	assert.InDelta(t, 0.01, first.DistanceKm, 1e-9, "nothing is integrated across the outage")
	cancel()
	assert.Equal(t, context.Canceled, <-done)

	clock.Advance(time.Second)
	snap, err = jc.cycle(ctx, q)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, snap.DistanceKm, 1e-9)
}

func TestRunCancelled(t *testing.T) {
	jc, _ := newTestJuicer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, jc.Run(ctx, newStubQuerier()))
	_, ok := jc.Feed().Latest()
	assert.False(t, ok, "a cancelled run publishes nothing")
}

func TestSummarizeAndReset(t *testing.T) {
	jc, clock := newTestJuicer()
	q := newStubQuerier()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := jc.cycle(ctx, q)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	s := jc.Summarize()
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, s.ID, jc.Summarize().ID, "the running trip keeps its id")
	tripID := s.ID
	assert.Equal(t, tripEpoch, s.StartedAt)
	assert.InDelta(t, 0.03, s.DistanceKm, 1e-9)
	assert.InDelta(t, 36.0, s.AverageSpeedKmh, 1e-9)
	assert.Equal(t, 4*time.Second, s.Duration)
	assert.Equal(t, 2000.0, s.AverageRPM)
	assert.Equal(t, 2000, s.MaxRPM)
	assert.InDelta(t, s.FuelUsedL/s.DistanceKm*100, s.AverageFuelConsumption, 1e-9)
	assert.Nil(t, s.EfficiencyScore)

	jc.ResetTripData()
	s = jc.Summarize()
	assert.NotEqual(t, tripID, s.ID)
	assert.Equal(t, 0.0, s.DistanceKm)
	assert.Equal(t, 0.0, s.FuelUsedL)
	assert.Equal(t, 0.0, s.AverageRPM)
	assert.Equal(t, 0, s.MaxRPM)
	assert.Equal(t, 0.0, s.AverageFuelConsumption)
	assert.Equal(t, clock.Now(), s.StartedAt)
	assert.Equal(t, FuelRateUnknown, jc.FuelRateSupport())
}
