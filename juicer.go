// Package ecojuicer turns OBD-II adapter responses into live trip telemetry
// and a summary of the finished trip.
package ecojuicer

import (
	"context"
	"sync"
	"time"

	"github.com/jd3nn1s/ecojuicer/gear"
	"github.com/jd3nn1s/ecojuicer/obd"
	"github.com/jd3nn1s/ecojuicer/trip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultErrorBackoff = 500 * time.Millisecond
)

// pollCommands are requested every cycle, in this order. The fuel rate probe
// follows them.
var pollCommands = []obd.Command{
	obd.CommandRPM,
	obd.CommandSpeed,
	obd.CommandCoolantTemp,
	obd.CommandMAF,
}

type Settings struct {
	PollInterval time.Duration
	ErrorBackoff time.Duration
	Estimator    *gear.Estimator
	Fuel         FuelModel
	Metrics      *Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Juicer runs the polling cycle for one vehicle and keeps the running trip.
// Trip state is only changed by Run and ResetTripData; everything else sees
// published snapshots or the result of Summarize.
type Juicer struct {
	pollInterval time.Duration
	errorBackoff time.Duration
	estimator    *gear.Estimator
	fuel         FuelModel
	metrics      *Metrics
	now          func() time.Time

	mu  sync.Mutex
	acc accumulator

	feed *Feed

	fwdMu      sync.Mutex
	forwarders []Forwarder
	prev       Snapshot
}

func NewJuicer(settings Settings) *Juicer {
	jc := &Juicer{
		pollInterval: settings.PollInterval,
		errorBackoff: settings.ErrorBackoff,
		estimator:    settings.Estimator,
		fuel:         settings.Fuel,
		metrics:      settings.Metrics,
		now:          settings.Clock,
		acc:          newAccumulator(),
		feed:         NewFeed(),
	}
	if jc.pollInterval <= 0 {
		jc.pollInterval = DefaultPollInterval
	}
	if jc.errorBackoff <= 0 {
		jc.errorBackoff = DefaultErrorBackoff
	}
	if jc.estimator == nil {
		jc.estimator = gear.NewEstimator()
	}
	if jc.fuel == (FuelModel{}) {
		jc.fuel = DieselFuelModel()
	}
	if jc.now == nil {
		jc.now = time.Now
	}
	return jc
}

// Feed is the read-only observation point for live telemetry.
func (jc *Juicer) Feed() *Feed {
	return jc.feed
}

func (jc *Juicer) AddForwarder(fwd Forwarder) {
	jc.fwdMu.Lock()
	defer jc.fwdMu.Unlock()
	jc.forwarders = append(jc.forwarders, fwd)
}

// Run polls q until ctx is cancelled. Decode and timeout failures are
// published as error snapshots and polling resumes after the error back-off.
// A closed link ends Run with the error so that the caller can reconnect.
// Trip totals carry over between runs but the first sample of a run only
// restarts the sample clock.
func (jc *Juicer) Run(ctx context.Context, q Querier) error {
	log.Info("starting telemetry polling")
	jc.reseed()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delay := jc.pollInterval
		snap, err := jc.cycle(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				log.Debug("polling cancelled")
				return ctx.Err()
			}
			log.WithField("err", err).Warn("polling cycle failed")
			jc.publish(errorSnapshot(jc.now(), err))
			if errors.Cause(err) == obd.ErrLinkClosed {
				return err
			}
			delay = jc.errorBackoff
		} else {
			jc.publish(snap)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// cycle performs one strictly sequential round of requests and folds the
// result into the trip.
func (jc *Juicer) cycle(ctx context.Context, q Querier) (Snapshot, error) {
	readings := make([]Reading, len(pollCommands))
	for i, cmd := range pollCommands {
		r, err := jc.query(ctx, q, cmd)
		if err != nil {
			return Snapshot{}, err
		}
		readings[i] = r
	}
	sample := Sample{
		RPM:     readings[0],
		Speed:   readings[1],
		Coolant: readings[2],
		MAF:     readings[3],
	}

	if jc.FuelRateSupport() != FuelRateUnsupported {
		r, err := jc.query(ctx, q, obd.CommandFuelRate)
		if err != nil {
			return Snapshot{}, err
		}
		sample.FuelRate = r
	}

	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.acc.ingest(sample, jc.now(), jc.estimator, jc.fuel)
}

func (jc *Juicer) query(ctx context.Context, q Querier, cmd obd.Command) (Reading, error) {
	start := time.Now()
	resp, err := q.Query(ctx, cmd)
	jc.metrics.observeQuery(cmd, time.Since(start))
	if err != nil {
		return Reading{}, errors.Wrapf(err, "query %s", cmd)
	}
	sig, err := obd.Decode(cmd, resp)
	r := Reading{Signal: sig, Err: err}
	if err != nil {
		log.WithField("command", cmd).
			WithField("kind", obd.KindOf(err)).
			Debug("no usable value")
	}
	jc.metrics.observeReading(cmd, r)
	return r, nil
}

func (jc *Juicer) publish(s Snapshot) {
	s = jc.feed.publish(s)
	jc.metrics.observeSnapshot(s)

	jc.fwdMu.Lock()
	defer jc.fwdMu.Unlock()
	for _, fwd := range jc.forwarders {
		if err := fwd.Forward(&s, &jc.prev); err != nil {
			log.WithField("err", err).Error("unable to forward telemetry")
		}
	}
	jc.prev = s
}

// FuelRateSupport reports what is known about the direct fuel rate PID.
func (jc *Juicer) FuelRateSupport() FuelRateSupport {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.acc.fuelRate
}

// Summarize returns the summary of the trip so far.
func (jc *Juicer) Summarize() trip.Summary {
	jc.mu.Lock()
	defer jc.mu.Unlock()

	s := trip.Summary{
		ID:              jc.acc.tripID,
		StartedAt:       jc.acc.tripStart,
		AverageSpeedKmh: jc.acc.avgSpeed(),
		DistanceKm:      jc.acc.totalDistanceKm,
		FuelUsedL:       jc.acc.totalFuelUsedL,
		AverageRPM:      jc.acc.avgRPM(),
		MaxRPM:          jc.acc.maxRPM,
	}
	if !jc.acc.tripStart.IsZero() {
		s.Duration = jc.now().Sub(jc.acc.tripStart)
	}
	s.AverageFuelConsumption, _ = jc.acc.avgFuelConsumption()
	return s
}

func (jc *Juicer) reseed() {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.acc.reseed()
}

// ResetTripData clears the trip and restarts the trip clock. The next sample
// only seeds the clock.
func (jc *Juicer) ResetTripData() {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.acc.reset(jc.now())
	log.Info("trip data reset")
}
