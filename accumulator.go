package ecojuicer

import (
	"time"

	"github.com/jd3nn1s/ecojuicer/gear"
	"github.com/jd3nn1s/ecojuicer/obd"
	"github.com/jd3nn1s/ecojuicer/trip"
	"github.com/pkg/errors"
)

const (
	// intervals at or below this are clock anomalies
	minElapsedSeconds = 0.001
	// speeds at or below this are treated as stationary drift
	minMovingSpeedKmh = 2.0
)

var errNotRead = errors.New("command was not sent")

// Reading is the outcome of one request. The zero value means the command was
// not sent this cycle.
type Reading struct {
	Signal obd.Signal
	Err    error
}

func (r Reading) OK() bool {
	return r.Err == nil && r.Signal.Kind != 0
}

func (r Reading) err() error {
	if r.Err != nil {
		return r.Err
	}
	return errNotRead
}

func (r Reading) Probed() bool {
	return r.Err != nil || r.Signal.Kind != 0
}

// Sample is everything read during one polling cycle.
type Sample struct {
	RPM      Reading
	Speed    Reading
	Coolant  Reading
	MAF      Reading
	FuelRate Reading
}

// accumulator is the running state of one trip.
type accumulator struct {
	tripID          string
	totalDistanceKm float64
	totalFuelUsedL  float64
	tripStart       time.Time
	lastSample      time.Time
	seeded          bool
	rpmHistory      []int
	maxRPM          int
	fuelRate        FuelRateSupport
	currentGear     string
	gear            gear.State
	lastMAF         float64
}

func newAccumulator() accumulator {
	return accumulator{
		tripID:      trip.NewID(),
		currentGear: gear.EngineOff,
	}
}

// reset returns the trip to its start state with the trip clock at now.
func (a *accumulator) reset(now time.Time) {
	*a = newAccumulator()
	a.tripStart = now
}

func (a *accumulator) avgRPM() float64 {
	if len(a.rpmHistory) == 0 {
		return 0
	}
	sum := 0
	for _, rpm := range a.rpmHistory {
		sum += rpm
	}
	return float64(sum) / float64(len(a.rpmHistory))
}

// reseed keeps the totals but makes the next sample only restart the clock,
// so that nothing is integrated across a gap in the samples.
func (a *accumulator) reseed() {
	a.seeded = false
}

// avgSpeed is the distance over the trip time up to the last integrated sample.
func (a *accumulator) avgSpeed() float64 {
	hours := a.lastSample.Sub(a.tripStart).Hours()
	if a.lastSample.IsZero() || hours <= 0 {
		return 0
	}
	return a.totalDistanceKm / hours
}

func (a *accumulator) avgFuelConsumption() (float64, bool) {
	if a.totalDistanceKm <= 0 {
		return 0, false
	}
	return a.totalFuelUsedL / a.totalDistanceKm * 100.0, true
}

// settleFuelRate updates fuel rate support from this cycle's probe and returns
// the direct rate when it can be used.
func (a *accumulator) settleFuelRate(r Reading) (float64, bool) {
	if !r.Probed() {
		return 0, false
	}
	if r.OK() && r.Signal.Float() > 0 {
		a.fuelRate = FuelRateSupported
		return r.Signal.Float(), true
	}
	a.fuelRate = FuelRateUnsupported
	return 0, false
}

// ingest folds one sample taken at now into the trip and returns the
// resulting snapshot.
func (a *accumulator) ingest(s Sample, now time.Time, est *gear.Estimator, fuel FuelModel) (Snapshot, error) {
	directRate, direct := a.settleFuelRate(s.FuelRate)

	if !s.RPM.OK() {
		return Snapshot{}, errors.Wrap(s.RPM.err(), "no usable engine speed")
	}
	if !s.Speed.OK() {
		return Snapshot{}, errors.Wrap(s.Speed.err(), "no usable vehicle speed")
	}
	rpm := s.RPM.Signal.Int()
	speed := s.Speed.Signal.Float()

	a.rpmHistory = append(a.rpmHistory, rpm)
	if rpm > a.maxRPM {
		a.maxRPM = rpm
	}
	a.currentGear = est.Estimate(rpm, speed, &a.gear)

	if s.MAF.OK() {
		a.lastMAF = s.MAF.Signal.Float()
	}

	snap := Snapshot{
		Time:     now,
		RPM:      rpm,
		SpeedKmh: speed,
		Gear:     a.currentGear,
		MAFGs:    a.lastMAF,
	}
	if s.Coolant.OK() {
		snap.CoolantTempC = s.Coolant.Signal.Int()
		snap.HasCoolant = true
	}
	if direct {
		snap.FuelRateLh, snap.FuelSource = directRate, FuelSourceDirect
	} else {
		snap.FuelRateLh, snap.FuelSource = fuel.Rate(a.lastMAF, rpm), FuelSourceMAF
	}

	if a.tripStart.IsZero() {
		a.tripStart = now
	}
	switch elapsed := now.Sub(a.lastSample).Seconds(); {
	case !a.seeded:
		a.seeded = true
		a.lastSample = now
	case elapsed <= minElapsedSeconds:
	default:
		if speed > minMovingSpeedKmh {
			a.totalDistanceKm += speed * elapsed / 3600.0
		}
		if direct {
			a.totalFuelUsedL += directRate / 3600.0 * elapsed
		} else {
			a.totalFuelUsedL += fuel.Volume(a.lastMAF, rpm, elapsed)
		}
		a.lastSample = now
	}

	snap.DistanceKm = a.totalDistanceKm
	snap.FuelUsedL = a.totalFuelUsedL
	snap.AvgFuelConsumption, snap.HasAvgFuelConsumption = a.avgFuelConsumption()
	if tripHours := now.Sub(a.tripStart).Hours(); tripHours > 0 {
		snap.AvgSpeedKmh, snap.HasAvgSpeed = a.totalDistanceKm/tripHours, true
	}
	return snap, nil
}
