// Package gear estimates the engaged gear from engine speed and road speed.
package gear

import (
	"math"
	"sort"
	"strconv"
)

const (
	EngineOff = "-"
	Neutral   = "N"

	secondsPerMinute    = 60.0
	kmhConversionFactor = 3.6

	// consecutive idle samples before neutral is reported
	neutralDebounce = 2
)

// Ratio is a forward gear and its drivetrain ratio.
type Ratio struct {
	Gear  int
	Ratio float64
}

// Estimator holds the vehicle constants. It is stateless; history lives in State.
type Estimator struct {
	WheelDiameter      float64
	FinalDriveRatio    float64
	IdleRPMLower       int
	IdleRPMUpper       int
	SpeedThreshold     float64
	RPMChangeThreshold int
	Ratios             []Ratio
}

// State is the short history needed for neutral detection. The zero value is
// the state at trip start.
type State struct {
	LastRPM       int
	LastSpeedKmh  float64
	NeutralStreak int
}

func (s *State) Reset() {
	*s = State{}
}

func DefaultRatios() []Ratio {
	return []Ratio{
		{Gear: 1, Ratio: 3.727},
		{Gear: 2, Ratio: 2.048},
		{Gear: 3, Ratio: 1.258},
		{Gear: 4, Ratio: 0.919},
		{Gear: 5, Ratio: 0.738},
		{Gear: 6, Ratio: 0.622},
	}
}

func NewEstimator() *Estimator {
	return &Estimator{
		WheelDiameter:      0.6096,
		FinalDriveRatio:    3.611,
		IdleRPMLower:       600,
		IdleRPMUpper:       1000,
		SpeedThreshold:     3,
		RPMChangeThreshold: 200,
		Ratios:             DefaultRatios(),
	}
}

// TheoreticalSpeed is the road speed in km/h at rpm for the given gear ratio.
func (e *Estimator) TheoreticalSpeed(rpm int, ratio float64) float64 {
	circumference := math.Pi * e.WheelDiameter
	return (float64(rpm) * circumference * kmhConversionFactor) /
		(ratio * e.FinalDriveRatio * secondsPerMinute)
}

// Estimate returns "-" with the engine off, "N" in neutral or a gear number,
// and records rpm and speed in st.
func (e *Estimator) Estimate(rpm int, speedKmh float64, st *State) string {
	defer func() {
		st.LastRPM = rpm
		st.LastSpeedKmh = speedKmh
	}()

	if rpm <= 0 {
		return EngineOff
	}
	switch e.neutral(rpm, speedKmh, st) {
	case neutralDetected:
		return Neutral
	case neutralPending:
		// a single idle sample is not trusted yet
		return e.closestGear(rpm, speedKmh)
	}
	if speedKmh <= 0 {
		return Neutral
	}
	return e.closestGear(rpm, speedKmh)
}

type neutralCheck int

const (
	notNeutral neutralCheck = iota
	neutralPending
	neutralDetected
)

func (e *Estimator) neutral(rpm int, speedKmh float64, st *State) neutralCheck {
	if rpm >= e.IdleRPMLower && rpm <= e.IdleRPMUpper && speedKmh < e.SpeedThreshold {
		st.NeutralStreak++
		if st.NeutralStreak >= neutralDebounce {
			return neutralDetected
		}
		return neutralPending
	}

	rpmDelta := rpm - st.LastRPM
	if rpmDelta < 0 {
		rpmDelta = -rpmDelta
	}
	speedDelta := math.Abs(speedKmh - st.LastSpeedKmh)
	// clutch in: engine speed moves while the car does not
	if rpmDelta > e.RPMChangeThreshold && speedDelta < e.SpeedThreshold && speedKmh < e.SpeedThreshold {
		st.NeutralStreak++
		return neutralDetected
	}

	st.NeutralStreak = 0
	return notNeutral
}

func (e *Estimator) closestGear(rpm int, speedKmh float64) string {
	if len(e.Ratios) == 0 {
		return Neutral
	}
	ratios := make([]Ratio, len(e.Ratios))
	copy(ratios, e.Ratios)
	sort.Slice(ratios, func(i, j int) bool { return ratios[i].Gear < ratios[j].Gear })

	best := ratios[0].Gear
	bestDiff := math.Inf(1)
	for _, r := range ratios {
		diff := math.Abs(e.TheoreticalSpeed(rpm, r.Ratio) - speedKmh)
		if diff < bestDiff {
			best, bestDiff = r.Gear, diff
		}
	}
	return strconv.Itoa(best)
}
