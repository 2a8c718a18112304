// Package efficiency scores a finished trip from 0 to 100 and explains the
// score in plain language.
package efficiency

import (
	"math"

	"github.com/jd3nn1s/ecojuicer/trip"
)

const (
	speedWeight = 0.30
	rpmWeight   = 0.35
	fuelWeight  = 0.35

	maxRPMWeight = 0.4
	avgRPMWeight = 0.6

	optimalAvgSpeedMin = 55.0
	optimalAvgSpeedMax = 75.0
	worstAvgSpeedLow   = 25.0
	worstAvgSpeedHigh  = 120.0

	optimalMaxRPM = 2500.0
	worstMaxRPM   = 4500.0
	optimalAvgRPM = 1600.0
	worstAvgRPM   = 3000.0

	excellentFuelConsumption = 4.5
	poorFuelConsumption      = 10.0
	worstFuelConsumption     = 16.0

	minSubScore   = 10.0
	maxSubScore   = 100.0
	poorFuelScore = 30.0
)

// Breakdown is the overall score with the sub-scores it was built from.
type Breakdown struct {
	Speed   float64
	RPM     float64
	Fuel    float64
	Overall int
}

func Evaluate(s trip.Summary) Breakdown {
	b := Breakdown{
		Speed: speedScore(s.AverageSpeedKmh),
		RPM:   rpmScore(float64(s.MaxRPM), s.AverageRPM),
		Fuel:  fuelScore(s.AverageFuelConsumption),
	}
	b.Overall = int(b.Speed*speedWeight + b.RPM*rpmWeight + b.Fuel*fuelWeight)
	return b
}

// Score returns the overall score and the feedback text for s.
func Score(s trip.Summary) (int, string) {
	b := Evaluate(s)
	return b.Overall, feedback(s, b)
}

func speedScore(avgSpeed float64) float64 {
	switch {
	case avgSpeed >= optimalAvgSpeedMin && avgSpeed <= optimalAvgSpeedMax:
		return maxSubScore
	case avgSpeed < optimalAvgSpeedMin:
		if avgSpeed <= worstAvgSpeedLow {
			return minSubScore
		}
		position := (avgSpeed - worstAvgSpeedLow) / (optimalAvgSpeedMin - worstAvgSpeedLow)
		return minSubScore + position*(maxSubScore-minSubScore)
	default:
		return ramp(avgSpeed, optimalAvgSpeedMax, worstAvgSpeedHigh)
	}
}

func rpmScore(maxRPM, avgRPM float64) float64 {
	return ramp(maxRPM, optimalMaxRPM, worstMaxRPM)*maxRPMWeight +
		ramp(avgRPM, optimalAvgRPM, worstAvgRPM)*avgRPMWeight
}

func fuelScore(consumption float64) float64 {
	switch {
	case consumption <= excellentFuelConsumption:
		return maxSubScore
	case consumption >= worstFuelConsumption:
		return minSubScore
	case consumption >= poorFuelConsumption:
		ratio := (consumption - poorFuelConsumption) / (worstFuelConsumption - poorFuelConsumption)
		return math.Max(minSubScore, poorFuelScore-ratio*(poorFuelScore-minSubScore))
	default:
		position := (consumption - excellentFuelConsumption) / (poorFuelConsumption - excellentFuelConsumption)
		return maxSubScore - position*(maxSubScore-poorFuelScore)
	}
}

// ramp is 100 up to optimal, 10 from worst on and linear in between.
func ramp(v, optimal, worst float64) float64 {
	switch {
	case v <= optimal:
		return maxSubScore
	case v >= worst:
		return minSubScore
	}
	position := (v - optimal) / (worst - optimal)
	return math.Max(minSubScore, maxSubScore-position*(maxSubScore-minSubScore))
}
