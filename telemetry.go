package ecojuicer

import (
	"fmt"
	"time"
)

// FuelSource tells where an instantaneous fuel rate came from.
type FuelSource uint8

const (
	FuelSourceNone FuelSource = iota
	FuelSourceDirect
	FuelSourceMAF
)

func (s FuelSource) String() string {
	switch s {
	case FuelSourceDirect:
		return "Direct (PID 015E)"
	case FuelSourceMAF:
		return "Calculated (MAF)"
	}
	return "-"
}

// Snapshot is the live telemetry published after each polling cycle. A
// snapshot with a non-nil Err is an error snapshot and carries no values.
type Snapshot struct {
	Seq  uint64
	Time time.Time
	Err  error

	RPM          int
	SpeedKmh     float64
	Gear         string
	CoolantTempC int
	HasCoolant   bool
	MAFGs        float64

	FuelRateLh float64
	FuelSource FuelSource

	AvgFuelConsumption    float64
	HasAvgFuelConsumption bool
	AvgSpeedKmh           float64
	HasAvgSpeed           bool

	DistanceKm float64
	FuelUsedL  float64
}

func errorSnapshot(now time.Time, err error) Snapshot {
	return Snapshot{
		Time: now,
		Err:  err,
		Gear: "-",
	}
}

func (s Snapshot) String() string {
	if s.Err != nil {
		return fmt.Sprintf("#%d error: %v", s.Seq, s.Err)
	}
	coolant := "- °C"
	if s.HasCoolant {
		coolant = fmt.Sprintf("%d °C", s.CoolantTempC)
	}
	consumption := "- L/100km"
	if s.HasAvgFuelConsumption {
		consumption = fmt.Sprintf("%.2f L/100km", s.AvgFuelConsumption)
	}
	avgSpeed := "- km/h"
	if s.HasAvgSpeed {
		avgSpeed = fmt.Sprintf("%.2f km/h", s.AvgSpeedKmh)
	}
	return fmt.Sprintf("#%d %d RPM %.1f km/h gear %s %s %.2f L/h (%s) avg %s avg %s %.3f km %.4f L %.2f g/s",
		s.Seq, s.RPM, s.SpeedKmh, s.Gear, coolant, s.FuelRateLh, s.FuelSource,
		consumption, avgSpeed, s.DistanceKm, s.FuelUsedL, s.MAFGs)
}
