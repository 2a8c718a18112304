package obd

import "fmt"

type SignalKind uint8

const (
	EngineSpeedRPM SignalKind = iota + 1
	VehicleSpeedKmh
	CoolantTempC
	MassAirFlowGs
	FuelRateLh
)

// Signal is a decoded physical value. Integer signals (RPM, coolant) are
// stored as whole numbers in Value.
type Signal struct {
	Kind  SignalKind
	Value float64
}

func (s Signal) Int() int {
	return int(s.Value)
}

func (s Signal) Float() float64 {
	return s.Value
}

func (s Signal) String() string {
	switch s.Kind {
	case EngineSpeedRPM:
		return fmt.Sprintf("%d RPM", s.Int())
	case VehicleSpeedKmh:
		return fmt.Sprintf("%.1f km/h", s.Value)
	case CoolantTempC:
		return fmt.Sprintf("%d °C", s.Int())
	case MassAirFlowGs:
		return fmt.Sprintf("%.2f g/s", s.Value)
	case FuelRateLh:
		return fmt.Sprintf("%.2f L/h", s.Value)
	}
	return fmt.Sprintf("%v", s.Value)
}
