package forwarder

import (
	"time"

	"github.com/jd3nn1s/ecojuicer"
)

type Header struct {
	Type uint8
}

const (
	TypeTelemetry   = 1
	TypeTripSummary = 2
)

// Flag bits of Packet.Flags.
const (
	FlagError uint8 = 1 << iota
	FlagCoolant
	FlagAvgFuelConsumption
	FlagAvgSpeed
)

// Packet is the fixed size little endian body of a telemetry datagram.
type Packet struct {
	Seq      uint64
	UnixNano int64

	Flags      uint8
	FuelSource uint8
	// Gear is the estimator's single character label.
	Gear        byte
	RPM         uint16
	CoolantTemp int16

	Speed              float32
	MAF                float32
	FuelRate           float32
	AvgFuelConsumption float32
	AvgSpeed           float32
	Distance           float32
	FuelUsed           float32
}

func NewPacket(s *ecojuicer.Snapshot) Packet {
	p := Packet{
		Seq:        s.Seq,
		UnixNano:   s.Time.UnixNano(),
		FuelSource: uint8(s.FuelSource),
		Gear:       '-',
	}
	if s.Err != nil {
		p.Flags |= FlagError
		return p
	}
	if len(s.Gear) > 0 {
		p.Gear = s.Gear[0]
	}
	p.RPM = uint16(s.RPM)
	p.Speed = float32(s.SpeedKmh)
	if s.HasCoolant {
		p.Flags |= FlagCoolant
		p.CoolantTemp = int16(s.CoolantTempC)
	}
	p.MAF = float32(s.MAFGs)
	p.FuelRate = float32(s.FuelRateLh)
	if s.HasAvgFuelConsumption {
		p.Flags |= FlagAvgFuelConsumption
		p.AvgFuelConsumption = float32(s.AvgFuelConsumption)
	}
	if s.HasAvgSpeed {
		p.Flags |= FlagAvgSpeed
		p.AvgSpeed = float32(s.AvgSpeedKmh)
	}
	p.Distance = float32(s.DistanceKm)
	p.FuelUsed = float32(s.FuelUsedL)
	return p
}

func (p Packet) Time() time.Time {
	return time.Unix(0, p.UnixNano)
}
