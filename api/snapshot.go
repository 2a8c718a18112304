package api

import (
	"time"

	"github.com/jd3nn1s/ecojuicer"
)

// snapshotView is the JSON shape of a snapshot. Unavailable values are
// omitted.
type snapshotView struct {
	Seq   uint64    `json:"seq"`
	Time  time.Time `json:"time"`
	Error string    `json:"error,omitempty"`

	RPM          *int     `json:"rpm,omitempty"`
	SpeedKmh     *float64 `json:"speed_kmh,omitempty"`
	Gear         string   `json:"gear"`
	CoolantTempC *int     `json:"coolant_temp_c,omitempty"`
	MAFGs        *float64 `json:"maf_gs,omitempty"`

	FuelRateLh *float64 `json:"fuel_rate_lh,omitempty"`
	FuelSource string   `json:"fuel_source,omitempty"`

	AvgFuelConsumption *float64 `json:"avg_fuel_consumption_l100km,omitempty"`
	AvgSpeedKmh        *float64 `json:"avg_speed_kmh,omitempty"`
	DistanceKm         *float64 `json:"distance_km,omitempty"`
	FuelUsedL          *float64 `json:"fuel_used_l,omitempty"`
}

func newSnapshotView(s ecojuicer.Snapshot) snapshotView {
	v := snapshotView{
		Seq:  s.Seq,
		Time: s.Time,
		Gear: s.Gear,
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
		return v
	}
	v.RPM = &s.RPM
	v.SpeedKmh = &s.SpeedKmh
	v.MAFGs = &s.MAFGs
	v.FuelRateLh = &s.FuelRateLh
	v.FuelSource = s.FuelSource.String()
	v.DistanceKm = &s.DistanceKm
	v.FuelUsedL = &s.FuelUsedL
	if s.HasCoolant {
		v.CoolantTempC = &s.CoolantTempC
	}
	if s.HasAvgFuelConsumption {
		v.AvgFuelConsumption = &s.AvgFuelConsumption
	}
	if s.HasAvgSpeed {
		v.AvgSpeedKmh = &s.AvgSpeedKmh
	}
	return v
}
