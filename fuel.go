package ecojuicer

// FuelRateSupport records whether the vehicle answers the direct fuel rate
// PID. It starts Unknown and is settled by the first probe.
type FuelRateSupport uint8

const (
	FuelRateUnknown FuelRateSupport = iota
	FuelRateSupported
	FuelRateUnsupported
)

func (s FuelRateSupport) String() string {
	switch s {
	case FuelRateSupported:
		return "supported"
	case FuelRateUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// FuelModel estimates fuel burn from mass air flow.
type FuelModel struct {
	// AFR is the stoichiometric air/fuel mass ratio under load.
	AFR float64
	// IdleAFRMultiplier enriches the ratio below IdleRPM.
	IdleAFRMultiplier float64
	IdleRPM           int
	// DensityGL is the fuel density in grams per litre.
	DensityGL float64
}

// DieselFuelModel is the default model.
func DieselFuelModel() FuelModel {
	return FuelModel{
		AFR:               25.0,
		IdleAFRMultiplier: 1.7,
		IdleRPM:           900,
		DensityGL:         840.0,
	}
}

func (m FuelModel) afr(rpm int) float64 {
	if rpm < m.IdleRPM {
		return m.AFR * m.IdleAFRMultiplier
	}
	return m.AFR
}

// volumeFlow returns litres per second, zero with the engine off or no air.
func (m FuelModel) volumeFlow(mafGs float64, rpm int) float64 {
	if rpm <= 0 || mafGs <= 0 {
		return 0
	}
	massFlow := mafGs / m.afr(rpm)
	return massFlow / m.DensityGL
}

// Rate returns the instantaneous fuel rate in L/h.
func (m FuelModel) Rate(mafGs float64, rpm int) float64 {
	return m.volumeFlow(mafGs, rpm) * 3600.0
}

// Volume returns the litres burnt over elapsedSeconds.
func (m FuelModel) Volume(mafGs float64, rpm int, elapsedSeconds float64) float64 {
	return m.volumeFlow(mafGs, rpm) * elapsedSeconds
}
