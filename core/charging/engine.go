// Package charging computes per-tick energy delivery under a tapering power
// curve. The engine is pure: it holds no state between calls, every value it
// needs arrives as a parameter and every result is returned to the caller.
package charging

import "math"

// TickResult describes the outcome of one simulation step.
type TickResult struct {
	// PowerKw is the power applied during the step, after tapering.
	PowerKw float64
	// DeliveredKwh is the energy actually stored, after clamping to the
	// battery maximum. This is the amount to accumulate, not the
	// theoretical PowerKw * step figure.
	DeliveredKwh float64
	// NewCapacityKwh is the battery capacity after the step.
	NewCapacityKwh float64
	// NewSOC is the state of charge after the step, in percent.
	NewSOC float64
	// TargetReached is true when the state of charge before the step had
	// already met the target. The crossing tick is therefore the last one
	// delivered.
	TargetReached bool
}

// PowerCap returns the effective power limit. When the vehicle's maximum
// charging power is unknown (zero) the charger rating alone applies.
func PowerCap(chargerKw, vehicleMaxKw float64) float64 {
	if vehicleMaxKw > 0 {
		return math.Min(math.Max(vehicleMaxKw, 0), math.Max(chargerKw, 0))
	}
	return math.Max(chargerKw, 0)
}

// TaperFactor returns the fraction of the power cap applied at the given
// state of charge:
//
//	soc >= 95        -> 0.2
//	90 <= soc < 95   -> 0.4
//	80 <= soc < 90   -> linear from 1.0 down to 0.7
//	soc < 80         -> 1.0
func TaperFactor(soc float64) float64 {
	switch {
	case soc >= 95:
		return 0.2
	case soc >= 90:
		return 0.4
	case soc >= 80:
		return 1 - ((soc-80)/10)*0.3
	default:
		return 1
	}
}

// Tick advances the simulation by stepSeconds. capKw is the effective power
// limit (see PowerCap), currentKwh/maxKwh the battery state and targetSOC the
// session target in percent.
func Tick(capKw, currentKwh, maxKwh, targetSOC, stepSeconds float64) TickResult {
	soc := 0.0
	if maxKwh > 0 {
		soc = currentKwh / maxKwh * 100
	}

	power := capKw * TaperFactor(soc)
	kwh := power * stepSeconds / 3600

	newCapacity := math.Min(maxKwh, currentKwh+kwh)
	delivered := newCapacity - currentKwh

	newSOC := 0.0
	if maxKwh > 0 {
		newSOC = newCapacity / maxKwh * 100
	}

	return TickResult{
		PowerKw:        power,
		DeliveredKwh:   delivered,
		NewCapacityKwh: newCapacity,
		NewSOC:         newSOC,
		TargetReached:  soc >= targetSOC,
	}
}
