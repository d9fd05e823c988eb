package charging

import "time"

// powerHold is how long the last positive power estimate is carried forward
// when a fresh sample yields nothing. Bridges network jitter without
// fabricating sustained power.
const powerHold = 3 * time.Second

// Estimator derives charging power from the rate of change of session energy
// when no configured power figure is available, e.g. when the dock only sees
// raw SOC samples. An estimate is accepted only for sample gaps between 0.2s
// and 5s with non-negative energy deltas, clamped to [0, cap].
type Estimator struct {
	lastEnergyKwh float64
	lastTickAt    time.Time
	lastPowerKw   float64
	lastPowerAt   time.Time
}

// Reset clears the estimator for a new session, seeding the energy baseline.
func (e *Estimator) Reset(energyKwh float64) {
	e.lastEnergyKwh = energyKwh
	e.lastTickAt = time.Time{}
	e.lastPowerKw = 0
	e.lastPowerAt = time.Time{}
}

// Sample feeds the accumulated session energy at time now and returns the
// estimated power in kW. ok is false when no estimate (fresh or held) exists.
func (e *Estimator) Sample(energyKwh, capKw float64, now time.Time) (powerKw float64, ok bool) {
	if !e.lastTickAt.IsZero() {
		dt := now.Sub(e.lastTickAt).Seconds()
		dE := energyKwh - e.lastEnergyKwh
		if dt > 0.2 && dt < 5 && dE >= 0 {
			p := dE * 3600 / dt
			if p > capKw {
				p = capKw
			}
			if p < 0 {
				p = 0
			}
			powerKw, ok = p, true
			if p > 0 {
				e.lastPowerKw = p
				e.lastPowerAt = now
			}
		}
	}

	if (!ok || powerKw == 0) && e.lastPowerKw > 0 && !e.lastPowerAt.IsZero() {
		if now.Sub(e.lastPowerAt) <= powerHold {
			powerKw, ok = e.lastPowerKw, true
		} else {
			e.lastPowerKw = 0
		}
	}

	e.lastTickAt = now
	e.lastEnergyKwh = energyKwh
	return powerKw, ok
}
