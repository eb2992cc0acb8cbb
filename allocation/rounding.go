package allocation

import "math"

// RoundingStep is the granularity of every persisted hour value.
const RoundingStep = 0.5

const roundingEpsilon = 1e-9

// RoundUpStep rounds value up to the next multiple of step.
// Exact multiples are returned unchanged; step <= 0 is a passthrough.
func RoundUpStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	return math.Trunc((value+step-roundingEpsilon)/step) * step
}
