package estimation

import (
	"fmt"
	"math"

	"github.com/oqtopus-team/shadow-engine/core"
)

// VarianceBound is the analytic worst-case variance of the shadow
// estimator for an observable of the given locality: 4^k for a single
// shadow, 4^k/M for M shadows.
func VarianceBound(locality int, shadowSize int) (float64, error) {
	if locality < 0 {
		return 0, fmt.Errorf("locality must be non-negative, got %d", locality)
	}
	if shadowSize <= 0 {
		return 0, fmt.Errorf("shadow size must be positive, got %d", shadowSize)
	}
	return math.Pow(4, float64(locality)) / float64(shadowSize), nil
}

// PlanShadowSize computes the shadow count needed to estimate every
// observable in the set to absolute precision epsilon at confidence
// 1-delta, via the Chebyshev condition 4^k / (eps^2 * delta) <= M. The
// worst-case locality over the set dominates, not the average.
func PlanShadowSize(observables []*core.Observable, epsilon, delta float64) (int, error) {
	if len(observables) == 0 {
		return 0, fmt.Errorf("cannot plan a shadow size for an empty observable set")
	}
	if epsilon <= 0 {
		return 0, fmt.Errorf("target precision must be positive, got %g", epsilon)
	}
	if delta <= 0 || delta >= 1 {
		return 0, fmt.Errorf("failure probability must be in (0,1), got %g", delta)
	}
	k := core.MaxLocality(observables)
	needed := math.Ceil(math.Pow(4, float64(k)) / (epsilon * epsilon * delta))
	if needed < 1 {
		return 1, nil
	}
	// converting a float at or beyond MaxInt is not well defined
	if !(needed < float64(math.MaxInt)) {
		return 0, fmt.Errorf("planned shadow count %g for locality %d at precision %g is not representable", needed, k, epsilon)
	}
	return int(needed), nil
}
