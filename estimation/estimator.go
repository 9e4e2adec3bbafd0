package estimation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/oqtopus-team/shadow-engine/core"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Estimator turns a shadow measurement record into per-observable
// expectation values. One loaded record serves any number of Estimate
// calls, the record is never mutated.
type Estimator struct {
	cfg    core.ShadowConfig
	record *core.MeasurementRecord
}

func NewEstimator(cfg core.ShadowConfig) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shadow config: %w", err)
	}
	return &Estimator{cfg: cfg}, nil
}

// LoadOutcomes ingests the measurement record produced by the
// generator/backend round-trip.
func (e *Estimator) LoadOutcomes(record *core.MeasurementRecord) error {
	if record == nil {
		return core.ErrNoMeasurementData
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("refusing to load malformed record: %w", err)
	}
	e.record = record
	return nil
}

func (e *Estimator) Record() *core.MeasurementRecord {
	return e.record
}

func (e *Estimator) Estimate(obs *core.Observable) (*core.ShadowEstimate, error) {
	if e.record == nil {
		return nil, core.ErrNoMeasurementData
	}
	if err := checkSupportFits(obs, e.record.NumQubits()); err != nil {
		return nil, err
	}
	values := PerShadowValues(e.record, obs)
	point, variance := Aggregate(e.cfg, values)
	lower, upper := ConfidenceInterval(point, variance, len(values), e.cfg.ConfidenceLevel)
	return &core.ShadowEstimate{
		ObservableID:  obs.ID,
		PauliString:   obs.PauliString,
		Expectation:   point,
		Variance:      variance,
		CILower:       lower,
		CIUpper:       upper,
		ShadowSize:    len(values),
		MedianOfMeans: e.cfg.MedianOfMeans,
		Created:       strfmt.DateTime(time.Now()),
	}, nil
}

func checkSupportFits(obs *core.Observable, numQubits int) error {
	if obs.NumQubits() > numQubits {
		return &core.ObservableQubitError{
			ObservableID: obs.ID,
			PauliString:  obs.PauliString,
			Reason:       fmt.Sprintf("pauli string spans %d qubits but the record has %d", obs.NumQubits(), numQubits),
		}
	}
	return nil
}

// PerShadowValues computes the single-shot inverse-channel estimator
// value of every shadow at once. A shadow contributes
// 3^|S| * prod(1-2b) * coeff when its bases match the observable on
// the whole support and exactly 0 otherwise; incompatible shadows are
// kept with weight zero, not dropped. The computation walks columns of
// the record, accumulating a compatibility mask and a sign product,
// the dominant hot path has no per-shadow branching on the observable.
func PerShadowValues(record *core.MeasurementRecord, obs *core.Observable) []float64 {
	numShadows := record.NumShadows()
	compatible := make([]bool, numShadows)
	sign := make([]float64, numShadows)
	for i := range compatible {
		compatible[i] = true
		sign[i] = 1
	}
	for _, q := range obs.Support() {
		want, _ := core.BasisForPauli(obs.PauliString[q])
		for i := 0; i < numShadows; i++ {
			if record.Bases[i][q] != want {
				compatible[i] = false
			}
			sign[i] *= float64(1 - 2*int(record.Outcomes[i][q]))
		}
	}
	scale := Scale(obs)
	values := make([]float64, numShadows)
	for i := range values {
		if compatible[i] {
			values[i] = scale * sign[i]
		}
	}
	return values
}

// PerShadowValue is the single-shadow form of PerShadowValues. The
// noise-aware estimator falls back to it for shadows with a degenerate
// corrected distribution.
func PerShadowValue(record *core.MeasurementRecord, i int, obs *core.Observable) float64 {
	sign := 1.0
	for _, q := range obs.Support() {
		want, _ := core.BasisForPauli(obs.PauliString[q])
		if record.Bases[i][q] != want {
			return 0
		}
		sign *= float64(1 - 2*int(record.Outcomes[i][q]))
	}
	return Scale(obs) * sign
}

// Scale is the inverse-channel prefactor 3^|S| times the coefficient.
func Scale(obs *core.Observable) float64 {
	return math.Pow(3, float64(obs.Locality())) * obs.Coefficient
}

// perShadowValuesLoop is the naive row-by-row reference the vectorized
// computation is checked against in tests.
func perShadowValuesLoop(record *core.MeasurementRecord, obs *core.Observable) []float64 {
	values := make([]float64, record.NumShadows())
	scale := Scale(obs)
	for i := range values {
		compatible := true
		sign := 1.0
		for _, q := range obs.Support() {
			want, _ := core.BasisForPauli(obs.PauliString[q])
			if record.Bases[i][q] != want {
				compatible = false
			}
			sign *= float64(1 - 2*int(record.Outcomes[i][q]))
		}
		if compatible {
			values[i] = scale * sign
		}
	}
	return values
}

// Aggregate reduces per-shadow values to a point estimate and a sample
// variance. With median-of-means enabled and enough shadows, the point
// estimate is the median of contiguous group means while the variance
// still comes from the raw values.
func Aggregate(cfg core.ShadowConfig, values []float64) (point float64, variance float64) {
	point = stat.Mean(values, nil)
	if len(values) > 1 {
		variance = stat.Variance(values, nil)
	}
	if cfg.MedianOfMeans && cfg.NumGroups > 1 && len(values) >= cfg.NumGroups {
		point = medianOfMeans(values, cfg.NumGroups)
	}
	return point, variance
}

func medianOfMeans(values []float64, numGroups int) float64 {
	groupSize := len(values) / numGroups
	means := make([]float64, numGroups)
	for g := 0; g < numGroups; g++ {
		group := values[g*groupSize : (g+1)*groupSize]
		means[g] = stat.Mean(group, nil)
	}
	sort.Float64s(means)
	mid := numGroups / 2
	if numGroups%2 == 1 {
		return means[mid]
	}
	return (means[mid-1] + means[mid]) / 2
}

// ConfidenceInterval builds a normal-approximation interval around the
// point estimate.
func ConfidenceInterval(point, variance float64, shadowSize int, level float64) (lower, upper float64) {
	if variance <= 0 || shadowSize <= 0 {
		return point, point
	}
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + level/2)
	half := z * math.Sqrt(variance/float64(shadowSize))
	if math.IsNaN(half) || math.IsInf(half, 0) {
		zap.L().Warn(fmt.Sprintf("degenerate confidence interval for level %g, falling back to point", level))
		return point, point
	}
	return point - half, point + half
}
