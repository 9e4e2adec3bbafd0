package mitig

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/oqtopus-team/shadow-engine/common"
	"github.com/oqtopus-team/shadow-engine/core"
	"github.com/oqtopus-team/shadow-engine/estimation"
	"go.uber.org/zap"
)

// NoiseAwareEstimator composes the confusion-matrix correction with the
// shadow estimator's compatibility-masked Pauli logic. Each shadow's
// single observed outcome is expanded into a corrected distribution
// over all calibrated-qubit basis states, and the per-shadow value
// becomes the probability-weighted parity sum instead of a hard
// compatible/incompatible product.
type NoiseAwareEstimator struct {
	cfg       core.ShadowConfig
	mitigator *Mitigator
	record    *core.MeasurementRecord
	fallbacks int
}

func NewNoiseAwareEstimator(cfg core.ShadowConfig, mitigator *Mitigator) (*NoiseAwareEstimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shadow config: %w", err)
	}
	if !cfg.ApplyInverseChannel {
		return nil, fmt.Errorf("noise-aware estimation is disabled, apply_inverse_channel is off")
	}
	if mitigator == nil || !mitigator.Calibrated() {
		return nil, fmt.Errorf("noise-aware estimation needs a calibrated mitigator")
	}
	return &NoiseAwareEstimator{cfg: cfg, mitigator: mitigator}, nil
}

func (e *NoiseAwareEstimator) LoadOutcomes(record *core.MeasurementRecord) error {
	if record == nil {
		return core.ErrNoMeasurementData
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("refusing to load malformed record: %w", err)
	}
	for _, q := range e.mitigator.Qubits() {
		if q >= record.NumQubits() {
			return fmt.Errorf("calibrated qubit %d is outside the %d-qubit record", q, record.NumQubits())
		}
	}
	e.record = record
	e.fallbacks = 0
	return nil
}

// Fallbacks counts the shadows of the last Estimate call whose
// corrected distribution was degenerate and fell back to the
// unmitigated estimator.
func (e *NoiseAwareEstimator) Fallbacks() int {
	return e.fallbacks
}

func (e *NoiseAwareEstimator) Estimate(obs *core.Observable) (*core.ShadowEstimate, error) {
	if e.record == nil {
		return nil, core.ErrNoMeasurementData
	}
	supportPos, err := e.supportPositions(obs)
	if err != nil {
		return nil, err
	}

	numShadows := e.record.NumShadows()
	qubits := e.mitigator.Qubits()
	dim := e.mitigator.Dim()
	scale := estimation.Scale(obs)
	values := make([]float64, numShadows)
	fallbacks := 0

	oneHot := make([]float64, dim)
	measuredBits := make([]uint8, len(qubits))
	for i := 0; i < numShadows; i++ {
		if !e.basesCompatible(i, obs) {
			continue
		}
		for pos, q := range qubits {
			measuredBits[pos] = e.record.Outcomes[i][q]
		}
		for j := range oneHot {
			oneHot[j] = 0
		}
		oneHot[common.BitsToIndex(measuredBits)] = 1

		corrected, err := e.mitigator.ApplyToDistribution(oneHot)
		if err != nil {
			return nil, err
		}
		var sum float64
		for _, v := range corrected {
			sum += v
		}
		if sum <= 0 {
			// degenerate correction for this shadow only, keep the
			// run alive with the unmitigated estimator
			values[i] = estimation.PerShadowValue(e.record, i, obs)
			fallbacks++
			continue
		}
		var weighted float64
		for j, prob := range corrected {
			if prob == 0 {
				continue
			}
			parity := 1.0
			for _, pos := range supportPos {
				parity *= float64(1 - 2*int(common.IndexBit(j, pos)))
			}
			weighted += prob * parity
		}
		values[i] = scale * weighted
	}
	if fallbacks > 0 {
		zap.L().Warn(fmt.Sprintf("observable %s: %d of %d shadows fell back to the unmitigated estimator",
			obs.ID, fallbacks, numShadows))
	}
	e.fallbacks = fallbacks

	point, variance := estimation.Aggregate(e.cfg, values)
	lower, upper := estimation.ConfidenceInterval(point, variance, numShadows, e.cfg.ConfidenceLevel)
	return &core.ShadowEstimate{
		ObservableID:  obs.ID,
		PauliString:   obs.PauliString,
		Expectation:   point,
		Variance:      variance,
		CILower:       lower,
		CIUpper:       upper,
		ShadowSize:    numShadows,
		MedianOfMeans: e.cfg.MedianOfMeans,
		Mitigated:     true,
		Fallbacks:     fallbacks,
		Created:       strfmt.DateTime(time.Now()),
	}, nil
}

// supportPositions maps every support qubit of the observable onto its
// position in the calibrated qubit ordering.
func (e *NoiseAwareEstimator) supportPositions(obs *core.Observable) ([]int, error) {
	posByQubit := map[int]int{}
	for pos, q := range e.mitigator.Qubits() {
		posByQubit[q] = pos
	}
	positions := make([]int, 0, obs.Locality())
	for _, q := range obs.Support() {
		pos, ok := posByQubit[q]
		if !ok {
			return nil, &core.ObservableQubitError{
				ObservableID: obs.ID,
				PauliString:  obs.PauliString,
				Reason:       fmt.Sprintf("support qubit %d is not in the calibrated set %v", q, e.mitigator.Qubits()),
			}
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (e *NoiseAwareEstimator) basesCompatible(i int, obs *core.Observable) bool {
	for _, q := range obs.Support() {
		want, _ := core.BasisForPauli(obs.PauliString[q])
		if e.record.Bases[i][q] != want {
			return false
		}
	}
	return true
}
