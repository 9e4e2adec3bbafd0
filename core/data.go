package core

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/mohae/deepcopy"
	"github.com/tidwall/pretty"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Counts map[string]uint32

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

func (c Counts) String() string {
	st, err := jsonIter.Marshal(c)
	if err != nil {
		zap.L().Error("Failed to marshal core.Counts")
		return ""
	}
	return string(st)
}

// Total sums all counts.
func (c Counts) Total() uint32 {
	var total uint32
	for _, v := range c {
		total += v
	}
	return total
}

// ShadowConfig is the immutable configuration of one estimation run.
// ApplyInverseChannel gates the noise-aware estimation path: with it
// off a mitigated estimator refuses to construct.
type ShadowConfig struct {
	ShadowSize          int      `json:"shadow_size"`
	RandomSeed          *int64   `json:"random_seed"`
	MedianOfMeans       bool     `json:"median_of_means"`
	NumGroups           int      `json:"num_groups"`
	ConfidenceLevel     float64  `json:"confidence_level"`
	ApplyInverseChannel bool     `json:"apply_inverse_channel"`
}

func NewShadowConfig(shadowSize int) ShadowConfig {
	return ShadowConfig{
		ShadowSize:          shadowSize,
		MedianOfMeans:       false,
		NumGroups:           1,
		ConfidenceLevel:     0.95,
		ApplyInverseChannel: true,
	}
}

func (c ShadowConfig) Validate() error {
	var errs error
	if c.ShadowSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("shadow_size must be positive, got %d", c.ShadowSize))
	}
	if c.MedianOfMeans && c.NumGroups <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("num_groups must be positive when median_of_means is enabled, got %d", c.NumGroups))
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		errs = multierr.Append(errs, fmt.Errorf("confidence_level must be in (0,1), got %g", c.ConfidenceLevel))
	}
	return errs
}

// Seed resolves the run seed, falling back to wall-clock time when no
// explicit seed is configured.
func (c ShadowConfig) Seed() int64 {
	if c.RandomSeed != nil {
		return *c.RandomSeed
	}
	return time.Now().UnixNano()
}

// MeasurementRecord holds the sampled measurement bases and observed
// outcomes of one shadow run. Both arrays are shadows x qubits. The
// record is written once by the generator/backend round-trip and only
// read afterwards, so it may be shared between estimator calls without
// locking.
type MeasurementRecord struct {
	Bases    [][]uint8
	Outcomes [][]uint8
}

func (r *MeasurementRecord) NumShadows() int {
	return len(r.Bases)
}

func (r *MeasurementRecord) NumQubits() int {
	if len(r.Bases) == 0 {
		return 0
	}
	return len(r.Bases[0])
}

func (r *MeasurementRecord) Validate() error {
	var errs error
	if len(r.Bases) != len(r.Outcomes) {
		errs = multierr.Append(errs, fmt.Errorf("bases has %d rows but outcomes has %d", len(r.Bases), len(r.Outcomes)))
		return errs
	}
	if len(r.Bases) == 0 {
		return multierr.Append(errs, fmt.Errorf("record is empty"))
	}
	numQubits := len(r.Bases[0])
	for i := range r.Bases {
		if len(r.Bases[i]) != numQubits || len(r.Outcomes[i]) != numQubits {
			errs = multierr.Append(errs, fmt.Errorf("row %d has ragged shape: bases %d, outcomes %d, want %d",
				i, len(r.Bases[i]), len(r.Outcomes[i]), numQubits))
			continue
		}
		for q := 0; q < numQubits; q++ {
			if r.Bases[i][q] > BasisY {
				errs = multierr.Append(errs, fmt.Errorf("row %d qubit %d has invalid basis %d", i, q, r.Bases[i][q]))
			}
			if r.Outcomes[i][q] > 1 {
				errs = multierr.Append(errs, fmt.Errorf("row %d qubit %d has invalid outcome %d", i, q, r.Outcomes[i][q]))
			}
		}
	}
	return errs
}

func (r *MeasurementRecord) Clone() *MeasurementRecord {
	return deepcopy.Copy(r).(*MeasurementRecord)
}

// ShadowEstimate is the immutable per-observable result of a run.
type ShadowEstimate struct {
	ObservableID  string          `json:"observable_id"`
	PauliString   string          `json:"pauli_string"`
	Expectation   float64         `json:"expectation_value"`
	Variance      float64         `json:"variance"`
	CILower       float64         `json:"ci_lower"`
	CIUpper       float64         `json:"ci_upper"`
	ShadowSize    int             `json:"shadow_size"`
	MedianOfMeans bool            `json:"median_of_means"`
	Mitigated     bool            `json:"mitigated"`
	Fallbacks     int             `json:"fallbacks"`
	Created       strfmt.DateTime `json:"created"`
}

func (e *ShadowEstimate) ToString() string {
	st, err := jsonIter.Marshal(e)
	if err != nil {
		zap.L().Error("Failed to marshal core.ShadowEstimate")
		return ""
	}
	st = pretty.Pretty(st)
	return string(st)
}

// ConfusionMatrixData is the persisted form of a calibrated confusion
// matrix. P is row-major, P[measured][prepared], column-stochastic when
// calibration shots were nonzero. Qubits records the calibrated qubit
// ordering; applying the matrix with a different ordering is
// meaningless.
type ConfusionMatrixData struct {
	Qubits  []int       `json:"qubits"`
	Dim     int         `json:"dim"`
	P       [][]float64 `json:"p"`
	Shots   int         `json:"shots"`
	Created strfmt.DateTime `json:"created"`
}

func (d *ConfusionMatrixData) Clone() *ConfusionMatrixData {
	return deepcopy.Copy(d).(*ConfusionMatrixData)
}
