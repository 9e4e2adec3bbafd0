package mitig

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/oqtopus-team/shadow-engine/common"
	"github.com/oqtopus-team/shadow-engine/core"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const MITIGATION_SETTING_KEY = "mitigation"

const DEFAULT_CALIBRATION_SHOTS = 2048

// singular values below this are treated as zero in the pseudo-inverse
const pinvTolerance = 1e-12

type MitigationSetting struct {
	CalibrationShots int `toml:"calibration_shots"`
}

func NewMitigationSetting() MitigationSetting {
	return MitigationSetting{
		CalibrationShots: DEFAULT_CALIBRATION_SHOTS,
	}
}

// GetMitigationSetting resolves the registered mitigation component
// setting, keeping the package defaults for missing keys.
func GetMitigationSetting() MitigationSetting {
	setting := NewMitigationSetting()
	s, ok := core.GetComponentSetting(MITIGATION_SETTING_KEY)
	if !ok {
		zap.L().Debug("mitigation setting is not registered, using defaults")
		return setting
	}
	if typed, ok := s.(MitigationSetting); ok {
		return typed
	}
	mapped, ok := s.(map[string]interface{})
	if !ok {
		zap.L().Error(fmt.Sprintf("mitigation setting has unexpected type %T, using defaults", s))
		return setting
	}
	if v, ok := mapped["calibration_shots"].(int64); ok {
		setting.CalibrationShots = int(v)
	}
	return setting
}

// Mitigator owns the confusion matrix of an ordered set of calibrated
// qubits. Column j of the matrix is the empirical distribution of
// measured bitstring indices when basis state j was prepared. The
// matrix, its ordering and its inverse are read-only once calibrated.
type Mitigator struct {
	qubits   []int
	dim      int
	shots    int
	matrix   *mat.Dense
	inverse  *mat.Dense
	usedPinv bool
}

func NewMitigator(qubits []int) (*Mitigator, error) {
	if len(qubits) == 0 {
		return nil, fmt.Errorf("calibration needs at least one qubit")
	}
	seen := map[int]bool{}
	for _, q := range qubits {
		if q < 0 {
			return nil, fmt.Errorf("calibration qubit %d is negative", q)
		}
		if seen[q] {
			return nil, fmt.Errorf("calibration qubit %d appears twice in %v", q, qubits)
		}
		seen[q] = true
	}
	return &Mitigator{
		qubits: append([]int(nil), qubits...),
		dim:    1 << uint(len(qubits)),
	}, nil
}

func (m *Mitigator) Qubits() []int {
	return m.qubits
}

func (m *Mitigator) Dim() int {
	return m.dim
}

func (m *Mitigator) Calibrated() bool {
	return m.matrix != nil
}

// UsedPseudoInverse reports whether the matrix was singular and the
// Moore-Penrose pseudo-inverse is in use.
func (m *Mitigator) UsedPseudoInverse() bool {
	return m.usedPinv
}

// CalibrationCircuits builds one bit-flip preparation circuit per basis
// state of the calibrated qubits. No entangling gates are involved.
func (m *Mitigator) CalibrationCircuits() []*core.Circuit {
	numQubits := 0
	for _, q := range m.qubits {
		if q+1 > numQubits {
			numQubits = q + 1
		}
	}
	circuits := make([]*core.Circuit, m.dim)
	for j := 0; j < m.dim; j++ {
		c := core.NewCircuit(numQubits)
		for pos, q := range m.qubits {
			if common.IndexBit(j, pos) == 1 {
				c.PrepFlips = append(c.PrepFlips, q)
			}
		}
		circuits[j] = c
	}
	return circuits
}

// Calibrate executes the 2^q preparation circuits on the backend,
// batched to its limit, and accumulates the empirical confusion matrix.
// When a store is given the matrix is persisted and the artifact path
// returned.
func (m *Mitigator) Calibrate(ctx context.Context, backend core.Backend, store core.ArtifactStore, shots int) (string, error) {
	if shots <= 0 {
		return "", fmt.Errorf("calibration shots must be positive, got %d", shots)
	}
	circuits := m.CalibrationCircuits()
	zap.L().Info(fmt.Sprintf("calibrating qubits %v with %d circuits x %d shots", m.qubits, len(circuits), shots))
	results, err := core.ExecuteChunked(ctx, backend, circuits, shots)
	if err != nil {
		return "", fmt.Errorf("calibration of qubits %v failed: %w", m.qubits, err)
	}

	matrix := mat.NewDense(m.dim, m.dim, nil)
	for prepared, outcomes := range results {
		for _, bits := range outcomes {
			measuredBits := make([]uint8, len(m.qubits))
			for pos, q := range m.qubits {
				measuredBits[pos] = bits[q]
			}
			measured := common.BitsToIndex(measuredBits)
			matrix.Set(measured, prepared, matrix.At(measured, prepared)+1)
		}
		for measured := 0; measured < m.dim; measured++ {
			matrix.Set(measured, prepared, matrix.At(measured, prepared)/float64(len(outcomes)))
		}
	}
	m.matrix = matrix
	m.shots = shots
	m.invert()

	if store == nil {
		return "", nil
	}
	path, err := store.SaveConfusionMatrix(m.MatrixData())
	if err != nil {
		return "", fmt.Errorf("failed to persist confusion matrix for qubits %v: %w", m.qubits, err)
	}
	return path, nil
}

// MatrixData exports the calibrated matrix for persistence.
func (m *Mitigator) MatrixData() *core.ConfusionMatrixData {
	if m.matrix == nil {
		return nil
	}
	p := make([][]float64, m.dim)
	for measured := 0; measured < m.dim; measured++ {
		row := make([]float64, m.dim)
		for prepared := 0; prepared < m.dim; prepared++ {
			row[prepared] = m.matrix.At(measured, prepared)
		}
		p[measured] = row
	}
	return &core.ConfusionMatrixData{
		Qubits:  append([]int(nil), m.qubits...),
		Dim:     m.dim,
		P:       p,
		Shots:   m.shots,
		Created: strfmt.DateTime(time.Now()),
	}
}

// SetMatrixData installs a previously persisted matrix. The data must
// match the mitigator's calibrated qubit count.
func (m *Mitigator) SetMatrixData(data *core.ConfusionMatrixData) error {
	if data == nil {
		return fmt.Errorf("confusion matrix data is nil")
	}
	if data.Dim != m.dim || len(data.P) != data.Dim {
		return &core.CalibrationDimensionError{Qubits: m.qubits, Want: m.dim, Got: data.Dim}
	}
	matrix := mat.NewDense(m.dim, m.dim, nil)
	for measured, row := range data.P {
		if len(row) != m.dim {
			return &core.CalibrationDimensionError{Qubits: m.qubits, Want: m.dim, Got: len(row)}
		}
		for prepared, v := range row {
			matrix.Set(measured, prepared, v)
		}
	}
	m.matrix = matrix
	m.shots = data.Shots
	m.invert()
	return nil
}

func (m *Mitigator) invert() {
	var inv mat.Dense
	if err := inv.Inverse(m.matrix); err != nil {
		// singular or badly conditioned: recover with the
		// pseudo-inverse instead of failing the run
		zap.L().Warn(fmt.Sprintf("confusion matrix for qubits %v is singular, using pseudo-inverse: %s", m.qubits, err))
		m.inverse = pseudoInverse(m.matrix)
		m.usedPinv = true
		return
	}
	m.inverse = &inv
	m.usedPinv = false
}

func pseudoInverse(a *mat.Dense) *mat.Dense {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		zap.L().Error("SVD factorization failed, falling back to identity correction")
		rows, _ := a.Dims()
		identity := mat.NewDense(rows, rows, nil)
		for i := 0; i < rows; i++ {
			identity.Set(i, i, 1)
		}
		return identity
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)
	sigmaInv := mat.NewDense(len(values), len(values), nil)
	for i, s := range values {
		if s > pinvTolerance {
			sigmaInv.Set(i, i, 1/s)
		}
	}
	var tmp, pinv mat.Dense
	tmp.Mul(sigmaInv, u.T())
	pinv.Mul(&v, &tmp)
	return &pinv
}

// Apply corrects raw per-bitstring counts over the calibrated qubits:
// normalize, left-multiply by the matrix inverse, clip negatives,
// renormalize and scale back to the original total.
func (m *Mitigator) Apply(raw core.Counts) (core.Counts, error) {
	if m.matrix == nil {
		return nil, fmt.Errorf("mitigator for qubits %v has not been calibrated", m.qubits)
	}
	if len(raw) == 0 {
		return nil, core.ErrEmptyCounts
	}
	p := make([]float64, m.dim)
	var total float64
	for key, count := range raw {
		if len(key) != len(m.qubits) {
			return nil, &core.CalibrationDimensionError{Qubits: m.qubits, Want: len(m.qubits), Got: len(key)}
		}
		idx, err := common.StringToIndex(key)
		if err != nil {
			return nil, err
		}
		p[idx] += float64(count)
		total += float64(count)
	}
	if total == 0 {
		return nil, core.ErrEmptyCounts
	}
	for i := range p {
		p[i] /= total
	}
	corrected, err := m.ApplyToDistribution(p)
	if err != nil {
		return nil, err
	}
	var sum float64
	for _, v := range corrected {
		sum += v
	}
	if sum <= 0 {
		zap.L().Warn(fmt.Sprintf("corrected distribution for qubits %v is degenerate, returning raw counts", m.qubits))
		return raw, nil
	}
	out := make(core.Counts)
	for idx, v := range corrected {
		scaled := uint32(math.Round(v * total))
		if scaled > 0 {
			out[common.IndexToString(idx, len(m.qubits))] = scaled
		}
	}
	return out, nil
}

// ApplyToDistribution corrects a probability vector over the calibrated
// basis states. Negative entries are clipped to zero and the result is
// renormalized; a degenerate all-zero correction is returned as-is so
// the caller can decide on a fallback.
func (m *Mitigator) ApplyToDistribution(p []float64) ([]float64, error) {
	if m.matrix == nil {
		return nil, fmt.Errorf("mitigator for qubits %v has not been calibrated", m.qubits)
	}
	if len(p) != m.dim {
		return nil, &core.CalibrationDimensionError{Qubits: m.qubits, Want: m.dim, Got: len(p)}
	}
	vec := mat.NewVecDense(m.dim, append([]float64(nil), p...))
	var corrected mat.VecDense
	corrected.MulVec(m.inverse, vec)

	out := make([]float64, m.dim)
	var sum float64
	for i := 0; i < m.dim; i++ {
		v := corrected.AtVec(i)
		if v < 0 {
			v = 0
		}
		out[i] = v
		sum += v
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out, nil
}
