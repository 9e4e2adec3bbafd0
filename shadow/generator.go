package shadow

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/oqtopus-team/shadow-engine/core"
	"go.uber.org/zap"
)

const SHADOW_SETTING_KEY = "shadow"

const (
	DEFAULT_SHADOW_SIZE      = 1000
	DEFAULT_CONFIDENCE_LEVEL = 0.95
	DEFAULT_NUM_GROUPS       = 10
)

type ShadowSetting struct {
	DefaultShadowSize int     `toml:"default_shadow_size"`
	ConfidenceLevel   float64 `toml:"confidence_level"`
	NumGroups         int     `toml:"num_groups"`
}

func NewShadowSetting() ShadowSetting {
	return ShadowSetting{
		DefaultShadowSize: DEFAULT_SHADOW_SIZE,
		ConfidenceLevel:   DEFAULT_CONFIDENCE_LEVEL,
		NumGroups:         DEFAULT_NUM_GROUPS,
	}
}

// GetShadowSetting resolves the registered shadow component setting,
// keeping the package defaults for keys the setting file does not
// carry. The second return reports whether a parsed [com.shadow] table
// was found, as opposed to the registered defaults.
func GetShadowSetting() (ShadowSetting, bool) {
	setting := NewShadowSetting()
	s, ok := core.GetComponentSetting(SHADOW_SETTING_KEY)
	if !ok {
		zap.L().Debug("shadow setting is not registered, using defaults")
		return setting, false
	}
	if typed, ok := s.(ShadowSetting); ok {
		return typed, false
	}
	mapped, ok := s.(map[string]interface{})
	if !ok {
		zap.L().Error(fmt.Sprintf("shadow setting has unexpected type %T, using defaults", s))
		return setting, false
	}
	if v, ok := mapped["default_shadow_size"].(int64); ok {
		setting.DefaultShadowSize = int(v)
	}
	if v, ok := mapped["confidence_level"].(float64); ok {
		setting.ConfidenceLevel = v
	}
	if v, ok := mapped["num_groups"].(int64); ok {
		setting.NumGroups = int(v)
	}
	return setting, true
}

// Generator samples random local measurement bases and emits the
// matching rotated circuits. It never executes anything, execution
// belongs to the backend.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator builds a generator with an explicit seed. Every
// generation call consumes this generator's own stream, there is no
// process-wide RNG.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate draws one uniform basis from {Z,X,Y} per shadow and qubit,
// returning the rotated circuits paired row-for-row with the sampled
// bases array.
func (g *Generator) Generate(base *core.Circuit, shadowSize int) ([]*core.Circuit, [][]uint8, error) {
	if shadowSize <= 0 {
		return nil, nil, fmt.Errorf("shadow size must be positive, got %d", shadowSize)
	}
	if base == nil || base.NumQubits <= 0 {
		return nil, nil, fmt.Errorf("base circuit must have at least one qubit")
	}
	numQubits := base.NumQubits
	circuits := make([]*core.Circuit, shadowSize)
	bases := make([][]uint8, shadowSize)
	for i := 0; i < shadowSize; i++ {
		row := make([]uint8, numQubits)
		rotations := make([]core.RotationGate, numQubits)
		for q := 0; q < numQubits; q++ {
			b := uint8(g.rng.Intn(3))
			row[q] = b
			rotation, err := core.RotationForBasis(b)
			if err != nil {
				return nil, nil, err
			}
			rotations[q] = rotation
		}
		rotated, err := base.WithRotations(rotations)
		if err != nil {
			return nil, nil, err
		}
		bases[i] = row
		circuits[i] = rotated
	}
	zap.L().Debug(fmt.Sprintf("generated %d shadow circuits over %d qubits", shadowSize, numQubits))
	return circuits, bases, nil
}

// Collect runs the full generation round-trip: sample bases, execute
// each rotated circuit for a single shot on the backend (chunked to
// its batch limit) and assemble the immutable measurement record.
func (g *Generator) Collect(ctx context.Context, backend core.Backend, base *core.Circuit, shadowSize int) (*core.MeasurementRecord, error) {
	circuits, bases, err := g.Generate(base, shadowSize)
	if err != nil {
		return nil, err
	}
	results, err := core.ExecuteChunked(ctx, backend, circuits, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to execute shadow circuits: %w", err)
	}
	outcomes := make([][]uint8, shadowSize)
	for i, res := range results {
		if len(res) != 1 || len(res[0]) != base.NumQubits {
			return nil, fmt.Errorf("backend returned malformed outcome for shadow %d", i)
		}
		outcomes[i] = res[0]
	}
	record := &core.MeasurementRecord{Bases: bases, Outcomes: outcomes}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("backend produced an invalid record: %w", err)
	}
	return record, nil
}
