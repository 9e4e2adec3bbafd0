package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShadowConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ShadowConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *ShadowConfig) {}, wantErr: false},
		{name: "zero shadow size", mutate: func(c *ShadowConfig) { c.ShadowSize = 0 }, wantErr: true},
		{name: "negative shadow size", mutate: func(c *ShadowConfig) { c.ShadowSize = -5 }, wantErr: true},
		{name: "mom without groups", mutate: func(c *ShadowConfig) { c.MedianOfMeans = true; c.NumGroups = 0 }, wantErr: true},
		{name: "mom with groups", mutate: func(c *ShadowConfig) { c.MedianOfMeans = true; c.NumGroups = 10 }, wantErr: false},
		{name: "confidence at one", mutate: func(c *ShadowConfig) { c.ConfidenceLevel = 1.0 }, wantErr: true},
		{name: "confidence at zero", mutate: func(c *ShadowConfig) { c.ConfidenceLevel = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewShadowConfig(100)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestShadowConfigSeed(t *testing.T) {
	seed := int64(42)
	cfg := NewShadowConfig(10)
	cfg.RandomSeed = &seed
	assert.Equal(t, int64(42), cfg.Seed())

	unseeded := NewShadowConfig(10)
	assert.NotZero(t, unseeded.Seed())
}

func TestMeasurementRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  MeasurementRecord
		wantErr bool
	}{
		{
			name: "well formed",
			record: MeasurementRecord{
				Bases:    [][]uint8{{0, 1}, {2, 0}},
				Outcomes: [][]uint8{{0, 1}, {1, 0}},
			},
			wantErr: false,
		},
		{
			name: "row count mismatch",
			record: MeasurementRecord{
				Bases:    [][]uint8{{0, 1}},
				Outcomes: [][]uint8{{0, 1}, {1, 0}},
			},
			wantErr: true,
		},
		{
			name:    "empty",
			record:  MeasurementRecord{},
			wantErr: true,
		},
		{
			name: "ragged row",
			record: MeasurementRecord{
				Bases:    [][]uint8{{0, 1}, {2}},
				Outcomes: [][]uint8{{0, 1}, {1, 0}},
			},
			wantErr: true,
		},
		{
			name: "basis out of range",
			record: MeasurementRecord{
				Bases:    [][]uint8{{0, 3}},
				Outcomes: [][]uint8{{0, 1}},
			},
			wantErr: true,
		},
		{
			name: "outcome out of range",
			record: MeasurementRecord{
				Bases:    [][]uint8{{0, 1}},
				Outcomes: [][]uint8{{0, 2}},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestMeasurementRecordClone(t *testing.T) {
	record := &MeasurementRecord{
		Bases:    [][]uint8{{0, 1}, {2, 0}},
		Outcomes: [][]uint8{{0, 1}, {1, 0}},
	}
	clone := record.Clone()
	clone.Outcomes[0][0] = 1
	assert.Equal(t, uint8(0), record.Outcomes[0][0])
	assert.Equal(t, 2, clone.NumShadows())
	assert.Equal(t, 2, clone.NumQubits())
}

func TestCountsTotal(t *testing.T) {
	counts := Counts{"00": 400, "11": 600}
	assert.Equal(t, uint32(1000), counts.Total())
	assert.Equal(t, uint32(0), Counts{}.Total())
}

func TestCircuitWithRotations(t *testing.T) {
	base := NewPrepCircuit(3, 5) // 0b101: flips on qubits 0 and 2
	assert.Equal(t, []int{0, 2}, base.PrepFlips)

	rotated, err := base.WithRotations([]RotationGate{RotationH, RotationNone, RotationSdgH})
	assert.Nil(t, err)
	assert.Empty(t, base.Rotations)
	assert.Equal(t, RotationH, rotated.Rotations[0])

	_, err = base.WithRotations([]RotationGate{RotationH})
	assert.Error(t, err)
}

func TestRotationForBasis(t *testing.T) {
	r, err := RotationForBasis(BasisZ)
	assert.Nil(t, err)
	assert.Equal(t, RotationNone, r)
	r, err = RotationForBasis(BasisX)
	assert.Nil(t, err)
	assert.Equal(t, RotationH, r)
	r, err = RotationForBasis(BasisY)
	assert.Nil(t, err)
	assert.Equal(t, RotationSdgH, r)
	_, err = RotationForBasis(7)
	assert.Error(t, err)
}

func TestCircuitToQASM(t *testing.T) {
	c := NewPrepCircuit(2, 1)
	rotated, err := c.WithRotations([]RotationGate{RotationNone, RotationSdgH})
	assert.Nil(t, err)
	qasm := rotated.ToQASM()
	assert.Contains(t, qasm, "OPENQASM 3.0;")
	assert.Contains(t, qasm, "x q[0];")
	assert.Contains(t, qasm, "sdg q[1];")
	assert.Contains(t, qasm, "c[1] = measure q[1];")
}
