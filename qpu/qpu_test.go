package qpu

import (
	"context"
	"testing"

	"github.com/oqtopus-team/shadow-engine/core"
	"github.com/stretchr/testify/assert"
)

func newTestSimulator(t *testing.T, conf core.Conf) *SimulatorQPU {
	t.Helper()
	if conf.NumQubits == 0 {
		conf.NumQubits = 4
	}
	if conf.MaxShots == 0 {
		conf.MaxShots = 10000
	}
	if conf.MaxBatch == 0 {
		conf.MaxBatch = 100
	}
	if conf.BackendSeed == 0 {
		conf.BackendSeed = 1
	}
	s := &SimulatorQPU{}
	assert.Nil(t, s.Setup(&conf))
	return s
}

func TestSimulatorDeterministicZBasis(t *testing.T) {
	s := newTestSimulator(t, core.Conf{})
	// prepare |01> (flip on qubit 1), measure everything in Z
	circuit := core.NewPrepCircuit(2, 2)
	results, err := s.Execute(context.Background(), []*core.Circuit{circuit}, 50)
	assert.Nil(t, err)
	assert.Len(t, results, 1)
	assert.Len(t, results[0], 50)
	for _, bits := range results[0] {
		assert.Equal(t, []uint8{0, 1}, bits)
	}
}

func TestSimulatorReadoutFlip(t *testing.T) {
	s := newTestSimulator(t, core.Conf{ReadoutFlip0to1: 1.0, ReadoutFlip1to0: 1.0})
	circuit := core.NewPrepCircuit(2, 1)
	results, err := s.Execute(context.Background(), []*core.Circuit{circuit}, 10)
	assert.Nil(t, err)
	for _, bits := range results[0] {
		// deterministic full inversion of the prepared |10>
		assert.Equal(t, []uint8{0, 1}, bits)
	}
}

func TestSimulatorRotatedBasisIsUnbiased(t *testing.T) {
	s := newTestSimulator(t, core.Conf{})
	circuit, err := core.NewCircuit(1).WithRotations([]core.RotationGate{core.RotationH})
	assert.Nil(t, err)
	results, err := s.Execute(context.Background(), []*core.Circuit{circuit}, 2000)
	assert.Nil(t, err)
	ones := 0
	for _, bits := range results[0] {
		ones += int(bits[0])
	}
	ratio := float64(ones) / 2000.0
	assert.Greater(t, ratio, 0.4)
	assert.Less(t, ratio, 0.6)
}

func TestSimulatorLimits(t *testing.T) {
	s := newTestSimulator(t, core.Conf{NumQubits: 2, MaxShots: 10, MaxBatch: 2})

	_, err := s.Execute(context.Background(), []*core.Circuit{core.NewCircuit(2)}, 0)
	assert.Error(t, err)

	_, err = s.Execute(context.Background(), []*core.Circuit{core.NewCircuit(2)}, 11)
	assert.Error(t, err)

	_, err = s.Execute(context.Background(), []*core.Circuit{core.NewCircuit(3)}, 5)
	assert.Error(t, err)

	tooMany := []*core.Circuit{core.NewCircuit(2), core.NewCircuit(2), core.NewCircuit(2)}
	_, err = s.Execute(context.Background(), tooMany, 5)
	assert.Error(t, err)
}

func TestSimulatorDeviceInfo(t *testing.T) {
	s := newTestSimulator(t, core.Conf{NumQubits: 5, MaxShots: 123})
	info := s.GetDeviceInfo()
	assert.Equal(t, SimulatorDeviceName, info.DeviceName)
	assert.Equal(t, core.Available, info.Status)
	assert.Equal(t, 5, info.MaxQubits)
	assert.Equal(t, 123, info.MaxShots)
}

func TestExecuteChunked(t *testing.T) {
	s := newTestSimulator(t, core.Conf{NumQubits: 2, MaxBatch: 3})
	circuits := make([]*core.Circuit, 10)
	for i := range circuits {
		circuits[i] = core.NewPrepCircuit(2, i%4)
	}
	results, err := core.ExecuteChunked(context.Background(), s, circuits, 1)
	assert.Nil(t, err)
	assert.Len(t, results, 10)
	for i, res := range results {
		assert.Len(t, res, 1)
		// Z-basis outcomes reproduce the prepared state
		want := []uint8{uint8(i % 4 & 1), uint8(i % 4 >> 1)}
		assert.Equal(t, want, res[0])
	}
}
