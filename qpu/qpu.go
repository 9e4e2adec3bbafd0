package qpu

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/oqtopus-team/shadow-engine/core"
	"go.uber.org/zap"
)

const SimulatorDeviceName = "ShadowSim"
const SimulatorProviderName = "LocalProvider"

// SimulatorQPU is a local sampling backend for the restricted circuit
// family the engine emits: computational-basis preparation, a
// single-qubit rotation layer and a full measurement. Because the
// pre-rotation state is always a product of |0> and |1>, measuring in
// the X or Y basis is an unbiased coin while the Z basis reproduces
// the prepared bit. Optional readout flip probabilities model the
// assignment errors the mitigator is built to undo.
type SimulatorQPU struct {
	maxQubits int
	maxShots  int
	maxBatch  int
	flip0to1  float64
	flip1to0  float64
	rng       *rand.Rand
}

func (s *SimulatorQPU) Setup(conf *core.Conf) error {
	zap.L().Debug("setting up simulator QPU")
	s.maxQubits = conf.NumQubits
	s.maxShots = conf.MaxShots
	s.maxBatch = conf.MaxBatch
	s.flip0to1 = conf.ReadoutFlip0to1
	s.flip1to0 = conf.ReadoutFlip1to0
	if s.flip0to1 < 0 || s.flip0to1 > 1 || s.flip1to0 < 0 || s.flip1to0 > 1 {
		return fmt.Errorf("readout flip probabilities must be in [0,1], got %g and %g", s.flip0to1, s.flip1to0)
	}
	seed := conf.BackendSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(seed))
	return nil
}

func (s *SimulatorQPU) Execute(ctx context.Context, circuits []*core.Circuit, shots int) ([]core.ShotOutcomes, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("shots must be positive, got %d", shots)
	}
	if shots > s.maxShots {
		return nil, fmt.Errorf("shots %d exceeds device limit %d", shots, s.maxShots)
	}
	if len(circuits) > s.MaxBatch() {
		return nil, fmt.Errorf("batch of %d circuits exceeds device limit %d", len(circuits), s.MaxBatch())
	}
	results := make([]core.ShotOutcomes, len(circuits))
	for i, c := range circuits {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if c.NumQubits > s.maxQubits {
			return nil, fmt.Errorf("circuit %d needs %d qubits, device has %d", i, c.NumQubits, s.maxQubits)
		}
		results[i] = s.sample(c, shots)
	}
	return results, nil
}

func (s *SimulatorQPU) sample(c *core.Circuit, shots int) core.ShotOutcomes {
	prepared := make([]uint8, c.NumQubits)
	for _, q := range c.PrepFlips {
		prepared[q] = 1
	}
	outcomes := make(core.ShotOutcomes, shots)
	for shot := 0; shot < shots; shot++ {
		bits := make([]uint8, c.NumQubits)
		for q := 0; q < c.NumQubits; q++ {
			rotation := core.RotationNone
			if len(c.Rotations) > 0 {
				rotation = c.Rotations[q]
			}
			var bit uint8
			if rotation == core.RotationNone {
				bit = prepared[q]
			} else {
				// H and Sdg-H both map |0>/|1> onto the measurement
				// equator, so the outcome is an unbiased coin.
				bit = uint8(s.rng.Intn(2))
			}
			bits[q] = s.readout(bit)
		}
		outcomes[shot] = bits
	}
	return outcomes
}

func (s *SimulatorQPU) readout(bit uint8) uint8 {
	if bit == 0 {
		if s.flip0to1 > 0 && s.rng.Float64() < s.flip0to1 {
			return 1
		}
		return 0
	}
	if s.flip1to0 > 0 && s.rng.Float64() < s.flip1to0 {
		return 0
	}
	return 1
}

func (s *SimulatorQPU) MaxBatch() int {
	return s.maxBatch
}

func (s *SimulatorQPU) GetDeviceInfo() *core.DeviceInfo {
	return &core.DeviceInfo{
		DeviceName:   SimulatorDeviceName,
		ProviderName: SimulatorProviderName,
		Type:         "simulator",
		Status:       core.Available,
		MaxQubits:    s.maxQubits,
		MaxShots:     s.maxShots,
	}
}
