package core

import (
	"context"
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"
)

var systemComponents *SystemComponents

// ShotOutcomes is the per-shot measurement result of one circuit.
// ShotOutcomes[s][q] is the bit observed on qubit q in shot s.
type ShotOutcomes [][]uint8

// Backend executes a batch of circuits and returns per-shot outcome
// bits per circuit, bit q of an outcome belonging to circuit qubit q.
// Cancellation and queueing of the underlying execution are the
// backend's concern, not the engine's.
type Backend interface {
	Setup(*Conf) error
	Execute(ctx context.Context, circuits []*Circuit, shots int) ([]ShotOutcomes, error)
	// MaxBatch is the largest circuit batch a single Execute call
	// accepts. Callers chunk explicitly instead of probing by failure.
	MaxBatch() int
	GetDeviceInfo() *DeviceInfo
}

// ArtifactStore persists measurement records and confusion matrices
// with checksums so a later verification pass can detect silent
// corruption.
type ArtifactStore interface {
	Setup(*Conf) error
	SaveRecord(record *MeasurementRecord) (string, error)
	LoadRecord(path string) (*MeasurementRecord, error)
	SaveConfusionMatrix(data *ConfusionMatrixData) (string, error)
	LoadConfusionMatrix(path string) (*ConfusionMatrixData, error)
	Verify(path string) error
}

type DeviceStatus int

const (
	Available DeviceStatus = iota
	Unavailable
)

func (ds DeviceStatus) String() string {
	switch ds {
	case Available:
		return "Available"
	case Unavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

type DeviceInfo struct {
	DeviceName   string       `json:"device_name"`
	ProviderName string       `json:"provider_name"`
	Type         string       `json:"type"`
	Status       DeviceStatus `json:"status"`
	MaxQubits    int          `json:"max_qubits"`
	MaxShots     int          `json:"max_shots"`
}

type SystemComponents struct {
	*dig.Container
}

func NewSystemComponents(con *dig.Container) *SystemComponents {
	return &SystemComponents{con}
}

func GetSystemComponents() *SystemComponents {
	return systemComponents
}

func (s *SystemComponents) Setup(conf *Conf) error {
	zap.L().Debug("Setting up backend")
	err := s.Invoke(
		func(b Backend) error {
			return b.Setup(conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up artifact store")
	err = s.Invoke(
		func(a ArtifactStore) error {
			return a.Setup(conf)
		})
	if err != nil {
		return err
	}
	systemComponents = s
	return nil
}

func (s *SystemComponents) GetDeviceInfo() *DeviceInfo {
	var deviceInfo *DeviceInfo
	err := s.Invoke(
		func(b Backend) error {
			deviceInfo = b.GetDeviceInfo()
			return nil
		})
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to get device info/reason:%s", err))
	}
	return deviceInfo
}

// ExecuteChunked splits circuits into MaxBatch-sized chunks and
// concatenates the per-circuit outcomes in submission order.
func ExecuteChunked(ctx context.Context, b Backend, circuits []*Circuit, shots int) ([]ShotOutcomes, error) {
	batch := b.MaxBatch()
	if batch <= 0 {
		batch = len(circuits)
	}
	outcomes := make([]ShotOutcomes, 0, len(circuits))
	for start := 0; start < len(circuits); start += batch {
		end := start + batch
		if end > len(circuits) {
			end = len(circuits)
		}
		chunk, err := b.Execute(ctx, circuits[start:end], shots)
		if err != nil {
			return nil, fmt.Errorf("backend failed on circuits [%d,%d): %w", start, end, err)
		}
		if len(chunk) != end-start {
			return nil, fmt.Errorf("backend returned %d results for %d circuits", len(chunk), end-start)
		}
		outcomes = append(outcomes, chunk...)
	}
	return outcomes, nil
}
