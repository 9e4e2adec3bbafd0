package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/oqtopus-team/shadow-engine/common"
	"github.com/oqtopus-team/shadow-engine/core"
	"go.uber.org/zap"
)

// ErrArtifactCorrupted reports a persisted artifact whose payload no
// longer matches its recorded checksum.
var ErrArtifactCorrupted = errors.New("artifact payload does not match its checksum")

const (
	recordKind = "measurement_record"
	matrixKind = "confusion_matrix"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

type manifest struct {
	RunID    string          `json:"run_id"`
	Kind     string          `json:"kind"`
	Created  strfmt.DateTime `json:"created"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// FileStore persists measurement records and confusion matrices as
// checksummed JSON manifests under a single directory.
type FileStore struct {
	dir string
}

func (s *FileStore) Setup(conf *core.Conf) error {
	if err := os.MkdirAll(conf.ArtifactDir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir %s: %w", conf.ArtifactDir, err)
	}
	if err := common.IsDirWritable(conf.ArtifactDir); err != nil {
		return err
	}
	s.dir = conf.ArtifactDir
	return nil
}

// recordPayload is the on-disk schema of a measurement record. Plain
// int matrices keep the JSON human-readable, a [][]uint8 would be
// base64-encoded by the marshaller.
type recordPayload struct {
	Bases    [][]int `json:"bases"`
	Outcomes [][]int `json:"outcomes"`
}

func (s *FileStore) SaveRecord(record *core.MeasurementRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("measurement record is nil")
	}
	if err := record.Validate(); err != nil {
		return "", fmt.Errorf("refusing to persist malformed record: %w", err)
	}
	payload, err := jsonIter.Marshal(&recordPayload{
		Bases:    widen(record.Bases),
		Outcomes: widen(record.Outcomes),
	})
	if err != nil {
		return "", err
	}
	return s.write(recordKind, "record", payload)
}

func (s *FileStore) LoadRecord(path string) (*core.MeasurementRecord, error) {
	payload, err := s.read(path, recordKind)
	if err != nil {
		return nil, err
	}
	p := &recordPayload{}
	if err := jsonIter.Unmarshal(payload, p); err != nil {
		return nil, err
	}
	record := &core.MeasurementRecord{
		Bases:    narrow(p.Bases),
		Outcomes: narrow(p.Outcomes),
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("loaded record is malformed: %w", err)
	}
	return record, nil
}

func widen(rows [][]uint8) [][]int {
	out := make([][]int, len(rows))
	for i, row := range rows {
		out[i] = make([]int, len(row))
		for j, v := range row {
			out[i][j] = int(v)
		}
	}
	return out
}

func narrow(rows [][]int) [][]uint8 {
	out := make([][]uint8, len(rows))
	for i, row := range rows {
		out[i] = make([]uint8, len(row))
		for j, v := range row {
			out[i][j] = uint8(v)
		}
	}
	return out
}

func (s *FileStore) SaveConfusionMatrix(data *core.ConfusionMatrixData) (string, error) {
	if data == nil {
		return "", fmt.Errorf("confusion matrix data is nil")
	}
	payload, err := jsonIter.Marshal(data)
	if err != nil {
		return "", err
	}
	return s.write(matrixKind, "confusion-matrix", payload)
}

func (s *FileStore) LoadConfusionMatrix(path string) (*core.ConfusionMatrixData, error) {
	payload, err := s.read(path, matrixKind)
	if err != nil {
		return nil, err
	}
	data := &core.ConfusionMatrixData{}
	if err := jsonIter.Unmarshal(payload, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Verify re-reads an artifact and checks its checksum without
// interpreting the payload.
func (s *FileStore) Verify(path string) error {
	_, err := readManifest(path)
	return err
}

func (s *FileStore) write(kind, prefix string, payload []byte) (string, error) {
	m := manifest{
		RunID:    uuid.NewString(),
		Kind:     kind,
		Created:  strfmt.DateTime(time.Now()),
		Checksum: common.Checksum(payload),
		Payload:  payload,
	}
	// no pretty-printing here: the checksum covers the payload bytes
	// verbatim, reformatting them would invalidate it
	bytes, err := jsonIter.Marshal(m)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", prefix, m.RunID))
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	zap.L().Debug(fmt.Sprintf("persisted %s artifact to %s", kind, path))
	return path, nil
}

func (s *FileStore) read(path, wantKind string) (json.RawMessage, error) {
	m, err := readManifest(path)
	if err != nil {
		return nil, err
	}
	if m.Kind != wantKind {
		return nil, fmt.Errorf("artifact %s holds a %s, want a %s", path, m.Kind, wantKind)
	}
	return m.Payload, nil
}

func readManifest(path string) (*manifest, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	m := &manifest{}
	if err := jsonIter.Unmarshal(bytes, m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact %s: %w", path, err)
	}
	if common.Checksum(m.Payload) != m.Checksum {
		return nil, fmt.Errorf("artifact %s: %w", path, ErrArtifactCorrupted)
	}
	return m, nil
}
