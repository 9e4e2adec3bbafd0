package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Bit-ordering convention used across the whole engine: array column q,
// bitstring character q and index bit q all refer to qubit q. The index
// of a basis state is little-endian in the qubit number, bit q of index
// j is (j>>q)&1. No call site reverses strings.

// IndexBit returns bit q of the basis-state index j.
func IndexBit(j int, q int) uint8 {
	return uint8((j >> uint(q)) & 1)
}

// IndexToBits expands a basis-state index into per-qubit bits.
func IndexToBits(j int, numQubits int) []uint8 {
	bits := make([]uint8, numQubits)
	for q := 0; q < numQubits; q++ {
		bits[q] = IndexBit(j, q)
	}
	return bits
}

// BitsToIndex is the inverse of IndexToBits.
func BitsToIndex(bits []uint8) int {
	j := 0
	for q, b := range bits {
		if b != 0 {
			j |= 1 << uint(q)
		}
	}
	return j
}

// BitsToString renders per-qubit bits as a bitstring key. Character q
// is qubit q.
func BitsToString(bits []uint8) string {
	var sb strings.Builder
	sb.Grow(len(bits))
	for _, b := range bits {
		if b == 0 {
			sb.WriteByte('0')
		} else {
			sb.WriteByte('1')
		}
	}
	return sb.String()
}

// StringToBits parses a bitstring key back into per-qubit bits.
func StringToBits(s string) ([]uint8, error) {
	bits := make([]uint8, len(s))
	for q := 0; q < len(s); q++ {
		switch s[q] {
		case '0':
			bits[q] = 0
		case '1':
			bits[q] = 1
		default:
			return nil, fmt.Errorf("invalid character %q in bitstring %q", s[q], s)
		}
	}
	return bits, nil
}

// IndexToString renders a basis-state index directly as a bitstring key.
func IndexToString(j int, numQubits int) string {
	return BitsToString(IndexToBits(j, numQubits))
}

// StringToIndex parses a bitstring key into a basis-state index.
func StringToIndex(s string) (int, error) {
	bits, err := StringToBits(s)
	if err != nil {
		return 0, err
	}
	return BitsToIndex(bits), nil
}

// Checksum returns the hex SHA-256 digest of data. The artifact store
// uses it to detect silent corruption of persisted records.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func ReadFile(filepath string) (string, error) {
	bytes, err := os.ReadFile(filepath)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func IsDirWritable(dirPath string) error {
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dirPath)
	}
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dirPath)
	}

	tempFile, err := os.CreateTemp(dirPath, "test-write-*.tmp")
	if err != nil {
		return fmt.Errorf("write permission denied for directory: %s", dirPath)
	}
	fileName := tempFile.Name()
	tempFile.Close()

	if err := os.Remove(fileName); err != nil {
		return fmt.Errorf("failed to remove temporary file: %s", err)
	}

	return nil
}

func ReadSettingsFile(settingsPath string) (string, error) {
	contents, err := ReadFile(settingsPath)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to read settings file/path:%s/reason:%s",
			settingsPath, err))
		if absolutePath, err := filepath.Abs(settingsPath); err != nil {
			zap.L().Error(fmt.Sprintf("failed to get absolute path of %s/reason:%s",
				settingsPath, err))
		} else {
			zap.L().Debug(fmt.Sprintf("absolute path:%s", absolutePath))
		}
		return "", err
	}
	return contents, nil
}
