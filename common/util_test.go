package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexBitConvention(t *testing.T) {
	// index 6 = 0b110: qubit 0 is the low bit
	assert.Equal(t, uint8(0), IndexBit(6, 0))
	assert.Equal(t, uint8(1), IndexBit(6, 1))
	assert.Equal(t, uint8(1), IndexBit(6, 2))
	assert.Equal(t, uint8(0), IndexBit(6, 3))
}

func TestIndexBitsRoundTrip(t *testing.T) {
	numQubits := 4
	for j := 0; j < 1<<numQubits; j++ {
		bits := IndexToBits(j, numQubits)
		assert.Len(t, bits, numQubits)
		assert.Equal(t, j, BitsToIndex(bits))
		assert.Equal(t, j, mustStringToIndex(t, IndexToString(j, numQubits)))
	}
}

func mustStringToIndex(t *testing.T, s string) int {
	t.Helper()
	j, err := StringToIndex(s)
	assert.Nil(t, err)
	return j
}

func TestBitsToString(t *testing.T) {
	tests := []struct {
		name string
		bits []uint8
		want string
	}{
		{name: "all zero", bits: []uint8{0, 0, 0}, want: "000"},
		{name: "qubit zero set", bits: []uint8{1, 0, 0}, want: "100"},
		{name: "mixed", bits: []uint8{0, 1, 1}, want: "011"},
		{name: "empty", bits: []uint8{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BitsToString(tt.bits))
			back, err := StringToBits(tt.want)
			assert.Nil(t, err)
			assert.Equal(t, tt.bits, back)
		})
	}
}

func TestStringToBitsInvalid(t *testing.T) {
	_, err := StringToBits("01x")
	assert.Error(t, err)
}

func TestChecksumStable(t *testing.T) {
	a := Checksum([]byte("measurement record"))
	b := Checksum([]byte("measurement record"))
	c := Checksum([]byte("measurement recorD"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	assert.Nil(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err := ReadFile(path)
	assert.Nil(t, err)
	assert.Equal(t, "hello", got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
