package core

import (
	"fmt"
	"strings"
)

// RotationGate is the single-qubit rotation applied before a
// computational-basis measurement. It selects the measured basis:
// none -> Z, H -> X, S†·H -> Y.
type RotationGate uint8

const (
	RotationNone RotationGate = iota
	RotationH
	RotationSdgH
)

func (r RotationGate) String() string {
	switch r {
	case RotationNone:
		return "id"
	case RotationH:
		return "h"
	case RotationSdgH:
		return "sdg_h"
	default:
		return "unknown"
	}
}

// RotationForBasis maps a basis index to its pre-measurement rotation.
func RotationForBasis(basis uint8) (RotationGate, error) {
	switch basis {
	case BasisZ:
		return RotationNone, nil
	case BasisX:
		return RotationH, nil
	case BasisY:
		return RotationSdgH, nil
	default:
		return RotationNone, fmt.Errorf("unknown basis index %d", basis)
	}
}

// Circuit is the structural circuit form the engine exchanges with a
// backend: a computational-basis state preparation (bit flips only),
// an optional per-qubit rotation layer, and a full measurement.
type Circuit struct {
	NumQubits int
	PrepFlips []int          // qubits receiving an X gate before anything else
	Rotations []RotationGate // empty or one rotation per qubit
}

func NewCircuit(numQubits int) *Circuit {
	return &Circuit{NumQubits: numQubits}
}

// NewPrepCircuit builds the calibration circuit preparing basis state
// j over numQubits qubits.
func NewPrepCircuit(numQubits int, stateIndex int) *Circuit {
	c := NewCircuit(numQubits)
	for q := 0; q < numQubits; q++ {
		if (stateIndex>>uint(q))&1 == 1 {
			c.PrepFlips = append(c.PrepFlips, q)
		}
	}
	return c
}

// WithRotations returns a copy of the circuit carrying the given
// rotation layer. The receiver is not modified.
func (c *Circuit) WithRotations(rotations []RotationGate) (*Circuit, error) {
	if len(rotations) != c.NumQubits {
		return nil, fmt.Errorf("rotation layer has %d gates for %d qubits", len(rotations), c.NumQubits)
	}
	clone := c.Clone()
	clone.Rotations = append([]RotationGate(nil), rotations...)
	return clone, nil
}

func (c *Circuit) Clone() *Circuit {
	return &Circuit{
		NumQubits: c.NumQubits,
		PrepFlips: append([]int(nil), c.PrepFlips...),
		Rotations: append([]RotationGate(nil), c.Rotations...),
	}
}

// ToQASM renders the circuit as OpenQASM 3 for logging and debugging.
// Backends consume the structural form, not this text.
func (c *Circuit) ToQASM() string {
	var sb strings.Builder
	sb.WriteString("OPENQASM 3.0;\ninclude \"stdgates.inc\";\n")
	sb.WriteString(fmt.Sprintf("bit[%d] c;\nqubit[%d] q;\n", c.NumQubits, c.NumQubits))
	for _, q := range c.PrepFlips {
		sb.WriteString(fmt.Sprintf("x q[%d];\n", q))
	}
	for q, r := range c.Rotations {
		switch r {
		case RotationH:
			sb.WriteString(fmt.Sprintf("h q[%d];\n", q))
		case RotationSdgH:
			sb.WriteString(fmt.Sprintf("sdg q[%d];\nh q[%d];\n", q, q))
		}
	}
	for q := 0; q < c.NumQubits; q++ {
		sb.WriteString(fmt.Sprintf("c[%d] = measure q[%d];\n", q, q))
	}
	return sb.String()
}
