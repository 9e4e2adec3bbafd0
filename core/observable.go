package core

import (
	"fmt"
	"strings"

	"github.com/oqtopus-team/shadow-engine/common"
)

// Measurement basis indices recorded by the generator and checked by
// the estimators.
const (
	BasisZ uint8 = 0
	BasisX uint8 = 1
	BasisY uint8 = 2
)

// BasisForPauli maps a non-identity Pauli character to the measurement
// basis that can estimate it.
func BasisForPauli(p byte) (uint8, bool) {
	switch p {
	case 'X':
		return BasisX, true
	case 'Y':
		return BasisY, true
	case 'Z':
		return BasisZ, true
	default:
		return 0, false
	}
}

type InvalidObservableError struct {
	PauliString string
	Reason      string
}

func (e *InvalidObservableError) Error() string {
	return fmt.Sprintf("invalid observable %q: %s", e.PauliString, e.Reason)
}

// Observable is an immutable weighted Pauli string. Support and
// locality are computed once in the constructor and never recomputed.
type Observable struct {
	PauliString string
	Coefficient float64
	ID          string

	support  []int
	locality int
}

func NewObservable(pauliString string, coefficient float64) (*Observable, error) {
	if pauliString == "" {
		return nil, &InvalidObservableError{PauliString: pauliString, Reason: "empty pauli string"}
	}
	support := []int{}
	for q := 0; q < len(pauliString); q++ {
		switch pauliString[q] {
		case 'I':
		case 'X', 'Y', 'Z':
			support = append(support, q)
		default:
			return nil, &InvalidObservableError{
				PauliString: pauliString,
				Reason:      fmt.Sprintf("character %q at position %d is not one of I,X,Y,Z", pauliString[q], q),
			}
		}
	}
	return &Observable{
		PauliString: pauliString,
		Coefficient: coefficient,
		ID:          observableID(pauliString, coefficient),
		support:     support,
		locality:    len(support),
	}, nil
}

// MustObservable is a constructor for fixed literals in tests and the
// demo command. It panics on a malformed pauli string.
func MustObservable(pauliString string, coefficient float64) *Observable {
	o, err := NewObservable(pauliString, coefficient)
	if err != nil {
		panic(err)
	}
	return o
}

// Support returns the qubit positions carrying a non-identity Pauli.
// The returned slice is owned by the observable and must not be
// modified.
func (o *Observable) Support() []int {
	return o.support
}

func (o *Observable) Locality() int {
	return o.locality
}

// Weight is an alias for Locality.
func (o *Observable) Weight() int {
	return o.locality
}

func (o *Observable) NumQubits() int {
	return len(o.PauliString)
}

// Key identifies the observable for deduplication. Two observables with
// the same pauli string but different coefficients are distinct.
func (o *Observable) Key() string {
	return fmt.Sprintf("%s/%g", o.PauliString, o.Coefficient)
}

func (o *Observable) String() string {
	return fmt.Sprintf("%g*%s", o.Coefficient, o.PauliString)
}

func observableID(pauliString string, coefficient float64) string {
	sum := common.Checksum([]byte(fmt.Sprintf("%s/%g", pauliString, coefficient)))
	return "obs-" + sum[:12]
}

// MaxLocality returns the largest support size in a set of observables.
// The shot-size planner sizes runs against the worst case.
func MaxLocality(observables []*Observable) int {
	max := 0
	for _, o := range observables {
		if o.Locality() > max {
			max = o.Locality()
		}
	}
	return max
}

// ParseObservables parses the job-info operator list format,
// e.g. [{"pauli":"ZZ","coeff":1.5},{"pauli":"XI","coeff":0.5}].
func ParseObservables(info string) ([]*Observable, error) {
	type operator struct {
		Pauli string  `json:"pauli"`
		CoEff float64 `json:"coeff"`
	}
	operators := []operator{}
	if err := jsonIter.Unmarshal([]byte(info), &operators); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operators from %q: %w", info, err)
	}
	observables := make([]*Observable, 0, len(operators))
	seen := map[string]bool{}
	for _, op := range operators {
		o, err := NewObservable(strings.ToUpper(op.Pauli), op.CoEff)
		if err != nil {
			return nil, err
		}
		if seen[o.Key()] {
			continue
		}
		seen[o.Key()] = true
		observables = append(observables, o)
	}
	return observables, nil
}
