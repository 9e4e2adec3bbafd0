package core

import (
	"errors"
	"fmt"
)

// ErrNoMeasurementData is returned when an estimate is requested before
// any measurement record has been loaded.
var ErrNoMeasurementData = errors.New("no measurement data has been loaded")

// ErrEmptyCounts is returned when mitigation is applied to an empty
// count map.
var ErrEmptyCounts = errors.New("counts is empty")

// CalibrationDimensionError reports a confusion matrix whose shape does
// not match the calibrated qubit count.
type CalibrationDimensionError struct {
	Qubits []int
	Want   int
	Got    int
}

func (e *CalibrationDimensionError) Error() string {
	return fmt.Sprintf("confusion matrix dimension %d does not match calibrated qubits %v (want %d)",
		e.Got, e.Qubits, e.Want)
}

// ObservableQubitError reports an observable whose support does not fit
// the measured or calibrated qubits. The observable is named so batch
// failures are attributable.
type ObservableQubitError struct {
	ObservableID string
	PauliString  string
	Reason       string
}

func (e *ObservableQubitError) Error() string {
	return fmt.Sprintf("observable %s(%s): %s", e.ObservableID, e.PauliString, e.Reason)
}
