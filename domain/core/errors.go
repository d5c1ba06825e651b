package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Calibration errors
	ErrCalibrationFailed           = errors.New("calibration failed")
	ErrInsufficientCalibrationData = fmt.Errorf("%w: insufficient calibration data", ErrCalibrationFailed)
	ErrDegenerateProfile           = fmt.Errorf("%w: max contraction does not exceed noise floor", ErrCalibrationFailed)

	// Acquisition errors
	ErrNoData        = errors.New("no samples in batch")
	ErrChannelLayout = errors.New("unexpected channel layout")

	// Persistence errors
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Error constructors with context
func NewInsufficientCalibrationError(phase string, channel int) error {
	return fmt.Errorf("%w: %s phase collected no samples for channel %d", ErrInsufficientCalibrationData, phase, channel)
}

func NewDegenerateProfileError(channel int, noise, max float64) error {
	return fmt.Errorf("%w: channel %d noise=%.4f max=%.4f", ErrDegenerateProfile, channel, noise, max)
}

func NewChannelLayoutError(have, need int) error {
	return fmt.Errorf("%w: batch has %d channels, need at least %d", ErrChannelLayout, have, need)
}

func NewPersistenceError(sink string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, sink, err)
}

// Error checking helpers
func IsCalibrationError(err error) bool {
	return errors.Is(err, ErrCalibrationFailed)
}

func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
