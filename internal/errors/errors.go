package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes surfaced to the launcher and logs
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeDeviceError        = "DEVICE_ERROR"
	CodeCalibrationFailed  = "CALIBRATION_FAILED"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeUnknown            = "UNKNOWN"
)

// AppError carries a stable code next to a human message. Cause stays
// reachable through errors.Is and errors.As.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError without a cause
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap adds context to err. The code of the nearest AppError in the chain is
// kept; plain errors become INTERNAL_ERROR.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: codeOf(err, CodeInternalError), Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError reports whether any error in the chain is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the nearest AppError, or UNKNOWN
func GetCode(err error) string {
	return codeOf(err, CodeUnknown)
}

// HasCode reports whether the nearest AppError carries code
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

func codeOf(err error, fallback string) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return fallback
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// DeviceError reports a failed acquisition step; what names the device or the
// operation.
func DeviceError(what string, cause error) *AppError {
	return &AppError{Code: CodeDeviceError, Message: "device " + what, Cause: cause}
}

func CalibrationFailed(attempts int, cause error) *AppError {
	return &AppError{
		Code:    CodeCalibrationFailed,
		Message: fmt.Sprintf("calibration failed after %d attempt(s)", attempts),
		Cause:   cause,
	}
}

func PersistenceFailure(sink string, cause error) *AppError {
	return &AppError{Code: CodePersistenceFailure, Message: sink + " sink", Cause: cause}
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
