package mystic

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the signed return code every SDK entry point produces.
type Status int32

// Status codes documented by the Mystic Light SDK.
const (
	StatusOK              Status = 0
	StatusGeneric         Status = -1
	StatusTimeout         Status = -2
	StatusNotImplemented  Status = -3
	StatusNotInitialized  Status = -4
	StatusInvalidArgument Status = -101
	StatusDeviceNotFound  Status = -102
	StatusNotSupported    Status = -103
)

// Errors reported by the native library. A *StatusError unwraps to exactly one of these.
//
//	if errors.Is(err, mystic.ErrNotSupported) {
//	    // the zone's current style ignores this attribute
//	}
var (
	ErrGeneric = errors.New("mystic: generic error")

	// ErrTimeout is also what the SDK reports when the process lacks administrator rights.
	ErrTimeout = errors.New("mystic: request timed out")

	ErrNotImplemented  = errors.New("mystic: MSI application not found or installed version not supported")
	ErrNotInitialized  = errors.New("mystic: MSI application was not initialized")
	ErrInvalidArgument = errors.New("mystic: parameter value is not valid")
	ErrDeviceNotFound  = errors.New("mystic: device not found")

	// ErrNotSupported is returned when the zone's current style ignores the attribute.
	ErrNotSupported = errors.New("mystic: requested feature is not supported by the selected LED")

	ErrUnknown = errors.New("mystic: unknown error")
)

// Errors raised by the wrapper itself.
var (
	// ErrUsage is matched by every caller-side contract violation detected before a
	// native call is issued.
	ErrUsage = errors.New("mystic: usage error")

	// ErrPoisoned is returned by every call after a previous holder of the native
	// handle panicked while holding it. The native state can no longer be trusted.
	ErrPoisoned = errors.New("mystic: native handle poisoned by a panic in a previous call")

	// ErrClosed is returned for calls issued after the SDK was closed.
	ErrClosed = errors.New("mystic: sdk closed")

	// ErrUnsupportedPlatform is wrapped in a LibraryLoadError outside Windows.
	ErrUnsupportedPlatform = errors.New("mystic: native SDK is only available on windows")

	// ErrMalformedDeviceInfo is returned when the zone count array holds a non-numeric value.
	ErrMalformedDeviceInfo = errors.New("mystic: malformed device info")
)

// Err maps a status code to its sentinel error. StatusOK maps to nil.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusGeneric:
		return ErrGeneric
	case StatusTimeout:
		return ErrTimeout
	case StatusNotImplemented:
		return ErrNotImplemented
	case StatusNotInitialized:
		return ErrNotInitialized
	case StatusInvalidArgument:
		return ErrInvalidArgument
	case StatusDeviceNotFound:
		return ErrDeviceNotFound
	case StatusNotSupported:
		return ErrNotSupported
	default:
		return ErrUnknown
	}
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusGeneric:
		return "Generic"
	case StatusTimeout:
		return "Timeout"
	case StatusNotImplemented:
		return "NotImplemented"
	case StatusNotInitialized:
		return "NotInitialized"
	case StatusInvalidArgument:
		return "InvalidArgument"
	case StatusDeviceNotFound:
		return "DeviceNotFound"
	case StatusNotSupported:
		return "NotSupported"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// StatusError is a non-zero status returned by a native entry point.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Status.Err().Error())
}

// Unwrap returns the sentinel for the status.
func (e *StatusError) Unwrap() error {
	return e.Status.Err()
}

// checkStatus converts the result of the entry point op into an error.
func checkStatus(op string, s Status) error {
	if s == StatusOK {
		return nil
	}
	return &StatusError{Op: op, Status: s}
}

// LibraryLoadError is returned when the SDK binary cannot be opened or one of its
// entry points cannot be resolved.
type LibraryLoadError struct {
	Path   string
	Symbol string
	Err    error
}

func (e *LibraryLoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("mystic: resolve %s in %s: %v", e.Symbol, e.Path, e.Err)
	}
	return fmt.Sprintf("mystic: load %s: %v", e.Path, e.Err)
}

func (e *LibraryLoadError) Unwrap() error {
	return e.Err
}

// NotSupportedStyleError is returned when setting a style the zone does not list.
type NotSupportedStyleError struct {
	Style     string
	Supported []string
}

func (e *NotSupportedStyleError) Error() string {
	return fmt.Sprintf("%s is not in the supported style list: %s", e.Style, strings.Join(e.Supported, ", "))
}

func (e *NotSupportedStyleError) Unwrap() error {
	return ErrUsage
}

// LevelOutOfRangeError is returned when a brightness or speed level exceeds the
// zone's advertised maximum and the level policy rejects it.
type LevelOutOfRangeError struct {
	Attribute string
	Level     uint32
	Max       uint32
}

func (e *LevelOutOfRangeError) Error() string {
	return fmt.Sprintf("%s level %d exceeds maximum %d", e.Attribute, e.Level, e.Max)
}

func (e *LevelOutOfRangeError) Unwrap() error {
	return ErrUsage
}

// IsNotSupported reports whether err carries the NotSupported status.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// IsUsage reports whether err is a caller-side contract violation.
func IsUsage(err error) bool {
	return errors.Is(err, ErrUsage)
}
