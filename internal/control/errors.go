package control

import (
	"errors"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

// ErrorKind groups errors the way callers react to them.
type ErrorKind string

const (
	KindUsage        ErrorKind = "usage"
	KindNotSupported ErrorKind = "not_supported"
	KindNotFound     ErrorKind = "not_found"
	KindTimeout      ErrorKind = "timeout"
	KindUnavailable  ErrorKind = "unavailable"
	KindSDK          ErrorKind = "sdk"
)

// KindOf classifies err. Any error that is not recognised is KindSDK.
func KindOf(err error) ErrorKind {
	switch {
	case mystic.IsUsage(err), errors.Is(err, mystic.ErrInvalidArgument):
		return KindUsage
	case mystic.IsNotSupported(err):
		return KindNotSupported
	case errors.Is(err, ErrUnknownDevice), errors.Is(err, ErrUnknownZone), errors.Is(err, mystic.ErrDeviceNotFound):
		return KindNotFound
	case errors.Is(err, mystic.ErrTimeout):
		return KindTimeout
	case errors.Is(err, mystic.ErrPoisoned), errors.Is(err, mystic.ErrClosed), errors.Is(err, mystic.ErrNotInitialized):
		return KindUnavailable
	default:
		return KindSDK
	}
}
