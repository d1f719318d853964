package mystic

import "github.com/dokzlo13/mysticd/internal/oleaut"

// Entry point names exported by the SDK binary.
const (
	procInitialize      = "MLAPI_Initialize"
	procGetDeviceInfo   = "MLAPI_GetDeviceInfo"
	procGetLedInfo      = "MLAPI_GetLedInfo"
	procGetLedMaxBright = "MLAPI_GetLedMaxBright"
	procGetLedMaxSpeed  = "MLAPI_GetLedMaxSpeed"
	procGetLedStyle     = "MLAPI_GetLedStyle"
	procGetLedColor     = "MLAPI_GetLedColor"
	procGetLedBright    = "MLAPI_GetLedBright"
	procGetLedSpeed     = "MLAPI_GetLedSpeed"
	procSetLedStyle     = "MLAPI_SetLedStyle"
	procSetLedColor     = "MLAPI_SetLedColor"
	procSetLedBright    = "MLAPI_SetLedBright"
	procSetLedSpeed     = "MLAPI_SetLedSpeed"
)

// Library is the native contract of the Mystic Light SDK.
//
// Implementations are not safe for concurrent use and are only ever reached through a
// Handle. Every method returns the raw status of the entry point; the error result is
// reserved for entry points that cannot be resolved (*LibraryLoadError).
//
// Strings written to out parameters are owned by the library. Arrays written to out
// parameters are handed to the caller, which destroys them.
type Library interface {
	Initialize() (Status, error)
	GetDeviceInfo(deviceTypes, ledCounts *oleaut.SafeArray) (Status, error)
	GetLedInfo(device oleaut.BSTR, index uint32, name *oleaut.BSTR, styles *oleaut.SafeArray) (Status, error)
	GetLedMaxBright(device oleaut.BSTR, index uint32, level *uint32) (Status, error)
	GetLedMaxSpeed(device oleaut.BSTR, index uint32, level *uint32) (Status, error)
	GetLedStyle(device oleaut.BSTR, index uint32, style *oleaut.BSTR) (Status, error)
	GetLedColor(device oleaut.BSTR, index uint32, red, green, blue *uint32) (Status, error)
	GetLedBright(device oleaut.BSTR, index uint32, level *uint32) (Status, error)
	GetLedSpeed(device oleaut.BSTR, index uint32, level *uint32) (Status, error)
	SetLedStyle(device oleaut.BSTR, index uint32, style oleaut.BSTR) (Status, error)
	SetLedColor(device oleaut.BSTR, index uint32, red, green, blue uint32) (Status, error)
	SetLedBright(device oleaut.BSTR, index uint32, level uint32) (Status, error)
	SetLedSpeed(device oleaut.BSTR, index uint32, level uint32) (Status, error)

	// Automation returns the allocator the library expects strings to come from.
	Automation() oleaut.Automation

	// Release unloads the library.
	Release() error
}

// LoadLibrary opens the SDK binary at path. Entry points are resolved lazily on each
// call so that resolution happens under the same lock as the call itself.
func LoadLibrary(path string) (Library, error) {
	return loadLibrary(path)
}
