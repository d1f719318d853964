// Package oleaut models the OLE automation handles that cross the Mystic Light SDK
// boundary: BSTR wide strings and SAFEARRAYs of BSTR.
//
// The Automation interface is the small slice of oleaut32 the SDK wrapper needs.
// On Windows it is backed by oleaut32.dll (see System); everywhere else, and in tests,
// it is backed by Memory, a handle table that behaves like the real allocator.
package oleaut

import (
	"errors"
	"unicode/utf16"
)

// BSTR is an opaque handle to a length-prefixed UTF-16 string. The zero value is the
// null string.
type BSTR uintptr

// SafeArray is an opaque handle to a one-dimensional SAFEARRAY. The zero value is a
// null array pointer.
type SafeArray uintptr

var (
	// ErrOutOfMemory is returned when a string cannot be allocated.
	ErrOutOfMemory = errors.New("oleaut: out of memory")

	// ErrBadIndex is returned when an array element lies outside the array bounds.
	ErrBadIndex = errors.New("oleaut: array index out of bounds")

	// ErrInvalidHandle is returned for a handle the backend does not know.
	ErrInvalidHandle = errors.New("oleaut: invalid handle")
)

// Automation allocates, reads and frees automation strings and reads and destroys
// string arrays.
type Automation interface {
	// AllocString allocates a BSTR holding s. The caller owns the result.
	AllocString(s []uint16) (BSTR, error)

	// FreeString releases a BSTR the caller owns. Freeing the null BSTR is a no-op.
	FreeString(b BSTR)

	// StringData copies the UTF-16 contents of b. It never takes ownership.
	StringData(b BSTR) []uint16

	// ArrayBounds returns the inclusive lower and upper bound of dimension 1.
	// An empty array reports upper = lower-1.
	ArrayBounds(a SafeArray) (lower, upper int32, err error)

	// ArrayString returns a copy of the BSTR stored at index. The caller owns the copy.
	ArrayString(a SafeArray, index int32) (BSTR, error)

	// DestroyArray frees an array the caller owns together with the strings it holds.
	DestroyArray(a SafeArray) error
}

// Encode converts s to UTF-16 without a terminator.
func Encode(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// Decode converts UTF-16 to a string, replacing invalid surrogates.
func Decode(u []uint16) string {
	return string(utf16.Decode(u))
}
