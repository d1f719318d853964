//go:build windows

package mystic

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/dokzlo13/mysticd/internal/oleaut"
)

type dllLibrary struct {
	path string
	dll  *windows.DLL
	auto oleaut.Automation
}

func loadLibrary(path string) (Library, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, &LibraryLoadError{Path: path, Err: err}
	}
	return &dllLibrary{path: path, dll: dll, auto: oleaut.System()}, nil
}

// call resolves name and invokes it. The SDK uses the C calling convention with
// 32-bit DWORD arguments, which Proc.Call passes as uintptr.
func (l *dllLibrary) call(name string, args ...uintptr) (Status, error) {
	proc, err := l.dll.FindProc(name)
	if err != nil {
		return 0, &LibraryLoadError{Path: l.path, Symbol: name, Err: err}
	}
	r, _, _ := proc.Call(args...)
	return Status(int32(r)), nil
}

func ptr[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}

func (l *dllLibrary) Initialize() (Status, error) {
	return l.call(procInitialize)
}

func (l *dllLibrary) GetDeviceInfo(deviceTypes, ledCounts *oleaut.SafeArray) (Status, error) {
	return l.call(procGetDeviceInfo, ptr(deviceTypes), ptr(ledCounts))
}

func (l *dllLibrary) GetLedInfo(device oleaut.BSTR, index uint32, name *oleaut.BSTR, styles *oleaut.SafeArray) (Status, error) {
	return l.call(procGetLedInfo, uintptr(device), uintptr(index), ptr(name), ptr(styles))
}

func (l *dllLibrary) GetLedMaxBright(device oleaut.BSTR, index uint32, level *uint32) (Status, error) {
	return l.call(procGetLedMaxBright, uintptr(device), uintptr(index), ptr(level))
}

func (l *dllLibrary) GetLedMaxSpeed(device oleaut.BSTR, index uint32, level *uint32) (Status, error) {
	return l.call(procGetLedMaxSpeed, uintptr(device), uintptr(index), ptr(level))
}

func (l *dllLibrary) GetLedStyle(device oleaut.BSTR, index uint32, style *oleaut.BSTR) (Status, error) {
	return l.call(procGetLedStyle, uintptr(device), uintptr(index), ptr(style))
}

func (l *dllLibrary) GetLedColor(device oleaut.BSTR, index uint32, red, green, blue *uint32) (Status, error) {
	return l.call(procGetLedColor, uintptr(device), uintptr(index), ptr(red), ptr(green), ptr(blue))
}

func (l *dllLibrary) GetLedBright(device oleaut.BSTR, index uint32, level *uint32) (Status, error) {
	return l.call(procGetLedBright, uintptr(device), uintptr(index), ptr(level))
}

func (l *dllLibrary) GetLedSpeed(device oleaut.BSTR, index uint32, level *uint32) (Status, error) {
	return l.call(procGetLedSpeed, uintptr(device), uintptr(index), ptr(level))
}

func (l *dllLibrary) SetLedStyle(device oleaut.BSTR, index uint32, style oleaut.BSTR) (Status, error) {
	return l.call(procSetLedStyle, uintptr(device), uintptr(index), uintptr(style))
}

func (l *dllLibrary) SetLedColor(device oleaut.BSTR, index uint32, red, green, blue uint32) (Status, error) {
	return l.call(procSetLedColor, uintptr(device), uintptr(index), uintptr(red), uintptr(green), uintptr(blue))
}

func (l *dllLibrary) SetLedBright(device oleaut.BSTR, index uint32, level uint32) (Status, error) {
	return l.call(procSetLedBright, uintptr(device), uintptr(index), uintptr(level))
}

func (l *dllLibrary) SetLedSpeed(device oleaut.BSTR, index uint32, level uint32) (Status, error) {
	return l.call(procSetLedSpeed, uintptr(device), uintptr(index), uintptr(level))
}

func (l *dllLibrary) Automation() oleaut.Automation {
	return l.auto
}

func (l *dllLibrary) Release() error {
	return l.dll.Release()
}
