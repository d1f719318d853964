//go:build windows

package oleaut

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modoleaut32 = windows.NewLazySystemDLL("oleaut32.dll")

	procSysAllocStringLen   = modoleaut32.NewProc("SysAllocStringLen")
	procSysFreeString       = modoleaut32.NewProc("SysFreeString")
	procSysStringLen        = modoleaut32.NewProc("SysStringLen")
	procSafeArrayGetLBound  = modoleaut32.NewProc("SafeArrayGetLBound")
	procSafeArrayGetUBound  = modoleaut32.NewProc("SafeArrayGetUBound")
	procSafeArrayGetElement = modoleaut32.NewProc("SafeArrayGetElement")
	procSafeArrayDestroy    = modoleaut32.NewProc("SafeArrayDestroy")
)

type system struct{}

// System returns the Automation backend implemented by oleaut32.dll.
func System() Automation {
	return system{}
}

func (system) AllocString(s []uint16) (BSTR, error) {
	var p *uint16
	if len(s) > 0 {
		p = &s[0]
	}
	r, _, _ := procSysAllocStringLen.Call(uintptr(unsafe.Pointer(p)), uintptr(len(s)))
	if r == 0 {
		return 0, ErrOutOfMemory
	}
	return BSTR(r), nil
}

func (system) FreeString(b BSTR) {
	if b == 0 {
		return
	}
	procSysFreeString.Call(uintptr(b))
}

func (system) StringData(b BSTR) []uint16 {
	if b == 0 {
		return nil
	}
	n, _, _ := procSysStringLen.Call(uintptr(b))
	if n == 0 {
		return nil
	}
	src := unsafe.Slice((*uint16)(unsafe.Pointer(b)), int(n))
	out := make([]uint16, len(src))
	copy(out, src)
	return out
}

func (system) ArrayBounds(a SafeArray) (int32, int32, error) {
	var lower, upper int32
	if hr, _, _ := procSafeArrayGetLBound.Call(uintptr(a), 1, uintptr(unsafe.Pointer(&lower))); failed(hr) {
		return 0, 0, hresultError("SafeArrayGetLBound", hr)
	}
	if hr, _, _ := procSafeArrayGetUBound.Call(uintptr(a), 1, uintptr(unsafe.Pointer(&upper))); failed(hr) {
		return 0, 0, hresultError("SafeArrayGetUBound", hr)
	}
	return lower, upper, nil
}

func (system) ArrayString(a SafeArray, index int32) (BSTR, error) {
	var b BSTR
	idx := index
	hr, _, _ := procSafeArrayGetElement.Call(uintptr(a), uintptr(unsafe.Pointer(&idx)), uintptr(unsafe.Pointer(&b)))
	if failed(hr) {
		return 0, hresultError("SafeArrayGetElement", hr)
	}
	return b, nil
}

func (system) DestroyArray(a SafeArray) error {
	if a == 0 {
		return nil
	}
	if hr, _, _ := procSafeArrayDestroy.Call(uintptr(a)); failed(hr) {
		return hresultError("SafeArrayDestroy", hr)
	}
	return nil
}

func failed(hr uintptr) bool {
	return int32(hr) < 0
}

func hresultError(op string, hr uintptr) error {
	return fmt.Errorf("oleaut: %s failed: HRESULT %#08x", op, uint32(hr))
}
