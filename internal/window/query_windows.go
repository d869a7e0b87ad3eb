//go:build windows

package window

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"PenTarget/internal/state"

	"github.com/StackExchange/wmi"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

var (
	u32                       = windows.NewLazySystemDLL("user32.dll")
	dwm                       = windows.NewLazySystemDLL("dwmapi.dll")
	procGetAncestor           = u32.NewProc("GetAncestor")
	procGetWindowRect         = u32.NewProc("GetWindowRect")
	procGetWindowTextW        = u32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW  = u32.NewProc("GetWindowTextLengthW")
	procDwmGetWindowAttribute = dwm.NewProc("DwmGetWindowAttribute")
)

const (
	GA_ROOT                     = 2
	DWMWA_EXTENDED_FRAME_BOUNDS = 9
)

type RECT struct {
	Left, Top, Right, Bottom int32
}

// Win32 implements Querier with user32, dwmapi and kernel32.
type Win32 struct {
	names *NameCache
	log   *logrus.Entry
}

func NewWin32(log *logrus.Entry) *Win32 {
	return &Win32{
		names: NewNameCache(256, 30*time.Second, imageName, wmiProcessName),
		log:   log,
	}
}

func (q *Win32) Rect(w Handle) (state.Rect, error) {
	var r RECT
	if q.dwmFrameBounds(w, &r) {
		return state.Rect(r), nil
	}
	r1, _, e1 := procGetWindowRect.Call(uintptr(w), uintptr(unsafe.Pointer(&r)))
	if r1 == 0 {
		return state.Rect{}, fmt.Errorf("%w: hwnd 0x%X: %v", ErrRectUnavailable, uintptr(w), e1)
	}
	return state.Rect(r), nil
}

func (q *Win32) dwmFrameBounds(w Handle, r *RECT) bool {
	if procDwmGetWindowAttribute.Find() != nil {
		return false
	}
	hr, _, _ := procDwmGetWindowAttribute.Call(
		uintptr(w),
		DWMWA_EXTENDED_FRAME_BOUNDS,
		uintptr(unsafe.Pointer(r)),
		unsafe.Sizeof(*r),
	)
	return hr == 0
}

func (q *Win32) ClassName(w Handle) string {
	buf := make([]uint16, 256)
	n, err := windows.GetClassName(windows.HWND(w), &buf[0], int32(len(buf)))
	if err != nil || n <= 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func (q *Win32) Title(w Handle) string {
	r1, _, _ := procGetWindowTextLengthW.Call(uintptr(w))
	n := int(r1)
	if n <= 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	r2, _, _ := procGetWindowTextW.Call(uintptr(w), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r2 == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:r2])
}

func (q *Win32) ProcessID(w Handle) uint32 {
	var pid uint32
	_, _ = windows.GetWindowThreadProcessId(windows.HWND(w), &pid)
	return pid
}

func (q *Win32) ProcessName(pid uint32) (string, bool) {
	return q.names.Lookup(pid)
}

func (q *Win32) Foreground() Handle {
	return Handle(windows.GetForegroundWindow())
}

func (q *Win32) IsRoot(w Handle) bool {
	r1, _, _ := procGetAncestor.Call(uintptr(w), GA_ROOT)
	return Handle(r1) == w
}

func (q *Win32) IsVisible(w Handle) bool {
	return windows.IsWindowVisible(windows.HWND(w))
}

// EnumWindows callbacks cannot carry Go pointers, so enumeration collects
// into package state under a mutex. One callback is shared for the process.
var (
	enumMu  sync.Mutex
	enumOut []Handle
	enumCB  = windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		enumOut = append(enumOut, Handle(hwnd))
		return 1
	})
)

func (q *Win32) TopLevel() []Handle {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumOut = enumOut[:0]
	if err := windows.EnumWindows(enumCB, nil); err != nil {
		q.log.WithError(err).Debug("EnumWindows reported an error")
	}
	out := make([]Handle, len(enumOut))
	copy(out, enumOut)
	return out
}

// Forget drops a cached process name.
func (q *Win32) Forget(pid uint32) { q.names.Forget(pid) }

func imageName(pid uint32) (string, bool) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", false
	}
	defer windows.CloseHandle(h)
	buf := make([]uint16, windows.MAX_LONG_PATH)
	sz := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &sz); err != nil || sz == 0 {
		return "", false
	}
	return windows.UTF16ToString(buf[:sz]), true
}

// wmiProcessName covers processes that refuse OpenProcess, such as elevated
// or protected ones.
func wmiProcessName(pid uint32) (string, bool) {
	type Win32_Process struct {
		ProcessID uint32
		Name      string
	}
	var dst []Win32_Process
	q := fmt.Sprintf("SELECT ProcessID, Name FROM Win32_Process WHERE ProcessID=%d", pid)
	if err := wmi.Query(q, &dst); err != nil || len(dst) == 0 {
		return "", false
	}
	return dst[0].Name, dst[0].Name != ""
}
