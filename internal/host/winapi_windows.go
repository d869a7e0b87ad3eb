//go:build windows

package host

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	WM_DESTROY = 0x0002
	WM_TIMER   = 0x0113
	WM_HOTKEY  = 0x0312
	WM_APP     = 0x8000

	MOD_ALT      = 0x0001
	MOD_CONTROL  = 0x0002
	MOD_NOREPEAT = 0x4000

	HWND_MESSAGE uintptr = ^uintptr(2)
)

type POINT struct {
	X int32
	Y int32
}

type MSG struct {
	HWnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      POINT
}

type WNDCLASSEXW struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     windows.Handle
	HIcon         windows.Handle
	HCursor       windows.Handle
	HbrBackground windows.Handle
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       windows.Handle
}

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procRegisterClassExW = user32.NewProc("RegisterClassExW")
	procCreateWindowExW  = user32.NewProc("CreateWindowExW")
	procDefWindowProcW   = user32.NewProc("DefWindowProcW")
	procGetMessageW      = user32.NewProc("GetMessageW")
	procTranslateMessage = user32.NewProc("TranslateMessage")
	procDispatchMessageW = user32.NewProc("DispatchMessageW")
	procPostMessageW     = user32.NewProc("PostMessageW")
	procPostQuitMessage  = user32.NewProc("PostQuitMessage")
	procDestroyWindow    = user32.NewProc("DestroyWindow")
	procSetTimer         = user32.NewProc("SetTimer")
	procKillTimer        = user32.NewProc("KillTimer")
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
	procGetModuleHandleW = kernel32.NewProc("GetModuleHandleW")
)

func registerClassEx(wcx *WNDCLASSEXW) (uint16, error) {
	r1, _, e1 := procRegisterClassExW.Call(uintptr(unsafe.Pointer(wcx)))
	if r1 == 0 {
		return 0, e1
	}
	return uint16(r1), nil
}

func createWindowEx(exStyle uint32, className, windowName *uint16, style uint32, x, y, w, h int32, parent uintptr, menu uintptr, instance windows.Handle, param uintptr) (uintptr, error) {
	r1, _, e1 := procCreateWindowExW.Call(
		uintptr(exStyle),
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(windowName)),
		uintptr(style),
		uintptr(x),
		uintptr(y),
		uintptr(w),
		uintptr(h),
		parent,
		menu,
		uintptr(instance),
		param,
	)
	if r1 == 0 {
		return 0, e1
	}
	return r1, nil
}

func defWindowProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	r1, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return r1
}

func getMessage(msg *MSG, hwnd uintptr, min, max uint32) (bool, error) {
	r1, _, e1 := procGetMessageW.Call(uintptr(unsafe.Pointer(msg)), hwnd, uintptr(min), uintptr(max))
	if int32(r1) == -1 {
		return false, e1
	}
	return r1 != 0, nil
}

func translateMessage(msg *MSG) {
	_, _, _ = procTranslateMessage.Call(uintptr(unsafe.Pointer(msg)))
}

func dispatchMessage(msg *MSG) {
	_, _, _ = procDispatchMessageW.Call(uintptr(unsafe.Pointer(msg)))
}

func postMessage(hwnd uintptr, msg uint32, wParam, lParam uintptr) error {
	r1, _, e1 := procPostMessageW.Call(hwnd, uintptr(msg), wParam, lParam)
	if r1 == 0 {
		return e1
	}
	return nil
}

func postQuitMessage(code int32) {
	_, _, _ = procPostQuitMessage.Call(uintptr(code))
}

func destroyWindow(hwnd uintptr) error {
	r1, _, e1 := procDestroyWindow.Call(hwnd)
	if r1 == 0 {
		return e1
	}
	return nil
}

func setTimer(hwnd uintptr, id uintptr, ms uint32) error {
	r1, _, e1 := procSetTimer.Call(hwnd, id, uintptr(ms), 0)
	if r1 == 0 {
		return e1
	}
	return nil
}

func killTimer(hwnd uintptr, id uintptr) {
	_, _, _ = procKillTimer.Call(hwnd, id)
}

func registerHotKey(hwnd uintptr, id int32, mods uint32, vk uint32) error {
	r1, _, e1 := procRegisterHotKey.Call(hwnd, uintptr(id), uintptr(mods), uintptr(vk))
	if r1 == 0 {
		return e1
	}
	return nil
}

func unregisterHotKey(hwnd uintptr, id int32) {
	_, _, _ = procUnregisterHotKey.Call(hwnd, uintptr(id))
}

func getModuleHandle() windows.Handle {
	r1, _, _ := procGetModuleHandleW.Call(0)
	return windows.Handle(r1)
}
