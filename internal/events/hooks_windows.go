//go:build windows

package events

import (
	"sync"

	"PenTarget/internal/window"

	"golang.org/x/sys/windows"
)

// WinEventHooker registers out-of-context WinEvent hooks, one per event
// kind. Callbacks run on the thread that called Install, which must pump
// messages.
type WinEventHooker struct {
	cb uintptr

	mu  sync.RWMutex
	fns map[Hook]func(window.Handle, Kind)
}

func NewWinEventHooker() *WinEventHooker {
	w := &WinEventHooker{fns: make(map[Hook]func(window.Handle, Kind))}
	w.cb = windows.NewCallback(w.callback)
	return w
}

func (w *WinEventHooker) Install(kind Kind, fn func(window.Handle, Kind)) (Hook, error) {
	h, err := setWinEventHook(
		uint32(kind),
		uint32(kind),
		0,
		w.cb,
		0,
		0,
		WINEVENT_OUTOFCONTEXT|WINEVENT_SKIPOWNPROCESS,
	)
	if err != nil {
		return 0, err
	}
	w.mu.Lock()
	w.fns[Hook(h)] = fn
	w.mu.Unlock()
	return Hook(h), nil
}

func (w *WinEventHooker) Uninstall(h Hook) error {
	w.mu.Lock()
	delete(w.fns, h)
	w.mu.Unlock()
	return unhookWinEvent(windows.Handle(h))
}

func (w *WinEventHooker) callback(hWinEventHook windows.Handle, event uint32, hwnd uintptr, idObject int32, idChild int32, dwEventThread uint32, dwmsEventTime uint32) uintptr {
	_ = idChild
	_ = dwEventThread
	_ = dwmsEventTime

	if idObject != OBJID_WINDOW {
		return 0
	}
	w.mu.RLock()
	fn := w.fns[Hook(hWinEventHook)]
	w.mu.RUnlock()
	if fn != nil {
		fn(window.Handle(hwnd), Kind(event))
	}
	return 0
}

const (
	OBJID_WINDOW            = 0
	WINEVENT_OUTOFCONTEXT   = 0x0000
	WINEVENT_SKIPOWNPROCESS = 0x0002
)

var (
	user32              = windows.NewLazySystemDLL("user32.dll")
	procSetWinEventHook = user32.NewProc("SetWinEventHook")
	procUnhookWinEvent  = user32.NewProc("UnhookWinEvent")
)

func setWinEventHook(eventMin, eventMax uint32, hmodWinEventHook windows.Handle, pfnWinEventProc uintptr, idProcess, idThread uint32, dwFlags uint32) (windows.Handle, error) {
	r1, _, e1 := procSetWinEventHook.Call(
		uintptr(eventMin),
		uintptr(eventMax),
		uintptr(hmodWinEventHook),
		pfnWinEventProc,
		uintptr(idProcess),
		uintptr(idThread),
		uintptr(dwFlags),
	)
	if r1 == 0 {
		return 0, e1
	}
	return windows.Handle(r1), nil
}

func unhookWinEvent(h windows.Handle) error {
	r1, _, e1 := procUnhookWinEvent.Call(uintptr(h))
	if r1 == 0 {
		return e1
	}
	return nil
}
