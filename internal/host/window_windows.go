//go:build windows

package host

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

const (
	className  = "PenTargetHostWindow"
	tickTimer  = 1
	hotkeyID   = 0xA11
	hotkeyVK_Z = 0x5A
)

var ErrClosed = errors.New("host window closed")

type Options struct {
	TickInterval time.Duration
	Hotkey       bool
}

// Window is a message-only window. New, Run and Close must be called from
// the same OS thread; Post is safe from any goroutine.
type Window struct {
	handler Handler
	opts    Options
	log     *logrus.Entry

	hwnd   atomic.Uintptr
	wndCB  uintptr
	hotkey bool
}

func New(handler Handler, opts Options, log *logrus.Entry) (*Window, error) {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	w := &Window{handler: handler, opts: opts, log: log}
	w.wndCB = windows.NewCallback(w.wndProc)

	clsName, _ := windows.UTF16PtrFromString(className)
	hInstance := getModuleHandle()

	var wc WNDCLASSEXW
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	wc.LpfnWndProc = w.wndCB
	wc.HInstance = hInstance
	wc.LpszClassName = clsName
	if _, err := registerClassEx(&wc); err != nil && !errors.Is(err, windows.ERROR_CLASS_ALREADY_EXISTS) {
		return nil, fmt.Errorf("register host class: %w", err)
	}

	hwnd, err := createWindowEx(0, clsName, clsName, 0, 0, 0, 0, 0, HWND_MESSAGE, 0, hInstance, 0)
	if err != nil {
		return nil, fmt.Errorf("create host window: %w", err)
	}
	w.hwnd.Store(hwnd)

	if err := setTimer(hwnd, tickTimer, uint32(opts.TickInterval/time.Millisecond)); err != nil {
		log.WithError(err).Warn("periodic status timer unavailable")
	}
	if opts.Hotkey {
		if err := registerHotKey(hwnd, hotkeyID, MOD_CONTROL|MOD_ALT|MOD_NOREPEAT, hotkeyVK_Z); err != nil {
			log.WithError(err).Warn("Ctrl+Alt+Z is taken by another program")
		} else {
			w.hotkey = true
		}
	}
	return w, nil
}

// HWND is the owner handle for the device context.
func (w *Window) HWND() uintptr { return w.hwnd.Load() }

// Post queues cmd for the primary thread.
func (w *Window) Post(cmd Command) error {
	hwnd := w.hwnd.Load()
	if hwnd == 0 {
		return ErrClosed
	}
	return postMessage(hwnd, WM_APP, uintptr(cmd), 0)
}

// Quit asks Run to return.
func (w *Window) Quit() error { return w.Post(CmdQuit) }

// Run dispatches messages until the window is destroyed.
func (w *Window) Run() error {
	var msg MSG
	for {
		ok, err := getMessage(&msg, 0, 0, 0)
		if err != nil {
			return fmt.Errorf("GetMessage: %w", err)
		}
		if !ok {
			return nil
		}
		translateMessage(&msg)
		dispatchMessage(&msg)
	}
}

// Close destroys the window if Run has not already done so.
func (w *Window) Close() {
	if hwnd := w.hwnd.Load(); hwnd != 0 {
		_ = destroyWindow(hwnd)
	}
}

func (w *Window) wndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case WM_APP:
		cmd := Command(wParam)
		w.log.WithField("command", cmd.String()).Debug("command received")
		if cmd == CmdQuit {
			_ = destroyWindow(hwnd)
			return 0
		}
		w.handler.HandleCommand(cmd)
		return 0
	case WM_TIMER:
		if wParam == tickTimer {
			w.handler.Tick()
		}
		return 0
	case WM_HOTKEY:
		if wParam == hotkeyID {
			w.handler.HandleCommand(CmdToggleRun)
		}
		return 0
	case WM_DESTROY:
		killTimer(hwnd, tickTimer)
		if w.hotkey {
			unregisterHotKey(hwnd, hotkeyID)
		}
		w.hwnd.Store(0)
		postQuitMessage(0)
		return 0
	default:
		return defWindowProc(hwnd, msg, wParam, lParam)
	}
}
