// Package window answers questions about top-level windows: geometry,
// identity, owning process, and which windows exist right now.
package window

import (
	"errors"

	"PenTarget/internal/state"
)

// Handle identifies an OS window.
type Handle uintptr

var ErrRectUnavailable = errors.New("window rectangle unavailable")

// Querier is the window-query service.
type Querier interface {
	// Rect prefers the extended frame bounds and falls back to the legacy
	// window rectangle. The error wraps ErrRectUnavailable.
	Rect(w Handle) (state.Rect, error)
	ClassName(w Handle) string
	Title(w Handle) string
	ProcessID(w Handle) uint32
	// ProcessName resolves the executable file name (for example
	// "krita.exe") of a process.
	ProcessName(pid uint32) (string, bool)
	Foreground() Handle
	// TopLevel lists top-level windows in z-order, topmost first.
	TopLevel() []Handle
	IsRoot(w Handle) bool
	IsVisible(w Handle) bool
}
