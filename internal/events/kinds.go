package events

import "fmt"

// Kind is a window-lifecycle event identifier. Values match the WinEvent
// constants so the hook backend can pass them through unchanged.
type Kind uint32

const (
	KindForeground     Kind = 0x0003
	KindMinimizeStart  Kind = 0x0016
	KindMinimizeEnd    Kind = 0x0017
	KindCreate         Kind = 0x8000
	KindDestroy        Kind = 0x8001
	KindShow           Kind = 0x8002
	KindLocationChange Kind = 0x800B

	// KindForegroundLost is synthesized when a non-target window becomes
	// foreground and foreground-loss forwarding is enabled.
	KindForegroundLost Kind = 0xFFFF0003
)

// DefaultKinds are the events that can change where the target window is
// or whether it exists.
var DefaultKinds = []Kind{
	KindShow,
	KindCreate,
	KindDestroy,
	KindForeground,
	KindLocationChange,
	KindMinimizeStart,
	KindMinimizeEnd,
}

func (k Kind) String() string {
	switch k {
	case KindForeground:
		return "foreground"
	case KindMinimizeStart:
		return "minimize_start"
	case KindMinimizeEnd:
		return "minimize_end"
	case KindCreate:
		return "create"
	case KindDestroy:
		return "destroy"
	case KindShow:
		return "show"
	case KindLocationChange:
		return "location_change"
	case KindForegroundLost:
		return "foreground_lost"
	default:
		return fmt.Sprintf("event(0x%04X)", uint32(k))
	}
}
