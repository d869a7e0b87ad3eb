// Package host owns the hidden message-only window of the primary thread.
// Everything that touches the device context runs on that thread: WinEvent
// callbacks, user commands posted from the tray, timer ticks and the global
// hotkey.
package host

type Command uintptr

const (
	CmdToggleRun Command = iota + 1
	CmdToggleAspect
	CmdQuit
)

func (c Command) String() string {
	switch c {
	case CmdToggleRun:
		return "toggle_run"
	case CmdToggleAspect:
		return "toggle_aspect"
	case CmdQuit:
		return "quit"
	}
	return "unknown"
}

// Handler runs on the primary thread.
type Handler interface {
	HandleCommand(cmd Command)
	Tick()
}
