package trayhotkey

import (
	"image/color"
	"unicode/utf16"

	"PenTarget/internal/ipcapi"
)

const (
	appTitle   = "PenTarget"
	hotkeyHint = "Ctrl+Alt+Z"
	// Windows truncates notification-area tooltips at 127 UTF-16 units.
	maxTooltip = 127
)

// view is what the tray shows for a given state.
type view struct {
	color    color.RGBA
	runTitle string
	aspect   bool
	tooltip  string
}

func render(st ipcapi.StateChangedEvent, line string) view {
	v := view{color: colorWaiting, runTitle: "Start mapping\t" + hotkeyHint, aspect: st.KeepAspect}
	switch {
	case st.Errored:
		v.color = colorError
	case st.RunEnabled && st.TargetPresent:
		v.color = colorActive
	}
	if st.RunEnabled {
		v.runTitle = "Stop mapping\t" + hotkeyHint
	}

	tip := appTitle
	if st.Target != "" {
		tip += " (" + st.Target + ")"
	}
	if line != "" {
		tip += "\n" + line
	}
	v.tooltip = truncateUTF16(tip, maxTooltip)
	return v
}

// truncateUTF16 shortens s to at most limit UTF-16 units, ending in "..." when
// cut. Runes are never split.
func truncateUTF16(s string, limit int) string {
	if len(utf16.Encode([]rune(s))) <= limit {
		return s
	}
	n := 0
	for i, r := range s {
		w := len(utf16.Encode([]rune{r}))
		if w < 0 {
			w = 1
		}
		if n+w > limit-3 {
			return s[:i] + "..."
		}
		n += w
	}
	return s
}
