package events

import (
	"errors"
	"io"
	"sync"
	"testing"

	"PenTarget/internal/state"
	"PenTarget/internal/target"
	"PenTarget/internal/window"
	"PenTarget/internal/window/windowtest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivered struct {
	w    window.Handle
	kind Kind
	r    state.Rect
}

type recordingSink struct {
	mu  sync.Mutex
	got []delivered
}

func (s *recordingSink) HandleWindowEvent(w window.Handle, kind Kind, r state.Rect) {
	s.mu.Lock()
	s.got = append(s.got, delivered{w, kind, r})
	s.mu.Unlock()
}

type fakeHooker struct {
	fail      map[Kind]bool
	next      Hook
	installed map[Hook]Kind
	fns       map[Kind]func(window.Handle, Kind)
	removed   []Hook
}

func newFakeHooker() *fakeHooker {
	return &fakeHooker{
		fail:      map[Kind]bool{},
		installed: map[Hook]Kind{},
		fns:       map[Kind]func(window.Handle, Kind){},
	}
}

func (h *fakeHooker) Install(kind Kind, fn func(window.Handle, Kind)) (Hook, error) {
	if h.fail[kind] {
		return 0, errors.New("SetWinEventHook failed")
	}
	h.next++
	h.installed[h.next] = kind
	h.fns[kind] = fn
	return h.next, nil
}

func (h *fakeHooker) Uninstall(hk Hook) error {
	delete(h.installed, hk)
	h.removed = append(h.removed, hk)
	return nil
}

func (h *fakeHooker) fire(w window.Handle, kind Kind) {
	if fn := h.fns[kind]; fn != nil {
		fn(w, kind)
	}
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func mustSpec(t *testing.T, k target.Kind, v string) target.Spec {
	t.Helper()
	s, err := target.New(k, v)
	require.NoError(t, err)
	return s
}

var kritaRect = state.Rect{Left: 100, Top: 50, Right: 1700, Bottom: 950}

func newDesk() *windowtest.Desktop {
	d := &windowtest.Desktop{}
	d.Process(10, "krita.exe")
	d.Process(20, "notepad.exe")
	d.Add(0x100, windowtest.Window{Class: "Notepad", Title: "notes.txt - Notepad", PID: 20, Rect: state.Rect{Right: 800, Bottom: 600}})
	d.Add(0x200, windowtest.Window{Class: "Qt5QWindowIcon", Title: "Krita - sketch.kra", PID: 10, Rect: kritaRect})
	return d
}

func TestMatches(t *testing.T) {
	d := newDesk()
	tests := []struct {
		name string
		spec target.Spec
		w    window.Handle
		want bool
	}{
		{"process case-insensitive", mustSpec(t, target.ProcessName, "KRITA.EXE"), 0x200, true},
		{"process other window", mustSpec(t, target.ProcessName, "krita.exe"), 0x100, false},
		{"class exact", mustSpec(t, target.WindowClass, "Notepad"), 0x100, true},
		{"class wrong case", mustSpec(t, target.WindowClass, "notepad"), 0x100, false},
		{"title substring", mustSpec(t, target.TitleSubstring, "sketch"), 0x200, true},
		{"title case-sensitive", mustSpec(t, target.TitleSubstring, "Sketch"), 0x200, false},
		{"unknown window", mustSpec(t, target.ProcessName, "krita.exe"), 0x999, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.w, tt.spec, d))
		})
	}
}

func TestOnRawEventForwardsMatchingWindow(t *testing.T) {
	d := newDesk()
	sink := &recordingSink{}
	f := NewFilter(d, sink, quietLog())
	f.UpdateTarget(mustSpec(t, target.ProcessName, "krita.exe"))

	f.OnRawEvent(0x100, KindLocationChange)
	f.OnRawEvent(0x200, KindLocationChange)

	require.Len(t, sink.got, 1)
	assert.Equal(t, delivered{0x200, KindLocationChange, kritaRect}, sink.got[0])
}

func TestOnRawEventDiscards(t *testing.T) {
	d := newDesk()
	d.Add(0x300, windowtest.Window{Class: "Qt5QWindowPopup", PID: 10, Owner: 0x200, Rect: kritaRect})
	d.Add(0x400, windowtest.Window{Class: "Qt5QWindowIcon", PID: 10, Hidden: true, Rect: kritaRect})
	d.Add(0x500, windowtest.Window{Class: "Qt5QWindowIcon", PID: 10, NoRect: true})

	sink := &recordingSink{}
	f := NewFilter(d, sink, quietLog())

	f.OnRawEvent(0x200, KindShow)
	assert.Empty(t, sink.got, "no target configured")

	f.UpdateTarget(mustSpec(t, target.ProcessName, "krita.exe"))
	f.OnRawEvent(0, KindShow)
	f.OnRawEvent(0x300, KindShow)
	f.OnRawEvent(0x400, KindShow)
	f.OnRawEvent(0x500, KindShow)
	assert.Empty(t, sink.got)
}

func TestOnRawEventDestroy(t *testing.T) {
	t.Run("hidden window still reaches sink", func(t *testing.T) {
		d := newDesk()
		d.Add(0x400, windowtest.Window{Class: "Qt5QWindowIcon", PID: 10, Hidden: true, Rect: kritaRect})
		sink := &recordingSink{}
		f := NewFilter(d, sink, quietLog())
		f.UpdateTarget(mustSpec(t, target.ProcessName, "krita.exe"))

		f.OnRawEvent(0x400, KindDestroy)
		require.Len(t, sink.got, 1)
		assert.Equal(t, KindDestroy, sink.got[0].kind)
	})

	t.Run("already gone window recognized by handle", func(t *testing.T) {
		d := newDesk()
		sink := &recordingSink{}
		f := NewFilter(d, sink, quietLog())
		f.UpdateTarget(mustSpec(t, target.ProcessName, "krita.exe"))

		f.OnRawEvent(0x200, KindForeground)
		d.Destroy(0x200)
		f.OnRawEvent(0x200, KindDestroy)
		f.OnRawEvent(0x200, KindDestroy)

		require.Len(t, sink.got, 2)
		assert.Equal(t, delivered{0x200, KindDestroy, state.Rect{}}, sink.got[1])
	})
}

func TestForegroundLoss(t *testing.T) {
	d := newDesk()
	sink := &recordingSink{}
	f := NewFilter(d, sink, quietLog())
	f.UpdateTarget(mustSpec(t, target.ProcessName, "krita.exe"))

	f.OnRawEvent(0x100, KindForeground)
	assert.Empty(t, sink.got)

	f.ForwardForegroundLoss(true)
	f.OnRawEvent(0x100, KindForeground)
	f.OnRawEvent(0x100, KindLocationChange)
	require.Len(t, sink.got, 1)
	assert.Equal(t, KindForegroundLost, sink.got[0].kind)
}

func TestFindExisting(t *testing.T) {
	t.Run("foreground first", func(t *testing.T) {
		d := newDesk()
		d.Add(0x600, windowtest.Window{Class: "Qt5QWindowIcon", PID: 10, Rect: kritaRect})
		d.SetForeground(0x200)
		f := NewFilter(d, &recordingSink{}, quietLog())
		f.UpdateTarget(mustSpec(t, target.ProcessName, "krita.exe"))

		w, ok := f.FindExisting()
		assert.True(t, ok)
		assert.Equal(t, window.Handle(0x200), w)
	})

	t.Run("enumerates visible root windows", func(t *testing.T) {
		d := newDesk()
		d.Add(0x300, windowtest.Window{Class: "Notepad", PID: 20, Hidden: true})
		d.SetForeground(0x200)
		f := NewFilter(d, &recordingSink{}, quietLog())
		f.UpdateTarget(mustSpec(t, target.WindowClass, "Notepad"))

		w, ok := f.FindExisting()
		assert.True(t, ok)
		assert.Equal(t, window.Handle(0x100), w)
	})

	t.Run("nothing matches", func(t *testing.T) {
		f := NewFilter(newDesk(), &recordingSink{}, quietLog())
		_, ok := f.FindExisting()
		assert.False(t, ok)

		f.UpdateTarget(mustSpec(t, target.TitleSubstring, "Photoshop"))
		_, ok = f.FindExisting()
		assert.False(t, ok)
	})
}

func TestUpdateTargetKeepsHooks(t *testing.T) {
	d := newDesk()
	sink := &recordingSink{}
	h := newFakeHooker()
	f := NewFilter(d, sink, quietLog())
	f.UpdateTarget(mustSpec(t, target.ProcessName, "notepad.exe"))
	require.NoError(t, f.Install(h, DefaultKinds))
	assert.Len(t, h.installed, len(DefaultKinds))

	f.UpdateTarget(mustSpec(t, target.ProcessName, "krita.exe"))
	require.NoError(t, f.Install(h, DefaultKinds))
	assert.Len(t, h.installed, len(DefaultKinds))
	assert.Empty(t, h.removed)

	h.fire(0x100, KindShow)
	h.fire(0x200, KindShow)
	require.Len(t, sink.got, 1)
	assert.Equal(t, window.Handle(0x200), sink.got[0].w)
}

func TestInstallPartialFailure(t *testing.T) {
	h := newFakeHooker()
	h.fail[KindLocationChange] = true
	h.fail[KindMinimizeEnd] = true
	f := NewFilter(newDesk(), &recordingSink{}, quietLog())

	err := f.Install(h, DefaultKinds)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialHooks)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, []Kind{KindLocationChange, KindMinimizeEnd}, he.Failed)
	assert.Equal(t, len(DefaultKinds)-2, he.Installed)
	assert.True(t, f.Installed())
}

func TestUninstallIdempotent(t *testing.T) {
	h := newFakeHooker()
	f := NewFilter(newDesk(), &recordingSink{}, quietLog())
	require.NoError(t, f.Install(h, DefaultKinds))

	f.Uninstall()
	f.Uninstall()
	assert.False(t, f.Installed())
	assert.Empty(t, h.installed)
	assert.Len(t, h.removed, len(DefaultKinds))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "location_change", KindLocationChange.String())
	assert.Equal(t, "event(0x1234)", Kind(0x1234).String())
}
