package services

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"PenTarget/internal/events"
	"PenTarget/internal/feed"
	"PenTarget/internal/ipcapi"
	"PenTarget/internal/mapping"
	"PenTarget/internal/state"
	"PenTarget/internal/tablet"
	"PenTarget/internal/target"
	"PenTarget/internal/window"
	"PenTarget/internal/window/windowtest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op string
	t  tablet.Template
}

type fakeContext struct {
	base  tablet.Template
	calls []call
	live  tablet.Template

	reopenErr error
	applyErr  error
	resetErr  error
}

func newFakeContext() *fakeContext {
	base := tablet.Template{
		Options: tablet.System | tablet.Messages,
		InExt:   tablet.Axes{X: 5000, Y: 5000},
		OutExt:  tablet.Axes{X: 1920, Y: 1080},
		SysExtX: 1920,
		SysExtY: 1080,
	}
	return &fakeContext{base: base, live: base}
}

func (c *fakeContext) Base() tablet.Template { return c.base }

func (c *fakeContext) Reopen(t tablet.Template) error {
	c.calls = append(c.calls, call{"reopen", t})
	if c.reopenErr != nil {
		return c.reopenErr
	}
	c.live = t
	return nil
}

func (c *fakeContext) ReopenBase() error {
	c.calls = append(c.calls, call{"reopen_base", c.base})
	if c.reopenErr != nil {
		return c.reopenErr
	}
	c.live = c.base
	return nil
}

func (c *fakeContext) ApplyLive(t tablet.Template) error {
	c.calls = append(c.calls, call{"apply", t})
	if c.applyErr != nil {
		return c.applyErr
	}
	c.live = t
	return nil
}

func (c *fakeContext) ResetBase() error {
	c.calls = append(c.calls, call{"reset", c.base})
	if c.resetErr != nil {
		return c.resetErr
	}
	c.live = c.base
	return nil
}

func (c *fakeContext) Current() (tablet.Template, error) { return c.live, nil }

func (c *fakeContext) ops() []string {
	out := make([]string, len(c.calls))
	for i, cl := range c.calls {
		out[i] = cl.op
	}
	return out
}

func (c *fakeContext) reset() { c.calls = nil }

type fakeHooker struct {
	fail      map[events.Kind]bool
	installs  int
	fns       map[events.Kind]func(window.Handle, events.Kind)
	next      events.Hook
	uninstall int
}

func (h *fakeHooker) Install(kind events.Kind, fn func(window.Handle, events.Kind)) (events.Hook, error) {
	h.installs++
	if h.fail[kind] {
		return 0, errors.New("hook refused")
	}
	if h.fns == nil {
		h.fns = map[events.Kind]func(window.Handle, events.Kind){}
	}
	h.fns[kind] = fn
	h.next++
	return h.next, nil
}

func (h *fakeHooker) Uninstall(events.Hook) error {
	h.uninstall++
	return nil
}

type fakeSource struct {
	spec target.Spec
	ok   bool
	err  error
}

func (s *fakeSource) DesiredTarget() (target.Spec, bool, error) { return s.spec, s.ok, s.err }

type harness struct {
	svc    *Services
	ctx    *fakeContext
	desk   *windowtest.Desktop
	hooks  *fakeHooker
	src    *fakeSource
	feed   *feed.Feed
	states []ipcapi.StateChangedEvent
}

var kritaRect = state.Rect{Left: 100, Top: 50, Right: 1700, Bottom: 950}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)

	spec, err := target.New(target.ProcessName, "krita.exe")
	require.NoError(t, err)

	h := &harness{
		ctx:   newFakeContext(),
		desk:  &windowtest.Desktop{},
		hooks: &fakeHooker{},
		src:   &fakeSource{spec: spec, ok: true},
		feed:  feed.New(100),
	}
	h.desk.Process(10, "krita.exe")
	h.desk.Process(20, "notepad.exe")
	h.desk.Add(0x100, windowtest.Window{Class: "Notepad", PID: 20, Rect: state.Rect{Right: 800, Bottom: 600}})

	h.svc = New(Dependencies{
		Context: h.ctx,
		Windows: h.desk,
		Hooks:   h.hooks,
		Targets: h.src,
		Feed:    h.feed,
		EmitEvent: func(name string, data any) {
			if name == ipcapi.EventStateChanged {
				h.states = append(h.states, data.(ipcapi.StateChangedEvent))
			}
		},
		Log:     logrus.NewEntry(l),
		Options: opts,
	})
	return h
}

func (h *harness) openKrita() {
	h.desk.Add(0x200, windowtest.Window{Class: "Qt5QWindowIcon", Title: "Krita", PID: 10, Rect: kritaRect})
}

func (h *harness) fire(w window.Handle, kind events.Kind) {
	h.hooks.fns[kind](w, kind)
}

func (h *harness) lines() []string {
	var out []string
	for _, e := range h.feed.Snapshot() {
		out = append(out, e.Message)
	}
	return out
}

func (h *harness) countLines(prefix string) int {
	n := 0
	for _, l := range h.lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestEnableMapsExistingTarget(t *testing.T) {
	h := newHarness(t, Options{ReopenOnForeground: true})
	h.openKrita()

	h.svc.SetRun(true)

	assert.Equal(t, []string{"reopen_base", "apply"}, h.ctx.ops())
	want := mapping.Compute(h.ctx.base, kritaRect, false)
	assert.Equal(t, want, h.ctx.calls[1].t)
	assert.Equal(t, len(events.DefaultKinds), h.hooks.installs)

	st := h.svc.Status()
	assert.True(t, st.RunEnabled)
	assert.True(t, st.TargetPresent)
	assert.False(t, st.Errored)
	assert.Equal(t, "process=krita.exe", st.Target)
	assert.Contains(t, h.lines(), "Mapping applied 100/50/1700/950")
}

func TestEnableWithoutWindowWaits(t *testing.T) {
	h := newHarness(t, Options{WaitInterval: time.Hour})
	h.svc.SetRun(true)

	assert.Equal(t, []string{"reopen_base"}, h.ctx.ops())
	assert.False(t, h.svc.Status().TargetPresent)
	assert.Equal(t, 1, h.countLines("Waiting for target"))

	h.svc.Tick()
	assert.Equal(t, 1, h.countLines("Waiting for target"), "rate limited")
}

func TestEnableWithoutTarget(t *testing.T) {
	h := newHarness(t, Options{})
	h.src.ok = false
	h.svc.SetRun(true)

	assert.Empty(t, h.ctx.ops())
	assert.Zero(t, h.hooks.installs)
	assert.Contains(t, h.lines(), "No target configured")
}

func TestEnableReopenFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.ctx.reopenErr = tablet.ErrReopenFailed

	h.svc.SetRun(true)
	assert.Equal(t, []string{"reopen_base"}, h.ctx.ops())
	assert.True(t, h.svc.Status().Errored)
	assert.False(t, h.svc.Status().TargetPresent)
}

func TestLocationChangeAppliesAndSuppressesDuplicates(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()

	moved := state.Rect{Left: 0, Top: 0, Right: 1600, Bottom: 900}
	h.desk.Move(0x200, moved)
	h.fire(0x200, events.KindLocationChange)
	h.fire(0x200, events.KindLocationChange)

	assert.Equal(t, []string{"apply", "apply"}, h.ctx.ops())
	assert.Equal(t, 1, h.countLines("Mapping applied 0/0/1600/900"))
}

func TestDestroyResetsRegardlessOfRun(t *testing.T) {
	for _, run := range []bool{true, false} {
		h := newHarness(t, Options{})
		h.openKrita()
		h.svc.SetRun(true)
		if !run {
			h.svc.SetRun(false)
		}
		require.Equal(t, true, h.svc.Status().TargetPresent)
		h.ctx.reset()

		h.desk.Destroy(0x200)
		h.svc.HandleWindowEvent(0x200, events.KindDestroy, state.Rect{})

		assert.Equal(t, []string{"reset"}, h.ctx.ops(), "run=%v", run)
		assert.Equal(t, h.ctx.base, h.ctx.live)
		assert.False(t, h.svc.Status().TargetPresent)
		assert.Contains(t, h.lines(), "Target lost")
	}
}

func TestMinimizeStartResets(t *testing.T) {
	h := newHarness(t, Options{KeepAspect: true})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()

	h.fire(0x200, events.KindMinimizeStart)
	assert.Equal(t, []string{"reset"}, h.ctx.ops())
	assert.False(t, h.svc.Status().TargetPresent)
}

func TestPausedIgnoresEvents(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.svc.SetRun(false)
	h.ctx.reset()

	h.fire(0x200, events.KindLocationChange)
	h.fire(0x200, events.KindForeground)
	h.fire(0x200, events.KindShow)
	assert.Empty(t, h.ctx.ops())
}

func TestDisableResetsAndReportsPresence(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()

	h.svc.SetRun(false)
	assert.Equal(t, []string{"reset"}, h.ctx.ops())
	st := h.svc.Status()
	assert.False(t, st.RunEnabled)
	assert.True(t, st.TargetPresent)
	assert.Equal(t, 0, h.hooks.uninstall, "hooks retained")
}

func TestRunToggleIsIdempotent(t *testing.T) {
	for _, keep := range []bool{false, true} {
		h := newHarness(t, Options{KeepAspect: keep})
		h.openKrita()
		h.svc.SetRun(true)
		first := h.ctx.live

		h.svc.ToggleRun()
		assert.Equal(t, h.ctx.base, h.ctx.live)
		h.svc.ToggleRun()
		assert.Equal(t, first, h.ctx.live, "keep=%v", keep)
		assert.Equal(t, len(events.DefaultKinds), h.hooks.installs, "hooks installed once")
	}
}

func TestForegroundReopens(t *testing.T) {
	h := newHarness(t, Options{ReopenOnForeground: true})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()

	h.fire(0x200, events.KindForeground)
	assert.Equal(t, []string{"reopen_base", "apply"}, h.ctx.ops())
}

func TestForegroundReopenDisabled(t *testing.T) {
	h := newHarness(t, Options{ReopenOnForeground: false})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()

	h.fire(0x200, events.KindForeground)
	assert.Equal(t, []string{"apply"}, h.ctx.ops())
}

func TestForegroundReopenFailureAborts(t *testing.T) {
	h := newHarness(t, Options{ReopenOnForeground: true})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()
	h.ctx.reopenErr = tablet.ErrReopenFailed

	h.fire(0x200, events.KindForeground)
	assert.Equal(t, []string{"reopen_base"}, h.ctx.ops())
	assert.True(t, h.svc.Status().Errored)
	assert.Contains(t, h.lines(), "Context reopen failed (foreground)")

	h.ctx.reopenErr = nil
	h.fire(0x200, events.KindLocationChange)
	assert.False(t, h.svc.Status().Errored, "next success clears the flag")
}

func TestDegenerateRectIsRequeried(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()

	h.svc.HandleWindowEvent(0x200, events.KindShow, state.Rect{Left: 5, Top: 5, Right: 5, Bottom: 5})
	require.Equal(t, []string{"apply"}, h.ctx.ops())
	assert.Equal(t, mapping.Compute(h.ctx.base, kritaRect, false), h.ctx.calls[0].t)
}

func TestDegenerateRequeryIsClamped(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()
	tiny := state.Rect{Left: 10, Top: 10, Right: 10, Bottom: 10}
	h.desk.Move(0x200, tiny)

	h.svc.HandleWindowEvent(0x200, events.KindShow, state.Rect{})
	require.Equal(t, []string{"apply"}, h.ctx.ops())
	assert.Equal(t, mapping.Compute(h.ctx.base, tiny, false), h.ctx.calls[0].t)
	assert.Equal(t, int32(1), h.ctx.live.OutExt.X)
	assert.False(t, h.svc.Status().Errored)
}

func TestDegenerateRequeryFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()
	h.desk.Add(0x300, windowtest.Window{Class: "Qt5QWindowIcon", PID: 10, NoRect: true})

	h.svc.HandleWindowEvent(0x300, events.KindShow, state.Rect{})
	assert.Empty(t, h.ctx.ops())
	assert.True(t, h.svc.Status().Errored)
}

func TestCropUsesReopen(t *testing.T) {
	h := newHarness(t, Options{KeepAspect: true})
	h.openKrita()
	h.svc.SetRun(true)

	assert.Equal(t, []string{"reopen_base", "reopen"}, h.ctx.ops())
	want := mapping.Compute(h.ctx.base, kritaRect, true)
	assert.Equal(t, want, h.ctx.calls[1].t)
	assert.Contains(t, h.lines(), "Mapping applied (aspect) 100/50/1700/950")
}

func TestAspectToggleRemaps(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()

	h.svc.ToggleAspect()
	assert.True(t, h.svc.Status().KeepAspect)
	assert.Equal(t, []string{"reopen"}, h.ctx.ops())

	h.ctx.reset()
	h.svc.ToggleAspect()
	assert.Equal(t, []string{"reset", "apply"}, h.ctx.ops())
	assert.Equal(t, mapping.Compute(h.ctx.base, kritaRect, false), h.ctx.live)
}

func TestLeavingCropWhileTargetHidden(t *testing.T) {
	h := newHarness(t, Options{KeepAspect: true})
	h.openKrita()
	h.svc.SetRun(true)
	require.Equal(t, []string{"reopen_base", "reopen"}, h.ctx.ops())
	h.ctx.reset()

	h.desk.SetHidden(0x200, true)
	h.svc.SetAspect(false)
	assert.Equal(t, []string{"reset"}, h.ctx.ops())
	assert.Equal(t, h.ctx.base, h.ctx.live)

	h.desk.SetHidden(0x200, false)
	h.fire(0x200, events.KindShow)
	assert.Equal(t, []string{"reset", "apply"}, h.ctx.ops())
	assert.Equal(t, mapping.Compute(h.ctx.base, kritaRect, false), h.ctx.live)
}

func TestAspectToggleWhilePausedOnlyUpdatesFlag(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.ToggleAspect()
	assert.True(t, h.svc.Status().KeepAspect)
	assert.Empty(t, h.ctx.ops())
}

func TestApplyFailureRaisesError(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.ctx.applyErr = errors.New("WTSetA rejected")
	h.svc.SetRun(true)

	st := h.svc.Status()
	assert.True(t, st.Errored)
	assert.False(t, st.TargetPresent)
	assert.Contains(t, h.lines(), "Mapping apply failed")
}

func TestLockUnavailableSkipsWithoutError(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.applyErr = tablet.ErrLockUnavailable

	h.desk.Move(0x200, state.Rect{Right: 640, Bottom: 480})
	h.fire(0x200, events.KindLocationChange)
	st := h.svc.Status()
	assert.False(t, st.Errored)
	assert.True(t, st.TargetPresent)
}

func TestFullWhenUnfocused(t *testing.T) {
	h := newHarness(t, Options{FullWhenUnfocused: true})
	h.openKrita()
	h.svc.SetRun(true)
	h.ctx.reset()

	h.fire(0x100, events.KindForeground)
	assert.Equal(t, []string{"reset"}, h.ctx.ops())
	assert.True(t, h.svc.Status().TargetPresent)

	h.ctx.reset()
	h.fire(0x200, events.KindForeground)
	assert.Equal(t, []string{"apply"}, h.ctx.ops())
}

func TestTargetEditSwapsFilterInPlace(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.svc.SetRun(true)
	h.svc.SetRun(false)

	notepad, err := target.New(target.WindowClass, "Notepad")
	require.NoError(t, err)
	h.src.spec = notepad
	h.ctx.reset()

	h.svc.SetRun(true)
	assert.Equal(t, len(events.DefaultKinds), h.hooks.installs)
	assert.Equal(t, []string{"reopen_base", "apply"}, h.ctx.ops())
	assert.Equal(t, mapping.Compute(h.ctx.base, state.Rect{Right: 800, Bottom: 600}, false), h.ctx.live)
	assert.Contains(t, h.lines(), "Target set: class=Notepad")
}

func TestTargetSourceErrorKeepsCurrent(t *testing.T) {
	h := newHarness(t, Options{})
	h.openKrita()
	h.src.err = target.ErrEmptyValue
	h.svc.SetRun(true)

	assert.Equal(t, []string{"reopen_base", "apply"}, h.ctx.ops())
	assert.Equal(t, 1, h.countLines("Target not updated"))
}

func TestPartialHooksAreTolerated(t *testing.T) {
	h := newHarness(t, Options{})
	h.hooks.fail = map[events.Kind]bool{events.KindCreate: true}
	h.openKrita()
	h.svc.SetRun(true)

	assert.False(t, h.svc.Status().Errored)
	assert.True(t, h.svc.Status().TargetPresent)
	assert.Equal(t, 1, h.countLines(events.ErrPartialHooks.Error()))
}

func TestNoHooksRaisesError(t *testing.T) {
	h := newHarness(t, Options{})
	h.hooks.fail = map[events.Kind]bool{}
	for _, k := range events.DefaultKinds {
		h.hooks.fail[k] = true
	}
	h.svc.SetRun(true)
	assert.True(t, h.svc.Status().Errored)
}

func TestStartPausedReportsPresence(t *testing.T) {
	h := newHarness(t, Options{StartEnabled: false})
	h.openKrita()
	h.svc.Start()

	st := h.svc.Status()
	assert.False(t, st.RunEnabled)
	assert.True(t, st.TargetPresent)
	assert.Zero(t, h.hooks.installs)
	require.NotEmpty(t, h.states)
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t, Options{StartEnabled: true})
	h.openKrita()
	h.svc.Start()
	h.ctx.reset()

	h.svc.Stop()
	h.svc.Stop()
	assert.Equal(t, []string{"reset"}, h.ctx.ops())
	assert.Equal(t, len(events.DefaultKinds), h.hooks.uninstall)
}

func TestDumpReadsBack(t *testing.T) {
	h := newHarness(t, Options{Dump: true})
	h.openKrita()
	h.svc.SetRun(true)
	assert.True(t, h.svc.Status().TargetPresent)
}
