package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"PenTarget/internal/state"
	"PenTarget/internal/target"
	"PenTarget/internal/window"

	"github.com/sirupsen/logrus"
)

var ErrPartialHooks = errors.New("some event hooks failed to install")

// HookError lists the event kinds that could not be registered.
type HookError struct {
	Failed    []Kind
	Installed int
}

func (e *HookError) Error() string {
	names := make([]string, len(e.Failed))
	for i, k := range e.Failed {
		names[i] = k.String()
	}
	return fmt.Sprintf("%v: %s (%d installed)", ErrPartialHooks, strings.Join(names, ", "), e.Installed)
}

func (e *HookError) Is(target error) bool { return target == ErrPartialHooks }

// Sink receives filtered events for the target window.
type Sink interface {
	HandleWindowEvent(w window.Handle, kind Kind, r state.Rect)
}

// Hook identifies one registration with a Hooker.
type Hook uintptr

// Hooker is the OS window-event subsystem. Hooks are keyed by event kind,
// never by target.
type Hooker interface {
	Install(kind Kind, fn func(w window.Handle, kind Kind)) (Hook, error)
	Uninstall(h Hook) error
}

// Filter decides which raw window events concern the active target and
// forwards those, with a resolved rectangle, to its Sink.
type Filter struct {
	q    window.Querier
	sink Sink
	log  *logrus.Entry

	forwardLoss atomic.Bool
	lastMatch   atomic.Uintptr

	mu   sync.RWMutex
	spec *target.Spec

	hookMu sync.Mutex
	hooker Hooker
	hooks  []Hook
}

func NewFilter(q window.Querier, sink Sink, log *logrus.Entry) *Filter {
	return &Filter{q: q, sink: sink, log: log}
}

// Target returns the active spec, if any.
func (f *Filter) Target() (target.Spec, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.spec == nil {
		return target.Spec{}, false
	}
	return *f.spec, true
}

// UpdateTarget replaces the active spec. Installed hooks stay as they are.
func (f *Filter) UpdateTarget(s target.Spec) {
	f.mu.Lock()
	f.spec = &s
	f.mu.Unlock()
	f.lastMatch.Store(0)
}

// ForwardForegroundLoss makes foreground changes to non-target windows reach
// the sink as KindForegroundLost.
func (f *Filter) ForwardForegroundLoss(v bool) { f.forwardLoss.Store(v) }

// Matches reports whether w satisfies spec.
func Matches(w window.Handle, spec target.Spec, q window.Querier) bool {
	switch spec.Kind() {
	case target.WindowClass:
		return spec.Match(q.ClassName(w))
	case target.TitleSubstring:
		return spec.Match(q.Title(w))
	case target.ProcessName:
		pid := q.ProcessID(w)
		if pid == 0 {
			return false
		}
		name, ok := q.ProcessName(pid)
		return ok && spec.Match(name)
	}
	return false
}

// OnRawEvent is the entry point for the OS event subsystem. It never blocks
// on anything but the spec read lock.
func (f *Filter) OnRawEvent(w window.Handle, kind Kind) {
	if w == 0 {
		return
	}
	// A destroyed window can no longer be queried; recognize it by handle.
	if kind == KindDestroy && f.lastMatch.CompareAndSwap(uintptr(w), 0) {
		f.sink.HandleWindowEvent(w, kind, state.Rect{})
		return
	}
	if !f.q.IsRoot(w) {
		return
	}
	if kind != KindDestroy && !f.q.IsVisible(w) {
		return
	}
	spec, ok := f.Target()
	if !ok {
		return
	}
	if !Matches(w, spec, f.q) {
		if kind == KindForeground && f.forwardLoss.Load() {
			f.sink.HandleWindowEvent(w, KindForegroundLost, state.Rect{})
		}
		return
	}
	r, err := f.q.Rect(w)
	if err != nil {
		f.log.WithError(err).WithField("event", kind.String()).Debug("dropping event without rectangle")
		return
	}
	if kind == KindDestroy {
		f.lastMatch.CompareAndSwap(uintptr(w), 0)
	} else {
		f.lastMatch.Store(uintptr(w))
	}
	f.sink.HandleWindowEvent(w, kind, r)
}

// FindExisting locates a window matching the active spec, checking the
// foreground window before walking all top-level windows.
func (f *Filter) FindExisting() (window.Handle, bool) {
	spec, ok := f.Target()
	if !ok {
		return 0, false
	}
	if fg := f.q.Foreground(); fg != 0 && Matches(fg, spec, f.q) {
		f.lastMatch.Store(uintptr(fg))
		return fg, true
	}
	for _, w := range f.q.TopLevel() {
		if !f.q.IsVisible(w) || !f.q.IsRoot(w) {
			continue
		}
		if Matches(w, spec, f.q) {
			f.lastMatch.Store(uintptr(w))
			return w, true
		}
	}
	return 0, false
}

// Install registers OnRawEvent for each kind. Failed registrations are
// logged and reported in a *HookError; the rest stay installed. Calling
// Install while hooks are installed does nothing.
func (f *Filter) Install(h Hooker, kinds []Kind) error {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	if len(f.hooks) > 0 {
		return nil
	}
	f.hooker = h
	var failed []Kind
	for _, k := range kinds {
		hk, err := h.Install(k, f.OnRawEvent)
		if err != nil {
			f.log.WithError(err).WithField("event", k.String()).Warn("failed to install hook")
			failed = append(failed, k)
			continue
		}
		f.log.WithField("event", k.String()).Debug("hook installed")
		f.hooks = append(f.hooks, hk)
	}
	if len(failed) > 0 {
		return &HookError{Failed: failed, Installed: len(f.hooks)}
	}
	return nil
}

// Installed reports whether at least one hook is registered.
func (f *Filter) Installed() bool {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	return len(f.hooks) > 0
}

// Uninstall removes every hook. Safe to call repeatedly.
func (f *Filter) Uninstall() {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	for _, hk := range f.hooks {
		if err := f.hooker.Uninstall(hk); err != nil {
			f.log.WithError(err).Debug("unhook failed")
		}
	}
	f.hooks = nil
}
