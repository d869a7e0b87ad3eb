package services

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"PenTarget/internal/events"
	"PenTarget/internal/feed"
	"PenTarget/internal/ipcapi"
	"PenTarget/internal/mapping"
	"PenTarget/internal/state"
	"PenTarget/internal/tablet"
	"PenTarget/internal/target"
	"PenTarget/internal/window"

	"github.com/sirupsen/logrus"
)

// DeviceContext is the part of *tablet.Context the orchestration drives.
type DeviceContext interface {
	Base() tablet.Template
	Reopen(t tablet.Template) error
	ReopenBase() error
	ApplyLive(t tablet.Template) error
	ResetBase() error
	Current() (tablet.Template, error)
}

// TargetSource supplies the user's desired target each time mapping is
// enabled. ok is false when no target has ever been configured.
type TargetSource interface {
	DesiredTarget() (spec target.Spec, ok bool, err error)
}

type Options struct {
	KeepAspect         bool
	StartEnabled       bool
	ReopenOnForeground bool
	FullWhenUnfocused  bool
	Dump               bool
	WaitInterval       time.Duration
	Kinds              []events.Kind
}

type Dependencies struct {
	Context   DeviceContext
	Windows   window.Querier
	Hooks     events.Hooker
	Targets   TargetSource
	Feed      *feed.Feed
	EmitEvent func(name string, data any)
	Log       *logrus.Entry
	Options   Options
}

const waitingKey = "waiting"

type appliedKey struct {
	rect   state.Rect
	aspect bool
}

// Services owns the orchestration state: it receives filtered window events
// and user commands and drives the device context accordingly. Errors are
// logged, raised as the error flag and never returned to callers.
type Services struct {
	deps   Dependencies
	opts   Options
	log    *logrus.Entry
	filter *events.Filter

	flags   *state.RunState
	errored atomic.Bool

	appliedMu sync.Mutex
	applied   *appliedKey

	stopOnce sync.Once
}

func New(deps Dependencies) *Services {
	opts := deps.Options
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = 5 * time.Second
	}
	if len(opts.Kinds) == 0 {
		opts.Kinds = events.DefaultKinds
	}
	if deps.EmitEvent == nil {
		deps.EmitEvent = func(string, any) {}
	}
	s := &Services{
		deps:  deps,
		opts:  opts,
		log:   deps.Log,
		flags: state.NewRunState(false, opts.KeepAspect),
	}
	s.filter = events.NewFilter(deps.Windows, s, deps.Log.WithField("component", "filter"))
	s.filter.ForwardForegroundLoss(opts.FullWhenUnfocused)
	return s
}

// Filter exposes the event filter, mainly for status reporting.
func (s *Services) Filter() *events.Filter { return s.filter }

// Start loads the initial target and enables mapping when configured to.
func (s *Services) Start() {
	if s.opts.StartEnabled {
		s.SetRun(true)
		return
	}
	s.refreshTarget(false)
	if _, ok := s.filter.FindExisting(); ok {
		s.flags.SetTargetPresent(true)
	}
	s.status(feed.Info, "Mapping paused")
	s.emitState()
}

// Stop uninstalls hooks and resets the device to its base template. Safe to
// call more than once.
func (s *Services) Stop() {
	s.stopOnce.Do(func() {
		s.filter.Uninstall()
		if err := s.deps.Context.ResetBase(); err != nil && !errors.Is(err, tablet.ErrLockUnavailable) {
			s.log.WithError(err).Warn("reset on shutdown failed")
		}
	})
}

// Status returns the current flags.
func (s *Services) Status() ipcapi.StateChangedEvent {
	ev := ipcapi.StateChangedEvent{
		RunEnabled:    s.flags.RunEnabled(),
		KeepAspect:    s.flags.KeepAspect(),
		TargetPresent: s.flags.TargetPresent(),
		Errored:       s.errored.Load(),
		AtUTC:         ipcapi.NowUTC(),
	}
	if spec, ok := s.filter.Target(); ok {
		ev.Target = spec.String()
	}
	return ev
}

func (s *Services) ToggleRun() { s.SetRun(!s.flags.RunEnabled()) }

func (s *Services) SetRun(enabled bool) {
	if enabled {
		s.enable()
	} else {
		s.disable()
	}
	s.emitState()
}

func (s *Services) enable() {
	s.flags.SetRunEnabled(true)
	s.refreshTarget(true)
	if _, ok := s.filter.Target(); !ok {
		s.flags.SetTargetPresent(false)
		s.status(feed.Info, "No target configured")
		return
	}
	// Catches a driver reset missed while paused.
	if err := s.deps.Context.ReopenBase(); err != nil {
		s.fail("Context reopen failed", err)
		return
	}
	s.clearApplied()
	s.status(feed.Info, "Mapping enabled")
	s.mapExisting()
}

func (s *Services) disable() {
	s.flags.SetRunEnabled(false)
	if err := s.deps.Context.ResetBase(); err != nil {
		s.fail("Mapping reset failed", err)
	}
	s.clearApplied()
	_, present := s.filter.FindExisting()
	s.flags.SetTargetPresent(present)
	s.status(feed.Info, "Mapping paused")
}

// refreshTarget swaps in the desired target when it changed, installing
// hooks the first time a target exists and install is set.
func (s *Services) refreshTarget(install bool) {
	spec, ok, err := s.deps.Targets.DesiredTarget()
	if err != nil {
		s.log.WithError(err).Warn("desired target not updated")
		s.status(feed.Error, fmt.Sprintf("Target not updated: %v", err))
	}
	if !ok {
		return
	}
	if cur, had := s.filter.Target(); !had || cur != spec {
		s.filter.UpdateTarget(spec)
		s.clearApplied()
		s.log.WithField("target", spec.String()).Info("target set")
		s.status(feed.Info, "Target set: "+spec.String())
	}
	if !install || s.filter.Installed() {
		return
	}
	if err := s.filter.Install(s.deps.Hooks, s.opts.Kinds); err != nil {
		if !s.filter.Installed() {
			s.fail("Window event hooks unavailable", err)
			return
		}
		s.log.WithError(err).Warn("continuing with partial event hooks")
		s.status(feed.Error, err.Error())
	}
}

func (s *Services) ToggleAspect() { s.SetAspect(!s.flags.KeepAspect()) }

// SetAspect updates the aspect preference and re-maps immediately when
// mapping is active and the target exists.
func (s *Services) SetAspect(keep bool) {
	was := s.flags.KeepAspect()
	s.flags.SetKeepAspect(keep)
	s.log.WithField("keep_aspect", keep).Info("aspect preference changed")
	if s.flags.RunEnabled() {
		if was && !keep {
			// Leaving crop mode needs the uncropped input back even when the
			// target is hidden right now.
			if err := s.deps.Context.ResetBase(); err != nil {
				s.fail("Mapping reset failed", err)
				s.emitState()
				return
			}
			s.clearApplied()
		}
		if w, ok := s.filter.FindExisting(); ok {
			if r, err := s.deps.Windows.Rect(w); err != nil {
				s.fail("Window rectangle unavailable", err)
			} else {
				s.apply(r)
			}
		}
	}
	s.status(feed.Info, fmt.Sprintf("Aspect mode %s", onOff(keep)))
	s.emitState()
}

// HandleWindowEvent implements events.Sink.
func (s *Services) HandleWindowEvent(w window.Handle, kind events.Kind, r state.Rect) {
	if _, ok := s.filter.Target(); !ok {
		return
	}
	s.log.WithFields(logrus.Fields{
		"event":  kind.String(),
		"hwnd":   fmt.Sprintf("0x%X", uintptr(w)),
		"left":   r.Left,
		"top":    r.Top,
		"right":  r.Right,
		"bottom": r.Bottom,
	}).Debug("window event")

	switch kind {
	case events.KindDestroy, events.KindMinimizeStart:
		s.targetLost()
		return
	}
	if !s.flags.RunEnabled() {
		return
	}

	switch kind {
	case events.KindForegroundLost:
		if err := s.deps.Context.ResetBase(); err != nil {
			s.fail("Mapping reset failed", err)
			return
		}
		s.clearApplied()
		return
	case events.KindForeground:
		if s.opts.ReopenOnForeground {
			if err := s.deps.Context.ReopenBase(); err != nil {
				s.fail("Context reopen failed (foreground)", err)
				return
			}
		}
	}

	if r.Degenerate() {
		// A still-degenerate answer is applied as is; Compute clamps it.
		r2, err := s.deps.Windows.Rect(w)
		if err != nil {
			s.fail("Window rectangle unavailable", err)
			return
		}
		s.log.WithField("rect", r2.String()).Debug("queried rect after degenerate event rect")
		r = r2
	}
	s.apply(r)
}

func (s *Services) targetLost() {
	if err := s.deps.Context.ResetBase(); err != nil {
		s.fail("Mapping reset failed", err)
	}
	s.clearApplied()
	s.flags.SetTargetPresent(false)
	s.status(feed.Info, "Target lost")
	if s.flags.RunEnabled() {
		s.waiting()
	}
	s.emitState()
}

func (s *Services) mapExisting() {
	w, ok := s.filter.FindExisting()
	if !ok {
		s.flags.SetTargetPresent(false)
		s.waiting()
		return
	}
	r, err := s.deps.Windows.Rect(w)
	if err != nil {
		s.flags.SetTargetPresent(false)
		s.fail("Window rectangle unavailable", err)
		return
	}
	s.apply(r)
}

// apply maps the device onto r. Crop mode changes the input extents, which
// requires a reopen; stretch mode sets the live context.
func (s *Services) apply(r state.Rect) {
	keep := s.flags.KeepAspect()
	working := mapping.Compute(s.deps.Context.Base(), r, keep)

	var err error
	if keep {
		err = s.deps.Context.Reopen(working)
	} else {
		err = s.deps.Context.ApplyLive(working)
	}
	if err != nil {
		s.fail("Mapping apply failed", err)
		return
	}

	s.log.WithFields(logrus.Fields{
		"left":        r.Left,
		"top":         r.Top,
		"right":       r.Right,
		"bottom":      r.Bottom,
		"keep_aspect": keep,
	}).Info("mapping applied")

	wasPresent := s.flags.SetTargetPresent(true)
	wasErrored := s.errored.Swap(false)
	if !wasPresent {
		s.status(feed.Info, "Target appeared")
	}
	if s.markApplied(appliedKey{rect: r, aspect: keep}) {
		line := "Mapping applied " + r.String()
		if keep {
			line = "Mapping applied (aspect) " + r.String()
		}
		s.status(feed.Info, line)
	}
	if s.opts.Dump {
		s.dump()
	}
	if !wasPresent || wasErrored {
		s.emitState()
	}
}

// markApplied reports whether k differs from the last applied tuple.
func (s *Services) markApplied(k appliedKey) bool {
	s.appliedMu.Lock()
	defer s.appliedMu.Unlock()
	if s.applied != nil && *s.applied == k {
		return false
	}
	s.applied = &k
	return true
}

func (s *Services) clearApplied() {
	s.appliedMu.Lock()
	s.applied = nil
	s.appliedMu.Unlock()
}

func (s *Services) dump() {
	cur, err := s.deps.Context.Current()
	if err != nil {
		s.log.WithError(err).Warn("context dump failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"options":   cur.Options.String(),
		"in_org_x":  cur.InOrg.X,
		"in_org_y":  cur.InOrg.Y,
		"in_ext_x":  cur.InExt.X,
		"in_ext_y":  cur.InExt.Y,
		"out_org_x": cur.OutOrg.X,
		"out_org_y": cur.OutOrg.Y,
		"out_ext_x": cur.OutExt.X,
		"out_ext_y": cur.OutExt.Y,
		"sys_org_x": cur.SysOrgX,
		"sys_org_y": cur.SysOrgY,
		"sys_ext_x": cur.SysExtX,
		"sys_ext_y": cur.SysExtY,
	}).Info("post-apply context state")
}

// Tick is called periodically from the primary thread. While mapping is
// enabled and the target is absent it emits a rate-limited waiting line.
func (s *Services) Tick() {
	if !s.flags.RunEnabled() || s.flags.TargetPresent() {
		return
	}
	s.waiting()
}

func (s *Services) waiting() {
	msg := "No target configured"
	if spec, ok := s.filter.Target(); ok {
		msg = "Waiting for target " + spec.String()
	}
	if s.deps.Feed != nil {
		s.deps.Feed.PushRateLimited(waitingKey, s.opts.WaitInterval, feed.Info, msg)
	}
}

// fail reports an error at the orchestration boundary. A context that is
// closed or whose lock holder panicked only skips the update.
func (s *Services) fail(msg string, err error) {
	if errors.Is(err, tablet.ErrLockUnavailable) {
		s.log.WithError(err).Warn(msg + "; update skipped")
		return
	}
	s.log.WithError(err).Error(msg)
	s.status(feed.Error, msg)
	if !s.errored.Swap(true) {
		s.emitState()
	}
}

func (s *Services) status(sev feed.Severity, msg string) {
	if s.deps.Feed != nil {
		s.deps.Feed.Push(sev, msg)
	}
}

func (s *Services) emitState() {
	s.deps.EmitEvent(ipcapi.EventStateChanged, s.Status())
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
