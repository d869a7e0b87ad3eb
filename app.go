//go:build windows

package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"PenTarget/internal/config"
	"PenTarget/internal/events"
	"PenTarget/internal/feed"
	"PenTarget/internal/host"
	"PenTarget/internal/ipcapi"
	"PenTarget/internal/services"
	"PenTarget/internal/tablet"
	"PenTarget/internal/target"
	"PenTarget/internal/trayhotkey"
	"PenTarget/internal/window"
	"PenTarget/internal/wintab"

	"github.com/sirupsen/logrus"
)

// App wires every component together. startup and shutdown run on the
// primary thread, which also owns the host window.
type App struct {
	cfg     *config.Config
	initial *target.Spec
	log     *logrus.Logger

	host    *host.Window
	ctx     *tablet.Context
	windows *window.Win32
	feed    *feed.Feed
	tray    *trayhotkey.Manager
	svc     *services.Services
	source  *config.Source

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewApp(cfg *config.Config, initial *target.Spec, log *logrus.Logger) *App {
	return &App{cfg: cfg, initial: initial, log: log, stopCh: make(chan struct{})}
}

func run(cfg *config.Config, initial *target.Spec, log *logrus.Logger) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	a := NewApp(cfg, initial, log)
	if err := a.startup(); err != nil {
		a.shutdown()
		return err
	}
	defer a.shutdown()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Info("interrupt received, shutting down")
			_ = a.host.Quit()
		case <-a.stopCh:
		}
	}()

	return a.host.Run()
}

func (a *App) component(name string) *logrus.Entry {
	return a.log.WithField("component", name)
}

func (a *App) startup() error {
	var err error
	a.host, err = host.New(a, host.Options{Hotkey: a.cfg.Hotkey.Enabled}, a.component("host"))
	if err != nil {
		return err
	}

	drv, err := wintab.NewDriver()
	if err != nil {
		return err
	}
	a.ctx, err = tablet.Acquire(drv, a.host.HWND(), a.component("context"))
	if err != nil {
		return fmt.Errorf("acquire tablet context: %w", err)
	}
	a.component("context").WithField("options", a.ctx.Options().String()).Info("tablet context acquired")

	a.windows = window.NewWin32(a.component("window"))
	go a.windows.WatchProcessExits(a.stopCh)

	a.feed = feed.New(a.cfg.Feed.Capacity)
	a.source = config.NewSource(a.cfg, a.initial, a.component("config"))

	a.tray = trayhotkey.NewManager(trayhotkey.Dependencies{
		OnToggleRun:      func() { a.post(host.CmdToggleRun) },
		OnToggleAspect:   func() { a.post(host.CmdToggleAspect) },
		EditTargetPath:   a.source.EnsureFile,
		AutostartEnabled: services.AutostartEnabled,
		SetAutostart: func(enabled bool) error {
			return services.SetAutostart(enabled, "--config", a.cfg.Path)
		},
		OnExit: func() { a.post(host.CmdQuit) },
	}, a.component("tray"))
	a.tray.Follow(a.feed.Subscribe(16))
	a.tray.Start()

	a.svc = services.New(services.Dependencies{
		Context: a.ctx,
		Windows: a.windows,
		Hooks:   events.NewWinEventHooker(),
		Targets: a.source,
		Feed:    a.feed,
		EmitEvent: func(name string, data any) {
			if st, ok := data.(ipcapi.StateChangedEvent); ok && name == ipcapi.EventStateChanged {
				a.tray.SetState(st)
			}
		},
		Log: a.component("services"),
		Options: services.Options{
			KeepAspect:         a.cfg.Mapping.PreserveAspect,
			StartEnabled:       a.cfg.Run.StartEnabled,
			ReopenOnForeground: a.cfg.Mapping.ReopenOnForeground,
			FullWhenUnfocused:  a.cfg.Mapping.FullWhenUnfocused,
			Dump:               a.cfg.Mapping.Dump,
			WaitInterval:       a.cfg.Feed.WaitInterval,
		},
	})
	a.svc.Start()
	return nil
}

func (a *App) post(cmd host.Command) {
	if err := a.host.Post(cmd); err != nil {
		a.component("host").WithError(err).WithField("command", cmd.String()).Debug("command dropped")
	}
}

// HandleCommand implements host.Handler.
func (a *App) HandleCommand(cmd host.Command) {
	switch cmd {
	case host.CmdToggleRun:
		a.svc.ToggleRun()
	case host.CmdToggleAspect:
		a.svc.ToggleAspect()
	}
}

// Tick implements host.Handler.
func (a *App) Tick() {
	if a.svc != nil {
		a.svc.Tick()
	}
}

func (a *App) shutdown() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		if a.svc != nil {
			a.svc.Stop()
		}
		if a.tray != nil {
			a.tray.Stop()
		}
		if a.feed != nil {
			a.feed.Close()
		}
		if a.ctx != nil {
			a.ctx.Close()
		}
		if a.host != nil {
			a.host.Close()
		}
		a.log.Info("stopped")
	})
}
