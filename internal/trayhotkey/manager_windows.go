//go:build windows

package trayhotkey

import (
	"image/color"
	"sync"

	"PenTarget/internal/feed"
	"PenTarget/internal/ipcapi"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// Dependencies are invoked on the tray goroutine. Anything touching the
// device must be marshalled to the primary thread by the caller.
type Dependencies struct {
	OnToggleRun      func()
	OnToggleAspect   func()
	EditTargetPath   func() (string, error)
	AutostartEnabled func() bool
	SetAutostart     func(enabled bool) error
	OnExit           func()
}

type Manager struct {
	deps Dependencies
	log  *logrus.Entry
	once sync.Once
	stop chan struct{}

	mu        sync.Mutex
	ready     bool
	state     ipcapi.StateChangedEvent
	line      string
	lastColor color.RGBA
	itemRun   *systray.MenuItem
	itemAsp   *systray.MenuItem
}

func NewManager(deps Dependencies, log *logrus.Entry) *Manager {
	return &Manager{deps: deps, log: log, stop: make(chan struct{})}
}

func (m *Manager) Start() {
	m.once.Do(func() {
		go systray.Run(m.onReady, m.onExit)
	})
}

func (m *Manager) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	systray.Quit()
}

// SetState records the orchestration flags and refreshes the tray.
func (m *Manager) SetState(st ipcapi.StateChangedEvent) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	m.refresh()
}

// Follow shows each feed entry in the tooltip until the channel closes.
func (m *Manager) Follow(entries <-chan feed.Entry) {
	go func() {
		for e := range entries {
			m.mu.Lock()
			m.line = feed.FormatLine(e)
			m.mu.Unlock()
			m.refresh()
		}
	}()
}

func (m *Manager) refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}
	v := render(m.state, m.line)
	if v.color != m.lastColor {
		m.lastColor = v.color
		systray.SetIcon(dotIcon(v.color))
	}
	systray.SetTooltip(v.tooltip)
	m.itemRun.SetTitle(v.runTitle)
	if v.aspect {
		m.itemAsp.Check()
	} else {
		m.itemAsp.Uncheck()
	}
}

func (m *Manager) onReady() {
	systray.SetTitle(appTitle)

	itemRun := systray.AddMenuItem("Start mapping\t"+hotkeyHint, "Map the tablet onto the target window")
	itemAsp := systray.AddMenuItem("Preserve aspect ratio", "Crop the tablet area to the window's aspect ratio")
	itemEdit := systray.AddMenuItem("Edit target...", "Open the configuration file")
	systray.AddSeparator()
	itemAuto := systray.AddMenuItem("Start with Windows", "Launch at logon")
	if m.deps.AutostartEnabled != nil && m.deps.AutostartEnabled() {
		itemAuto.Check()
	}
	systray.AddSeparator()
	itemExit := systray.AddMenuItem("Exit", "Exit")

	m.mu.Lock()
	m.itemRun, m.itemAsp = itemRun, itemAsp
	m.ready = true
	m.mu.Unlock()
	m.refresh()

	go func() {
		for {
			select {
			case <-m.stop:
				return
			case <-itemRun.ClickedCh:
				if m.deps.OnToggleRun != nil {
					m.deps.OnToggleRun()
				}
			case <-itemAsp.ClickedCh:
				if m.deps.OnToggleAspect != nil {
					m.deps.OnToggleAspect()
				}
			case <-itemEdit.ClickedCh:
				m.editTarget()
			case <-itemAuto.ClickedCh:
				m.toggleAutostart(itemAuto)
			case <-itemExit.ClickedCh:
				if m.deps.OnExit != nil {
					m.deps.OnExit()
				}
				m.Stop()
				return
			}
		}
	}()
}

func (m *Manager) onExit() {}

func (m *Manager) editTarget() {
	if m.deps.EditTargetPath == nil {
		return
	}
	path, err := m.deps.EditTargetPath()
	if err != nil {
		m.log.WithError(err).Error("cannot prepare configuration file")
		return
	}
	verb, _ := windows.UTF16PtrFromString("open")
	file, _ := windows.UTF16PtrFromString(path)
	if err := windows.ShellExecute(0, verb, file, nil, nil, windows.SW_SHOWNORMAL); err != nil {
		m.log.WithError(err).WithField("path", path).Error("cannot open configuration file")
	}
}

func (m *Manager) toggleAutostart(item *systray.MenuItem) {
	if m.deps.SetAutostart == nil {
		return
	}
	enable := !item.Checked()
	if err := m.deps.SetAutostart(enable); err != nil {
		m.log.WithError(err).Error("cannot change autostart")
		return
	}
	if enable {
		item.Check()
	} else {
		item.Uncheck()
	}
}
