// Package windowtest provides an in-memory window.Querier for tests.
package windowtest

import (
	"sync"

	"PenTarget/internal/state"
	"PenTarget/internal/window"
)

type Window struct {
	Class  string
	Title  string
	PID    uint32
	Rect   state.Rect
	NoRect bool
	Hidden bool
	Owner  window.Handle
}

// Desktop is a fake window system. The zero value is empty and usable.
type Desktop struct {
	mu        sync.Mutex
	wins      map[window.Handle]*Window
	order     []window.Handle
	procs     map[uint32]string
	fg        window.Handle
	RectCalls int
}

func (d *Desktop) init() {
	if d.wins == nil {
		d.wins = make(map[window.Handle]*Window)
		d.procs = make(map[uint32]string)
	}
}

// Add places w on top of the z-order.
func (d *Desktop) Add(h window.Handle, w Window) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.init()
	d.wins[h] = &w
	d.order = append([]window.Handle{h}, d.order...)
}

func (d *Desktop) Process(pid uint32, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.init()
	d.procs[pid] = name
}

func (d *Desktop) SetForeground(h window.Handle) {
	d.mu.Lock()
	d.fg = h
	d.mu.Unlock()
}

func (d *Desktop) Move(h window.Handle, r state.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.wins[h]; ok {
		w.Rect = r
		w.NoRect = false
	}
}

func (d *Desktop) SetHidden(h window.Handle, hidden bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.wins[h]; ok {
		w.Hidden = hidden
	}
}

// Destroy removes h so later queries fail the way they do for a dead window.
func (d *Desktop) Destroy(h window.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.wins, h)
	for i, o := range d.order {
		if o == h {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *Desktop) get(h window.Handle) (*Window, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.wins[h]
	return w, ok
}

func (d *Desktop) Rect(h window.Handle) (state.Rect, error) {
	d.mu.Lock()
	d.RectCalls++
	d.mu.Unlock()
	w, ok := d.get(h)
	if !ok || w.NoRect {
		return state.Rect{}, window.ErrRectUnavailable
	}
	return w.Rect, nil
}

func (d *Desktop) ClassName(h window.Handle) string {
	if w, ok := d.get(h); ok {
		return w.Class
	}
	return ""
}

func (d *Desktop) Title(h window.Handle) string {
	if w, ok := d.get(h); ok {
		return w.Title
	}
	return ""
}

func (d *Desktop) ProcessID(h window.Handle) uint32 {
	if w, ok := d.get(h); ok {
		return w.PID
	}
	return 0
}

func (d *Desktop) ProcessName(pid uint32) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.procs[pid]
	return n, ok
}

func (d *Desktop) Foreground() window.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fg
}

func (d *Desktop) TopLevel() []window.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]window.Handle(nil), d.order...)
}

func (d *Desktop) IsRoot(h window.Handle) bool {
	w, ok := d.get(h)
	return ok && w.Owner == 0
}

func (d *Desktop) IsVisible(h window.Handle) bool {
	w, ok := d.get(h)
	return ok && !w.Hidden
}

var _ window.Querier = (*Desktop)(nil)
