package state

import (
	"fmt"
	"sync/atomic"
)

// Rect is a window rectangle in virtual-desktop coordinates. Coordinates may
// be negative on monitors left of or above the primary one.
type Rect struct {
	Left   int32 `json:"left"`
	Top    int32 `json:"top"`
	Right  int32 `json:"right"`
	Bottom int32 `json:"bottom"`
}

func (r Rect) Width() int32  { return r.Right - r.Left }
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// Degenerate reports whether the rectangle has no usable area.
func (r Rect) Degenerate() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("%d/%d/%d/%d", r.Left, r.Top, r.Right, r.Bottom)
}

// RunState holds the three independent user/runtime flags. Each flag is read
// far more often than written and no reader needs two of them to agree.
type RunState struct {
	run     atomic.Bool
	aspect  atomic.Bool
	present atomic.Bool
}

func NewRunState(run, aspect bool) *RunState {
	s := &RunState{}
	s.run.Store(run)
	s.aspect.Store(aspect)
	return s
}

func (s *RunState) RunEnabled() bool     { return s.run.Load() }
func (s *RunState) SetRunEnabled(v bool) { s.run.Store(v) }

func (s *RunState) KeepAspect() bool     { return s.aspect.Load() }
func (s *RunState) SetKeepAspect(v bool) { s.aspect.Store(v) }

func (s *RunState) TargetPresent() bool { return s.present.Load() }

// SetTargetPresent stores v and returns the previous value.
func (s *RunState) SetTargetPresent(v bool) bool { return s.present.Swap(v) }
