package tablet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrNoHandle = errors.New("no live context handle")

// Service is the native device-context API a Context drives.
type Service interface {
	// DefaultTemplate returns the driver's default context template.
	DefaultTemplate() (Template, error)
	Open(owner uintptr, t Template, opts Options) (Handle, error)
	Set(h Handle, t Template) error
	Get(h Handle) (Template, error)
	// Close is best-effort.
	Close(h Handle)
}

// FallbackOptions returns the option sets tried, in order, when opening a
// context: the desired set, the desired set without system-pointer
// integration, and messages only.
func FallbackOptions(desired Options) [3]Options {
	return [3]Options{desired, desired &^ System, Messages}
}

// SelectOption calls try for each fallback candidate until one is accepted.
func SelectOption(desired Options, try func(Options) bool) (Options, bool) {
	for _, opts := range FallbackOptions(desired) {
		if try(opts) {
			return opts, true
		}
	}
	return 0, false
}

// Context owns the single live device context. Every operation that touches
// the handle runs under one mutex, so a close+open pair is never observed
// half-done.
type Context struct {
	svc   Service
	owner uintptr
	log   *logrus.Entry

	base  Template
	final Options

	mu     sync.Mutex
	h      Handle
	live   bool
	opened Template
	closed bool
}

// Acquire opens the initial context for owner. The template and option set
// that succeed become the base template and final options for the lifetime
// of the Context.
func Acquire(svc Service, owner uintptr, log *logrus.Entry) (*Context, error) {
	def, err := svc.DefaultTemplate()
	if err != nil {
		return nil, fmt.Errorf("query default context: %w", err)
	}
	def.Options |= Messages | System

	c := &Context{svc: svc, owner: owner, log: log}
	h, used, ok := c.openWithFallback(def, def.Options, "open")
	if !ok {
		return nil, ErrOpenExhausted
	}
	c.h = h
	c.live = true
	c.base = used
	c.opened = used
	c.final = used.Options
	return c, nil
}

func (c *Context) openWithFallback(t Template, desired Options, op string) (Handle, Template, bool) {
	var (
		h    Handle
		used Template
	)
	_, ok := SelectOption(desired, func(opts Options) bool {
		attempt := t
		attempt.Options = opts
		nh, err := c.svc.Open(c.owner, attempt, opts)
		if err != nil {
			c.log.WithError(err).WithField("options", opts.String()).Errorf("%s attempt failed", op)
			return false
		}
		c.log.WithField("options", opts.String()).Infof("%s succeeded", op)
		h, used = nh, attempt
		return true
	})
	return h, used, ok
}

// Base returns the template captured at acquisition.
func (c *Context) Base() Template { return c.base }

// Options returns the option set that succeeded at acquisition.
func (c *Context) Options() Options { return c.final }

// Live reports whether a handle is currently open.
func (c *Context) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *Context) withLock(fn func() error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrLockUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Error("context operation panicked")
			err = fmt.Errorf("%w: %v", ErrLockUnavailable, r)
		}
	}()
	return fn()
}

// Reopen closes the live handle and opens a new one with t, retrying the
// fallback sequence from the final options. On failure no handle is left
// open until the next successful reopen.
func (c *Context) Reopen(t Template) error {
	return c.withLock(func() error { return c.reopenLocked(t) })
}

// ReopenBase reopens the context with the base template.
func (c *Context) ReopenBase() error {
	return c.Reopen(c.base)
}

func (c *Context) reopenLocked(t Template) error {
	if c.live {
		c.svc.Close(c.h)
		c.h = 0
		c.live = false
	}
	h, used, ok := c.openWithFallback(t, c.final, "reopen")
	if !ok {
		c.log.Error("all reopen attempts failed; mapping update skipped")
		return ErrReopenFailed
	}
	c.h = h
	c.live = true
	c.opened = used
	return nil
}

// ApplyLive sets t on the live handle. When t's input geometry differs from
// the one the handle was opened with, the context is reopened instead.
func (c *Context) ApplyLive(t Template) error {
	return c.withLock(func() error { return c.setLocked(t) })
}

func (c *Context) setLocked(t Template) error {
	if !c.live {
		return ErrNoHandle
	}
	if !t.SameInput(c.opened) {
		// Drivers may only honour input extents at open time.
		return c.reopenLocked(t)
	}
	t.Options = c.opened.Options
	if err := c.svc.Set(c.h, t); err != nil {
		return fmt.Errorf("set context: %w", err)
	}
	return nil
}

// ResetBase restores the base template. If the live handle was opened with a
// different input geometry, or no handle is live, the context is reopened.
func (c *Context) ResetBase() error {
	return c.withLock(func() error {
		if !c.live {
			return c.reopenLocked(c.base)
		}
		return c.setLocked(c.base)
	})
}

// Current reads the live template back from the driver.
func (c *Context) Current() (Template, error) {
	var t Template
	err := c.withLock(func() error {
		if !c.live {
			return ErrNoHandle
		}
		got, err := c.svc.Get(c.h)
		if err != nil {
			return fmt.Errorf("get context: %w", err)
		}
		t = got
		return nil
	})
	return t, err
}

// Close releases the handle. Safe to call more than once.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.live {
		c.svc.Close(c.h)
		c.h = 0
		c.live = false
	}
}
