//go:build windows

package wintab

import (
	"errors"
	"fmt"
	"unsafe"

	"PenTarget/internal/tablet"

	"golang.org/x/sys/windows"
)

const WTI_DEFCONTEXT = 3

var (
	wintab32     = windows.NewLazySystemDLL("wintab32.dll")
	procWTInfoA  = wintab32.NewProc("WTInfoA")
	procWTOpenA  = wintab32.NewProc("WTOpenA")
	procWTClose  = wintab32.NewProc("WTClose")
	procWTGetA   = wintab32.NewProc("WTGetA")
	procWTSetA   = wintab32.NewProc("WTSetA")
	requiredProc = []*windows.LazyProc{procWTInfoA, procWTOpenA, procWTClose, procWTGetA, procWTSetA}
)

var (
	errOpenNull = errors.New("WTOpenA returned NULL")
	errSet      = errors.New("WTSetA failed")
	errGet      = errors.New("WTGetA failed")
)

// Driver implements tablet.Service on wintab32.dll.
type Driver struct{}

func NewDriver() (*Driver, error) {
	if err := wintab32.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", tablet.ErrContextUnavailable, err)
	}
	for _, p := range requiredProc {
		if err := p.Find(); err != nil {
			return nil, fmt.Errorf("%w: %v", tablet.ErrContextUnavailable, err)
		}
	}
	return &Driver{}, nil
}

// DefaultTemplate queries WTI_DEFCONTEXT. Some drivers fill the structure
// only partly; the input extents are what matters and are accepted as is.
func (d *Driver) DefaultTemplate() (tablet.Template, error) {
	var lc LOGCONTEXTA
	n, _, _ := procWTInfoA.Call(WTI_DEFCONTEXT, 0, uintptr(unsafe.Pointer(&lc)))
	if n == 0 {
		return tablet.Template{}, fmt.Errorf("%w: WTInfoA(WTI_DEFCONTEXT) returned no data", tablet.ErrContextUnavailable)
	}
	return ToTemplate(&lc), nil
}

func (d *Driver) Open(owner uintptr, t tablet.Template, opts tablet.Options) (tablet.Handle, error) {
	t.Options = opts
	lc := FromTemplate(t)
	h, _, _ := procWTOpenA.Call(owner, uintptr(unsafe.Pointer(&lc)), 1)
	if h == 0 {
		return 0, errOpenNull
	}
	return tablet.Handle(h), nil
}

func (d *Driver) Set(h tablet.Handle, t tablet.Template) error {
	lc := FromTemplate(t)
	r1, _, _ := procWTSetA.Call(uintptr(h), uintptr(unsafe.Pointer(&lc)))
	if r1 == 0 {
		return errSet
	}
	return nil
}

func (d *Driver) Get(h tablet.Handle) (tablet.Template, error) {
	var lc LOGCONTEXTA
	r1, _, _ := procWTGetA.Call(uintptr(h), uintptr(unsafe.Pointer(&lc)))
	if r1 == 0 {
		return tablet.Template{}, errGet
	}
	return ToTemplate(&lc), nil
}

// Close is best effort.
func (d *Driver) Close(h tablet.Handle) {
	_, _, _ = procWTClose.Call(uintptr(h))
}

var _ tablet.Service = (*Driver)(nil)
