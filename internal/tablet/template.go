package tablet

import "fmt"

// Options is the context option bitfield requested at open time.
type Options uint32

const (
	// System integrates the context with the system pointer.
	System Options = 0x0001
	Pen    Options = 0x0002
	// Messages asks the driver to post packet messages to the owner window.
	Messages Options = 0x0004
)

func (o Options) String() string { return fmt.Sprintf("0x%08X", uint32(o)) }

// Handle identifies a live device context. Zero is never a valid handle.
type Handle uintptr

// Axes is an X/Y/Z triple. A negative extent inverts its axis.
type Axes struct {
	X, Y, Z int32
}

// Device holds driver-specific fields that mapping code never interprets.
// They are carried from the driver's default template to every open/set call.
type Device struct {
	Name      string
	Status    uint32
	Locks     uint32
	MsgBase   uint32
	Device    uint32
	PktRate   uint32
	PktData   uint32
	PktMode   uint32
	MoveMask  uint32
	BtnDnMask uint32
	BtnUpMask uint32
	Sens      [3]int32
	SysMode   int32
	SysSens   [2]int32
}

// Template describes a complete coordinate mapping for a context.
type Template struct {
	Options Options

	InOrg  Axes
	InExt  Axes
	OutOrg Axes
	OutExt Axes

	// System-pointer mapping, mirrored from the output fields.
	SysOrgX, SysOrgY int32
	SysExtX, SysExtY int32

	Device Device
}

// SameInput reports whether t and o describe the same input sub-rectangle.
func (t Template) SameInput(o Template) bool {
	return t.InOrg == o.InOrg && t.InExt == o.InExt
}
