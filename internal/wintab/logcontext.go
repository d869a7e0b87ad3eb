// Package wintab binds the ANSI entry points of wintab32.dll and converts
// between the driver's LOGCONTEXTA layout and tablet.Template.
package wintab

import (
	"bytes"

	"PenTarget/internal/tablet"
)

// LOGCONTEXTA mirrors the native structure field for field. FIX32 fields
// are 16.16 fixed point and passed through untouched.
type LOGCONTEXTA struct {
	Name      [40]byte
	Options   uint32
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
	InOrgX    int32
	InOrgY    int32
	InOrgZ    int32
	InExtX    int32
	InExtY    int32
	InExtZ    int32
	OutOrgX   int32
	OutOrgY   int32
	OutOrgZ   int32
	OutExtX   int32
	OutExtY   int32
	OutExtZ   int32
	SensX     int32
	SensY     int32
	SensZ     int32
	SysMode   int32
	SysOrgX   int32
	SysOrgY   int32
	SysExtX   int32
	SysExtY   int32
	SysSensX  int32
	SysSensY  int32
}

// logContextSize is sizeof(LOGCONTEXTA) in the Wintab headers.
const logContextSize = 40 + 11*4 + 22*4

// ToTemplate converts a native context into the mapping value type.
func ToTemplate(lc *LOGCONTEXTA) tablet.Template {
	name := lc.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return tablet.Template{
		Options: tablet.Options(lc.Options),
		InOrg:   tablet.Axes{X: lc.InOrgX, Y: lc.InOrgY, Z: lc.InOrgZ},
		InExt:   tablet.Axes{X: lc.InExtX, Y: lc.InExtY, Z: lc.InExtZ},
		OutOrg:  tablet.Axes{X: lc.OutOrgX, Y: lc.OutOrgY, Z: lc.OutOrgZ},
		OutExt:  tablet.Axes{X: lc.OutExtX, Y: lc.OutExtY, Z: lc.OutExtZ},
		SysOrgX: lc.SysOrgX,
		SysOrgY: lc.SysOrgY,
		SysExtX: lc.SysExtX,
		SysExtY: lc.SysExtY,
		Device: tablet.Device{
			Name:      string(name),
			Status:    lc.Status,
			Locks:     lc.Locks,
			MsgBase:   lc.MsgBase,
			Device:    lc.Device,
			PktRate:   lc.PktRate,
			PktData:   lc.PktData,
			PktMode:   lc.PktMode,
			MoveMask:  lc.MoveMask,
			BtnDnMask: lc.BtnDnMask,
			BtnUpMask: lc.BtnUpMask,
			Sens:      [3]int32{lc.SensX, lc.SensY, lc.SensZ},
			SysMode:   lc.SysMode,
			SysSens:   [2]int32{lc.SysSensX, lc.SysSensY},
		},
	}
}

// FromTemplate builds the native structure. Names longer than 39 bytes are
// truncated so the field stays NUL terminated.
func FromTemplate(t tablet.Template) LOGCONTEXTA {
	lc := LOGCONTEXTA{
		Options:   uint32(t.Options),
		Status:    t.Device.Status,
		Locks:     t.Device.Locks,
		MsgBase:   t.Device.MsgBase,
		Device:    t.Device.Device,
		PktRate:   t.Device.PktRate,
		PktData:   t.Device.PktData,
		PktMode:   t.Device.PktMode,
		MoveMask:  t.Device.MoveMask,
		BtnDnMask: t.Device.BtnDnMask,
		BtnUpMask: t.Device.BtnUpMask,
		InOrgX:    t.InOrg.X,
		InOrgY:    t.InOrg.Y,
		InOrgZ:    t.InOrg.Z,
		InExtX:    t.InExt.X,
		InExtY:    t.InExt.Y,
		InExtZ:    t.InExt.Z,
		OutOrgX:   t.OutOrg.X,
		OutOrgY:   t.OutOrg.Y,
		OutOrgZ:   t.OutOrg.Z,
		OutExtX:   t.OutExt.X,
		OutExtY:   t.OutExt.Y,
		OutExtZ:   t.OutExt.Z,
		SensX:     t.Device.Sens[0],
		SensY:     t.Device.Sens[1],
		SensZ:     t.Device.Sens[2],
		SysMode:   t.Device.SysMode,
		SysOrgX:   t.SysOrgX,
		SysOrgY:   t.SysOrgY,
		SysExtX:   t.SysExtX,
		SysExtY:   t.SysExtY,
		SysSensX:  t.Device.SysSens[0],
		SysSensY:  t.Device.SysSens[1],
	}
	copy(lc.Name[:len(lc.Name)-1], t.Device.Name)
	return lc
}
