//go:build windows

package window

import (
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/sirupsen/logrus"
)

// WatchProcessExits evicts cached process names as processes exit, so a
// recycled pid never matches under its previous owner's name. It blocks
// until stopCh is closed.
func (q *Win32) WatchProcessExits(stopCh <-chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := wmiTraceLoop("Win32_ProcessStopTrace", func(pid uint32, name string) {
		q.names.Forget(pid)
		q.log.WithFields(logrus.Fields{"pid": pid, "name": name}).Trace("process exited")
	}, stopCh)
	if err != nil {
		q.log.WithError(err).Warn("process exit watcher unavailable; relying on cache expiry")
	}
}

func wmiTraceLoop(className string, onEvent func(pid uint32, name string), stopCh <-chan struct{}) error {
	_ = ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED)
	defer ole.CoUninitialize()

	locatorObj, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return err
	}
	defer locatorObj.Release()

	locator, err := locatorObj.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return err
	}
	defer locator.Release()

	svcRaw, err := oleutil.CallMethod(locator, "ConnectServer", nil, "root\\cimv2")
	if err != nil {
		return err
	}
	svc := svcRaw.ToIDispatch()
	defer svc.Release()

	srcRaw, err := oleutil.CallMethod(svc, "ExecNotificationQuery", "SELECT * FROM "+className)
	if err != nil {
		return err
	}
	src := srcRaw.ToIDispatch()
	defer src.Release()

	for {
		select {
		case <-stopCh:
			return nil
		default:
		}
		// NextEvent times out after a second so stopCh is polled.
		evRaw, err := oleutil.CallMethod(src, "NextEvent", 1000)
		if err != nil {
			continue
		}
		ev := evRaw.ToIDispatch()
		if ev == nil {
			continue
		}
		pidV, _ := oleutil.GetProperty(ev, "ProcessID")
		nameV, _ := oleutil.GetProperty(ev, "ProcessName")
		var pid uint32
		if pidV != nil {
			pid = uint32(pidV.Val)
		}
		name := ""
		if nameV != nil {
			name = nameV.ToString()
		}
		if pid > 0 {
			onEvent(pid, name)
		}
		ev.Release()
	}
}
