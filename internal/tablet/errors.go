package tablet

import "errors"

var (
	ErrContextUnavailable = errors.New("tablet context service unavailable")
	ErrOpenExhausted      = errors.New("context open failed for all option combinations")
	ErrReopenFailed       = errors.New("context reopen failed")
	ErrLockUnavailable    = errors.New("context lock unavailable")
)
