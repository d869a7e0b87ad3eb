package ipcapi

import "time"

const EventStateChanged = "onStateChanged"

// StateChangedEvent is emitted whenever one of the orchestration flags
// changes.
type StateChangedEvent struct {
	RunEnabled    bool   `json:"runEnabled"`
	KeepAspect    bool   `json:"keepAspect"`
	TargetPresent bool   `json:"targetPresent"`
	Errored       bool   `json:"errored"`
	Target        string `json:"target,omitempty"`
	AtUTC         int64  `json:"atUTC"`
}

func NowUTC() int64 { return time.Now().UTC().UnixMilli() }
