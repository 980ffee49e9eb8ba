package filedrop

import (
	"errors"
	"fmt"
	"strings"
)

// Action selects the operation of a POST /api request.
type Action uint8

const (
	ActionUnknown Action = iota
	ActionUpload
	ActionUploadCheck
	ActionUploadChunk
	ActionUploadAbort
	ActionStorage
)

// ErrUnknownAction is returned by ParseAction for unsupported values.
var ErrUnknownAction = errors.New("unknown action")

var actionNames = map[Action]string{
	ActionUpload:      "upload",
	ActionUploadCheck: "upload_check",
	ActionUploadChunk: "upload_chunk",
	ActionUploadAbort: "upload_abort",
	ActionStorage:     "storage",
}

// ParseAction resolves the action form field. Matching is case-insensitive.
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return ActionUnknown, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}
