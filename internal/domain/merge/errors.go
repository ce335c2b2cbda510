package merge

import "errors"

// Sentinel kinds for merge errors.
var (
	ErrInvalidChoice = errors.New("invalid choice")
	ErrUnknownStatus = errors.New("unknown status")
	ErrCorruptState  = errors.New("corrupt merge state")
)
