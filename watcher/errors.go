package watcher

import "errors"

var (
	ErrSessionRunning = errors.New("session already running")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
