package warp

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrWorldUnavailable   = errors.New("world unavailable")
	ErrPlayerOffline      = errors.New("player offline")
	ErrTransportFailure   = errors.New("transport failure")
	ErrNoSafeCandidate    = errors.New("no safe candidate")
	ErrTeleportInProgress = errors.New("teleport already in progress")
	ErrReservedName       = errors.New("reserved name")

	// ErrInvalidArgument marks a caller bug: a required value was absent.
	ErrInvalidArgument = errors.New("invalid argument")
)
