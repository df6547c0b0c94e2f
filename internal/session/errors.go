package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")

	ErrInvalidOrigin = errors.New("invalid origin address")
)
