package session

import "errors"

var (
	ErrSessionClosed = errors.New("session closed")
	ErrInvalidInput  = errors.New("invalid player input")
)
