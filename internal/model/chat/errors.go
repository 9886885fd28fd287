package chat

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrNotOwned        = errors.New("session belongs to another user")
	ErrSessionBusy     = errors.New("a turn is already in flight for this session")
	ErrDuplicateTurn   = errors.New("turn already exists")
	ErrDuplicateID     = errors.New("session id already exists")
	ErrTurnNotFound    = errors.New("turn not found")
)
