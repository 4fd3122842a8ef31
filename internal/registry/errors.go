package registry

import "errors"

// Registry errors, matched with errors.Is by callers and mapped to HTTP
// status codes or dropped events at the edges.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyExists = errors.New("room code already exists")
	ErrUnauthorized  = errors.New("not the room creator")
	ErrNotAMember    = errors.New("not a room member")
)
