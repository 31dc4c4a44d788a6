// internal/room/errors.go
package room

import (
	"errors"
	"regexp"
)

var (
	ErrAlreadyExists = errors.New("room already exists")
	ErrNotFound      = errors.New("room not found")
	ErrNameTaken     = errors.New("player name already taken")
	ErrRoomClosing   = errors.New("room is closing")
	ErrIllegalAction = errors.New("illegal action")
	ErrRejected      = errors.New("connection rejected")
	ErrInvalidName   = errors.New("invalid name")
)

// Cancellation causes observed on a session's context.
var (
	ErrSuperseded   = errors.New("session superseded by a newer connection")
	ErrSlowConsumer = errors.New("session outbox full")
	ErrSessionLeft  = errors.New("session left the room")
	ErrDisconnected = errors.New("session disconnected")
)

var nameRe = regexp.MustCompile(`^\w{1,32}$`)

// ValidName reports whether name is usable as a room or player name.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}
