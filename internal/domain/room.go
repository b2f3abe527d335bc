package domain

import "errors"

var ErrRoomIDEmpty = errors.New("room id empty")

// RoomID is an opaque caller supplied room name.
type RoomID string

func (id RoomID) Validate() error {
	if id == "" {
		return ErrRoomIDEmpty
	}
	return nil
}
