package app

import "github.com/dkeye/Relay/internal/domain"

// notifyJoined seeds the joiner with the existing members and announces it
// to them.
func (o *Orchestrator) notifyJoined(s *session, roomID domain.RoomID, p domain.Participant) {
	o.send(s, domain.EventUsersInRoom, o.Rooms.ListOthers(roomID, s.id))
	o.broadcast(roomID, s.id, domain.EventUserJoined, p)
}

func (o *Orchestrator) notifyLeft(roomID domain.RoomID, p domain.Participant) {
	o.broadcast(roomID, p.ID, domain.EventUserLeft, p)
}

func (o *Orchestrator) notifyAuthError(s *session, msg string) {
	o.send(s, domain.EventAuthError, domain.Message{Message: msg})
}
