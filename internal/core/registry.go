package core

import (
	"sync"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry is the room table: room id to the participants currently in it.
// A room exists if and only if it has at least one participant.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomMembers
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*roomMembers)}
}

// Join records p in roomID, creating the room on first join.
// Joining again with the same connection id overwrites the record.
func (r *Registry) Join(roomID domain.RoomID, p domain.Participant) error {
	if err := roomID.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = newRoomMembers()
		r.rooms[roomID] = room
		log.Debug().Str("module", "core.registry").Str("room", string(roomID)).Msg("room created")
	}
	room.put(p)
	log.Debug().Str("module", "core.registry").Str("room", string(roomID)).Str("conn", string(p.ID)).Int("members", room.len()).Msg("member joined")
	return nil
}

// Leave removes and returns the participant; the room is deleted when it
// becomes empty. ok is false when id was not a member.
func (r *Registry) Leave(roomID domain.RoomID, id domain.ConnID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.Participant{}, false
	}
	p, ok := room.remove(id)
	if !ok {
		return domain.Participant{}, false
	}
	if room.len() == 0 {
		delete(r.rooms, roomID)
		log.Debug().Str("module", "core.registry").Str("room", string(roomID)).Msg("room deleted")
	}
	return p, true
}

// ListOthers is a snapshot of roomID's members in join order, leaving out
// excluding. Pass an empty id to list everyone.
func (r *Registry) ListOthers(roomID domain.RoomID, excluding domain.ConnID) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return []domain.Participant{}
	}
	return room.others(excluding)
}

func (r *Registry) IsMember(roomID domain.RoomID, id domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return ok && room.has(id)
}

// RoomsOf scans every room for id.
func (r *Registry) RoomsOf(id domain.ConnID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.RoomID
	for roomID, room := range r.rooms {
		if room.has(id) {
			out = append(out, roomID)
		}
	}
	return out
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
