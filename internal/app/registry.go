package app

import (
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle stage of one connection.
type State int

const (
	StateConnected State = iota
	StateJoining
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type session struct {
	id    domain.ConnID
	name  string
	room  domain.RoomID
	state State
	conn  core.SignalConnection
	// attempt numbers join requests so a late auth result can be recognised.
	attempt uint64
}

// Sessions is the connection table. Fields of a session are only written by
// the orchestrator loop; state changes additionally take the lock so other
// goroutines can observe them.
type Sessions struct {
	mu   sync.RWMutex
	byID map[domain.ConnID]*session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[domain.ConnID]*session)}
}

func (r *Sessions) bind(id domain.ConnID, conn core.SignalConnection) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &session{id: id, conn: conn, state: StateConnected}
	r.byID[id] = s
	log.Info().Str("module", "app.sessions").Str("conn", string(id)).Msg("bound session")
	return s
}

func (r *Sessions) get(id domain.ConnID) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Sessions) unbind(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	log.Info().Str("module", "app.sessions").Str("conn", string(id)).Msg("unbind session")
}

func (r *Sessions) stateOf(id domain.ConnID) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return StateClosed, false
	}
	return s.state, true
}

func (r *Sessions) transition(s *session, to State) {
	r.mu.Lock()
	from := s.state
	s.state = to
	r.mu.Unlock()
	if from != to {
		log.Debug().Str("module", "app.sessions").Str("conn", string(s.id)).Stringer("from", from).Stringer("to", to).Msg("state changed")
	}
}

func (r *Sessions) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Sessions) all() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}
