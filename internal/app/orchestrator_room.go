package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Relay/internal/auth"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	msgTokenRejected = "Invalid or expired token"
	msgAuthFailed    = "Authentication failed"
)

func (o *Orchestrator) handleJoin(s *session, payload json.RawMessage) {
	var req domain.JoinRoom
	if err := domain.Decode(payload, &req); err != nil {
		o.replyError(s, err)
		return
	}
	name, err := domain.NormalizeName(req.Name)
	if err != nil {
		o.replyError(s, err)
		return
	}
	if s.state == StateJoining {
		o.replyError(s, ErrJoinInProgress)
		return
	}
	if !o.limiter.Allow(s.id) {
		log.Warn().Str("module", "app.room").Str("conn", string(s.id)).Msg("join rate limited")
		o.replyError(s, ErrJoinRateLimited)
		return
	}

	s.attempt++
	o.Sessions.transition(s, StateJoining)
	log.Info().Str("module", "app.room").Str("conn", string(s.id)).Str("name", name).Str("room", string(req.RoomID)).Msg("attempting to join")

	if req.Token == "" {
		o.admit(s, req.RoomID, name)
		return
	}
	o.verify(s, req.RoomID, name, req.Token)
}

// verify checks the token off the loop; the loop resumes on authResult.
func (o *Orchestrator) verify(s *session, roomID domain.RoomID, name, token string) {
	res := authResult{id: s.id, attempt: s.attempt, room: roomID, name: name}
	parent := o.ctx
	go func() {
		ctx, cancel := parent, context.CancelFunc(func() {})
		if o.authTimeout > 0 {
			ctx, cancel = context.WithTimeout(parent, o.authTimeout)
		}
		defer cancel()
		res.err = auth.Check(ctx, o.Verifier, token)
		select {
		case o.authDone <- res:
		case <-o.done:
		}
	}()
}

func (o *Orchestrator) onAuthResult(res authResult) {
	s, ok := o.Sessions.get(res.id)
	if !ok || s.state != StateJoining || s.attempt != res.attempt {
		log.Debug().Str("module", "app.room").Str("conn", string(res.id)).Msg("stale auth result ignored")
		return
	}
	if res.err != nil {
		o.rejectJoin(s, res.err)
		return
	}
	o.admit(s, res.room, res.name)
}

func (o *Orchestrator) rejectJoin(s *session, err error) {
	reason, msg := "rejected", msgTokenRejected
	if !errors.Is(err, auth.ErrAuthRejected) {
		reason, msg = "unavailable", msgAuthFailed
	}
	log.Warn().Err(err).Str("module", "app.room").Str("conn", string(s.id)).Str("reason", reason).Msg("join refused")
	o.notifyAuthError(s, msg)
	o.terminate(s)
}

// admit records the membership. A connection already active in another room
// switches: it leaves that room first.
func (o *Orchestrator) admit(s *session, roomID domain.RoomID, name string) {
	if s.room != "" && s.room != roomID {
		log.Info().Str("module", "app.room").Str("conn", string(s.id)).Str("from_room", string(s.room)).Str("room", string(roomID)).Msg("switching rooms")
		o.leaveRoom(s, s.room)
	}

	p := domain.NewParticipant(s.id, name)
	if err := o.Rooms.Join(roomID, p); err != nil {
		o.settle(s)
		o.replyError(s, err)
		return
	}
	s.name = name
	s.room = roomID
	o.Sessions.transition(s, StateActive)
	o.notifyJoined(s, roomID, p)
	log.Info().Str("module", "app.room").Str("conn", string(s.id)).Str("name", name).Str("room", string(roomID)).Msg("joined")
}

func (o *Orchestrator) handleLeave(s *session, payload json.RawMessage) {
	var req domain.LeaveRoom
	if err := domain.Decode(payload, &req); err != nil {
		o.replyError(s, err)
		return
	}
	roomID := req.RoomID
	if roomID == "" {
		roomID = s.room
	}
	if roomID == "" {
		return
	}
	o.leaveRoom(s, roomID)
}

// leaveRoom is a silent no-op when s is not a member of roomID.
func (o *Orchestrator) leaveRoom(s *session, roomID domain.RoomID) bool {
	p, ok := o.Rooms.Leave(roomID, s.id)
	if !ok {
		return false
	}
	if s.room == roomID {
		s.room = ""
		if s.state == StateActive {
			o.Sessions.transition(s, StateConnected)
		}
	}
	o.notifyLeft(roomID, p)
	log.Info().Str("module", "app.room").Str("conn", string(s.id)).Str("name", p.Name).Str("room", string(roomID)).Msg("left room")
	return true
}

// cleanupMembership scans every room rather than trusting s.room.
func (o *Orchestrator) cleanupMembership(s *session) {
	for _, roomID := range o.Rooms.RoomsOf(s.id) {
		o.leaveRoom(s, roomID)
	}
}

// settle puts a session that did not complete a join back to where its
// membership says it is.
func (o *Orchestrator) settle(s *session) {
	if s.state == StateClosed {
		return
	}
	if s.room != "" {
		o.Sessions.transition(s, StateActive)
		return
	}
	o.Sessions.transition(s, StateConnected)
}
