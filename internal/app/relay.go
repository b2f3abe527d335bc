package app

import (
	"errors"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) relayDescription(s *session, env domain.Envelope) {
	var in domain.SessionDescription
	if err := domain.Decode(env.Payload, &in); err != nil {
		o.replyError(s, err)
		return
	}
	out := domain.SessionDescription{From: s.id, SDP: in.SDP}
	if env.Type == domain.EventOffer {
		out.Name = in.Name
		if out.Name == "" {
			out.Name = s.name
		}
	}
	o.forward(s, in.To, env.Type, out)
}

func (o *Orchestrator) relayCandidate(s *session, env domain.Envelope) {
	var in domain.ICECandidate
	if err := domain.Decode(env.Payload, &in); err != nil {
		o.replyError(s, err)
		return
	}
	o.forward(s, in.To, env.Type, domain.ICECandidate{From: s.id, Candidate: in.Candidate})
}

func (o *Orchestrator) relayPeerState(s *session, env domain.Envelope) {
	var in domain.PeerState
	if err := domain.Decode(env.Payload, &in); err != nil {
		o.replyError(s, err)
		return
	}
	roomID, ok := o.scope(s, in.RoomID, env.Type)
	if !ok {
		return
	}
	o.broadcast(roomID, s.id, env.Type, domain.PeerState{
		ID:       s.id,
		Muted:    in.Muted,
		VideoOff: in.VideoOff,
		Hand:     in.Hand,
	})
}

// relayChat forwards the message as received.
func (o *Orchestrator) relayChat(s *session, env domain.Envelope) {
	var in domain.ChatScope
	if err := domain.Decode(env.Payload, &in); err != nil {
		o.replyError(s, err)
		return
	}
	roomID, ok := o.scope(s, in.RoomID, env.Type)
	if !ok {
		return
	}
	o.broadcast(roomID, s.id, env.Type, env.Payload)
}

// scope resolves the room of a broadcast: the named room, or the sender's
// current one. The sender has to be a member.
func (o *Orchestrator) scope(s *session, roomID domain.RoomID, t domain.EventType) (domain.RoomID, bool) {
	if roomID == "" {
		roomID = s.room
	}
	if roomID == "" || !o.Rooms.IsMember(roomID, s.id) {
		log.Debug().Str("module", "app.relay").Str("conn", string(s.id)).Str("room", string(roomID)).Str("type", string(t)).Msg("sender not in room, dropped")
		return "", false
	}
	return roomID, true
}

func (o *Orchestrator) forward(s *session, to domain.ConnID, t domain.EventType, payload any) {
	target, ok := o.Sessions.get(to)
	if !ok || target.state == StateClosed {
		log.Debug().Str("module", "app.relay").Str("from", string(s.id)).Str("to", string(to)).Str("type", string(t)).Msg("unknown destination, dropped")
		return
	}
	o.send(target, t, payload)
}

// broadcast delivers to the members of roomID recorded right now, except from.
func (o *Orchestrator) broadcast(roomID domain.RoomID, from domain.ConnID, t domain.EventType, payload any) {
	frame, err := domain.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("type", string(t)).Msg("encode")
		return
	}
	sent, dropped := 0, 0
	for _, p := range o.Rooms.ListOthers(roomID, from) {
		target, ok := o.Sessions.get(p.ID)
		if !ok {
			continue
		}
		if !o.deliver(target, t, frame) {
			dropped++
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.relay").Str("room", string(roomID)).Str("from", string(from)).Str("type", string(t)).Int("sent_to", sent).Int("dropped", dropped).Msg("broadcast result")
}

func (o *Orchestrator) send(s *session, t domain.EventType, payload any) {
	frame, err := domain.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("type", string(t)).Msg("encode")
		return
	}
	o.deliver(s, t, frame)
}

func (o *Orchestrator) deliver(s *session, t domain.EventType, frame core.Frame) bool {
	err := s.conn.TrySend(frame)
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrBackpressure):
		if o.Policy.OnBackPressure(s.id, t) == KickMember {
			o.kicks = append(o.kicks, s.id)
		}
	default:
		log.Debug().Err(err).Str("module", "app.relay").Str("conn", string(s.id)).Msg("send failed")
	}
	return false
}
