package app

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Relay/internal/auth"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrJoinInProgress  = errors.New("join already in progress")
	ErrJoinRateLimited = errors.New("too many join attempts")
	ErrUnknownEvent    = errors.New("unknown event")
)

type Options struct {
	AuthTimeout  time.Duration
	Policy       Policy
	JoinLimit    int
	JoinInterval time.Duration
}

type registration struct {
	id   domain.ConnID
	conn core.SignalConnection
}

type inbound struct {
	id   domain.ConnID
	data []byte
}

type authResult struct {
	id      domain.ConnID
	attempt uint64
	room    domain.RoomID
	name    string
	err     error
}

// Orchestrator is the connection lifecycle manager. A single goroutine (Run)
// owns every session and performs every room mutation; adapters talk to it
// through channels. Only token verification runs elsewhere and reports back
// as an authResult.
type Orchestrator struct {
	Rooms    *core.Registry
	Sessions *Sessions
	Verifier auth.Verifier
	Policy   Policy

	limiter     *JoinRateLimiter
	authTimeout time.Duration

	register   chan registration
	unregister chan domain.ConnID
	inbound    chan inbound
	authDone   chan authResult
	done       chan struct{}

	ctx   context.Context
	kicks []domain.ConnID
}

func NewOrchestrator(rooms *core.Registry, verifier auth.Verifier, opts Options) *Orchestrator {
	policy := opts.Policy
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Orchestrator{
		Rooms:       rooms,
		Sessions:    NewSessions(),
		Verifier:    verifier,
		Policy:      policy,
		limiter:     NewJoinRateLimiter(opts.JoinLimit, opts.JoinInterval),
		authTimeout: opts.AuthTimeout,
		register:    make(chan registration),
		unregister:  make(chan domain.ConnID),
		inbound:     make(chan inbound),
		authDone:    make(chan authResult),
		done:        make(chan struct{}),
		ctx:         context.Background(),
	}
}

// Run processes commands until ctx is cancelled, then closes every
// remaining connection.
func (o *Orchestrator) Run(ctx context.Context) {
	o.ctx = ctx
	defer o.shutdown()
	log.Info().Str("module", "app.orchestrator").Msg("orchestrator started")
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-o.register:
			o.Sessions.bind(r.id, r.conn)
		case id := <-o.unregister:
			o.onDisconnect(id)
		case in := <-o.inbound:
			o.onFrame(in.id, in.data)
		case res := <-o.authDone:
			o.onAuthResult(res)
		}
		o.flushKicks()
	}
}

func (o *Orchestrator) shutdown() {
	close(o.done)
	for _, s := range o.Sessions.all() {
		o.Sessions.transition(s, StateClosed)
		s.conn.Close()
	}
	log.Info().Str("module", "app.orchestrator").Msg("orchestrator stopped")
}

// Register hands a freshly accepted connection to the loop. It reports false
// once the orchestrator has stopped.
func (o *Orchestrator) Register(id domain.ConnID, conn core.SignalConnection) bool {
	select {
	case o.register <- registration{id: id, conn: conn}:
		return true
	case <-o.done:
		return false
	}
}

// Unregister reports that the transport of id has closed.
func (o *Orchestrator) Unregister(id domain.ConnID) {
	select {
	case o.unregister <- id:
	case <-o.done:
	}
}

// Dispatch queues one inbound frame from id.
func (o *Orchestrator) Dispatch(id domain.ConnID, data []byte) {
	select {
	case o.inbound <- inbound{id: id, data: data}:
	case <-o.done:
	}
}

func (o *Orchestrator) RoomCount() int       { return o.Rooms.RoomCount() }
func (o *Orchestrator) ConnectionCount() int { return o.Sessions.Count() }

func (o *Orchestrator) onFrame(id domain.ConnID, data []byte) {
	s, ok := o.Sessions.get(id)
	if !ok || s.state == StateClosed {
		return
	}
	env, err := domain.ParseEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").Str("conn", string(id)).Msg("bad frame")
		o.replyError(s, err)
		return
	}

	switch env.Type {
	case domain.EventJoinRoom:
		o.handleJoin(s, env.Payload)
	case domain.EventLeaveRoom:
		o.handleLeave(s, env.Payload)
	case domain.EventOffer, domain.EventAnswer:
		o.relayDescription(s, env)
	case domain.EventICECandidate:
		o.relayCandidate(s, env)
	case domain.EventPeerState:
		o.relayPeerState(s, env)
	case domain.EventChatMessage:
		o.relayChat(s, env)
	case domain.EventPing:
		o.send(s, domain.EventPong, struct{}{})
	default:
		log.Warn().Str("module", "app.orchestrator").Str("conn", string(id)).Str("type", string(env.Type)).Msg("unknown event")
		o.replyError(s, ErrUnknownEvent)
	}
}

// onDisconnect runs the implicit leave for a closed transport. Unknown ids
// are ignored, which covers connections the server already terminated.
func (o *Orchestrator) onDisconnect(id domain.ConnID) {
	s, ok := o.Sessions.get(id)
	if !ok {
		return
	}
	log.Info().Str("module", "app.orchestrator").Str("conn", string(id)).Str("name", s.name).Msg("disconnected")
	o.terminate(s)
}

// terminate is the single exit path of a session: closed state, membership
// scrubbed from every room, transport closed after queued frames flush.
func (o *Orchestrator) terminate(s *session) {
	o.Sessions.transition(s, StateClosed)
	o.cleanupMembership(s)
	o.Sessions.unbind(s.id)
	o.limiter.Forget(s.id)
	s.conn.Close()
}

func (o *Orchestrator) flushKicks() {
	for len(o.kicks) > 0 {
		id := o.kicks[0]
		o.kicks = o.kicks[1:]
		s, ok := o.Sessions.get(id)
		if !ok {
			continue
		}
		log.Warn().Str("module", "app.orchestrator").Str("conn", string(id)).Msg("kicked slow connection")
		o.terminate(s)
	}
}

// replyError tells the client what went wrong without decoder or validator
// internals; those stay in the log.
func (o *Orchestrator) replyError(s *session, err error) {
	o.send(s, domain.EventError, domain.Message{Message: clientMessage(err)})
}

func clientMessage(err error) string {
	for _, sentinel := range []error{domain.ErrMalformedFrame, domain.ErrMalformedPayload, domain.ErrInvalidPayload} {
		if errors.Is(err, sentinel) {
			log.Debug().Err(err).Str("module", "app.orchestrator").Msg("rejected frame")
			return sentinel.Error()
		}
	}
	return err.Error()
}
