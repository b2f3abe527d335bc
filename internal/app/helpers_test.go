package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/auth"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// fakeConn records every frame the orchestrator sends.
type fakeConn struct {
	mu     sync.Mutex
	frames []domain.Envelope
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	env, err := domain.ParseEnvelope(f)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) setFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) ofType(t domain.EventType) []domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Envelope
	for _, env := range c.frames {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) count(t domain.EventType) int { return len(c.ofType(t)) }

// waitEvent waits for the n-th (1-based) frame of type t.
func waitEvent(t *testing.T, c *fakeConn, typ domain.EventType, n int) domain.Envelope {
	t.Helper()
	require.Eventually(t, func() bool { return c.count(typ) >= n }, waitFor, tick, "no %d x %s", n, typ)
	return c.ofType(typ)[n-1]
}

func startOrchestrator(t *testing.T, v auth.Verifier, tweak ...func(*Options)) *Orchestrator {
	t.Helper()
	opts := Options{AuthTimeout: time.Second, JoinLimit: 100, JoinInterval: time.Minute}
	for _, f := range tweak {
		f(&opts)
	}
	o := NewOrchestrator(core.NewRegistry(), v, opts)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return o
}

func connect(t *testing.T, o *Orchestrator, id domain.ConnID) *fakeConn {
	t.Helper()
	c := &fakeConn{}
	require.True(t, o.Register(id, c))
	return c
}

func emit(t *testing.T, o *Orchestrator, id domain.ConnID, typ domain.EventType, payload any) {
	t.Helper()
	frame, err := domain.Encode(typ, payload)
	require.NoError(t, err)
	o.Dispatch(id, frame)
}

// barrier returns once every frame id sent before it has been processed.
func barrier(t *testing.T, o *Orchestrator, id domain.ConnID, c *fakeConn) {
	t.Helper()
	n := c.count(domain.EventPong)
	emit(t, o, id, domain.EventPing, struct{}{})
	waitEvent(t, c, domain.EventPong, n+1)
}

func join(t *testing.T, o *Orchestrator, id domain.ConnID, c *fakeConn, room, name string) []domain.Participant {
	t.Helper()
	n := c.count(domain.EventUsersInRoom)
	emit(t, o, id, domain.EventJoinRoom, domain.JoinRoom{RoomID: domain.RoomID(room), Name: name})
	env := waitEvent(t, c, domain.EventUsersInRoom, n+1)
	var users []domain.Participant
	require.NoError(t, json.Unmarshal(env.Payload, &users))
	return users
}

func decode[T any](t *testing.T, env domain.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}
