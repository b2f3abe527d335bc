package app

import (
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestJoinRateLimiter_SlidingWindow(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	rl := NewJoinRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	req.True(rl.Allow("a"))
	req.True(rl.Allow("a"))
	req.False(rl.Allow("a"))
	req.True(rl.Allow("b"), "limits are per connection")

	now = now.Add(11 * time.Second)
	req.True(rl.Allow("a"))
}

func TestJoinRateLimiter_Forget(t *testing.T) {
	rl := NewJoinRateLimiter(1, time.Minute)
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))

	rl.Forget("a")

	require.True(t, rl.Allow("a"))
}

func TestJoinRateLimiter_DisabledAllowsEverything(t *testing.T) {
	rl := NewJoinRateLimiter(0, time.Minute)
	require.Nil(t, rl)
	for i := 0; i < 10; i++ {
		require.True(t, rl.Allow(domain.ConnID("a")))
	}
	rl.Forget("a")
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	require.Equal(t, KickMember, p.OnBackPressure("a", domain.EventChatMessage))

	p, err = PolicyByName("drop")
	require.NoError(t, err)
	require.Equal(t, DropFrame, p.OnBackPressure("a", domain.EventChatMessage))

	_, err = PolicyByName("panic")
	require.Error(t, err)
}
