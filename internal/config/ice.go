package config

import (
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/samber/lo"
)

// ICEServers is what clients should hand to their RTCPeerConnection.
// Credentials are attached to TURN entries only.
func (c *Config) ICEServers() []webrtc.ICEServer {
	stun, turn := lo.FilterReject(c.ICEServerURLs, func(u string, _ int) bool {
		return strings.HasPrefix(u, "stun:") || strings.HasPrefix(u, "stuns:")
	})
	out := make([]webrtc.ICEServer, 0, 2)
	if len(stun) > 0 {
		out = append(out, webrtc.ICEServer{URLs: stun})
	}
	if len(turn) > 0 {
		server := webrtc.ICEServer{URLs: turn, Username: c.ICEUsername}
		if c.ICECredential != "" {
			server.Credential = c.ICECredential
		}
		out = append(out, server)
	}
	return out
}

// splitList accepts both YAML lists and comma separated environment values.
func splitList(in []string) []string {
	out := lo.FlatMap(in, func(item string, _ int) []string {
		return strings.Split(item, ",")
	})
	out = lo.Map(out, func(item string, _ int) string { return strings.TrimSpace(item) })
	return lo.Compact(out)
}
