// Package ice supplies the ICE server list handed to browsers so they can
// establish a direct peer connection.
package ice

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// DefaultSTUNURL is served when nothing else is configured.
const DefaultSTUNURL = "stun:stun.l.google.com:19302"

// Provider returns the ICE servers for one rtcConfig request. Implementations
// may block on a remote fetch and must be safe for concurrent use.
type Provider interface {
	ICEServers(ctx context.Context) ([]webrtc.ICEServer, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) ([]webrtc.ICEServer, error)

func (f ProviderFunc) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) { return f(ctx) }

// DefaultServers returns the public STUN fallback list.
func DefaultServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{{URLs: []string{DefaultSTUNURL}}}
}

// Static serves a fixed list.
type Static []webrtc.ICEServer

func (s Static) ICEServers(context.Context) ([]webrtc.ICEServer, error) {
	return cloneServers(s), nil
}

// cloneServers deep-copies servers so callers can decorate the result. The
// result is never nil so it encodes as [] rather than null.
func cloneServers(servers []webrtc.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, len(servers))
	for i, s := range servers {
		out[i] = s
		out[i].URLs = append([]string(nil), s.URLs...)
	}
	return out
}
