package ice

import (
	"context"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/AhmedrAshraf/filepizza/internal/turnrest"
)

// TURNREST decorates Next by stamping freshly minted TURN REST credentials
// onto every server that has a turn: or turns: URL.
type TURNREST struct {
	Next      Provider
	Generator *turnrest.Generator
}

func (p TURNREST) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	servers, err := p.Next.ICEServers(ctx)
	if err != nil {
		return nil, err
	}
	if !anyTURN(servers) {
		return servers, nil
	}
	creds, err := p.Generator.GenerateRandom()
	if err != nil {
		return nil, fmt.Errorf("mint turn credentials: %w", err)
	}
	return withCredentials(servers, creds.Username, creds.Credential), nil
}

func withCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	out := cloneServers(servers)
	for i := range out {
		if HasTURNURL(out[i]) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}

func anyTURN(servers []webrtc.ICEServer) bool {
	for _, s := range servers {
		if HasTURNURL(s) {
			return true
		}
	}
	return false
}

// HasTURNURL reports whether any of server's URLs uses the turn or turns
// scheme.
func HasTURNURL(server webrtc.ICEServer) bool {
	for _, raw := range server.URLs {
		u := strings.ToLower(strings.TrimSpace(raw))
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			return true
		}
	}
	return false
}
