package rtc

import (
	"os"
	"strings"

	"github.com/pion/webrtc/v4"
)

const defaultSTUNURL = "stun:stun.l.google.com:19302"

// BuildICEServers reads WEBRTC_ICE_SERVERS (comma-separated STUN/TURN URLs),
// WEBRTC_TURN_USERNAME, and WEBRTC_TURN_CREDENTIAL from the environment.
// Empty or invalid configuration falls back to a single public STUN server.
func BuildICEServers() []webrtc.ICEServer {
	raw := os.Getenv("WEBRTC_ICE_SERVERS")
	username := os.Getenv("WEBRTC_TURN_USERNAME")
	credential := os.Getenv("WEBRTC_TURN_CREDENTIAL")

	var urls []string
	for _, u := range strings.Split(raw, ",") {
		u = strings.TrimSpace(u)
		if u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return []webrtc.ICEServer{{URLs: []string{defaultSTUNURL}}}
	}

	var stunURLs, turnURLs []string
	for _, u := range urls {
		switch {
		case strings.HasPrefix(u, "stun:"):
			stunURLs = append(stunURLs, u)
		case strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:"):
			turnURLs = append(turnURLs, u)
		}
	}

	var servers []webrtc.ICEServer
	if len(stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stunURLs})
	}
	if len(turnURLs) > 0 {
		server := webrtc.ICEServer{URLs: turnURLs}
		if username != "" && credential != "" {
			server.Username = username
			server.Credential = credential
		}
		servers = append(servers, server)
	}

	if len(servers) == 0 {
		return []webrtc.ICEServer{{URLs: []string{defaultSTUNURL}}}
	}
	return servers
}
