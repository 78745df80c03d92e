package rtc

import (
	"os"
	"testing"
)

func TestBuildICEServersDefaultsToPublicSTUN(t *testing.T) {
	os.Unsetenv("WEBRTC_ICE_SERVERS")
	os.Unsetenv("WEBRTC_TURN_USERNAME")
	os.Unsetenv("WEBRTC_TURN_CREDENTIAL")

	servers := BuildICEServers()
	if len(servers) != 1 || len(servers[0].URLs) != 1 || servers[0].URLs[0] != defaultSTUNURL {
		t.Fatalf("servers = %+v", servers)
	}
}

func TestBuildICEServersSeparatesStunAndTurn(t *testing.T) {
	os.Setenv("WEBRTC_ICE_SERVERS", "stun:stun.example.com:3478,turn:turn.example.com:3478")
	os.Setenv("WEBRTC_TURN_USERNAME", "user")
	os.Setenv("WEBRTC_TURN_CREDENTIAL", "pass")
	defer func() {
		os.Unsetenv("WEBRTC_ICE_SERVERS")
		os.Unsetenv("WEBRTC_TURN_USERNAME")
		os.Unsetenv("WEBRTC_TURN_CREDENTIAL")
	}()

	servers := BuildICEServers()
	if len(servers) != 2 {
		t.Fatalf("expected 2 ice servers, got %+v", servers)
	}
	if servers[0].URLs[0] != "stun:stun.example.com:3478" {
		t.Fatalf("stun server = %+v", servers[0])
	}
	if servers[1].URLs[0] != "turn:turn.example.com:3478" || servers[1].Username != "user" || servers[1].Credential != "pass" {
		t.Fatalf("turn server = %+v", servers[1])
	}
}

func TestBuildICEServersTurnWithoutCredentialsOmitsAuth(t *testing.T) {
	os.Setenv("WEBRTC_ICE_SERVERS", "turn:turn.example.com:3478")
	defer os.Unsetenv("WEBRTC_ICE_SERVERS")

	servers := BuildICEServers()
	if len(servers) != 1 {
		t.Fatalf("servers = %+v", servers)
	}
	if servers[0].Username != "" || servers[0].Credential != nil {
		t.Fatalf("expected no auth, got %+v", servers[0])
	}
}

func TestBuildICEServersBlankFallsBackToDefault(t *testing.T) {
	os.Setenv("WEBRTC_ICE_SERVERS", "   ,  ")
	defer os.Unsetenv("WEBRTC_ICE_SERVERS")

	servers := BuildICEServers()
	if len(servers) != 1 || servers[0].URLs[0] != defaultSTUNURL {
		t.Fatalf("servers = %+v", servers)
	}
}
