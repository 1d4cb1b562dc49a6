package config

import "testing"

func TestParseICEServersJSON(t *testing.T) {
	t.Parallel()

	raw := `[
	  {"urls": ["stun:stun.example.com:3478"]},
	  {"urls": "turn:turn.example.com:3478?transport=udp", "username": "user", "credential": "pass"}
	]`

	servers, err := ParseICEServersJSON(raw, false)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if got := servers[0].URLs; len(got) != 1 || got[0] != "stun:stun.example.com:3478" {
		t.Fatalf("unexpected stun urls: %#v", got)
	}
	if servers[0].Credential != nil {
		t.Fatalf("stun server should not carry a credential: %#v", servers[0].Credential)
	}
	if got := servers[1].URLs; len(got) != 1 || got[0] != "turn:turn.example.com:3478?transport=udp" {
		t.Fatalf("unexpected turn urls: %#v", got)
	}
	if cred, ok := servers[1].Credential.(string); !ok || cred != "pass" || servers[1].Username != "user" {
		t.Fatalf("unexpected turn creds: %#v", servers[1])
	}
}

func TestParseICEServersJSON_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":          `{`,
		"missing urls":      `[{"username": "u"}]`,
		"bad scheme":        `[{"urls": "http://example.com"}]`,
		"turn without cred": `[{"urls": ["turn:turn.example.com:3478"], "username": "u"}]`,
		"turn without user": `[{"urls": ["TURNS:turn.example.com:5349"], "credential": "c"}]`,
	}
	for name, raw := range cases {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseICEServersJSON(raw, false); err == nil {
				t.Fatalf("expected error for %s", raw)
			}
		})
	}
}

func TestParseICEServersJSON_AllowsTURNWithoutCredsWhenEnabled(t *testing.T) {
	t.Parallel()

	servers, err := ParseICEServersJSON(`[{"urls": ["turn:turn.example.com:3478?transport=udp"]}]`, true)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(servers))
	}
	if servers[0].Username != "" || servers[0].Credential != nil {
		t.Fatalf("expected TURN server creds to be empty: %#v", servers[0])
	}
}

func TestParseICEServersFromConvenienceEnv(t *testing.T) {
	t.Parallel()

	servers, err := ParseICEServersFromConvenienceEnv(
		"stun:a.example.com:3478, stun:b.example.com:3478",
		"turn:turn.example.com:3478?transport=udp",
		"user",
		"pass",
		false,
	)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if got := servers[0].URLs; len(got) != 2 || got[1] != "stun:b.example.com:3478" {
		t.Fatalf("unexpected stun urls: %#v", got)
	}
	if servers[0].Username != "" || servers[0].Credential != nil {
		t.Fatalf("stun server should not have creds: %#v", servers[0])
	}
	if servers[1].Username != "user" || servers[1].Credential.(string) != "pass" {
		t.Fatalf("unexpected turn creds: %#v", servers[1])
	}
}

func TestParseICEServersFromConvenienceEnv_RequiresTURNCreds(t *testing.T) {
	t.Parallel()

	if _, err := ParseICEServersFromConvenienceEnv("", "turn:turn.example.com:3478", "user", "", false); err == nil {
		t.Fatal("expected error")
	}

	servers, err := ParseICEServersFromConvenienceEnv("", "turn:turn.example.com:3478", "", "", true)
	if err != nil {
		t.Fatalf("expected success with TURN REST enabled, got %v", err)
	}
	if len(servers) != 1 || servers[0].Credential != nil {
		t.Fatalf("unexpected servers: %#v", servers)
	}
}

func TestParseICEServersFromConvenienceEnv_Empty(t *testing.T) {
	t.Parallel()

	servers, err := ParseICEServersFromConvenienceEnv(" ", "", "", "", false)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 0 {
		t.Fatalf("expected no servers, got %#v", servers)
	}
}
