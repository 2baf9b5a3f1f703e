package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "wss://"+DefaultDomain+"/ws", cfg.WebSocketURL)
	assert.Equal(t, "https://"+DefaultDomain+"/join", cfg.JoinURL)
	assert.Equal(t, DefaultSTUN, cfg.STUNServer)
	assert.Empty(t, cfg.TURNServers())
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PEERMEET_DOMAIN", "env.example.com")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")

	cfg, err := Load(Options{Domain: "flag.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example.com", cfg.Domain)
	assert.Equal(t, "stun:env.example.com:3478", cfg.STUNServer)
}

func TestInsecureSwitchesSchemes(t *testing.T) {
	cfg, err := Load(Options{Domain: "localhost:9000", Insecure: true})
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:9000/ws", cfg.WebSocketURL)
	assert.Equal(t, "http://localhost:9000/join", cfg.JoinURL)
	assert.Equal(t, "http://localhost:9000/r/abc", cfg.RoomLink("abc"))
}

func TestTURNConfiguration(t *testing.T) {
	cfg, err := Load(Options{
		TURNServer: "turn:relay.example.com",
		TURNUser:   "user",
		TURNPass:   "pass",
	})
	require.NoError(t, err)

	servers := cfg.TURNServers()
	require.Len(t, servers, 2)
	assert.Contains(t, servers[0], "transport=udp")
	assert.Contains(t, servers[1], "transport=tcp")

	user, pass := cfg.TURNCredentials()
	assert.Equal(t, "user", user)
	assert.Equal(t, "pass", pass)
}

func TestLoadServerPort(t *testing.T) {
	assert.Equal(t, "8080", LoadServer().Port)

	t.Setenv("PORT", "9090")
	assert.Equal(t, "9090", LoadServer().Port)
}
