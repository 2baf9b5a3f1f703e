package config

import (
	"fmt"
	"os"
)

// Default configuration values
const (
	DefaultDomain   = "localhost:8080"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // no TURN relay by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""
)

// Config holds client-side configuration
type Config struct {
	// Domain is the signaling server host (host or host:port)
	Domain string

	// WebSocketURL and JoinURL are constructed from the domain
	WebSocketURL string
	JoinURL      string

	// Insecure switches ws/http instead of wss/https (local development)
	Insecure bool

	// ICE servers for the peer connection
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Insecure   bool
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("PEERMEET_DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}
	if turnServer == "" {
		turnServer = DefaultTURN
	}

	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}
	if turnUser == "" {
		turnUser = DefaultTURNUser
	}

	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}
	if turnPass == "" {
		turnPass = DefaultTURNPass
	}

	insecure := opts.Insecure
	if !insecure && os.Getenv("PEERMEET_INSECURE") != "" {
		insecure = true
	}

	wsScheme, httpScheme := "wss", "https"
	if insecure {
		wsScheme, httpScheme = "ws", "http"
	}

	return &Config{
		Domain:       domain,
		WebSocketURL: fmt.Sprintf("%s://%s/ws", wsScheme, domain),
		JoinURL:      fmt.Sprintf("%s://%s/join", httpScheme, domain),
		Insecure:     insecure,
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
	}, nil
}

// RoomLink returns the shareable URL for a room ID
func (c *Config) RoomLink(roomID string) string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/r/%s", scheme, c.Domain, roomID)
}

// STUNServers returns STUN server URLs as strings
func (c *Config) STUNServers() []string {
	return []string{c.STUNServer}
}

// TURNServers returns TURN server URLs if configured
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// TURNCredentials returns TURN username and password
func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// ServerConfig holds server-side configuration
type ServerConfig struct {
	Port string
}

// LoadServer reads server configuration from the environment.
func LoadServer() *ServerConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return &ServerConfig{Port: port}
}
