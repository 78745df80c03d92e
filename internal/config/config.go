// Package config loads the agent's environment-driven configuration once
// at startup and renders a debug snapshot of the effective values to disk.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is read once at agent construction; nothing in this process
// mutates it afterward.
type Config struct {
	SignalingURL string
	SetupToken   string
	Name         string
	DataDir      string
	LogLevel     string
	LogFile      string

	// Services maps a proxy-registered name to the local port it forwards
	// to, parsed from COCOON_SERVICES ("name:port,name:port,...").
	Services map[string]int
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads every COCOON_*/SIGNALING_* environment variable this agent
// consumes. COCOON_SECRET is intentionally not part of Config — the
// identity store resolves the secret itself since it also governs device
// id persistence.
func Load() *Config {
	return &Config{
		SignalingURL: envOr("SIGNALING_SERVER_URL", "ws://localhost:8080/ws"),
		SetupToken:   os.Getenv("COCOON_SETUP_TOKEN"),
		Name:         os.Getenv("COCOON_NAME"),
		DataDir:      envOr("COCOON_DATA_DIR", "/cocoon"),
		LogLevel:     envOr("COCOON_LOG_LEVEL", "info"),
		LogFile:      os.Getenv("COCOON_LOG_FILE"),
		Services:     parseServices(os.Getenv("COCOON_SERVICES")),
	}
}

func parseServices(raw string) map[string]int {
	services := make(map[string]int)
	if raw == "" {
		return services
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, portStr, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(portStr))
		if err != nil {
			continue
		}
		services[strings.TrimSpace(name)] = port
	}
	return services
}

// snapshot is the YAML-rendered form of Config written to DataDir for
// operator inspection. The secret and setup token never appear here.
type snapshot struct {
	SignalingURL string         `yaml:"signaling_url"`
	Name         string         `yaml:"name,omitempty"`
	DataDir      string         `yaml:"data_dir"`
	LogLevel     string         `yaml:"log_level"`
	LogFile      string         `yaml:"log_file,omitempty"`
	Services     map[string]int `yaml:"services,omitempty"`
}

// WriteSnapshot renders the effective config as YAML at <DataDir>/config.yaml.
func (c *Config) WriteSnapshot() error {
	snap := snapshot{
		SignalingURL: c.SignalingURL,
		Name:         c.Name,
		DataDir:      c.DataDir,
		LogLevel:     c.LogLevel,
		LogFile:      c.LogFile,
		Services:     c.Services,
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal config snapshot: %w", err)
	}
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := c.DataDir + "/config.yaml"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config snapshot: %w", err)
	}
	return nil
}
