package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	secretFileName    = ".secret"
	deviceIDFileName  = ".device_id"
	verifyTagFileName = ".device_id.tag"
)

// Store persists the secret, device id, and device-id verification tag
// under a root directory (the agent passes <DataDir>/identity, which is
// /cocoon/identity by default).
type Store struct {
	Root string
	Log  func(format string, args ...any)
}

func NewStore(root string, log func(format string, args ...any)) *Store {
	if log == nil {
		log = func(string, ...any) {}
	}
	return &Store{Root: root, Log: log}
}

func (s *Store) secretPath() string    { return filepath.Join(s.Root, secretFileName) }
func (s *Store) deviceIDPath() string  { return filepath.Join(s.Root, deviceIDFileName) }
func (s *Store) verifyTagPath() string { return filepath.Join(s.Root, verifyTagFileName) }

// LoadOrCreate resolves the secret to use this run and the device id
// persisted alongside it, if any still matches.
//
// Order of preference: an environment-provided secret (invalid env secret
// is fatal, the caller should exit), else the persisted secret file, else
// a freshly generated one. An invalid persisted secret invalidates any
// stored device id as well.
func (s *Store) LoadOrCreate(envSecret string) (secret string, deviceID string, err error) {
	if envSecret != "" {
		if verr := ValidateSecret(envSecret); verr != nil {
			return "", "", fmt.Errorf("invalid COCOON_SECRET: %w", verr)
		}
		return envSecret, s.loadDeviceIDFor(envSecret), nil
	}

	persisted, readErr := os.ReadFile(s.secretPath())
	if readErr == nil {
		candidate := strings.TrimSpace(string(persisted))
		if verr := ValidateSecret(candidate); verr == nil {
			return candidate, s.loadDeviceIDFor(candidate), nil
		}
		s.Log("persisted secret failed validation, discarding: %v", ValidateSecret(candidate))
		s.invalidate()
	}

	fresh, genErr := GenerateSecret()
	if genErr != nil {
		return "", "", fmt.Errorf("generate secret: %w", genErr)
	}
	if err := s.saveSecret(fresh); err != nil {
		s.Log("failed to persist generated secret (continuing ephemeral): %v", err)
	}
	return fresh, "", nil
}

// loadDeviceIDFor returns the persisted device id only if its verification
// tag still matches secret; otherwise it returns "" (fresh registration).
func (s *Store) loadDeviceIDFor(secret string) string {
	raw, err := os.ReadFile(s.deviceIDPath())
	if err != nil {
		return ""
	}
	tag, err := os.ReadFile(s.verifyTagPath())
	if err != nil {
		return ""
	}
	want, err := verificationTag(secret)
	if err != nil || want != strings.TrimSpace(string(tag)) {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (s *Store) saveSecret(secret string) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("create root dir: %w", err)
	}
	return os.WriteFile(s.secretPath(), []byte(secret), 0o600)
}

// SaveDeviceID persists device id once the server confirms registration,
// tagging it to the secret that earned it.
func (s *Store) SaveDeviceID(secret, deviceID string) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("create root dir: %w", err)
	}
	if err := os.WriteFile(s.deviceIDPath(), []byte(deviceID), 0o600); err != nil {
		return fmt.Errorf("write device id: %w", err)
	}
	tag, err := verificationTag(secret)
	if err != nil {
		return err
	}
	return os.WriteFile(s.verifyTagPath(), []byte(tag), 0o600)
}

// invalidate removes both the secret and device id so a fresh identity is
// generated on next load. Resetting the secret always cascades here.
func (s *Store) invalidate() {
	_ = os.Remove(s.secretPath())
	_ = os.Remove(s.deviceIDPath())
	_ = os.Remove(s.verifyTagPath())
}

// DeregisterMessage is the payload for a best-effort deregistration
// message sent on shutdown.
type DeregisterMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	Reason   string `json:"reason,omitempty"`
}

func NewDeregisterMessage(deviceID, reason string) DeregisterMessage {
	return DeregisterMessage{Type: "deregister", DeviceID: deviceID, Reason: reason}
}
