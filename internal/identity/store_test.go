package identity

import (
	"path/filepath"
	"testing"
)

func TestStoreLoadOrCreateGeneratesFresh(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	secret, deviceID, err := store.LoadOrCreate("")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if deviceID != "" {
		t.Fatalf("expected empty device id on first run, got %q", deviceID)
	}
	if err := ValidateSecret(secret); err != nil {
		t.Fatalf("generated secret invalid: %v", err)
	}

	// The generated secret must now be persisted and reloadable.
	secret2, _, err := store.LoadOrCreate("")
	if err != nil {
		t.Fatalf("LoadOrCreate (reload): %v", err)
	}
	if secret2 != secret {
		t.Fatalf("secret not persisted: got %q want %q", secret2, secret)
	}
}

func TestStoreSaveDeviceIDRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	secret, _, err := store.LoadOrCreate("")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if err := store.SaveDeviceID(secret, "DEV-1"); err != nil {
		t.Fatalf("SaveDeviceID: %v", err)
	}

	_, deviceID, err := store.LoadOrCreate(secret)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if deviceID != "DEV-1" {
		t.Fatalf("deviceID = %q, want DEV-1", deviceID)
	}
}

func TestStoreResetSecretInvalidatesDeviceID(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	secret, _, _ := store.LoadOrCreate("")
	_ = store.SaveDeviceID(secret, "DEV-1")

	// A new, unrelated secret must not see the old device id.
	other := "Zz9Yy8Xx7Ww6Vv5Uu4Tt3Ss2Rr1Qq0Pp"
	_, deviceID, err := store.LoadOrCreate(other)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if deviceID != "" {
		t.Fatalf("device id leaked across secrets: %q", deviceID)
	}
	_ = filepath.Join(dir) // keep dir referenced for clarity
}

func TestStoreInvalidEnvSecretIsError(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if _, _, err := store.LoadOrCreate("short"); err == nil {
		t.Fatal("expected error for invalid env secret")
	}
}
