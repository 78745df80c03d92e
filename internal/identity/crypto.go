package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// verificationTag derives a short fingerprint of a secret so the on-disk
// device id can be checked against the secret that earned it without
// storing the secret itself a second time. It is not presented to the
// signaling server; proof-of-secret there happens over the wire.
func verificationTag(secret string) (string, error) {
	salt := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), salt, []byte("cocoon-device-id"))
	tag := make([]byte, 16)
	if _, err := io.ReadFull(kdf, tag); err != nil {
		return "", fmt.Errorf("derive verification tag: %w", err)
	}
	return hex.EncodeToString(tag), nil
}
