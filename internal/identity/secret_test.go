package identity

import (
	"strings"
	"testing"
)

func TestGenerateSecretIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		secret, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret: %v", err)
		}
		if len(secret) != GeneratedSecretLen {
			t.Fatalf("length = %d, want %d", len(secret), GeneratedSecretLen)
		}
		for _, r := range secret {
			if !strings.ContainsRune(generatedCharset, r) {
				t.Fatalf("secret %q contains char %q outside charset", secret, r)
			}
		}
		if err := ValidateSecret(secret); err != nil {
			t.Fatalf("generated secret failed validation: %v", err)
		}
	}
}

func TestValidateSecretRejectsShort(t *testing.T) {
	if err := ValidateSecret("short"); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestValidateSecretRejectsAllDigits(t *testing.T) {
	if err := ValidateSecret(strings.Repeat("1", 40)); err == nil {
		t.Fatal("expected error for all-digit secret")
	}
}

func TestValidateSecretRejectsAllLower(t *testing.T) {
	if err := ValidateSecret(strings.Repeat("a", 40)); err == nil {
		t.Fatal("expected error for all-lowercase secret")
	}
}

func TestValidateSecretRejectsRepeatedChar(t *testing.T) {
	if err := ValidateSecret(strings.Repeat("Z", 40)); err == nil {
		t.Fatal("expected error for repeated-character secret")
	}
}

func TestValidateSecretRejectsWeakPattern(t *testing.T) {
	cases := []string{
		"ThisPasswordIsVeryLongIndeed1234",
		"AdminAdminAdminAdminAdminAdmin12",
		"qwertyqwertyqwertyqwertyqwerty12",
	}
	for _, c := range cases {
		if err := ValidateSecret(c); err == nil {
			t.Fatalf("expected error for weak-pattern secret %q", c)
		}
	}
}

func TestValidateSecretAccepts(t *testing.T) {
	if err := ValidateSecret("A1b2C3d4E5f6G7h8I9j0K1l2M3n4O5p6Q7r8"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
