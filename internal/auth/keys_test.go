package auth

import (
	"testing"
)

func TestHashSecret(t *testing.T) {
	if got := HashSecret(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("HashSecret(\"\") = %v", got)
	}

	if len(HashSecret("remoteci-secret")) != 64 {
		t.Errorf("HashSecret() should return 64 hex chars")
	}

	if HashSecret("  remoteci-secret  ") != HashSecret("remoteci-secret") {
		t.Error("surrounding whitespace should be trimmed before hashing")
	}
}

func TestHashSecret_Deterministic(t *testing.T) {
	if HashSecret("my-secret") != HashSecret("my-secret") {
		t.Error("HashSecret is not deterministic")
	}
	if HashSecret("secret-a") == HashSecret("secret-b") {
		t.Error("different secrets produced same hash")
	}
}

func TestSecretMatches(t *testing.T) {
	stored := HashSecret("topsecret")

	if !SecretMatches("topsecret", stored) {
		t.Error("expected matching secret to verify")
	}
	if SecretMatches("wrong", stored) {
		t.Error("expected non-matching secret to fail")
	}
	if SecretMatches("topsecret", "") {
		t.Error("expected empty stored hash to fail")
	}
}
