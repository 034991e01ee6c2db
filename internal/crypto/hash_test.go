package crypto

import (
	"strings"
	"testing"
)

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("ABC123")
	if err != nil {
		t.Fatalf("HashSecret() unexpected error: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("HashSecret() expected 6 parts, got %d: %q", len(parts), hash)
	}
	if parts[1] != "argon2id" {
		t.Errorf("HashSecret() algorithm = %q, want %q", parts[1], "argon2id")
	}
	if parts[2] != "v=19" {
		t.Errorf("HashSecret() version = %q, want %q", parts[2], "v=19")
	}
	if parts[3] != "m=19456,t=2,p=1" {
		t.Errorf("HashSecret() params = %q, want %q", parts[3], "m=19456,t=2,p=1")
	}
}

func TestVerifySecret(t *testing.T) {
	hash, err := HashSecret("ABC123")
	if err != nil {
		t.Fatalf("HashSecret() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		want   bool
	}{
		{name: "correct", secret: "ABC123", want: true},
		{name: "wrong", secret: "ABC124", want: false},
		{name: "lowercase is a different secret", secret: "abc123", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := VerifySecret(tt.secret, hash)
			if err != nil {
				t.Fatalf("VerifySecret() unexpected error: %v", err)
			}
			if match != tt.want {
				t.Errorf("VerifySecret(%q) = %v, want %v", tt.secret, match, tt.want)
			}
		})
	}
}

func TestHashSecretProducesDifferentHashes(t *testing.T) {
	hash1, err := HashSecret("SAME11")
	if err != nil {
		t.Fatalf("HashSecret() unexpected error: %v", err)
	}
	hash2, err := HashSecret("SAME11")
	if err != nil {
		t.Fatalf("HashSecret() unexpected error: %v", err)
	}

	if hash1 == hash2 {
		t.Error("HashSecret() produced identical hashes for the same secret (salt should differ)")
	}
}

func TestVerifySecretInvalidHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want error
	}{
		{name: "garbage", hash: "invalid-hash-format", want: ErrInvalidHashFormat},
		{name: "wrong algorithm", hash: "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", want: ErrInvalidHashFormat},
		{name: "wrong version", hash: "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA", want: ErrIncompatibleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifySecret("ABC123", tt.hash)
			if err != tt.want {
				t.Errorf("VerifySecret() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTokenDigest(t *testing.T) {
	d1 := TokenDigest("aB3dE5gH7jK9mN1pQ3sT")
	d2 := TokenDigest("aB3dE5gH7jK9mN1pQ3sT")
	d3 := TokenDigest("aB3dE5gH7jK9mN1pQ3sU")

	if len(d1) != 64 {
		t.Fatalf("TokenDigest() length = %d, want 64", len(d1))
	}
	if d1 != d2 {
		t.Error("TokenDigest() is not deterministic")
	}
	if d1 == d3 {
		t.Error("TokenDigest() collided for different tokens")
	}
}
