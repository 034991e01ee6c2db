package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidHashFormat   = errors.New("invalid encoded hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// HashParams configures the Argon2id hashing parameters.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams returns the Argon2id parameters used for login secret keys.
func DefaultHashParams() HashParams {
	return HashParams{
		Memory:      19 * 1024,
		Iterations:  2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HashSecret hashes a one-time secret key with DefaultHashParams and returns
// it in PHC string format.
func HashSecret(secret string) (string, error) {
	return HashSecretWithParams(secret, DefaultHashParams())
}

// HashSecretWithParams is HashSecret with explicit parameters.
func HashSecretWithParams(secret string, params HashParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	// $argon2id$v=19$m=19456,t=2,p=1$<base64-salt>$<base64-hash>
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory,
		params.Iterations,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// VerifySecret reports whether secret matches encodedHash. The comparison
// is constant time.
func VerifySecret(secret, encodedHash string) (bool, error) {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(secret), h.salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return subtle.ConstantTimeCompare(h.key, candidate) == 1, nil
}

// TokenDigest returns the hex BLAKE2b-256 digest an access token is stored
// and looked up under.
func TokenDigest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type phcHash struct {
	params HashParams
	salt   []byte
	key    []byte
}

// parsePHC parses "$argon2id$v=19$m=...,t=...,p=...$<salt>$<key>".
func parsePHC(encoded string) (phcHash, error) {
	var h phcHash

	fields := strings.Split(strings.TrimPrefix(encoded, "$"), "$")
	if len(fields) != 5 || fields[0] != "argon2id" {
		return h, ErrInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(fields[1], "v=%d", &version); err != nil {
		return h, ErrInvalidHashFormat
	}
	if version != argon2.Version {
		return h, ErrIncompatibleVersion
	}

	p := &h.params
	if _, err := fmt.Sscanf(fields[2], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return h, ErrInvalidHashFormat
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil {
		return h, ErrInvalidHashFormat
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, ErrInvalidHashFormat
	}
	p.SaltLength = uint32(len(h.salt))
	p.KeyLength = uint32(len(h.key))

	return h, nil
}
