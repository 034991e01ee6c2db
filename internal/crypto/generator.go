package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	uppercaseChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowercaseChars = "abcdefghijklmnopqrstuvwxyz"
	numberChars    = "0123456789"

	// SecretKeyChars is the alphabet of one-time login keys.
	SecretKeyChars = uppercaseChars + numberChars
	// AccessTokenChars is the alphabet of bearer tokens.
	AccessTokenChars = uppercaseChars + numberChars + lowercaseChars

	SecretKeyLength   = 6
	AccessTokenLength = 20
)

var (
	ErrEmptyCharset  = errors.New("charset must not be empty")
	ErrInvalidLength = errors.New("length must be positive")
)

// RandomString returns a string of length n drawn uniformly from charset
// using crypto/rand.
func RandomString(charset string, n int) (string, error) {
	if charset == "" {
		return "", ErrEmptyCharset
	}
	if n <= 0 {
		return "", ErrInvalidLength
	}

	result := make([]byte, n)
	for i := range result {
		ch, err := randChar(charset)
		if err != nil {
			return "", err
		}
		result[i] = ch
	}
	return string(result), nil
}

// GenerateSecretKey creates a one-time login key, e.g. "7QK2ZA".
func GenerateSecretKey() (string, error) {
	return RandomString(SecretKeyChars, SecretKeyLength)
}

// GenerateAccessToken creates an opaque bearer token.
func GenerateAccessToken() (string, error) {
	return RandomString(AccessTokenChars, AccessTokenLength)
}

// IsSecretKey reports whether s has the shape of a secret key, ignoring case.
func IsSecretKey(s string) bool {
	return len(s) == SecretKeyLength && onlyFrom(strings.ToUpper(s), SecretKeyChars)
}

// IsAccessToken reports whether s has the shape of an access token.
func IsAccessToken(s string) bool {
	return len(s) == AccessTokenLength && onlyFrom(s, AccessTokenChars)
}

func onlyFrom(s, charset string) bool {
	for _, ch := range s {
		if !strings.ContainsRune(charset, ch) {
			return false
		}
	}
	return true
}

// randChar picks a random character from charset using crypto/rand.
func randChar(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[n.Int64()], nil
}
