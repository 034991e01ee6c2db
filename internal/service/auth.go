package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/msgbottle/bottle-go/internal/clock"
	"github.com/msgbottle/bottle-go/internal/crypto"
	"github.com/msgbottle/bottle-go/internal/model"
	"github.com/msgbottle/bottle-go/internal/repository"
)

// AuthService runs the emailed-key login flow and resolves access tokens.
type AuthService struct {
	db          *sql.DB
	clock       clock.Clock
	loginWindow time.Duration
	tokenWindow time.Duration
}

// NewAuthService creates a new AuthService. Secret keys are accepted for
// loginWindow after issue, access tokens for tokenWindow.
func NewAuthService(db *sql.DB, clk clock.Clock, loginWindow, tokenWindow time.Duration) *AuthService {
	return &AuthService{
		db:          db,
		clock:       clk,
		loginWindow: loginWindow,
		tokenWindow: tokenWindow,
	}
}

// OpenLogin issues a new secret key for email, replacing any earlier one,
// and returns it in plaintext for delivery.
func (s *AuthService) OpenLogin(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}

	key, err := crypto.GenerateSecretKey()
	if err != nil {
		return "", err
	}
	hash, err := crypto.HashSecret(key)
	if err != nil {
		return "", err
	}

	login := &model.PendingLogin{
		Email:      email,
		SecretHash: hash,
		IssuedAt:   s.clock.Now(),
	}
	err = repository.WithTx(ctx, s.db, func(ctx context.Context, tx repository.DBTX) error {
		return repository.NewLoginRepository(tx).Replace(ctx, login)
	})
	if err != nil {
		return "", fmt.Errorf("storing login request: %w", err)
	}

	return key, nil
}

// CloseLogin exchanges a secret key for a new access token. The user is
// created on first login.
func (s *AuthService) CloseLogin(ctx context.Context, email, secretKey string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	secretKey = strings.ToUpper(strings.TrimSpace(secretKey))
	if !crypto.IsSecretKey(secretKey) {
		return "", fmt.Errorf("%w: secret key must be %d letters or digits", ErrValidation, crypto.SecretKeyLength)
	}

	now := s.clock.Now()
	matched, err := s.matchLogin(ctx, email, secretKey, now)
	if err != nil {
		return "", err
	}

	token, err := crypto.GenerateAccessToken()
	if err != nil {
		return "", err
	}

	err = repository.WithTx(ctx, s.db, func(ctx context.Context, tx repository.DBTX) error {
		if err := repository.NewLoginRepository(tx).Consume(ctx, email, matched.SecretHash); err != nil {
			if errors.Is(err, repository.ErrLoginNotFound) {
				return errInvalidSecretKey
			}
			return err
		}

		if err := ensureUser(ctx, repository.NewUserRepository(tx), email, now); err != nil {
			return err
		}

		return repository.NewTokenRepository(tx).Create(ctx, &model.AccessToken{
			Digest:   crypto.TokenDigest(token),
			Email:    email,
			IssuedAt: now,
		})
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// matchLogin returns the single unexpired pending login for email whose hash
// matches secretKey.
func (s *AuthService) matchLogin(ctx context.Context, email, secretKey string, now time.Time) (*model.PendingLogin, error) {
	logins, err := repository.NewLoginRepository(s.db).ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	var matches []model.PendingLogin
	for _, l := range logins {
		if now.Sub(l.IssuedAt) >= s.loginWindow {
			continue
		}
		ok, err := crypto.VerifySecret(secretKey, l.SecretHash)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, l)
		}
	}

	if len(matches) != 1 {
		return nil, errInvalidSecretKey
	}
	return &matches[0], nil
}

func ensureUser(ctx context.Context, users *repository.UserRepository, email string, now time.Time) error {
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	err = users.Create(ctx, &model.User{
		Email:     email,
		X:         rand.Float64(),
		Y:         rand.Float64(),
		CreatedAt: now,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil
	}
	return err
}

// ResolveToken returns the user bound to an unexpired access token.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*model.User, error) {
	if !crypto.IsAccessToken(token) {
		return nil, errInvalidToken
	}

	stored, err := repository.NewTokenRepository(s.db).GetByDigest(ctx, crypto.TokenDigest(token))
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, errInvalidToken
		}
		return nil, err
	}
	if s.clock.Now().Sub(stored.IssuedAt) >= s.tokenWindow {
		return nil, errInvalidToken
	}

	user, err := repository.NewUserRepository(s.db).GetByEmail(ctx, stored.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errInvalidToken
		}
		return nil, err
	}

	return user, nil
}
