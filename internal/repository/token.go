package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/msgbottle/bottle-go/internal/model"
)

var ErrTokenNotFound = errors.New("access token not found")

// TokenRepository stores issued access tokens by digest.
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts a new access token.
func (r *TokenRepository) Create(ctx context.Context, token *model.AccessToken) error {
	query := `INSERT INTO access_tokens (token_digest, email, issued_at) VALUES (?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, token.Digest, token.Email, token.IssuedAt)
	return err
}

// GetByDigest retrieves the token stored under digest.
func (r *TokenRepository) GetByDigest(ctx context.Context, digest string) (*model.AccessToken, error) {
	query := `SELECT token_digest, email, issued_at FROM access_tokens WHERE token_digest = ?`

	token := &model.AccessToken{}
	err := r.db.QueryRowContext(ctx, query, digest).Scan(&token.Digest, &token.Email, &token.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return token, nil
}
