package repository

import (
	"context"
	"errors"

	"github.com/msgbottle/bottle-go/internal/model"
)

var ErrLoginNotFound = errors.New("pending login not found")

// LoginRepository stores outstanding one-time login keys.
type LoginRepository struct {
	db DBTX
}

// NewLoginRepository creates a new LoginRepository.
func NewLoginRepository(db DBTX) *LoginRepository {
	return &LoginRepository{db: db}
}

// Replace stores login as the only pending request for its email, discarding
// any previous one in the same statement. MySQL and SQLite both accept
// REPLACE INTO, and nothing references pending_logins.
func (r *LoginRepository) Replace(ctx context.Context, login *model.PendingLogin) error {
	_, err := r.db.ExecContext(ctx,
		`REPLACE INTO pending_logins (email, secret_hash, issued_at) VALUES (?, ?, ?)`,
		login.Email, login.SecretHash, login.IssuedAt,
	)
	return err
}

// ListByEmail returns every pending request stored for email, expired or not.
func (r *LoginRepository) ListByEmail(ctx context.Context, email string) ([]model.PendingLogin, error) {
	query := `SELECT email, secret_hash, issued_at FROM pending_logins WHERE email = ?`

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logins []model.PendingLogin
	for rows.Next() {
		var l model.PendingLogin
		if err := rows.Scan(&l.Email, &l.SecretHash, &l.IssuedAt); err != nil {
			return nil, err
		}
		logins = append(logins, l)
	}

	return logins, rows.Err()
}

// Consume deletes the pending request for email if it still carries
// secretHash. It returns ErrLoginNotFound when nothing was deleted, which
// means another request consumed or replaced it first.
func (r *LoginRepository) Consume(ctx context.Context, email, secretHash string) error {
	query := `DELETE FROM pending_logins WHERE email = ? AND secret_hash = ?`

	result, err := r.db.ExecContext(ctx, query, email, secretHash)
	if err != nil {
		return err
	}

	return requireRowsAffected(result, ErrLoginNotFound)
}
