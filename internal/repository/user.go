package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/msgbottle/bottle-go/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository handles user persistence operations.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository bound to db or a transaction.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (email, name, coord_x, coord_y, created_at, last_received_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.Email, nullString(user.Name), user.X, user.Y, user.CreatedAt, nullTime(user.LastReceivedAt),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT email, name, coord_x, coord_y, created_at, last_received_at FROM users WHERE email = ?`

	var (
		user         model.User
		name         sql.NullString
		lastReceived sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.Email, &name, &user.X, &user.Y, &user.CreatedAt, &lastReceived,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.Name = name.String
	if lastReceived.Valid {
		t := lastReceived.Time
		user.LastReceivedAt = &t
	}

	return &user, nil
}

// SetName updates the display name. An empty name clears it.
func (r *UserRepository) SetName(ctx context.Context, email, name string) error {
	query := `UPDATE users SET name = ? WHERE email = ?`

	_, err := r.db.ExecContext(ctx, query, nullString(name), email)
	return err
}

// SetLastReceived stamps the time the user was last handed a message.
func (r *UserRepository) SetLastReceived(ctx context.Context, email string, at time.Time) error {
	query := `UPDATE users SET last_received_at = ? WHERE email = ?`

	_, err := r.db.ExecContext(ctx, query, at, email)
	return err
}

// isDuplicateEntryError reports whether err is a primary or unique key
// violation (MySQL error 1062, or SQLite's UNIQUE constraint failure).
func isDuplicateEntryError(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
