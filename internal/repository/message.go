package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/msgbottle/bottle-go/internal/model"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotFresh        = errors.New("message is not fresh")
	ErrGrantNotHeld    = errors.New("append grant not held")
)

// MessageRepository handles messages, fragments and the ordered references
// between them.
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateFragment inserts an immutable fragment.
func (r *MessageRepository) CreateFragment(ctx context.Context, f *model.Fragment) error {
	query := `INSERT INTO fragments (id, author_email, body, created_at) VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, f.ID, f.AuthorEmail, f.Text, f.CreatedAt)
	return err
}

// Create inserts msg and references its fragments in order. The fragments
// themselves must already exist.
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `INSERT INTO messages (id, author_email, grantee_email, fresh, created_at) VALUES (?, ?, ?, ?, ?)`

	var grantee sql.NullString
	if msg.GranteeEmail != nil {
		grantee = sql.NullString{String: *msg.GranteeEmail, Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, query, msg.ID, msg.AuthorEmail, grantee, msg.Fresh, msg.CreatedAt); err != nil {
		return err
	}

	for i, f := range msg.Fragments {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO message_fragments (message_id, position, fragment_id) VALUES (?, ?, ?)`,
			msg.ID, i, f.ID,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves a message with its fragments in chain order.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	query := `SELECT id, author_email, grantee_email, fresh, created_at FROM messages WHERE id = ?`

	var (
		msg     model.Message
		grantee sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID, &msg.AuthorEmail, &grantee, &msg.Fresh, &msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if grantee.Valid {
		msg.GranteeEmail = &grantee.String
	}

	fragments, err := r.listFragments(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.Fragments = fragments

	return &msg, nil
}

func (r *MessageRepository) listFragments(ctx context.Context, messageID string) ([]model.Fragment, error) {
	query := `SELECT f.id, f.author_email, f.body, f.created_at
		FROM message_fragments mf
		JOIN fragments f ON f.id = mf.fragment_id
		WHERE mf.message_id = ?
		ORDER BY mf.position ASC`

	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fragments := []model.Fragment{}
	for rows.Next() {
		var f model.Fragment
		if err := rows.Scan(&f.ID, &f.AuthorEmail, &f.Text, &f.CreatedAt); err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}

	return fragments, rows.Err()
}

// AssignFresh hands a fresh message to grantee and takes it out of the fresh
// pool. The freshness check is part of the UPDATE, so of two racing callers
// only one can win; the other gets ErrNotFresh.
func (r *MessageRepository) AssignFresh(ctx context.Context, id, grantee string) error {
	query := `UPDATE messages SET grantee_email = ?, fresh = FALSE WHERE id = ? AND fresh = TRUE`

	result, err := r.db.ExecContext(ctx, query, grantee, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, ErrNotFresh)
}

// ConsumeGrant clears the grantee of a message if it is still grantee.
// It returns ErrGrantNotHeld when the grant was already used or reassigned.
func (r *MessageRepository) ConsumeGrant(ctx context.Context, id, grantee string) error {
	query := `UPDATE messages SET grantee_email = NULL WHERE id = ? AND grantee_email = ?`

	result, err := r.db.ExecContext(ctx, query, id, grantee)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, ErrGrantNotHeld)
}

// Delete removes a message, its fragment references, and any of its
// fragments that no other message references.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	rows, err := r.db.QueryContext(ctx, `SELECT fragment_id FROM message_fragments WHERE message_id = ?`, id)
	if err != nil {
		return err
	}
	var fragmentIDs []string
	for rows.Next() {
		var fid string
		if err := rows.Scan(&fid); err != nil {
			rows.Close()
			return err
		}
		fragmentIDs = append(fragmentIDs, fid)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM message_fragments WHERE message_id = ?`, id); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRowsAffected(result, ErrMessageNotFound); err != nil {
		return err
	}

	for _, fid := range fragmentIDs {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM fragments WHERE id = ? AND NOT EXISTS (SELECT 1 FROM message_fragments WHERE fragment_id = ?)`,
			fid, fid,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListAuthoredBy returns the ids of messages authored by email, oldest first.
func (r *MessageRepository) ListAuthoredBy(ctx context.Context, email string) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM messages WHERE author_email = ? ORDER BY id ASC`, email)
}

// ListGrantedTo returns the ids of messages email may currently append to.
func (r *MessageRepository) ListGrantedTo(ctx context.Context, email string) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM messages WHERE grantee_email = ? ORDER BY id ASC`, email)
}

// CountGrantedTo returns how many unconsumed grants email holds.
func (r *MessageRepository) CountGrantedTo(ctx context.Context, email string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE grantee_email = ?`, email).Scan(&n)
	return n, err
}

// NearestFreshID returns the id of the fresh message, not authored by email,
// whose author is closest to (x, y) in Manhattan distance. Ties go to the
// oldest message. Returns ErrMessageNotFound when there is no candidate.
func (r *MessageRepository) NearestFreshID(ctx context.Context, email string, x, y float64) (string, error) {
	query := `SELECT m.id
		FROM messages m
		JOIN users u ON u.email = m.author_email
		WHERE m.fresh = TRUE AND m.author_email <> ?
		ORDER BY ABS(u.coord_x - ?) + ABS(u.coord_y - ?) ASC, m.id ASC
		LIMIT 1`

	var id string
	err := r.db.QueryRowContext(ctx, query, email, x, y).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrMessageNotFound
		}
		return "", err
	}

	return id, nil
}

func (r *MessageRepository) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// requireRowsAffected returns errNone when a conditional UPDATE or DELETE
// matched no row.
func requireRowsAffected(result sql.Result, errNone error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return errNone
	}
	return nil
}
