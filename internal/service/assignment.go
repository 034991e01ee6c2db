package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/msgbottle/bottle-go/internal/clock"
	"github.com/msgbottle/bottle-go/internal/model"
	"github.com/msgbottle/bottle-go/internal/repository"
)

// AssignmentService hands fresh messages to nearby users.
type AssignmentService struct {
	db               *sql.DB
	clock            clock.Clock
	maxPendingGrants int
	cooldown         time.Duration
}

// NewAssignmentService creates a new AssignmentService. A user holding
// maxPendingGrants unused grants, or who received a message within cooldown,
// is not handed another one.
func NewAssignmentService(db *sql.DB, clk clock.Clock, maxPendingGrants int, cooldown time.Duration) *AssignmentService {
	return &AssignmentService{
		db:               db,
		clock:            clk,
		maxPendingGrants: maxPendingGrants,
		cooldown:         cooldown,
	}
}

// Eligible reports whether user may be handed a message now.
func (s *AssignmentService) Eligible(ctx context.Context, user *model.User) (bool, error) {
	return s.eligible(ctx, s.db, user)
}

func (s *AssignmentService) eligible(ctx context.Context, db repository.DBTX, user *model.User) (bool, error) {
	pending, err := repository.NewMessageRepository(db).CountGrantedTo(ctx, user.Email)
	if err != nil {
		return false, err
	}
	if pending >= s.maxPendingGrants {
		return false, nil
	}
	if user.LastReceivedAt == nil {
		return true, nil
	}
	return s.clock.Now().Sub(*user.LastReceivedAt) > s.cooldown, nil
}

// FindNearestFresh returns the fresh message by another author whose author
// is closest to user, or nil when there is none.
func (s *AssignmentService) FindNearestFresh(ctx context.Context, user *model.User) (*model.Message, error) {
	return s.findNearestFresh(ctx, s.db, user)
}

func (s *AssignmentService) findNearestFresh(ctx context.Context, db repository.DBTX, user *model.User) (*model.Message, error) {
	repo := repository.NewMessageRepository(db)

	id, err := repo.NearestFreshID(ctx, user.Email, user.X, user.Y)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return repo.GetByID(ctx, id)
}

// Assign grants user the right to append to the fresh message id.
func (s *AssignmentService) Assign(ctx context.Context, user *model.User, id string) error {
	return repository.WithTx(ctx, s.db, func(ctx context.Context, tx repository.DBTX) error {
		return s.assign(ctx, tx, user, id)
	})
}

func (s *AssignmentService) assign(ctx context.Context, tx repository.DBTX, user *model.User, id string) error {
	repo := repository.NewMessageRepository(tx)

	msg, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return messageNotFound(id)
		}
		return err
	}
	if msg.AuthorEmail == user.Email {
		return fmt.Errorf("%w: %s authored message %s", ErrInvalidState, user.Email, id)
	}

	if err := repo.AssignFresh(ctx, id, user.Email); err != nil {
		if errors.Is(err, repository.ErrNotFresh) {
			return fmt.Errorf("%w: message %s is no longer fresh", ErrInvalidState, id)
		}
		return err
	}

	now := s.clock.Now()
	if err := repository.NewUserRepository(tx).SetLastReceived(ctx, user.Email, now); err != nil {
		return err
	}
	user.LastReceivedAt = &now

	return nil
}

// Deliver hands user the nearest fresh message if they are eligible. It
// returns nil when the user is not eligible or nothing is available.
func (s *AssignmentService) Deliver(ctx context.Context, user *model.User) (*model.Message, error) {
	var delivered *model.Message
	var refreshed *model.User
	err := repository.WithTx(ctx, s.db, func(ctx context.Context, tx repository.DBTX) error {
		current, err := repository.NewUserRepository(tx).GetByEmail(ctx, user.Email)
		if err != nil {
			return err
		}

		ok, err := s.eligible(ctx, tx, current)
		if err != nil || !ok {
			return err
		}

		msg, err := s.findNearestFresh(ctx, tx, current)
		if err != nil || msg == nil {
			return err
		}

		if err := s.assign(ctx, tx, current, msg.ID); err != nil {
			return err
		}
		msg.GranteeEmail = &current.Email
		msg.Fresh = false
		delivered = msg
		refreshed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if delivered != nil {
		*user = *refreshed
		slog.Info("message delivered", "message_id", delivered.ID, "grantee", user.Email)
	}
	return delivered, nil
}
