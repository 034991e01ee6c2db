package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/msgbottle/bottle-go/internal/clock"
	"github.com/msgbottle/bottle-go/internal/model"
	"github.com/msgbottle/bottle-go/internal/repository"
)

// MessageService handles message chains and the append grant.
type MessageService struct {
	db    *sql.DB
	clock clock.Clock
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *sql.DB, clk clock.Clock) *MessageService {
	return &MessageService{db: db, clock: clk}
}

// Create starts a new fresh chain with a single fragment by user.
func (s *MessageService) Create(ctx context.Context, user *model.User, text string) (*model.Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	var msg *model.Message
	err := repository.WithTx(ctx, s.db, func(ctx context.Context, tx repository.DBTX) error {
		var err error
		msg, err = s.createChain(ctx, repository.NewMessageRepository(tx), user, nil, text)
		return err
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// Append consumes user's grant on the message oldID and creates a new fresh
// message holding the old fragments plus text.
func (s *MessageService) Append(ctx context.Context, user *model.User, oldID, text string) (*model.Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	var msg *model.Message
	err := repository.WithTx(ctx, s.db, func(ctx context.Context, tx repository.DBTX) error {
		repo := repository.NewMessageRepository(tx)

		old, err := repo.GetByID(ctx, oldID)
		if err != nil {
			if errors.Is(err, repository.ErrMessageNotFound) {
				return messageNotFound(oldID)
			}
			return err
		}
		if !old.IsGrantee(user.Email) {
			return permissionDenied(user.Email, oldID)
		}

		if err := repo.ConsumeGrant(ctx, oldID, user.Email); err != nil {
			if errors.Is(err, repository.ErrGrantNotHeld) {
				return fmt.Errorf("%w: grant on message %s was already used", ErrInvalidState, oldID)
			}
			return err
		}

		msg, err = s.createChain(ctx, repo, user, old.Fragments, text)
		return err
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// createChain stores a new fragment and a fresh message referencing prefix
// followed by it.
func (s *MessageService) createChain(ctx context.Context, repo *repository.MessageRepository, user *model.User, prefix []model.Fragment, text string) (*model.Message, error) {
	now := s.clock.Now()

	fragmentID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	fragment := model.Fragment{
		ID:          fragmentID.String(),
		AuthorEmail: user.Email,
		Text:        text,
		CreatedAt:   now,
	}
	if err := repo.CreateFragment(ctx, &fragment); err != nil {
		return nil, err
	}

	messageID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	fragments := make([]model.Fragment, 0, len(prefix)+1)
	fragments = append(fragments, prefix...)
	fragments = append(fragments, fragment)

	msg := &model.Message{
		ID:          messageID.String(),
		AuthorEmail: user.Email,
		Fresh:       true,
		CreatedAt:   now,
		Fragments:   fragments,
	}
	if err := repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// Get returns a message the user authored or may append to.
func (s *MessageService) Get(ctx context.Context, user *model.User, id string) (*model.Message, error) {
	msg, err := repository.NewMessageRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, messageNotFound(id)
		}
		return nil, err
	}
	if !msg.CanAccess(user.Email) {
		return nil, permissionDenied(user.Email, id)
	}

	return msg, nil
}

// Delete removes a message the user authored or may append to, along with
// fragments no other message references.
func (s *MessageService) Delete(ctx context.Context, user *model.User, id string) error {
	return repository.WithTx(ctx, s.db, func(ctx context.Context, tx repository.DBTX) error {
		repo := repository.NewMessageRepository(tx)

		msg, err := repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrMessageNotFound) {
				return messageNotFound(id)
			}
			return err
		}
		if !msg.CanAccess(user.Email) {
			return permissionDenied(user.Email, id)
		}

		return repo.Delete(ctx, id)
	})
}

// Rename sets the user's display name. An empty name clears it.
func (s *MessageService) Rename(ctx context.Context, user *model.User, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := repository.NewUserRepository(s.db).SetName(ctx, user.Email, name); err != nil {
		return err
	}
	user.Name = name
	return nil
}

// ListAuthored returns the ids of the user's own messages, oldest first.
func (s *MessageService) ListAuthored(ctx context.Context, user *model.User) ([]string, error) {
	return repository.NewMessageRepository(s.db).ListAuthoredBy(ctx, user.Email)
}

// ListGranted returns the ids of messages the user may append to, oldest first.
func (s *MessageService) ListGranted(ctx context.Context, user *model.User) ([]string, error) {
	return repository.NewMessageRepository(s.db).ListGrantedTo(ctx, user.Email)
}

// Overview reports the user's current name with both message lists.
func (s *MessageService) Overview(ctx context.Context, user *model.User) (*model.Overview, error) {
	current, err := repository.NewUserRepository(s.db).GetByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	authored, err := s.ListAuthored(ctx, user)
	if err != nil {
		return nil, err
	}
	granted, err := s.ListGranted(ctx, user)
	if err != nil {
		return nil, err
	}

	return &model.Overview{
		Name:     current.Name,
		Authored: authored,
		Granted:  granted,
	}, nil
}
