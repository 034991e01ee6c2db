package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/msgbottle/bottle-go/internal/middleware"
	"github.com/msgbottle/bottle-go/internal/model"
	"github.com/msgbottle/bottle-go/internal/service"
)

// Deliverer hands a user a new message when they look at their inbox.
type Deliverer interface {
	Deliver(ctx context.Context, user *model.User) (*model.Message, error)
}

// MessageHandler handles HTTP requests for messages and the user's inbox.
type MessageHandler struct {
	messages    *service.MessageService
	assignments Deliverer
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(messages *service.MessageService, assignments Deliverer) *MessageHandler {
	return &MessageHandler{messages: messages, assignments: assignments}
}

func toMessageResponse(msg *model.Message, user *model.User) model.MessageResponse {
	fragments := make([]model.FragmentResponse, len(msg.Fragments))
	for i, f := range msg.Fragments {
		fragments[i] = model.FragmentResponse{Text: f.Text, Author: f.AuthorEmail}
	}

	return model.MessageResponse{
		ID:        msg.ID,
		Author:    msg.AuthorEmail,
		Fragments: fragments,
		Message:   msg.Texts(),
		MayAppend: msg.IsGrantee(user.Email),
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
	}
	return user, ok
}

// HandleOverview handles GET and POST /api/v1/overview requests. It first
// tries to deliver a new message to the user; losing that message to another
// user still returns the overview.
func (h *MessageHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if _, err := h.assignments.Deliver(r.Context(), user); err != nil {
		if !errors.Is(err, service.ErrInvalidState) {
			writeError(w, r, err)
			return
		}
		slog.WarnContext(r.Context(), "delivery skipped", "email", user.Email, "error", err)
	}

	overview, err := h.messages.Overview(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.OverviewResponse{
		Status:              "ok",
		Username:            overview.Name,
		AuthoredMessageIDs:  overview.Authored,
		MayAppendMessageIDs: overview.Granted,
	})
}

// HandleCreate handles POST /api/v1/messages requests.
func (h *MessageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messages.Create(r.Context(), user, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg, user))
}

// HandleGet handles GET /api/v1/messages/{message_id} requests.
func (h *MessageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	msg, err := h.messages.Get(r.Context(), user, chi.URLParam(r, "message_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(msg, user))
}

// HandleAppend handles POST /api/v1/messages/{message_id}/fragments requests.
func (h *MessageHandler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messages.Append(r.Context(), user, chi.URLParam(r, "message_id"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg, user))
}

// HandleDelete handles DELETE /api/v1/messages/{message_id} requests.
func (h *MessageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.messages.Delete(r.Context(), user, chi.URLParam(r, "message_id")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRename handles PUT /api/v1/me/name requests.
func (h *MessageHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.messages.Rename(r.Context(), user, req.Name); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.UserResponse{Status: "ok", Username: user.Name})
}
