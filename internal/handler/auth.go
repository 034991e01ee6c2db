package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/msgbottle/bottle-go/internal/mail"
	"github.com/msgbottle/bottle-go/internal/model"
	"github.com/msgbottle/bottle-go/internal/service"
)

// AuthHandler handles HTTP requests for the login flow.
type AuthHandler struct {
	service *service.AuthService
	mailer  mail.Sender
}

// NewAuthHandler creates a new AuthHandler that delivers secret keys through
// mailer.
func NewAuthHandler(svc *service.AuthService, mailer mail.Sender) *AuthHandler {
	return &AuthHandler{service: svc, mailer: mailer}
}

// HandleLogin handles POST /api/v1/login requests. A body with only an email
// opens a login and mails the secret key; a body with a secret key completes
// it and returns an access token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.SecretKey != nil {
		token, err := h.service.CloseLogin(r.Context(), req.Email, *req.SecretKey)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, model.LoginResponse{Status: "login-success", Token: token})
		return
	}

	key, err := h.service.OpenLogin(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = h.mailer.Send(r.Context(), mail.LoginSubject, mail.LoginBody(key), []string{strings.TrimSpace(req.Email)})
	if err != nil {
		slog.ErrorContext(r.Context(), "sending login email", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse("could not deliver login email"))
		return
	}

	writeJSON(w, http.StatusOK, model.LoginResponse{Status: "new-login"})
}
