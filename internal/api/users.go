package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gitping/relay/internal/apperror"
	"github.com/gitping/relay/internal/auth"
	"github.com/gitping/relay/internal/db"
)

type userUpdateRequest struct {
	Email      *string    `json:"email"`
	Password   *string    `json:"password"`
	PushTokens *[]string  `json:"pushTokens"`
	MutedUntil *time.Time `json:"mutedUntil"`
	Muted      *bool      `json:"muted"`
}

// GetUser handles GET /user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, apperror.NotFound("User"))
			return
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.userBody(user))
}

// UpdateUser handles PUT /user with a partial update. Clearing a mute is
// expressed as "muted": false, which stamps MutedUntil into the past.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	var req userUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperror.BadRequest("Malformed JSON body"))
		return
	}

	update := db.UserUpdate{
		PushTokens: req.PushTokens,
		MutedUntil: req.MutedUntil,
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" {
			h.writeError(w, apperror.BadRequest("email must not be empty"))
			return
		}
		update.Email = &email
	}

	if req.Password != nil {
		if len(*req.Password) < 8 {
			h.writeError(w, apperror.BadRequest("password must be at least 8 characters"))
			return
		}
		hash, err := h.passwords.Hash(*req.Password)
		if err != nil {
			h.writeError(w, apperror.BadRequest("%s", strings.TrimPrefix(err.Error(), "auth: ")))
			return
		}
		update.PasswordHash = &hash
	}

	if req.Muted != nil && !*req.Muted {
		past := time.Unix(0, 0)
		update.MutedUntil = &past
	}

	user, err := h.users.UpdateUser(ctx, userID, update)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			h.writeError(w, apperror.NotFound("User"))
		case errors.Is(err, db.ErrEmailTaken):
			h.writeError(w, apperror.Conflict("User with this email already exists"))
		default:
			h.writeError(w, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, h.userBody(user))
}

// DeleteUser handles DELETE /user. Notifications go with the account via
// the foreign key cascade.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	if err := h.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, apperror.NotFound("User"))
			return
		}
		h.writeError(w, err)
		return
	}

	h.logger.Info("user deleted", zap.String("user_id", userID.String()))
	h.writeMessage(w, http.StatusOK, "Account deleted")
}
