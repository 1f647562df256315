package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitping/relay/internal/apperror"
	"github.com/gitping/relay/internal/auth"
	"github.com/gitping/relay/internal/db"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Signup handles POST /auth/signup. A request carrying a valid access token
// upgrades that (anonymous) account with credentials instead of creating a
// new one, so notifications received before signup are kept.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperror.BadRequest("Malformed JSON body"))
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		h.writeError(w, apperror.BadRequest("email and password are required"))
		return
	}
	if len(req.Password) < 8 {
		h.writeError(w, apperror.BadRequest("password must be at least 8 characters"))
		return
	}

	passwordHash, err := h.passwords.Hash(req.Password)
	if err != nil {
		h.writeError(w, apperror.BadRequest("%s", strings.TrimPrefix(err.Error(), "auth: ")))
		return
	}

	// Anonymous upgrade path.
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		user, err := h.users.UpdateUser(ctx, userID, db.UserUpdate{
			Email:        &req.Email,
			PasswordHash: &passwordHash,
		})
		if err != nil {
			if errors.Is(err, db.ErrEmailTaken) {
				h.writeError(w, apperror.Conflict("User with this email already exists"))
				return
			}
			h.writeError(w, err)
			return
		}

		body, err := h.issueTokens(user)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, body)
		return
	}

	user := &db.User{
		ID:           uuid.New(),
		Email:        &req.Email,
		PasswordHash: &passwordHash,
	}
	if err := h.createUserWithHook(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			h.writeError(w, apperror.Conflict("User with this email already exists"))
			return
		}
		h.writeError(w, err)
		return
	}

	h.logger.Info("user signed up", zap.String("user_id", user.ID.String()))

	body, err := h.issueTokens(user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, body)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperror.BadRequest("Malformed JSON body"))
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		h.writeError(w, apperror.BadRequest("email and password are required"))
		return
	}

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, apperror.Credentials("Invalid email or password"))
			return
		}
		h.writeError(w, err)
		return
	}

	if user.PasswordHash == nil || h.passwords.Verify(*user.PasswordHash, req.Password) != nil {
		h.writeError(w, apperror.Credentials("Invalid email or password"))
		return
	}

	if err := h.users.TouchLastLogin(ctx, user.ID); err != nil {
		h.logger.Error("failed to touch last login", zap.Error(err),
			zap.String("user_id", user.ID.String()))
	}

	body, err := h.issueTokens(user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, body)
}

// Refresh handles POST /auth/refresh, exchanging a refresh token for a
// fresh pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperror.BadRequest("Malformed JSON body"))
		return
	}
	if req.RefreshToken == "" {
		h.writeError(w, apperror.BadRequest("refreshToken is required"))
		return
	}

	userID, err := h.tokens.ValidateRefresh(req.RefreshToken)
	if err != nil {
		h.writeError(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	// Tokens for deleted accounts stop working at refresh time.
	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, apperror.Unauthorized("Unauthorized"))
			return
		}
		h.writeError(w, err)
		return
	}

	if err := h.users.TouchLastLogin(ctx, user.ID); err != nil {
		h.logger.Error("failed to touch last login", zap.Error(err),
			zap.String("user_id", user.ID.String()))
	}

	body, err := h.issueTokens(user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, body)
}

// Anonymous handles POST /auth/anonymous: a device-only account with a hook
// address but no credentials, used before (or instead of) signup.
func (h *Handler) Anonymous(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := &db.User{ID: uuid.New()}
	if err := h.createUserWithHook(ctx, user); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("anonymous user created", zap.String("user_id", user.ID.String()))

	body, err := h.issueTokens(user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, body)
}
