// Package api exposes the HTTP surface: the inbound mail webhook, account
// and session management, notification queries, and the GitLab OAuth flow.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitping/relay/internal/auth"
	"github.com/gitping/relay/internal/db"
	"github.com/gitping/relay/internal/hook"
	"github.com/gitping/relay/internal/ingest"
	"github.com/gitping/relay/internal/metrics"
)

// hookRetries bounds the regenerate-on-collision loop when minting a fresh
// hook alias for a new account.
const hookRetries = 5

// Pipeline processes one inbound webhook payload.
type Pipeline interface {
	Process(ctx context.Context, payload ingest.Payload) (ingest.Outcome, error)
}

// UserRepository defines the user database operations the handlers need.
type UserRepository interface {
	CreateUser(ctx context.Context, user *db.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByGitlabID(ctx context.Context, gitlabID int64) (*db.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, update db.UserUpdate) (*db.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// NotificationRepository defines the notification database operations the
// handlers need.
type NotificationRepository interface {
	GetNotification(ctx context.Context, id uuid.UUID) (*db.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*db.Notification, int64, error)
	UpdateNotification(ctx context.Context, id, userID uuid.UUID, update db.NotificationUpdate) (*db.Notification, error)
}

// Handler holds dependencies for the API handlers.
type Handler struct {
	logger        *zap.Logger
	pipeline      Pipeline
	users         UserRepository
	notifications NotificationRepository
	tokens        *auth.TokenService
	passwords     *auth.PasswordService
	gitlab        *GitlabOAuth // nil when OAuth is not configured
	hookDomain    string
}

// NewHandler creates an API handler. hookDomain is the inbound mail domain
// user responses build their hook address on.
func NewHandler(
	logger *zap.Logger,
	pipeline Pipeline,
	users UserRepository,
	notifications NotificationRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	gitlab *GitlabOAuth,
	hookDomain string,
) *Handler {
	return &Handler{
		logger:        logger,
		pipeline:      pipeline,
		users:         users,
		notifications: notifications,
		tokens:        tokens,
		passwords:     passwords,
		gitlab:        gitlab,
		hookDomain:    hookDomain,
	}
}

// Webhook handles POST /webhook?token=xxx, the multipart form posted by the
// inbound mail relay for every email received on the hook domain.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.Error("failed to parse webhook form", zap.Error(err))
		metrics.RecordWebhook("malformed")
		h.writeError(w, fmt.Errorf("parse webhook form: %w", err))
		return
	}

	payload := ingest.Payload{
		Token:      r.URL.Query().Get("token"),
		To:         r.FormValue("to"),
		Subject:    r.FormValue("subject"),
		Text:       r.FormValue("text"),
		HTML:       r.FormValue("html"),
		RawHeaders: r.FormValue("headers"),
	}

	outcome, err := h.pipeline.Process(r.Context(), payload)
	if err != nil {
		metrics.RecordWebhook("rejected")
		h.writeError(w, err)
		return
	}

	metrics.RecordWebhook(string(outcome))
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// createUserWithHook inserts a user, regenerating the hook alias on
// collision. Uniqueness violations on other columns pass through untouched.
func (h *Handler) createUserWithHook(ctx context.Context, user *db.User) error {
	var err error
	for i := 0; i < hookRetries; i++ {
		user.Hook = hook.Generate()
		err = h.users.CreateUser(ctx, user)
		if !errors.Is(err, db.ErrHookTaken) {
			return err
		}
	}
	return err
}

// userBody augments a user with the full inbound address the app shows the
// user to set up GitLab email forwarding.
func (h *Handler) userBody(user *db.User) any {
	return struct {
		*db.User
		HookEmail string `json:"hookEmail"`
	}{user, hook.Email(user.Hook, h.hookDomain)}
}

// issueTokens builds the token pair plus user body returned by every auth
// operation.
func (h *Handler) issueTokens(user *db.User) (map[string]any, error) {
	pair, err := h.tokens.GeneratePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         h.userBody(user),
	}, nil
}

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health builds the GET /health handler. cache is nil when Redis is not
// configured.
func (h *Handler) Health(database, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok", "database": "up", "cache": "disabled"}

		if err := database.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "down"
		}
		if cache != nil {
			body["cache"] = "up"
			if err := cache.Ping(ctx); err != nil {
				body["cache"] = "down"
			}
		}

		h.writeJSON(w, status, body)
	}
}
