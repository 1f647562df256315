// Package ingest implements the webhook processing pipeline: authenticate,
// normalize, fingerprint, resolve the recipient, persist, then push.
package ingest

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitping/relay/internal/apperror"
	"github.com/gitping/relay/internal/compose"
	"github.com/gitping/relay/internal/db"
	"github.com/gitping/relay/internal/dispatch"
	"github.com/gitping/relay/internal/mail"
	"github.com/gitping/relay/internal/push"
)

// Payload is one inbound email forwarded by the mail relay.
type Payload struct {
	Token      string // shared webhook secret presented by the relay
	To         string
	Subject    string
	Text       string
	HTML       string
	RawHeaders string
}

// Outcome says what the pipeline did with a payload. All three are success
// from the relay's point of view; the relay must never retry any of them.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeMuted     Outcome = "muted"
)

// UserStore is the slice of the user repository the pipeline needs.
type UserStore interface {
	GetUserByHook(ctx context.Context, hook string) (*db.User, error)
	SetOnboardingCompleted(ctx context.Context, id uuid.UUID) error
	RemovePushTokens(ctx context.Context, id uuid.UUID, tokens []string) error
}

// NotificationStore is the slice of the notification repository the
// pipeline needs.
type NotificationStore interface {
	CreateNotification(ctx context.Context, notif *db.Notification) error
	CountNotificationsByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Dispatcher sends a composed message to the user's devices.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg dispatch.Message) dispatch.Result
}

// Pipeline processes webhook payloads end to end.
type Pipeline struct {
	secret        []byte
	users         UserStore
	notifications NotificationStore
	dispatcher    Dispatcher
	logger        *zap.Logger
}

// New creates a Pipeline. secret is the shared webhook secret.
func New(secret string, users UserStore, notifications NotificationStore, dispatcher Dispatcher, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		secret:        []byte(secret),
		users:         users,
		notifications: notifications,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// Process runs one payload through the pipeline.
//
// The notification is durable once the insert succeeds; everything after
// that point (onboarding flip, push delivery, stale-token cleanup) is
// best-effort and never turns an accepted payload into a client error.
func (p *Pipeline) Process(ctx context.Context, payload Payload) (Outcome, error) {
	if subtle.ConstantTimeCompare([]byte(payload.Token), p.secret) != 1 {
		return "", apperror.Unauthorized("Unauthorized")
	}

	// Payload validation comes after authentication; an unauthenticated
	// caller learns nothing about what a valid payload looks like.
	if payload.To == "" || payload.Subject == "" || payload.RawHeaders == "" {
		return "", apperror.BadRequest("to, subject and headers are required")
	}

	subject := mail.SanitizeSubject(payload.Subject)

	text := mail.TextPlaceholder
	if strings.TrimSpace(payload.Text) != "" {
		text = mail.SanitizeText(payload.Text)
	}

	html := mail.HTMLPlaceholder
	if strings.TrimSpace(payload.HTML) != "" {
		html = mail.SanitizeHTML(payload.HTML)
	}

	headers := mail.ParseHeaders(payload.RawHeaders)
	contentHash := mail.ContentHash(subject, text, html, payload.To)

	hook := mail.HookFromAddress(payload.To)
	user, err := p.users.GetUserByHook(ctx, hook)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", apperror.BadRequest("User with hook %s doesn't exist", hook)
		}
		return "", err
	}

	notif := &db.Notification{
		ID:          uuid.New(),
		UserID:      user.ID,
		Subject:     subject,
		Text:        text,
		HTML:        html,
		Headers:     headers,
		ContentHash: contentHash,
	}
	if err := p.notifications.CreateNotification(ctx, notif); err != nil {
		if errors.Is(err, db.ErrDuplicateContent) {
			p.logger.Info("duplicate notification dropped",
				zap.String("user_id", user.ID.String()),
				zap.String("content_hash", contentHash),
			)
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	count, err := p.notifications.CountNotificationsByUser(ctx, user.ID)
	if err != nil {
		p.logger.Error("failed to count notifications", zap.Error(err),
			zap.String("user_id", user.ID.String()))
		count = 0
	}

	// Receiving mail on the hook address proves forwarding works, so the
	// first notification completes onboarding.
	if !user.OnboardingCompleted {
		if err := p.users.SetOnboardingCompleted(ctx, user.ID); err != nil {
			p.logger.Error("failed to complete onboarding", zap.Error(err),
				zap.String("user_id", user.ID.String()))
		}
	}

	if user.MutedUntil != nil && time.Now().Before(*user.MutedUntil) {
		p.logger.Info("push suppressed, user muted",
			zap.String("user_id", user.ID.String()),
			zap.Time("muted_until", *user.MutedUntil),
		)
		return OutcomeMuted, nil
	}

	var tokens []string
	for _, token := range user.PushTokens {
		if push.IsValidToken(token) {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return "", apperror.BadRequest("User doesn't have any valid token")
	}

	content := compose.ForNotification(notif)
	if count == 1 {
		content = compose.Welcome()
	}

	result := p.dispatcher.Dispatch(ctx, dispatch.Message{
		Title:  content.Title,
		Body:   content.Body,
		Tokens: tokens,
		Data:   map[string]string{"notificationId": notif.ID.String()},
	})

	if len(result.StaleTokens) > 0 {
		if err := p.users.RemovePushTokens(ctx, user.ID, result.StaleTokens); err != nil {
			p.logger.Error("failed to remove stale push tokens", zap.Error(err),
				zap.String("user_id", user.ID.String()))
		}
	}

	return OutcomeDelivered, nil
}
