package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const userColumns = `
	id, email, password_hash, hook, push_tokens, onboarding_completed,
	muted_until, last_login, gitlab_id, created_at, updated_at`

// UserRepository handles database operations for users.
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Hook,
		&u.PushTokens,
		&u.OnboardingCompleted,
		&u.MutedUntil,
		&u.LastLogin,
		&u.GitlabID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user. The hook (and email/gitlab id when present)
// must be unique; violations surface as ErrHookTaken, ErrEmailTaken or
// ErrGitlabIDTaken so the caller can retry with a regenerated hook or reject.
func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, hook, push_tokens, onboarding_completed
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING created_at, updated_at
	`

	if user.PushTokens == nil {
		user.PushTokens = []string{}
	}

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Hook,
		user.PushTokens,
		user.OnboardingCompleted,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		r.logger.Error("failed to create user",
			zap.Error(err),
			zap.String("hook", user.Hook),
		)
		return fmt.Errorf("insert user: %w", err)
	}

	r.logger.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("hook", user.Hook),
	)

	return nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.Pool().QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.Pool().QueryRow(ctx, query, email))
}

// GetUserByHook resolves a routing alias to its owner. An unknown alias is
// ErrNotFound: a client problem (stale address), never a server fault.
func (r *UserRepository) GetUserByHook(ctx context.Context, hook string) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE hook = $1`
	return scanUser(r.db.Pool().QueryRow(ctx, query, hook))
}

// GetUserByGitlabID retrieves a user by linked GitLab account id.
func (r *UserRepository) GetUserByGitlabID(ctx context.Context, gitlabID int64) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE gitlab_id = $1`
	return scanUser(r.db.Pool().QueryRow(ctx, query, gitlabID))
}

// CountUsersByEmail counts users holding the given email address.
func (r *UserRepository) CountUsersByEmail(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, email).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// UpdateUser applies a partial update and returns the fresh row. Nil fields
// in the update are left untouched.
func (r *UserRepository) UpdateUser(ctx context.Context, id uuid.UUID, update UserUpdate) (*User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.PasswordHash != nil {
		add("password_hash", *update.PasswordHash)
	}
	if update.Hook != nil {
		add("hook", *update.Hook)
	}
	if update.PushTokens != nil {
		add("push_tokens", *update.PushTokens)
	}
	if update.MutedUntil != nil {
		add("muted_until", *update.MutedUntil)
	}
	if update.GitlabID != nil {
		add("gitlab_id", *update.GitlabID)
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING` + userColumns

	user, err := scanUser(r.db.Pool().QueryRow(ctx, query, args...))
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return nil, mapped
		}
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to update user",
			zap.Error(err),
			zap.String("user_id", id.String()),
		)
		return nil, err
	}

	return user, nil
}

// TouchLastLogin stamps last_login with the current time. Idempotent and
// order-insensitive; failures are logged by the caller, not fatal.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE users SET last_login = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOnboardingCompleted flips onboarding_completed to true. The WHERE guard
// makes the flip happen exactly once; later calls are no-ops.
func (r *UserRepository) SetOnboardingCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE users
		SET onboarding_completed = TRUE, updated_at = NOW()
		WHERE id = $1 AND onboarding_completed = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("set onboarding completed: %w", err)
	}
	return nil
}

// RemovePushTokens drops the given tokens from the user's stored token set.
// Used after the push provider reports a device as no longer registered.
func (r *UserRepository) RemovePushTokens(ctx context.Context, id uuid.UUID, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	_, err := r.db.Pool().Exec(ctx, `
		UPDATE users
		SET push_tokens = ARRAY(
			SELECT t FROM unnest(push_tokens) AS t WHERE NOT (t = ANY($2))
		), updated_at = NOW()
		WHERE id = $1
	`, id, tokens)
	if err != nil {
		return fmt.Errorf("remove push tokens: %w", err)
	}

	r.logger.Info("stale push tokens removed",
		zap.String("user_id", id.String()),
		zap.Int("count", len(tokens)),
	)

	return nil
}

// DeleteUser removes the user; their notifications go with them via the
// ON DELETE CASCADE foreign key.
func (r *UserRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Info("user deleted", zap.String("user_id", id.String()))
	return nil
}
