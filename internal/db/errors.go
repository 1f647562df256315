package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store outcomes the callers pattern-match on. Expected conflicts (duplicate
// content, taken hook/email) get their own sentinel each so policy lives in
// the caller instead of string inspection; anything else is a store fault.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateContent = errors.New("notification content already ingested")
	ErrHookTaken        = errors.New("hook already in use")
	ErrEmailTaken       = errors.New("email already in use")
	ErrGitlabIDTaken    = errors.New("gitlab account already linked")
)

const uniqueViolationCode = "23505"

// mapUniqueViolation translates a postgres unique-violation into the matching
// sentinel based on the constraint that fired. Unknown constraints fall
// through to the original error.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}

	switch pgErr.ConstraintName {
	case "notifications_content_hash_key":
		return ErrDuplicateContent
	case "users_hook_key":
		return ErrHookTaken
	case "users_email_key":
		return ErrEmailTaken
	case "users_gitlab_id_key":
		return ErrGitlabIDTaken
	}
	return err
}
