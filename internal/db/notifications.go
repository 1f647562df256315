package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const notificationColumns = `
	id, user_id, subject, text, html, headers, content_hash, received_at, viewed`

// NotificationRepository handles database operations for notifications.
type NotificationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Subject,
		&n.Text,
		&n.HTML,
		&n.Headers,
		&n.ContentHash,
		&n.ReceivedAt,
		&n.Viewed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return &n, nil
}

// CreateNotification inserts a new notification. The content_hash unique
// constraint is the sole dedup mechanism: two concurrent deliveries of the
// same logical event race at the index, the loser gets ErrDuplicateContent
// and the caller treats that as already-delivered.
func (r *NotificationRepository) CreateNotification(ctx context.Context, notif *Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, subject, text, html, headers, content_hash
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING received_at, viewed
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		notif.ID,
		notif.UserID,
		notif.Subject,
		notif.Text,
		notif.HTML,
		notif.Headers,
		notif.ContentHash,
	).Scan(&notif.ReceivedAt, &notif.Viewed)

	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		r.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("user_id", notif.UserID.String()),
		)
		return fmt.Errorf("insert notification: %w", err)
	}

	r.logger.Info("notification created",
		zap.String("notification_id", notif.ID.String()),
		zap.String("user_id", notif.UserID.String()),
	)

	return nil
}

// GetNotification retrieves a notification by ID.
func (r *NotificationRepository) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	query := `SELECT` + notificationColumns + ` FROM notifications WHERE id = $1`
	return scanNotification(r.db.Pool().QueryRow(ctx, query, id))
}

// CountNotificationsByUser counts stored notifications owned by a user.
func (r *NotificationRepository) CountNotificationsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// ListNotificationsByUser retrieves a page of the user's notifications,
// newest first, along with the total count for the X-Total-Count header.
func (r *NotificationRepository) ListNotificationsByUser(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
	offset int,
) ([]*Notification, int64, error) {
	total, err := r.CountNotificationsByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}

	return notifications, total, nil
}

// UpdateNotification applies a partial update to a notification owned by
// userID. Headers are not part of NotificationUpdate and therefore can never
// be rewritten from the outside.
func (r *NotificationRepository) UpdateNotification(
	ctx context.Context,
	id uuid.UUID,
	userID uuid.UUID,
	update NotificationUpdate,
) (*Notification, error) {
	sets := []string{}
	args := []any{id, userID}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Subject != nil {
		add("subject", *update.Subject)
	}
	if update.Text != nil {
		add("text", *update.Text)
	}
	if update.HTML != nil {
		add("html", *update.HTML)
	}
	if update.Viewed != nil {
		add("viewed", *update.Viewed)
	}

	if len(sets) == 0 {
		notif, err := r.GetNotification(ctx, id)
		if err != nil {
			return nil, err
		}
		if notif.UserID != userID {
			return nil, ErrNotFound
		}
		return notif, nil
	}

	query := `UPDATE notifications SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND user_id = $2 RETURNING` + notificationColumns

	notif, err := scanNotification(r.db.Pool().QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to update notification",
			zap.Error(err),
			zap.String("notification_id", id.String()),
		)
		return nil, err
	}

	return notif, nil
}

// DeleteNotificationsBefore removes notifications received before the cutoff.
// Called by the retention sweeper.
func (r *NotificationRepository) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool().Exec(ctx,
		`DELETE FROM notifications WHERE received_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}

	deleted := result.RowsAffected()
	if deleted > 0 {
		r.logger.Info("old notifications deleted",
			zap.Int64("count", deleted),
			zap.Time("cutoff", cutoff),
		)
	}

	return deleted, nil
}
