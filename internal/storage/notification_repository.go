package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/storage/models"
)

const notificationColumns = `id, user_id, title, message, type, is_read, created_at`

// NotificationRepository provides data access for notifications.
type NotificationRepository struct {
	BaseRepository
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new unread notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	n.IsRead = false
	n.CreatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		INSERT INTO notifications (user_id, title, message, type, is_read, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, n.AccountID, n.Title, n.Message, n.Category, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading notification id: %w", err)
	}
	n.ID = id

	return nil
}

// GetByID retrieves a notification by its ID. It returns nil when no row matches.
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	var n models.Notification

	err := r.DB().QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id).
		Scan(&n.ID, &n.AccountID, &n.Title, &n.Message, &n.Category, &n.IsRead, &n.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification: %w", err)
	}

	return &n, nil
}

// ListByAccount retrieves an account's notifications, newest first.
func (r *NotificationRepository) ListByAccount(ctx context.Context, accountID int64) ([]models.Notification, error) {
	return r.list(ctx, `WHERE user_id = ? ORDER BY created_at DESC, id DESC`, accountID)
}

// ListUnread retrieves an account's unread notifications, newest first.
func (r *NotificationRepository) ListUnread(ctx context.Context, accountID int64) ([]models.Notification, error) {
	return r.list(ctx, `WHERE user_id = ? AND is_read = 0 ORDER BY created_at DESC, id DESC`, accountID)
}

func (r *NotificationRepository) list(ctx context.Context, clause string, args ...any) ([]models.Notification, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Title, &n.Message, &n.Category, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread notifications for an account.
func (r *NotificationRepository) CountUnread(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := r.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, accountID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags a single notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	result, err := r.DB().ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", id, apperr.ErrNotFound)
	}

	return nil
}

// MarkAllRead flags every unread notification of an account as read and
// returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, accountID int64) (int64, error) {
	result, err := r.DB().ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, accountID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}

	n, _ := result.RowsAffected()
	return n, nil
}

// Delete removes a notification by ID.
func (r *NotificationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", id, apperr.ErrNotFound)
	}

	return nil
}

// DeleteCreatedBefore removes an account's notifications created before cutoff
// and returns how many were removed.
func (r *NotificationRepository) DeleteCreatedBefore(ctx context.Context, accountID int64, cutoff time.Time) (int64, error) {
	result, err := r.DB().ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = ? AND created_at < ?`, accountID, dbTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting old notifications: %w", err)
	}

	n, _ := result.RowsAffected()
	return n, nil
}
