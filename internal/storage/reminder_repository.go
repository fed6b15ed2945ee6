package storage

import (
	"context"
	"fmt"

	"github.com/servio/backend/internal/storage/models"
)

// ReminderRepository records which reminders have been delivered so a
// window never fires twice for the same appointment.
type ReminderRepository struct {
	BaseRepository
}

// NewReminderRepository creates a new reminder delivery repository.
func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Claim reserves the (appointment, kind) delivery. It reports false when
// another scan already holds or completed it.
func (r *ReminderRepository) Claim(ctx context.Context, appointmentID int64, kind models.ReminderKind) (bool, error) {
	result, err := r.DB().ExecContext(ctx, `
		INSERT INTO reminder_deliveries (appointment_id, kind, delivered_at)
		VALUES (?, ?, ?)
		ON CONFLICT(appointment_id, kind) DO NOTHING
	`, appointmentID, string(kind), r.Now())
	if err != nil {
		return false, fmt.Errorf("claiming reminder: %w", err)
	}

	n, _ := result.RowsAffected()
	return n == 1, nil
}

// Complete links a claimed delivery to the notification that fulfilled it.
func (r *ReminderRepository) Complete(ctx context.Context, appointmentID int64, kind models.ReminderKind, notificationID int64) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE reminder_deliveries SET notification_id = ?
		WHERE appointment_id = ? AND kind = ?
	`, notificationID, appointmentID, string(kind))
	if err != nil {
		return fmt.Errorf("completing reminder: %w", err)
	}
	return nil
}

// Release drops a claim so a later scan may retry the delivery.
func (r *ReminderRepository) Release(ctx context.Context, appointmentID int64, kind models.ReminderKind) error {
	_, err := r.DB().ExecContext(ctx,
		`DELETE FROM reminder_deliveries WHERE appointment_id = ? AND kind = ?`, appointmentID, string(kind))
	if err != nil {
		return fmt.Errorf("releasing reminder: %w", err)
	}
	return nil
}

// Delivered reports whether a reminder of the given kind exists for the appointment.
func (r *ReminderRepository) Delivered(ctx context.Context, appointmentID int64, kind models.ReminderKind) (bool, error) {
	var count int
	err := r.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminder_deliveries WHERE appointment_id = ? AND kind = ?`,
		appointmentID, string(kind),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("querying reminder delivery: %w", err)
	}
	return count > 0, nil
}
