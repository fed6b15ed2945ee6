package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/storage/models"
)

const appointmentColumns = `
	a.id, a.user_id, a.profile_id, a.vehicle_id, a.service_type, a.appointment_date,
	a.status, a.location, a.notes, a.estimated_cost, a.actual_cost, a.created_at, a.updated_at,
	COALESCE(u.full_name, p.full_name, ''), COALESCE(u.email, p.email, '')`

const appointmentFrom = `
	FROM appointments a
	LEFT JOIN accounts u ON u.id = a.user_id
	LEFT JOIN profiles p ON p.id = a.profile_id`

// AppointmentRepository provides data access for appointments.
type AppointmentRepository struct {
	BaseRepository
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *DB) *AppointmentRepository {
	return &AppointmentRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Insert adds a new appointment through q, which may be a transaction.
// The appointment's ID and timestamps are filled in on success.
func (r *AppointmentRepository) Insert(ctx context.Context, q Queryable, appt *models.Appointment) error {
	userID, profileID, err := ownerColumns(appt.Owner)
	if err != nil {
		return err
	}

	now := r.Now()
	appt.AppointmentDate = dbTime(appt.AppointmentDate)
	appt.CreatedAt = now
	appt.UpdatedAt = now

	result, err := q.ExecContext(ctx, `
		INSERT INTO appointments (
			user_id, profile_id, vehicle_id, service_type, appointment_date, status,
			location, notes, estimated_cost, actual_cost, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		userID, profileID, appt.VehicleID, appt.ServiceType, appt.AppointmentDate, appt.Status,
		appt.Location, appt.Notes, appt.EstimatedCost, appt.ActualCost, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting appointment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading appointment id: %w", err)
	}
	appt.ID = id

	return nil
}

// GetByID retrieves an appointment by its ID. It returns nil when no row matches.
func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*models.Appointment, error) {
	return r.getByID(ctx, r.DB(), id)
}

// GetByIDTx is GetByID read through q.
func (r *AppointmentRepository) GetByIDTx(ctx context.Context, q Queryable, id int64) (*models.Appointment, error) {
	return r.getByID(ctx, q, id)
}

func (r *AppointmentRepository) getByID(ctx context.Context, q Queryable, id int64) (*models.Appointment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+appointmentColumns+appointmentFrom+` WHERE a.id = ?`, id)

	appt, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying appointment: %w", err)
	}

	return appt, nil
}

// ListActiveAt returns the non-cancelled appointments booked at exactly the given instant.
func (r *AppointmentRepository) ListActiveAt(ctx context.Context, q Queryable, at time.Time) ([]models.Appointment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+appointmentColumns+appointmentFrom+`
		WHERE a.appointment_date = ? AND a.status <> ?
		ORDER BY a.id
	`, dbTime(at), models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("querying appointments at slot: %w", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// ListAll retrieves every appointment, latest appointment date first.
func (r *AppointmentRepository) ListAll(ctx context.Context) ([]models.Appointment, error) {
	return r.list(ctx, `ORDER BY a.appointment_date DESC, a.id DESC`)
}

// ListByStatus retrieves appointments with the given status, latest appointment date first.
func (r *AppointmentRepository) ListByStatus(ctx context.Context, status string) ([]models.Appointment, error) {
	return r.list(ctx, `WHERE a.status = ? ORDER BY a.appointment_date DESC, a.id DESC`, status)
}

// ListByOwner retrieves an owner's appointments, latest appointment date first.
func (r *AppointmentRepository) ListByOwner(ctx context.Context, owner models.Owner) ([]models.Appointment, error) {
	switch owner.Kind {
	case models.OwnerLocal:
		return r.list(ctx, `WHERE a.user_id = ? ORDER BY a.appointment_date DESC, a.id DESC`, owner.AccountID)
	case models.OwnerFederated:
		return r.list(ctx, `WHERE a.profile_id = ? ORDER BY a.appointment_date DESC, a.id DESC`, owner.ProfileID.String())
	default:
		return nil, nil
	}
}

// ListRecent retrieves the most recently created appointments.
func (r *AppointmentRepository) ListRecent(ctx context.Context, limit int) ([]models.Appointment, error) {
	return r.list(ctx, `ORDER BY a.created_at DESC, a.id DESC LIMIT ?`, limit)
}

// ListActiveBetween retrieves non-cancelled appointments in [from, to), earliest first.
func (r *AppointmentRepository) ListActiveBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	return r.list(ctx, `
		WHERE a.appointment_date >= ? AND a.appointment_date < ? AND a.status <> ?
		ORDER BY a.appointment_date
	`, dbTime(from), dbTime(to), models.StatusCancelled)
}

// ListUpcoming retrieves appointments in [from, to) that are neither cancelled nor completed,
// earliest first.
func (r *AppointmentRepository) ListUpcoming(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	return r.list(ctx, `
		WHERE a.appointment_date >= ? AND a.appointment_date < ?
		  AND a.status NOT IN (?, ?)
		ORDER BY a.appointment_date, a.id
	`, dbTime(from), dbTime(to), models.StatusCancelled, models.StatusCompleted)
}

func (r *AppointmentRepository) list(ctx context.Context, clause string, args ...any) ([]models.Appointment, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+appointmentColumns+appointmentFrom+` `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying appointments: %w", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// Update writes the mutable fields of an appointment through q.
func (r *AppointmentRepository) Update(ctx context.Context, q Queryable, appt *models.Appointment) error {
	appt.UpdatedAt = r.Now()

	result, err := q.ExecContext(ctx, `
		UPDATE appointments SET status = ?, notes = ?, actual_cost = ?, updated_at = ?
		WHERE id = ?
	`, appt.Status, appt.Notes, appt.ActualCost, appt.UpdatedAt, appt.ID)
	if err != nil {
		return fmt.Errorf("updating appointment: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("appointment %d: %w", appt.ID, apperr.ErrNotFound)
	}

	return nil
}

// Delete removes an appointment by ID through q.
func (r *AppointmentRepository) Delete(ctx context.Context, q Queryable, id int64) error {
	result, err := q.ExecContext(ctx, "DELETE FROM appointments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting appointment: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("appointment %d: %w", id, apperr.ErrNotFound)
	}

	return nil
}

func ownerColumns(owner models.Owner) (sql.NullInt64, sql.NullString, error) {
	switch owner.Kind {
	case models.OwnerLocal:
		return sql.NullInt64{Int64: owner.AccountID, Valid: true}, sql.NullString{}, nil
	case models.OwnerFederated:
		return sql.NullInt64{}, sql.NullString{String: owner.ProfileID.String(), Valid: true}, nil
	default:
		return sql.NullInt64{}, sql.NullString{}, fmt.Errorf("appointment has no owner")
	}
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var (
		appt      models.Appointment
		userID    sql.NullInt64
		profileID sql.NullString
		vehicleID sql.NullInt64
	)

	if err := row.Scan(
		&appt.ID, &userID, &profileID, &vehicleID, &appt.ServiceType, &appt.AppointmentDate,
		&appt.Status, &appt.Location, &appt.Notes, &appt.EstimatedCost, &appt.ActualCost,
		&appt.CreatedAt, &appt.UpdatedAt, &appt.OwnerName, &appt.OwnerEmail,
	); err != nil {
		return nil, err
	}

	switch {
	case userID.Valid:
		appt.Owner = models.LocalOwner(userID.Int64)
	case profileID.Valid:
		id, err := uuid.Parse(strings.TrimSpace(profileID.String))
		if err != nil {
			return nil, fmt.Errorf("appointment %d has malformed profile id: %w", appt.ID, err)
		}
		appt.Owner = models.FederatedOwner(id)
	}

	if vehicleID.Valid {
		v := vehicleID.Int64
		appt.VehicleID = &v
	}

	return &appt, nil
}

func scanAppointments(rows *sql.Rows) ([]models.Appointment, error) {
	var appts []models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning appointment: %w", err)
		}
		appts = append(appts, *appt)
	}
	return appts, rows.Err()
}
