// Package booking implements appointment booking: slot exclusivity, the
// status lifecycle and the queries behind the appointment endpoints.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/identity"
	"github.com/servio/backend/internal/storage"
	"github.com/servio/backend/internal/storage/models"
	"github.com/servio/backend/internal/validation"
)

// RecentLimit caps the recent-appointments list.
const RecentLimit = 10

// EventPublisher receives appointment lifecycle events after they commit.
type EventPublisher interface {
	PublishAppointment(kind string, appt *models.Appointment)
}

// Service is the appointment store.
type Service struct {
	db       *storage.DB
	appts    *storage.AppointmentRepository
	guard    *SlotGuard
	resolver *identity.Resolver
	events   EventPublisher
	validate *validation.Validator
	loc      *time.Location
	logger   zerolog.Logger
}

// NewService creates a booking service. loc is the shop time zone used for
// naive request timestamps and booked-slot labels.
func NewService(db *storage.DB, resolver *identity.Resolver, events EventPublisher, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	appts := storage.NewAppointmentRepository(db)
	return &Service{
		db:       db,
		appts:    appts,
		guard:    NewSlotGuard(appts),
		resolver: resolver,
		events:   events,
		validate: validation.New(),
		loc:      loc,
		logger:   logger.With().Str("component", "booking").Logger(),
	}
}

// Guard returns the slot guard used by the service.
func (s *Service) Guard() *SlotGuard {
	return s.guard
}

// Create books an appointment for the caller. The slot check and insert share
// one write transaction; CREATED is published only after commit.
func (s *Service) Create(ctx context.Context, caller identity.CallerRef, req CreateRequest) (*models.Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if err := checkCost("estimated_cost", req.EstimatedCost); err != nil {
		return nil, err
	}
	at, err := ParseAppointmentTime(req.AppointmentDate, s.loc)
	if err != nil {
		return nil, err
	}

	owner, err := s.resolver.Resolve(ctx, caller, req.Contact())
	if err != nil {
		return nil, fmt.Errorf("resolving caller: %w", err)
	}

	appt := &models.Appointment{
		Owner:           owner,
		VehicleID:       req.VehicleID,
		ServiceType:     strings.TrimSpace(req.ServiceType),
		AppointmentDate: at,
		Status:          models.StatusPending,
		Location:        req.Location,
		Notes:           req.Notes,
		EstimatedCost:   req.EstimatedCost,
	}

	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		conflicts, err := s.guard.Conflicts(ctx, tx, at)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			s.logger.Info().
				Time("slot", at).
				Int64("held_by", conflicts[0].ID).
				Str("owner", owner.String()).
				Msg("slot already booked")
			return apperr.ErrSlotTaken
		}
		return s.appts.Insert(ctx, tx, appt)
	})
	if storage.IsUniqueViolation(err) {
		err = apperr.ErrSlotTaken
	}
	if errors.Is(err, apperr.ErrSlotTaken) {
		return nil, fmt.Errorf("%w: this time slot is already booked, please choose another time", apperr.ErrSlotTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	dto, err := s.Get(ctx, appt.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("appointment_id", dto.ID).Str("owner", owner.String()).Time("slot", dto.AppointmentDate).Msg("appointment booked")
	s.events.PublishAppointment(models.EventCreated, dto)
	return dto, nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id int64) (*models.Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, fmt.Errorf("appointment %d: %w", id, apperr.ErrNotFound)
	}
	return appt, nil
}

// ListAll returns every appointment, latest appointment date first.
func (s *Service) ListAll(ctx context.Context) ([]models.Appointment, error) {
	return nonNil(s.appts.ListAll(ctx))
}

// ListByStatus returns appointments in one status, latest appointment date first.
func (s *Service) ListByStatus(ctx context.Context, status string) ([]models.Appointment, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return nonNil(s.appts.ListByStatus(ctx, st))
}

// ListByOwner returns the appointments of the owner named by subject, which
// may be a local account id or a profile UUID. An unrecognized subject
// yields an empty list.
func (s *Service) ListByOwner(ctx context.Context, subject string) ([]models.Appointment, error) {
	owner, err := identity.ParseSubject(subject)
	if err != nil {
		return []models.Appointment{}, nil
	}
	return nonNil(s.appts.ListByOwner(ctx, owner))
}

// ListMine returns the caller's own appointments.
func (s *Service) ListMine(ctx context.Context, caller identity.CallerRef) ([]models.Appointment, error) {
	if caller.Subject == "" {
		return nil, apperr.ErrUnauthenticated
	}
	owner, err := identity.ParseSubject(caller.Subject)
	if err != nil {
		return nil, err
	}
	return nonNil(s.appts.ListByOwner(ctx, owner))
}

// ListRecent returns the most recently created appointments. Limits outside
// 1..RecentLimit fall back to RecentLimit.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]models.Appointment, error) {
	if limit <= 0 || limit > RecentLimit {
		limit = RecentLimit
	}
	return nonNil(s.appts.ListRecent(ctx, limit))
}

// BookedSlots returns the "HH:mm" labels of non-cancelled appointments on the
// given calendar day in the shop time zone, earliest first.
func (s *Service) BookedSlots(ctx context.Context, date string) ([]string, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, apperr.Validation("date %q must be formatted YYYY-MM-DD", date)
	}

	appts, err := s.appts.ListActiveBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	slots := make([]string, 0, len(appts))
	for _, a := range appts {
		slots = append(slots, a.AppointmentDate.In(s.loc).Format("15:04"))
	}
	return slots, nil
}

// UpdateStatus moves an appointment to a new status.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*models.Appointment, error) {
	return s.Update(ctx, id, UpdateRequest{Status: &status})
}

// Update applies a staff edit. Status changes must follow the lifecycle;
// UPDATED, or CANCELLED for a cancellation, is published after commit.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*models.Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if err := checkCost("actual_cost", req.ActualCost); err != nil {
		return nil, err
	}

	var updated *models.Appointment
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		appt, err := s.appts.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if appt == nil {
			return fmt.Errorf("appointment %d: %w", id, apperr.ErrNotFound)
		}

		if req.Status != nil {
			next, err := ParseStatus(*req.Status)
			if err != nil {
				return err
			}
			if err := checkTransition(appt.Status, next); err != nil {
				return err
			}
			appt.Status = next
		}
		if req.Notes != nil {
			appt.Notes = *req.Notes
		}
		if req.ActualCost.Valid {
			appt.ActualCost = req.ActualCost
		}

		if err := s.appts.Update(ctx, tx, appt); err != nil {
			return err
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("appointment_id", id).Str("status", updated.Status).Msg("appointment updated")
	s.events.PublishAppointment(eventKind(updated.Status), updated)
	return updated, nil
}

// Delete removes an appointment and publishes DELETED with its last state.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var last *models.Appointment
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		appt, err := s.appts.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if appt == nil {
			return fmt.Errorf("appointment %d: %w", id, apperr.ErrNotFound)
		}
		last = appt
		return s.appts.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int64("appointment_id", id).Msg("appointment deleted")
	s.events.PublishAppointment(models.EventDeleted, last)
	return nil
}

func nonNil(appts []models.Appointment, err error) ([]models.Appointment, error) {
	if err != nil {
		return nil, err
	}
	if appts == nil {
		appts = []models.Appointment{}
	}
	return appts, nil
}
