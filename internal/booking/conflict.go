package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/servio/backend/internal/storage"
	"github.com/servio/backend/internal/storage/models"
)

// SlotGuard detects appointments already holding a timestamp.
type SlotGuard struct {
	appts *storage.AppointmentRepository
}

// NewSlotGuard creates a new slot guard.
func NewSlotGuard(appts *storage.AppointmentRepository) *SlotGuard {
	return &SlotGuard{appts: appts}
}

// Conflicts returns the non-cancelled appointments booked at exactly at,
// read through q so the check can share the inserting transaction.
func (g *SlotGuard) Conflicts(ctx context.Context, q storage.Queryable, at time.Time) ([]models.Appointment, error) {
	appts, err := g.appts.ListActiveAt(ctx, q, at)
	if err != nil {
		return nil, fmt.Errorf("checking slot: %w", err)
	}
	return appts, nil
}

// IsFree returns true if no non-cancelled appointment is booked at exactly at.
func (g *SlotGuard) IsFree(ctx context.Context, at time.Time) (bool, error) {
	conflicts, err := g.Conflicts(ctx, g.appts.DB(), at)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}
