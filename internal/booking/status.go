package booking

import (
	"fmt"
	"strings"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/storage/models"
)

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[string][]string{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled},
}

// ParseStatus normalizes a status name and rejects unknown values.
func ParseStatus(s string) (string, error) {
	status := strings.ToUpper(strings.TrimSpace(s))
	switch status {
	case models.StatusPending, models.StatusConfirmed, models.StatusInProgress,
		models.StatusCompleted, models.StatusCancelled:
		return status, nil
	}
	return "", apperr.Validation("unknown appointment status %q", s)
}

// CanTransition reports whether an appointment may move from one status to
// another. Re-writing the current status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to)
	}
	return nil
}

// eventKind picks the lifecycle event published after a status write.
func eventKind(status string) string {
	if status == models.StatusCancelled {
		return models.EventCancelled
	}
	return models.EventUpdated
}
