// Package notification stores user-facing notifications and pushes each new
// one to its owner's live topic.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/storage"
	"github.com/servio/backend/internal/storage/models"
	"github.com/servio/backend/internal/validation"
)

// DefaultRetentionDays applies when DeleteOlderThan is given a non-positive age.
const DefaultRetentionDays = 30

// Titles used by the category helpers.
const (
	TitleAppointment = "Appointment Confirmation"
	TitlePayment     = "Payment Received"
	TitleReminder    = "Service Reminder"
)

// Publisher receives notifications after they are stored.
type Publisher interface {
	PublishNotification(n *models.Notification)
}

// CreateRequest is a system-issued notification.
type CreateRequest struct {
	AccountID int64  `json:"user_id" validate:"required,gt=0"`
	Title     string `json:"title" validate:"required,max=200"`
	Message   string `json:"message" validate:"required,max=2000"`
	Category  string `json:"type" validate:"required,category"`
}

// Service is the notification store.
type Service struct {
	repo     *storage.NotificationRepository
	events   Publisher
	validate *validation.Validator
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a notification service.
func NewService(db *storage.DB, events Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:     storage.NewNotificationRepository(db),
		events:   events,
		validate: validation.New(),
		now:      time.Now,
		logger:   logger.With().Str("component", "notification").Logger(),
	}
}

// Create stores an unread notification and publishes it to the owner's topic.
// An unknown account yields apperr.ErrNotFound.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Notification, error) {
	req.Category = strings.ToUpper(strings.TrimSpace(req.Category))
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	n := &models.Notification{
		AccountID: req.AccountID,
		Title:     req.Title,
		Message:   req.Message,
		Category:  req.Category,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		if storage.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("account %d: %w", req.AccountID, apperr.ErrNotFound)
		}
		return nil, err
	}

	s.logger.Debug().Int64("notification_id", n.ID).Int64("account_id", n.AccountID).Str("type", n.Category).Msg("notification created")
	s.events.PublishNotification(n)
	return n, nil
}

// CreateAppointmentNotice notifies an account about its appointment.
func (s *Service) CreateAppointmentNotice(ctx context.Context, accountID int64, details string) (*models.Notification, error) {
	return s.Create(ctx, CreateRequest{
		AccountID: accountID,
		Title:     TitleAppointment,
		Message:   "Your appointment has been confirmed: " + details,
		Category:  models.CategoryAppointment,
	})
}

// CreatePaymentNotice notifies an account about a received payment.
func (s *Service) CreatePaymentNotice(ctx context.Context, accountID int64, details string) (*models.Notification, error) {
	return s.Create(ctx, CreateRequest{
		AccountID: accountID,
		Title:     TitlePayment,
		Message:   "Payment received: " + details,
		Category:  models.CategoryPayment,
	})
}

// CreateReminder sends a service reminder with the given message.
func (s *Service) CreateReminder(ctx context.Context, accountID int64, message string) (*models.Notification, error) {
	return s.Create(ctx, CreateRequest{
		AccountID: accountID,
		Title:     TitleReminder,
		Message:   message,
		Category:  models.CategoryReminder,
	})
}

// Get returns one notification.
func (s *Service) Get(ctx context.Context, id int64) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("notification %d: %w", id, apperr.ErrNotFound)
	}
	return n, nil
}

// ListByOwner returns an account's notifications, newest first.
func (s *Service) ListByOwner(ctx context.Context, accountID int64) ([]models.Notification, error) {
	return nonNil(s.repo.ListByAccount(ctx, accountID))
}

// ListUnread returns an account's unread notifications, newest first.
func (s *Service) ListUnread(ctx context.Context, accountID int64) ([]models.Notification, error) {
	return nonNil(s.repo.ListUnread(ctx, accountID))
}

// CountUnread returns the number of unread notifications of an account.
func (s *Service) CountUnread(ctx context.Context, accountID int64) (int64, error) {
	return s.repo.CountUnread(ctx, accountID)
}

// MarkRead flags one notification as read and returns it.
func (s *Service) MarkRead(ctx context.Context, id int64) (*models.Notification, error) {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// MarkAllRead flags every unread notification of an account as read.
func (s *Service) MarkAllRead(ctx context.Context, accountID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, accountID)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// DeleteOlderThan removes an account's notifications older than days days.
func (s *Service) DeleteOlderThan(ctx context.Context, accountID int64, days int) (int64, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := s.now().AddDate(0, 0, -days)

	removed, err := s.repo.DeleteCreatedBefore(ctx, accountID, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info().Int64("account_id", accountID).Int64("removed", removed).Int("days", days).Msg("pruned old notifications")
	}
	return removed, nil
}

func nonNil(ns []models.Notification, err error) ([]models.Notification, error) {
	if err != nil {
		return nil, err
	}
	if ns == nil {
		ns = []models.Notification{}
	}
	return ns, nil
}
