// Package reminder runs the recurring scans that remind customers of
// upcoming appointments.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/storage"
	"github.com/servio/backend/internal/storage/models"
)

// Default cron specs (with seconds).
const (
	DefaultDayAheadSpec  = "0 0 * * * *"
	DefaultHourAheadSpec = "0 */15 * * * *"
)

const dateLayout = "Jan 2, 2006 at 3:04 PM"

// Window is one reminder scan: appointments starting in [now+From, now+To).
type Window struct {
	Kind    models.ReminderKind
	From    time.Duration
	To      time.Duration
	Message func(service, date string) string
}

// DayAhead reminds about appointments roughly 24 hours out.
var DayAhead = Window{
	Kind: models.ReminderDayAhead,
	From: 23 * time.Hour,
	To:   25 * time.Hour,
	Message: func(service, date string) string {
		return fmt.Sprintf("Reminder: Your %s appointment is tomorrow at %s. We'll see you soon!", service, date)
	},
}

// HourAhead reminds about appointments roughly one hour out.
var HourAhead = Window{
	Kind: models.ReminderHourAhead,
	From: 55 * time.Minute,
	To:   65 * time.Minute,
	Message: func(service, date string) string {
		return fmt.Sprintf("Your %s appointment is in about 1 hour (%s). Please be ready!", service, date)
	},
}

// Notifier stores and publishes a reminder notification.
type Notifier interface {
	CreateReminder(ctx context.Context, accountID int64, message string) (*models.Notification, error)
}

// Config holds the scan schedules and the zone used to format dates.
type Config struct {
	DayAheadSpec  string
	HourAheadSpec string
	Location      *time.Location
}

// ScanResult summarizes one scan.
type ScanResult struct {
	Kind    models.ReminderKind `json:"kind"`
	Matched int                 `json:"matched"`
	Sent    int                 `json:"sent"`
	Skipped int                 `json:"skipped"`
	Failed  int                 `json:"failed"`
}

// Scheduler runs the day-ahead and hour-ahead reminder scans.
type Scheduler struct {
	cron     *cron.Cron
	appts    *storage.AppointmentRepository
	ledger   *storage.ReminderRepository
	notifier Notifier
	config   Config
	logger   zerolog.Logger
	now      func() time.Time
}

// NewScheduler creates a new reminder scheduler.
func NewScheduler(db *storage.DB, notifier Notifier, config Config, logger zerolog.Logger) *Scheduler {
	if config.DayAheadSpec == "" {
		config.DayAheadSpec = DefaultDayAheadSpec
	}
	if config.HourAheadSpec == "" {
		config.HourAheadSpec = DefaultHourAheadSpec
	}
	if config.Location == nil {
		config.Location = time.UTC
	}

	logger = logger.With().Str("component", "reminder").Logger()
	cl := cronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(config.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		appts:    storage.NewAppointmentRepository(db),
		ledger:   storage.NewReminderRepository(db),
		notifier: notifier,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers both scans and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.DayAheadSpec, func() {
		s.RunDayAhead(context.Background(), s.now())
	}); err != nil {
		return fmt.Errorf("scheduling day-ahead reminders: %w", err)
	}

	if _, err := s.cron.AddFunc(s.config.HourAheadSpec, func() {
		s.RunHourAhead(context.Background(), s.now())
	}); err != nil {
		return fmt.Errorf("scheduling hour-ahead reminders: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("day_ahead", s.config.DayAheadSpec).
		Str("hour_ahead", s.config.HourAheadSpec).
		Msg("reminder scheduler started")
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running scans.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("reminder scheduler stopped")
}

// RunDayAhead runs the day-ahead scan as of now.
func (s *Scheduler) RunDayAhead(ctx context.Context, now time.Time) (ScanResult, error) {
	return s.Scan(ctx, DayAhead, now)
}

// RunHourAhead runs the hour-ahead scan as of now.
func (s *Scheduler) RunHourAhead(ctx context.Context, now time.Time) (ScanResult, error) {
	return s.Scan(ctx, HourAhead, now)
}

// Scan sends one reminder per eligible appointment in the window. Appointments
// without a local account owner are skipped, as are ones already reminded
// for this window. A failure on one appointment is logged and the scan moves on.
func (s *Scheduler) Scan(ctx context.Context, w Window, now time.Time) (ScanResult, error) {
	result := ScanResult{Kind: w.Kind}

	upcoming, err := s.appts.ListUpcoming(ctx, now.Add(w.From), now.Add(w.To))
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(w.Kind)).Msg("failed to list upcoming appointments")
		return result, err
	}
	result.Matched = len(upcoming)

	for _, appt := range upcoming {
		switch sent, err := s.remind(ctx, w, &appt); {
		case err != nil:
			result.Failed++
			s.logger.Warn().Err(err).Int64("appointment_id", appt.ID).Str("kind", string(w.Kind)).Msg("failed to send reminder")
		case sent:
			result.Sent++
		default:
			result.Skipped++
		}
	}

	if result.Matched > 0 {
		s.logger.Info().
			Str("kind", string(w.Kind)).
			Int("matched", result.Matched).
			Int("sent", result.Sent).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("reminder scan finished")
	}
	return result, nil
}

func (s *Scheduler) remind(ctx context.Context, w Window, appt *models.Appointment) (bool, error) {
	accountID, ok := appt.Owner.LocalAccountID()
	if !ok {
		return false, nil
	}

	claimed, err := s.ledger.Claim(ctx, appt.ID, w.Kind)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	date := appt.AppointmentDate.In(s.config.Location).Format(dateLayout)
	n, err := s.notifier.CreateReminder(ctx, accountID, w.Message(appt.ServiceType, date))
	if err != nil {
		if rerr := s.ledger.Release(ctx, appt.ID, w.Kind); rerr != nil {
			s.logger.Error().Err(rerr).Int64("appointment_id", appt.ID).Msg("failed to release reminder claim")
		}
		return false, err
	}

	if err := s.ledger.Complete(ctx, appt.ID, w.Kind, n.ID); err != nil {
		s.logger.Warn().Err(err).Int64("appointment_id", appt.ID).Msg("failed to record reminder notification")
	}

	s.logger.Info().
		Int64("account_id", accountID).
		Int64("appointment_id", appt.ID).
		Str("kind", string(w.Kind)).
		Str("date", date).
		Msg("reminder sent")
	return true, nil
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
