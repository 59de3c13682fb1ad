package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
)

// Sweeper clears expired sessions and lapsed lockouts.
type Sweeper interface {
	SweepExpired(ctx context.Context) (auth.SweepResult, error)
}

// CountSource lists physical counts that should have started by asOf.
type CountSource interface {
	DueCounts(ctx context.Context, asOf time.Time) ([]models.PhysicalCountSession, error)
}

type UserLister interface {
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification, userIDs ...uint) error
}

// Config holds the cron expressions of the jobs. An empty expression
// disables that job.
type Config struct {
	SweepSchedule    string
	ReminderSchedule string
}

// reminderRoles receive count reminders for units they belong to.
var reminderRoles = []models.UserRole{models.RoleStoreKeeper, models.RoleInventoryController}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	sweeper  Sweeper
	counts   CountSource
	users    UserLister
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	reminded map[string]bool
}

func NewScheduler(cfg Config, sweeper Sweeper, counts CountSource, users UserLister, notifier Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		sweeper:  sweeper,
		counts:   counts,
		users:    users,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		reminded: make(map[string]bool),
	}
}

// Start registers the configured jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("sweep_schedule", s.cfg.SweepSchedule),
		zap.String("reminder_schedule", s.cfg.ReminderSchedule),
	)

	if s.cfg.SweepSchedule != "" && s.sweeper != nil {
		if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweepJob); err != nil {
			return fmt.Errorf("schedule sweep %q: %w", s.cfg.SweepSchedule, err)
		}
	}
	if s.cfg.ReminderSchedule != "" && s.counts != nil {
		if _, err := s.cron.AddFunc(s.cfg.ReminderSchedule, s.reminderJob); err != nil {
			return fmt.Errorf("schedule count reminders %q: %w", s.cfg.ReminderSchedule, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("failed to sweep expired sessions", zap.Error(err))
	}
}

func (s *Scheduler) reminderJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.RemindDueCounts(ctx); err != nil {
		s.logger.Error("failed to send count reminders", zap.Error(err))
	}
}

func (s *Scheduler) Sweep(ctx context.Context) (auth.SweepResult, error) {
	res, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		return res, err
	}
	if res.Sessions > 0 || res.Lockouts > 0 {
		s.logger.Info("expired auth state swept",
			zap.Int("sessions", res.Sessions),
			zap.Int("lockouts", res.Lockouts),
		)
	}
	return res, nil
}

// RemindDueCounts notifies the store staff of each unit about counts that
// are due but not started. A session is reminded about once per process.
// It returns the number of sessions reminded.
func (s *Scheduler) RemindDueCounts(ctx context.Context) (int, error) {
	due, err := s.counts.DueCounts(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	staff := make(map[string][]uint)
	for _, role := range reminderRoles {
		users, err := s.users.ListByRole(ctx, role)
		if err != nil {
			return 0, err
		}
		for _, u := range users {
			for _, code := range u.BusinessUnitCodes() {
				staff[code] = append(staff[code], u.ID)
			}
		}
	}

	sent := 0
	for _, cs := range due {
		if s.alreadyReminded(cs.ID) {
			continue
		}
		recipients := staff[cs.BusinessUnit]
		if len(recipients) == 0 {
			s.logger.Warn("no staff to remind about due count",
				zap.String("session_id", cs.ID),
				zap.String("business_unit", cs.BusinessUnit),
			)
			continue
		}
		n := models.Notification{
			Type:     models.NotificationPhysicalCount,
			Title:    "Physical count due",
			Message:  fmt.Sprintf("%s count at %s was scheduled for %s", cs.Location, cs.BusinessUnit, cs.ScheduledFor.Format("02 Jan 15:04")),
			Priority: models.PriorityHigh,
			Metadata: map[string]string{"count_id": cs.ID, "business_unit": cs.BusinessUnit},
		}
		if err := s.notifier.Notify(ctx, n, recipients...); err != nil {
			return sent, err
		}
		s.markReminded(cs.ID)
		sent++
	}

	s.logger.Info("count reminders sent", zap.Int("due", len(due)), zap.Int("reminded", sent))
	return sent, nil
}

func (s *Scheduler) alreadyReminded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminded[id]
}

func (s *Scheduler) markReminded(id string) {
	s.mu.Lock()
	s.reminded[id] = true
	s.mu.Unlock()
}
