package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/saloncore/booking-core/internal/workers"
	"github.com/saloncore/booking-core/pkg/logger"
)

// Scheduler drives the three lifecycle workers on their own cron
// schedules.
type Scheduler struct {
	cron                *cron.Cron
	holdExpirer         *workers.HoldExpirer
	reminderDispatcher  *workers.ReminderDispatcher
	paymentReconciler   *workers.PaymentReconciler
	holdExpirerSeconds  int
	reminderSeconds     int
	reconcilerSeconds   int
	logger              *logger.Logger
}

func New(
	holdExpirer *workers.HoldExpirer,
	reminderDispatcher *workers.ReminderDispatcher,
	paymentReconciler *workers.PaymentReconciler,
	holdExpirerSeconds, reminderSeconds, reconcilerSeconds int,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		cron:               cron.New(),
		holdExpirer:        holdExpirer,
		reminderDispatcher: reminderDispatcher,
		paymentReconciler:  paymentReconciler,
		holdExpirerSeconds: holdExpirerSeconds,
		reminderSeconds:    reminderSeconds,
		reconcilerSeconds:  reconcilerSeconds,
		logger:             log,
	}
}

// Start registers the three lifecycle jobs and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting background scheduler")

	ctx := context.Background()

	if _, err := s.cron.AddFunc(everySeconds(s.holdExpirerSeconds), func() {
		s.holdExpirer.Tick(ctx)
	}); err != nil {
		s.logger.Error("failed to register hold expirer job", "error", err)
	}

	if _, err := s.cron.AddFunc(everySeconds(s.reminderSeconds), func() {
		s.reminderDispatcher.Tick(ctx)
	}); err != nil {
		s.logger.Error("failed to register reminder dispatcher job", "error", err)
	}

	if _, err := s.cron.AddFunc(everySeconds(s.reconcilerSeconds), func() {
		s.paymentReconciler.Tick(ctx)
	}); err != nil {
		s.logger.Error("failed to register payment reconciler job", "error", err)
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping background scheduler")
	s.cron.Stop()
}

func everySeconds(n int) string {
	return fmt.Sprintf("@every %ds", n)
}
