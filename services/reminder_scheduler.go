package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"mutabaahAPI/internal/clock"
	"mutabaahAPI/internal/dates"
	"mutabaahAPI/internal/habit"
	"mutabaahAPI/internal/notification"
	"mutabaahAPI/internal/task"
)

type UserToken struct {
	UserID uuid.UUID
	Token  string
}

// ReminderStore is the read side the scheduler needs each tick.
type ReminderStore interface {
	ListUsersWithToken(ctx context.Context) ([]UserToken, error)
	ListTasksDueOn(ctx context.Context, userID uuid.UUID, day dates.DayKey) ([]*task.TaskRecord, error)
	ListHabitsByUserID(ctx context.Context, userID uuid.UUID) ([]*habit.HabitRecord, error)
}

// ReminderSender is the dispatch boundary, owned externally (FCM in
// production, a fake in tests).
type ReminderSender interface {
	SendReminder(ctx context.Context, token string, rem notification.Reminder) (notification.DeliveryResult, error)
}

// TokenRegistry lets the scheduler report tokens FCM declared invalid.
type TokenRegistry interface {
	DeactivateToken(ctx context.Context, token string) error
}

// TickLease guards against two ticks running at once. ok=false means another
// instance holds the lease and this tick should be skipped, not queued.
type TickLease interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

var (
	schedulerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_scheduler_ticks_total",
			Help: "Scheduler ticks by outcome",
		},
		[]string{"outcome"},
	)
	remindersSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Reminders dispatched successfully, by kind",
		},
		[]string{"kind"},
	)
	reminderDispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_dispatch_failures_total",
			Help: "Failed dispatch attempts by reason",
		},
		[]string{"reason"},
	)
)

var registerSchedulerMetrics sync.Once

// InitSchedulerMetrics registers the scheduler counters. Call from main.go.
func InitSchedulerMetrics() {
	registerSchedulerMetrics.Do(func() {
		prometheus.MustRegister(schedulerTicksTotal)
		prometheus.MustRegister(remindersSentTotal)
		prometheus.MustRegister(reminderDispatchFailures)
	})
}

// ReminderScheduler fires on a fixed cadence, maps the trigger instant to its
// UTC time bucket and pushes a reminder for exactly the tasks and habits due
// in that window. Items due in a window the process slept through are not
// replayed.
type ReminderScheduler struct {
	store    ReminderStore
	sender   ReminderSender
	registry TokenRegistry
	lease    TickLease
	clock    clock.Clock
	cadence  time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewReminderScheduler(store ReminderStore, sender ReminderSender, clk clock.Clock, cadence time.Duration) *ReminderScheduler {
	if cadence < time.Minute {
		cadence = 2 * time.Minute
	}
	return &ReminderScheduler{
		store:    store,
		sender:   sender,
		clock:    clk,
		cadence:  cadence,
		stopChan: make(chan struct{}),
	}
}

// SetTokenRegistry enables stale-token bookkeeping on invalid-token results.
func (s *ReminderScheduler) SetTokenRegistry(r TokenRegistry) { s.registry = r }

// SetLease enables at-most-one-tick-in-flight across instances.
func (s *ReminderScheduler) SetLease(l TickLease) { s.lease = l }

// Start runs the tick loop in the background. The first tick is delayed to
// the next cadence boundary so buckets line up with the wall clock.
func (s *ReminderScheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		now := s.clock.Now().UTC()
		initial := now.Truncate(s.cadence).Add(s.cadence).Sub(now)

		select {
		case <-time.After(initial):
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.cadence)
		defer ticker.Stop()

		s.runTick()
		for {
			select {
			case <-ticker.C:
				s.runTick()
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Printf("Reminder scheduler started (cadence %s)", s.cadence)
}

func (s *ReminderScheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Println("Reminder scheduler stopped")
}

func (s *ReminderScheduler) runTick() {
	// A tick has until the next cadence boundary; give it exactly that.
	ctx, cancel := context.WithTimeout(context.Background(), s.cadence)
	defer cancel()

	if err := s.Tick(ctx); err != nil {
		log.Printf("Reminder tick failed: %v", err)
	}
}

// Tick processes one scheduling window. Per-user failures are logged and
// skipped; only a failure of the top-level token enumeration fails the tick.
func (s *ReminderScheduler) Tick(ctx context.Context) error {
	now := s.clock.Now().UTC()
	bucket := dates.BucketFor(now, s.cadence)
	today := dates.DayOf(now)

	if s.lease != nil {
		release, ok, err := s.lease.TryAcquire(ctx)
		if err != nil {
			schedulerTicksTotal.WithLabelValues("lease_error").Inc()
			return fmt.Errorf("failed to acquire tick lease: %w", err)
		}
		if !ok {
			// Another tick is in flight; a second one would double-send.
			schedulerTicksTotal.WithLabelValues("skipped").Inc()
			log.Printf("Tick %s skipped: lease held elsewhere", bucket)
			return nil
		}
		defer release()
	}

	users, err := s.store.ListUsersWithToken(ctx)
	if err != nil {
		schedulerTicksTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("tick %s: user enumeration failed: %w", bucket, err)
	}

	for _, u := range users {
		if err := s.processUser(ctx, u, bucket, today); err != nil {
			log.Printf("Tick %s: user %s skipped: %v", bucket, u.UserID, err)
		}
	}

	schedulerTicksTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *ReminderScheduler) processUser(ctx context.Context, u UserToken, bucket dates.Bucket, today dates.DayKey) error {
	// One send per (kind, id) within the tick, even if a query double-matches.
	dispatched := map[string]struct{}{}

	var firstErr error

	tasks, err := s.store.ListTasksDueOn(ctx, u.UserID, today)
	if err != nil {
		firstErr = fmt.Errorf("task fetch failed: %w", err)
	} else {
		for _, t := range tasks {
			if !taskDueInBucket(t, bucket) {
				continue
			}
			s.dispatch(ctx, u, dispatched, notification.Reminder{
				Kind:  notification.KindTask,
				ID:    t.ID,
				Title: "Task due",
				Body:  t.Title,
			})
		}
	}

	habits, err := s.store.ListHabitsByUserID(ctx, u.UserID)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("habit fetch failed: %w", err)
		}
	} else {
		for _, h := range habits {
			if !habitDueInBucket(h, bucket) {
				continue
			}
			if habit.IsDaySuccessful(h, today) {
				// Already done today; nothing to nag about.
				continue
			}
			s.dispatch(ctx, u, dispatched, notification.Reminder{
				Kind:  notification.KindHabit,
				ID:    h.ID,
				Title: "Habit reminder",
				Body:  h.Name,
			})
		}
	}

	return firstErr
}

func taskDueInBucket(t *task.TaskRecord, bucket dates.Bucket) bool {
	if t.Completed || t.DueTime == "" {
		return false
	}
	due, err := dates.ParseClockTime(t.DueTime)
	if err != nil {
		return false
	}
	return bucket.Contains(due)
}

func habitDueInBucket(h *habit.HabitRecord, bucket dates.Bucket) bool {
	if h.ReminderTime == "" {
		return false
	}
	at, err := dates.ParseClockTime(h.ReminderTime)
	if err != nil {
		return false
	}
	return bucket.Contains(at)
}

func (s *ReminderScheduler) dispatch(ctx context.Context, u UserToken, dispatched map[string]struct{}, rem notification.Reminder) {
	key := string(rem.Kind) + ":" + rem.ID.String()
	if _, dup := dispatched[key]; dup {
		return
	}
	dispatched[key] = struct{}{}

	result, err := s.sender.SendReminder(ctx, u.Token, rem)
	switch result {
	case notification.Delivered:
		remindersSentTotal.WithLabelValues(string(rem.Kind)).Inc()
	case notification.InvalidToken:
		// Terminal for this token, never for the tick.
		reminderDispatchFailures.WithLabelValues("invalid_token").Inc()
		log.Printf("Warning: invalid device token for user %s: %v", u.UserID, err)
		if s.registry != nil {
			if derr := s.registry.DeactivateToken(ctx, u.Token); derr != nil {
				log.Printf("Failed to deactivate token for user %s: %v", u.UserID, derr)
			}
		}
	default:
		// Transient transport failure: logged, not retried this tick.
		reminderDispatchFailures.WithLabelValues("transport").Inc()
		log.Printf("Dispatch failed for user %s (%s %s): %v", u.UserID, rem.Kind, rem.ID, err)
	}
}

// PgReminderStore adapts the pgx-backed services to the scheduler's read
// interface.
type PgReminderStore struct {
	Habits *HabitService
	Tasks  *TaskService
	Tokens *NotificationService
}

func (s *PgReminderStore) ListUsersWithToken(ctx context.Context) ([]UserToken, error) {
	return s.Tokens.ListUsersWithToken(ctx)
}

func (s *PgReminderStore) ListTasksDueOn(ctx context.Context, userID uuid.UUID, day dates.DayKey) ([]*task.TaskRecord, error) {
	return s.Tasks.ListTasksDueOn(ctx, userID, day)
}

func (s *PgReminderStore) ListHabitsByUserID(ctx context.Context, userID uuid.UUID) ([]*habit.HabitRecord, error) {
	return s.Habits.ListHabitsByUserID(ctx, userID)
}
