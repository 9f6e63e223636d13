package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutabaahAPI/internal/clock"
	"mutabaahAPI/internal/dates"
	"mutabaahAPI/internal/habit"
	"mutabaahAPI/internal/task"
	"mutabaahAPI/services"
	"mutabaahAPI/tests/helpers"
)

func TestHabitProgressFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer pool.Close()

	userID, clerkID := helpers.CreateTestUser(t, pool)
	defer helpers.CleanupTestUser(t, pool, userID)

	ctx := context.Background()
	svc := services.NewHabitService(pool, clock.System())
	today := dates.DayOf(time.Now())

	created, err := svc.CreateHabit(ctx, clerkID, &habit.CreateHabitRequest{
		Name:      "morning adhkar",
		HabitType: habit.TypeCounted,
		DailyGoal: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 0, created.Streak)

	// Three increments reach the goal; the row must carry membership and
	// streak together.
	var h *habit.HabitRecord
	for i := 0; i < 3; i++ {
		h, err = svc.IncrementProgress(ctx, clerkID, created.ID, today)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, h.DailyProgress[today])
	assert.True(t, habit.IsDaySuccessful(h, today))
	assert.Equal(t, 1, h.Streak)

	// Dropping below the goal revokes membership atomically.
	h, err = svc.DecrementProgress(ctx, clerkID, created.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 2, h.DailyProgress[today])
	assert.False(t, habit.IsDaySuccessful(h, today))
	assert.Equal(t, 0, h.Streak)

	require.NoError(t, svc.DeleteHabit(ctx, clerkID, created.ID))
}

func TestHabitSubscriptionPushesOnWrite(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer pool.Close()

	userID, clerkID := helpers.CreateTestUser(t, pool)
	defer helpers.CleanupTestUser(t, pool, userID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := services.NewHabitService(pool, clock.System())

	updates := make(chan int, 8)
	go func() {
		_ = svc.SubscribeHabits(ctx, userID, func(habits []*habit.HabitRecord) {
			updates <- len(habits)
		})
	}()

	// Initial snapshot.
	select {
	case n := <-updates:
		assert.Equal(t, 0, n)
	case <-ctx.Done():
		t.Fatal("no initial snapshot from subscription")
	}

	_, err := svc.CreateHabit(ctx, clerkID, &habit.CreateHabitRequest{Name: "isha on time"})
	require.NoError(t, err)

	select {
	case n := <-updates:
		assert.Equal(t, 1, n)
	case <-ctx.Done():
		t.Fatal("subscription did not observe the write")
	}
}

func TestRecurringTaskSpawnsSuccessor(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer pool.Close()

	userID, clerkID := helpers.CreateTestUser(t, pool)
	defer helpers.CleanupTestUser(t, pool, userID)

	ctx := context.Background()
	svc := services.NewTaskService(pool)

	created, err := svc.CreateTask(ctx, clerkID, &task.CreateTaskRequest{
		Title:      "friday khutbah notes",
		DueDate:    "2024-03-08",
		DueTime:    "13:00",
		Recurrence: task.RecurrenceWeekly,
	})
	require.NoError(t, err)

	completed, err := svc.CompleteTask(ctx, clerkID, created.ID)
	require.NoError(t, err)
	assert.True(t, completed.Completed)

	all, err := svc.ListTasks(ctx, clerkID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)

	var successorFound bool
	for _, tk := range all {
		if tk.ID != created.ID {
			successorFound = true
			assert.Equal(t, dates.DayKey("2024-03-15"), tk.DueDate)
			assert.False(t, tk.Completed)
			assert.Equal(t, created.Title, tk.Title)
		}
	}
	assert.True(t, successorFound, "completing a weekly task must insert its successor")
}

func TestDeviceRegistrationAndDeactivation(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer pool.Close()

	userID, clerkID := helpers.CreateTestUser(t, pool)
	defer helpers.CleanupTestUser(t, pool, userID)

	ctx := context.Background()
	svc := services.NewNotificationService(pool)

	token := "fcm-test-" + userID.String()
	require.NoError(t, svc.RegisterDevice(ctx, clerkID, token, "android"))
	// Re-registering the same token is an upsert, not a duplicate row.
	require.NoError(t, svc.RegisterDevice(ctx, clerkID, token, "android"))

	users, err := svc.ListUsersWithToken(ctx)
	require.NoError(t, err)

	var seen int
	for _, ut := range users {
		if ut.UserID == userID {
			seen++
			assert.Equal(t, token, ut.Token)
		}
	}
	assert.Equal(t, 1, seen)

	require.NoError(t, svc.DeactivateToken(ctx, token))

	users, err = svc.ListUsersWithToken(ctx)
	require.NoError(t, err)
	for _, ut := range users {
		assert.NotEqual(t, userID, ut.UserID, "deactivated token must not be enumerated")
	}
}
