package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"mutabaahAPI/internal/clock"
	"mutabaahAPI/internal/dates"
	"mutabaahAPI/internal/habit"
	"mutabaahAPI/internal/notification"
	"mutabaahAPI/internal/task"
)

type fakeStore struct {
	users     []UserToken
	tasks     map[uuid.UUID][]*task.TaskRecord
	habits    map[uuid.UUID][]*habit.HabitRecord
	usersErr  error
	tasksErr  map[uuid.UUID]error
	habitsErr map[uuid.UUID]error
}

func (f *fakeStore) ListUsersWithToken(ctx context.Context) ([]UserToken, error) {
	return f.users, f.usersErr
}

func (f *fakeStore) ListTasksDueOn(ctx context.Context, userID uuid.UUID, day dates.DayKey) ([]*task.TaskRecord, error) {
	if err := f.tasksErr[userID]; err != nil {
		return nil, err
	}
	var due []*task.TaskRecord
	for _, t := range f.tasks[userID] {
		if t.DueDate == day {
			due = append(due, t)
		}
	}
	return due, nil
}

func (f *fakeStore) ListHabitsByUserID(ctx context.Context, userID uuid.UUID) ([]*habit.HabitRecord, error) {
	if err := f.habitsErr[userID]; err != nil {
		return nil, err
	}
	return f.habits[userID], nil
}

type sentReminder struct {
	token string
	rem   notification.Reminder
}

type fakeSender struct {
	sent       []sentReminder
	resultFor  map[string]notification.DeliveryResult // by token
	defaultRes notification.DeliveryResult
}

func (f *fakeSender) SendReminder(ctx context.Context, token string, rem notification.Reminder) (notification.DeliveryResult, error) {
	f.sent = append(f.sent, sentReminder{token: token, rem: rem})
	if r, ok := f.resultFor[token]; ok {
		if r != notification.Delivered {
			return r, errors.New("send rejected")
		}
		return r, nil
	}
	return f.defaultRes, nil
}

type fakeRegistry struct {
	deactivated []string
}

func (f *fakeRegistry) DeactivateToken(ctx context.Context, token string) error {
	f.deactivated = append(f.deactivated, token)
	return nil
}

// tickAt runs one tick with the trigger instant pinned.
func tickAt(t *testing.T, store *fakeStore, sender *fakeSender, instant time.Time) *ReminderScheduler {
	t.Helper()
	s := NewReminderScheduler(store, sender, clock.At(instant), 2*time.Minute)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return s
}

var tickInstant = time.Date(2024, 3, 10, 9, 46, 30, 0, time.UTC) // bucket [09:46, 09:48)

func TestTickDispatchesDueTask(t *testing.T) {
	user := uuid.New()
	taskID := uuid.New()
	store := &fakeStore{
		users: []UserToken{{UserID: user, Token: "tok-1"}},
		tasks: map[uuid.UUID][]*task.TaskRecord{
			user: {
				{ID: taskID, UserID: user, Title: "pay rent", DueDate: "2024-03-10", DueTime: "09:47"},
				{ID: uuid.New(), UserID: user, Title: "later", DueDate: "2024-03-10", DueTime: "09:48"},
				{ID: uuid.New(), UserID: user, Title: "earlier", DueDate: "2024-03-10", DueTime: "09:45"},
			},
		},
	}
	sender := &fakeSender{}

	tickAt(t, store, sender, tickInstant)

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", len(sender.sent))
	}
	got := sender.sent[0].rem
	if got.Kind != notification.KindTask || got.ID != taskID {
		t.Errorf("wrong reminder dispatched: %+v", got)
	}
	md := got.Metadata()
	if md["type"] != "task" || md["id"] != taskID.String() {
		t.Errorf("metadata must carry the task id: %v", md)
	}
}

func TestTickSkipsCompletedAndUntimedTasks(t *testing.T) {
	user := uuid.New()
	store := &fakeStore{
		users: []UserToken{{UserID: user, Token: "tok-1"}},
		tasks: map[uuid.UUID][]*task.TaskRecord{
			user: {
				{ID: uuid.New(), UserID: user, Title: "done", DueDate: "2024-03-10", DueTime: "09:47", Completed: true},
				{ID: uuid.New(), UserID: user, Title: "no time", DueDate: "2024-03-10"},
			},
		},
	}
	sender := &fakeSender{}

	tickAt(t, store, sender, tickInstant)

	if len(sender.sent) != 0 {
		t.Fatalf("expected no dispatches, got %d", len(sender.sent))
	}
}

func TestHabitReminderSuppressedWhenDoneToday(t *testing.T) {
	user := uuid.New()
	doneID, pendingID := uuid.New(), uuid.New()
	store := &fakeStore{
		users: []UserToken{{UserID: user, Token: "tok-1"}},
		habits: map[uuid.UUID][]*habit.HabitRecord{
			user: {
				{ID: doneID, UserID: user, Name: "fajr", ReminderTime: "09:47",
					CompletedDates: []dates.DayKey{"2024-03-10"}},
				{ID: pendingID, UserID: user, Name: "dhikr", ReminderTime: "09:47"},
			},
		},
	}
	sender := &fakeSender{}

	tickAt(t, store, sender, tickInstant)

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", len(sender.sent))
	}
	if sender.sent[0].rem.ID != pendingID {
		t.Errorf("the uncompleted habit should be reminded, got %s", sender.sent[0].rem.ID)
	}
}

func TestTwoDueTasksProduceTwoDistinctDispatches(t *testing.T) {
	user := uuid.New()
	a, b := uuid.New(), uuid.New()
	store := &fakeStore{
		users: []UserToken{{UserID: user, Token: "tok-1"}},
		tasks: map[uuid.UUID][]*task.TaskRecord{
			user: {
				{ID: a, UserID: user, Title: "first", DueDate: "2024-03-10", DueTime: "09:46"},
				{ID: b, UserID: user, Title: "second", DueDate: "2024-03-10", DueTime: "09:47"},
			},
		},
	}
	sender := &fakeSender{}

	tickAt(t, store, sender, tickInstant)

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(sender.sent))
	}
	ids := map[uuid.UUID]bool{sender.sent[0].rem.ID: true, sender.sent[1].rem.ID: true}
	if !ids[a] || !ids[b] {
		t.Errorf("each task must be dispatched under its own id, got %v", ids)
	}
}

func TestDuplicateQueryMatchDispatchedOnce(t *testing.T) {
	user := uuid.New()
	id := uuid.New()
	dup := &task.TaskRecord{ID: id, UserID: user, Title: "dup", DueDate: "2024-03-10", DueTime: "09:47"}
	store := &fakeStore{
		users: []UserToken{{UserID: user, Token: "tok-1"}},
		tasks: map[uuid.UUID][]*task.TaskRecord{user: {dup, dup}},
	}
	sender := &fakeSender{}

	tickAt(t, store, sender, tickInstant)

	if len(sender.sent) != 1 {
		t.Fatalf("double-matched task must be dispatched once, got %d", len(sender.sent))
	}
}

func TestPerUserFailureDoesNotAbortTick(t *testing.T) {
	broken, healthy := uuid.New(), uuid.New()
	okTask := uuid.New()
	store := &fakeStore{
		users: []UserToken{
			{UserID: broken, Token: "tok-broken"},
			{UserID: healthy, Token: "tok-ok"},
		},
		tasksErr: map[uuid.UUID]error{broken: errors.New("fetch blew up")},
		tasks: map[uuid.UUID][]*task.TaskRecord{
			healthy: {{ID: okTask, UserID: healthy, Title: "still works", DueDate: "2024-03-10", DueTime: "09:47"}},
		},
	}
	sender := &fakeSender{}

	tickAt(t, store, sender, tickInstant)

	if len(sender.sent) != 1 || sender.sent[0].rem.ID != okTask {
		t.Fatalf("healthy user must still be processed, sent=%v", sender.sent)
	}
}

func TestHabitsStillCheckedWhenTaskFetchFails(t *testing.T) {
	user := uuid.New()
	habitID := uuid.New()
	store := &fakeStore{
		users:    []UserToken{{UserID: user, Token: "tok-1"}},
		tasksErr: map[uuid.UUID]error{user: errors.New("task query down")},
		habits: map[uuid.UUID][]*habit.HabitRecord{
			user: {{ID: habitID, UserID: user, Name: "witr", ReminderTime: "09:47"}},
		},
	}
	sender := &fakeSender{}

	tickAt(t, store, sender, tickInstant)

	if len(sender.sent) != 1 || sender.sent[0].rem.ID != habitID {
		t.Fatalf("habit check is independent of the task query, sent=%v", sender.sent)
	}
}

func TestTopLevelEnumerationFailureFailsTick(t *testing.T) {
	store := &fakeStore{usersErr: errors.New("db unreachable")}
	s := NewReminderScheduler(store, &fakeSender{}, clock.At(tickInstant), 2*time.Minute)

	if err := s.Tick(context.Background()); err == nil {
		t.Fatal("user enumeration failure must fail the whole tick")
	}
}

func TestInvalidTokenIsNonFatalAndDeactivated(t *testing.T) {
	badUser, goodUser := uuid.New(), uuid.New()
	goodTask := uuid.New()
	store := &fakeStore{
		users: []UserToken{
			{UserID: badUser, Token: "tok-dead"},
			{UserID: goodUser, Token: "tok-live"},
		},
		habits: map[uuid.UUID][]*habit.HabitRecord{
			badUser: {{ID: uuid.New(), UserID: badUser, Name: "tahajjud", ReminderTime: "09:47"}},
		},
		tasks: map[uuid.UUID][]*task.TaskRecord{
			goodUser: {{ID: goodTask, UserID: goodUser, Title: "ok", DueDate: "2024-03-10", DueTime: "09:47"}},
		},
	}
	sender := &fakeSender{resultFor: map[string]notification.DeliveryResult{"tok-dead": notification.InvalidToken}}
	registry := &fakeRegistry{}

	s := NewReminderScheduler(store, sender, clock.At(tickInstant), 2*time.Minute)
	s.SetTokenRegistry(registry)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("invalid token must not fail the tick: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("both users attempted, got %d sends", len(sender.sent))
	}
	if len(registry.deactivated) != 1 || registry.deactivated[0] != "tok-dead" {
		t.Errorf("dead token should be deactivated, got %v", registry.deactivated)
	}
}

func TestLeaseHeldSkipsTick(t *testing.T) {
	user := uuid.New()
	store := &fakeStore{
		users: []UserToken{{UserID: user, Token: "tok-1"}},
		tasks: map[uuid.UUID][]*task.TaskRecord{
			user: {{ID: uuid.New(), UserID: user, Title: "due", DueDate: "2024-03-10", DueTime: "09:47"}},
		},
	}
	sender := &fakeSender{}
	s := NewReminderScheduler(store, sender, clock.At(tickInstant), 2*time.Minute)
	s.SetLease(heldLease{})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("held lease skips quietly: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("skipped tick must not dispatch, got %d", len(sender.sent))
	}
}

type heldLease struct{}

func (heldLease) TryAcquire(ctx context.Context) (func(), bool, error) { return nil, false, nil }

func TestBucketBoundariesAcrossTicks(t *testing.T) {
	// A 09:47 task is matched by the 09:46 tick and by no neighbor.
	user := uuid.New()
	mk := func() *fakeStore {
		return &fakeStore{
			users: []UserToken{{UserID: user, Token: "tok-1"}},
			tasks: map[uuid.UUID][]*task.TaskRecord{
				user: {{ID: uuid.New(), UserID: user, Title: "t", DueDate: "2024-03-10", DueTime: "09:47"}},
			},
		}
	}

	for _, tc := range []struct {
		minute int
		want   int
	}{
		{44, 0}, {46, 1}, {48, 0},
	} {
		sender := &fakeSender{}
		instant := time.Date(2024, 3, 10, 9, tc.minute, 0, 0, time.UTC)
		tickAt(t, mk(), sender, instant)
		if len(sender.sent) != tc.want {
			t.Errorf("tick at 09:%02d dispatched %d, want %d", tc.minute, len(sender.sent), tc.want)
		}
	}
}

func TestMidnightWrapTick(t *testing.T) {
	user := uuid.New()
	lateID := uuid.New()
	store := &fakeStore{
		users: []UserToken{{UserID: user, Token: "tok-1"}},
		tasks: map[uuid.UUID][]*task.TaskRecord{
			user: {
				{ID: lateID, UserID: user, Title: "night", DueDate: "2024-03-10", DueTime: "23:59"},
				{ID: uuid.New(), UserID: user, Title: "tomorrow", DueDate: "2024-03-11", DueTime: "00:00"},
			},
		},
	}
	sender := &fakeSender{}

	tickAt(t, store, sender, time.Date(2024, 3, 10, 23, 58, 0, 0, time.UTC))

	if len(sender.sent) != 1 || sender.sent[0].rem.ID != lateID {
		t.Fatalf("the [23:58, 24:00) tick owns 23:59 only, sent=%v", sender.sent)
	}
}
