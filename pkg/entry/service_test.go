package entry_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"micecheckin/pkg/apperr"
	"micecheckin/pkg/audit"
	"micecheckin/pkg/entry"
	"micecheckin/pkg/user"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) FindByID(ctx context.Context, id int64) (*user.User, error) {
	args := m.Called(id)
	if u := args.Get(0); u != nil {
		return u.(*user.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(email)
	if u := args.Get(0); u != nil {
		return u.(*user.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) CountByRole(ctx context.Context, role string) (int, error) {
	args := m.Called(role)
	return args.Int(0), args.Error(1)
}

type collectSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *collectSink) Record(_ context.Context, ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *collectSink) outcomes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Outcome)
	}
	return out
}

// brokenRepo fails every call with err.
type brokenRepo struct{ err error }

func (r brokenRepo) Create(context.Context, *entry.Record) error {
	return r.err
}

func (r brokenRepo) GetByUser(context.Context, int64) (*entry.Record, error) {
	return nil, r.err
}

func (r brokenRepo) Count(context.Context) (int, error) {
	return 0, r.err
}

func (r brokenRepo) List(context.Context) ([]entry.Entry, error) {
	return nil, r.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	admin    = entry.Operator{ID: 1, Email: "admin@mice.io"}
	attendee = &user.User{ID: 9, Email: "choi@mice.io", Name: "Choi", Role: user.RoleAttendee}
	speaker  = &user.User{ID: 20, Email: "park@mice.io", Name: "Park", Role: user.RoleSpeaker}
)

type fixture struct {
	svc    *entry.Service
	users  *mockUsers
	sink   *collectSink
	clock  *clock
	sleeps []time.Duration
	mu     sync.Mutex
}

func newFixture(t *testing.T, repo entry.Repository) *fixture {
	f := &fixture{
		users: new(mockUsers),
		sink:  &collectSink{},
		clock: &clock{now: time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)},
	}
	if repo == nil {
		repo = entry.NewMySQLRepo(setupTestDB(t), time.Second)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f.svc = entry.NewService(repo, f.users, f.sink, 100*time.Millisecond, logger)
	f.svc.Now = f.clock.Now
	f.svc.Sleep = func(_ context.Context, d time.Duration) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sleeps = append(f.sleeps, d)
	}
	return f
}

func TestCheckIn_FirstThenRepeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.users.On("FindByID", int64(9)).Return(attendee, nil)

	first, err := f.svc.CheckIn(ctx, "9", admin)
	require.NoError(t, err)
	assert.False(t, first.AlreadyCheckedIn)
	assert.Equal(t, "Check-in successful", first.Message)
	assert.Equal(t, int64(9), first.User.ID)

	f.clock.Advance(time.Hour)

	second, err := f.svc.CheckIn(ctx, " 9 ", admin)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCheckedIn)
	assert.Equal(t, "Already checked in", second.Message)
	assert.True(t, second.EntryTime.Equal(first.EntryTime), "original entry time is kept")

	assert.Equal(t, []string{audit.OutcomeCheckedIn, audit.OutcomeAlreadyCheckedIn}, f.sink.outcomes())
	for _, ev := range f.sink.events {
		assert.Equal(t, admin.ID, ev.OperatorID)
		assert.Equal(t, admin.Email, ev.OperatorEmail)
		require.NotNil(t, ev.UserID)
		assert.Equal(t, int64(9), *ev.UserID)
	}
}

func TestCheckIn_RepeatReturnsStoredTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.users.On("FindByID", int64(9)).Return(attendee, nil)
	kst := time.FixedZone("KST", 9*60*60)
	f.clock.now = time.Date(2025, 5, 1, 17, 30, 0, 886737685, kst)

	first, err := f.svc.CheckIn(ctx, "9", admin)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.svc.CheckIn(ctx, "9", admin)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first.EntryTime)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second.EntryTime)
	require.NoError(t, err)
	assert.Equal(t, `"2025-05-01T08:30:00Z"`, string(firstJSON))
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestCheckIn_InvalidCodes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		code    string
		setup   func(*mockUsers)
		outcome string
	}{
		{
			name:    "speaker",
			code:    "20",
			setup:   func(m *mockUsers) { m.On("FindByID", int64(20)).Return(speaker, nil) },
			outcome: audit.OutcomeWrongRole,
		},
		{
			name:    "unknown user",
			code:    "404",
			setup:   func(m *mockUsers) { m.On("FindByID", int64(404)).Return(nil, user.ErrNotFound) },
			outcome: audit.OutcomeNotFound,
		},
		{
			name:    "not a number",
			code:    "abc",
			setup:   func(*mockUsers) {},
			outcome: audit.OutcomeInvalidCode,
		},
		{
			name:    "negative",
			code:    "-3",
			setup:   func(*mockUsers) {},
			outcome: audit.OutcomeInvalidCode,
		},
	}

	var (
		statuses []int
		messages []string
	)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t, nil)
			test.setup(f.users)

			res, err := f.svc.CheckIn(ctx, test.code, admin)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, apperr.ErrInvalidCode)
			assert.Equal(t, []string{test.outcome}, f.sink.outcomes())

			status, msg := apperr.Status(err)
			statuses = append(statuses, status)
			messages = append(messages, msg)
		})
	}

	for i := range statuses {
		assert.Equal(t, 400, statuses[i])
		assert.Equal(t, "Invalid QR code", messages[i])
	}
}

func TestCheckIn_EmptyCode(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CheckIn(context.Background(), "  ", admin)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Empty(t, f.sink.outcomes())
}

func TestCheckIn_StorageFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("user lookup", func(t *testing.T) {
		f := newFixture(t, nil)
		f.users.On("FindByID", int64(9)).Return(nil, errors.New("db down"))

		_, err := f.svc.CheckIn(ctx, "9", admin)
		assert.ErrorIs(t, err, apperr.ErrTransient)
		assert.Equal(t, []string{audit.OutcomeError}, f.sink.outcomes())
	})

	t.Run("insert", func(t *testing.T) {
		f := newFixture(t, brokenRepo{err: errors.New("db down")})
		f.users.On("FindByID", int64(9)).Return(attendee, nil)

		_, err := f.svc.CheckIn(ctx, "9", admin)
		assert.ErrorIs(t, err, apperr.ErrTransient)
	})

	t.Run("audit failure does not fail check-in", func(t *testing.T) {
		f := newFixture(t, nil)
		f.sink.err = errors.New("mongo down")
		f.users.On("FindByID", int64(9)).Return(attendee, nil)

		res, err := f.svc.CheckIn(ctx, "9", admin)
		require.NoError(t, err)
		assert.False(t, res.AlreadyCheckedIn)
	})
}

func TestCheckIn_PadsToMinimumDuration(t *testing.T) {
	ctx := context.Background()

	t.Run("every branch sleeps the remainder", func(t *testing.T) {
		f := newFixture(t, nil)
		f.users.On("FindByID", int64(9)).Return(attendee, nil)
		f.users.On("FindByID", int64(20)).Return(speaker, nil)
		f.users.On("FindByID", int64(404)).Return(nil, user.ErrNotFound)

		for _, code := range []string{"9", "9", "20", "404", "abc", ""} {
			_, _ = f.svc.CheckIn(ctx, code, admin)
		}

		require.Len(t, f.sleeps, 6)
		for _, d := range f.sleeps {
			assert.Equal(t, 100*time.Millisecond, d)
		}
	})

	t.Run("slow path is not padded further", func(t *testing.T) {
		f := newFixture(t, nil)
		f.users.On("FindByID", int64(9)).
			Run(func(mock.Arguments) { f.clock.Advance(150 * time.Millisecond) }).
			Return(attendee, nil)

		_, err := f.svc.CheckIn(ctx, "9", admin)
		require.NoError(t, err)
		assert.Empty(t, f.sleeps)
	})

	t.Run("partial remainder", func(t *testing.T) {
		f := newFixture(t, nil)
		f.users.On("FindByID", int64(404)).
			Run(func(mock.Arguments) { f.clock.Advance(30 * time.Millisecond) }).
			Return(nil, user.ErrNotFound)

		_, _ = f.svc.CheckIn(ctx, "404", admin)
		assert.Equal(t, []time.Duration{70 * time.Millisecond}, f.sleeps)
	})
}

func TestReject(t *testing.T) {
	f := newFixture(t, nil)
	bad := apperr.New(apperr.ErrBadRequest, "Invalid JSON payload", nil)

	err := f.svc.Reject(context.Background(), bad)

	assert.Same(t, bad, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, f.sleeps)
	assert.Empty(t, f.sink.outcomes())
}

func TestCheckIn_RealSleepHonoursContext(t *testing.T) {
	users := new(mockUsers)
	users.On("FindByID", int64(404)).Return(nil, user.ErrNotFound)
	svc := entry.NewService(brokenRepo{}, users, &collectSink{}, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.CheckIn(ctx, "404", admin)
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCheckIn_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.users.On("FindByID", int64(9)).Return(attendee, nil)

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		fresh   int
		times   []time.Time
		failure []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.CheckIn(ctx, "9", admin)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failure = append(failure, err)
				return
			}
			if !res.AlreadyCheckedIn {
				fresh++
			}
			times = append(times, res.EntryTime)
		}()
	}
	wg.Wait()

	assert.Empty(t, failure)
	assert.Equal(t, 1, fresh)
	require.Len(t, times, n)
	for _, tm := range times {
		assert.True(t, tm.Equal(times[0]))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	t.Run("rate", func(t *testing.T) {
		f := newFixture(t, nil)
		f.users.On("FindByID", int64(9)).Return(attendee, nil)
		f.users.On("CountByRole", user.RoleAttendee).Return(3, nil)

		_, err := f.svc.CheckIn(ctx, "9", admin)
		require.NoError(t, err)

		stats, err := f.svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalEntries)
		assert.Equal(t, 3, stats.TotalAttendees)
		assert.Equal(t, "33.33", stats.CheckInRate)
		require.Len(t, stats.Entries, 1)
		assert.Equal(t, "Choi", stats.Entries[0].User.Name)
	})

	t.Run("no attendees", func(t *testing.T) {
		f := newFixture(t, nil)
		f.users.On("CountByRole", user.RoleAttendee).Return(0, nil)

		stats, err := f.svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, "0.00", stats.CheckInRate)
		assert.NotNil(t, stats.Entries)
	})

	t.Run("failure", func(t *testing.T) {
		f := newFixture(t, brokenRepo{err: errors.New("db down")})

		_, err := f.svc.Stats(ctx)
		assert.ErrorIs(t, err, apperr.ErrTransient)
	})
}
