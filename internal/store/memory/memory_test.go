package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = models.Day{
	Key:   "2026-10-12",
	Start: time.Date(2026, 10, 11, 17, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 10, 12, 17, 0, 0, 0, time.UTC),
}

func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	s.AddService(models.Service{ServiceID: "svc", Prefix: "A", IsActive: true})
	base := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	s.PutTicket(models.Ticket{TicketID: "t1", ServiceID: "svc", Number: "A001", DayKey: testDay.Key, Status: models.StatusWaiting, CreatedAt: base})
	s.PutTicket(models.Ticket{TicketID: "t2", ServiceID: "svc", Number: "A002", DayKey: testDay.Key, Status: models.StatusWaiting, CreatedAt: base.Add(time.Minute), IsPriority: true})
	s.PutTicket(models.Ticket{TicketID: "old", ServiceID: "svc", Number: "A001", DayKey: "2026-10-11", Status: models.StatusWaiting, CreatedAt: base.AddDate(0, 0, -1)})
	return s
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ticket, err := tx.LockTicket(ctx, "t1")
		if err != nil {
			return err
		}
		ticket.Status = models.StatusCancelled
		if err := tx.UpdateTicket(ctx, ticket); err != nil {
			return err
		}
		if err := tx.InsertStatusLog(ctx, models.StatusLog{TicketID: "t1", ToStatus: models.StatusCancelled}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	ticket, err := s.GetTicket(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, ticket.Status)
	logs, err := s.ListStatusLogs(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestLockNextWaitingOrder(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		next, found, err := tx.LockNextWaiting(ctx, "svc", testDay)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "t2", next.TicketID)

		count, err := tx.CountTickets(ctx, "svc", testDay)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		top, err := tx.NextWaiting(ctx, "svc", testDay, 1)
		require.NoError(t, err)
		assert.Len(t, top, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestTxReadsForEstimate(t *testing.T) {
	s := seed(t)
	s.AddOfficer(models.Officer{OfficerID: "o1", ServiceID: "svc", IsActive: true, IsAvailable: true})
	s.AddOfficer(models.Officer{OfficerID: "o2", ServiceID: "svc", IsActive: true})
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		all, err := tx.NextWaiting(ctx, "svc", testDay, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		officers, err := tx.CountAvailableOfficers(ctx, "svc")
		require.NoError(t, err)
		assert.Equal(t, 1, officers)
		return nil
	})
	require.NoError(t, err)
}

func TestDailyStatsCountsTheDayOnly(t *testing.T) {
	s := seed(t)
	called := time.Date(2026, 10, 12, 2, 10, 0, 0, time.UTC)
	completed := called.Add(5 * time.Minute)
	s.PutTicket(models.Ticket{TicketID: "t3", ServiceID: "svc", Number: "A003", DayKey: testDay.Key, Status: models.StatusCompleted,
		CreatedAt: time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC), CalledAt: &called, StartedAt: &called, CompletedAt: &completed})
	s.PutTicket(models.Ticket{TicketID: "b1", ServiceID: "other", Number: "B001", DayKey: testDay.Key, Status: models.StatusWaiting,
		CreatedAt: time.Date(2026, 10, 12, 3, 0, 0, 0, time.UTC)})

	stats, err := s.DailyStats(context.Background(), testDay, "svc")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[models.StatusWaiting])
	assert.Equal(t, 1, stats.ByStatus[models.StatusCompleted])
	require.NotNil(t, stats.AvgWaitMinutes)
	assert.InDelta(t, 10.0, *stats.AvgWaitMinutes, 0.001)
	require.NotNil(t, stats.AvgServiceMinutes)
	assert.InDelta(t, 5.0, *stats.AvgServiceMinutes, 0.001)

	all, err := s.DailyStats(context.Background(), testDay, "")
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
}

func TestInsertRejectsDuplicateNumber(t *testing.T) {
	s := seed(t)
	err := s.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertTicket(ctx, models.Ticket{TicketID: "t3", ServiceID: "svc", Number: "A002", DayKey: testDay.Key})
	})
	assert.ErrorIs(t, err, store.ErrDuplicateNumber)
}

func TestNotificationGuards(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 12, 3, 0, 0, 0, time.UTC)

	won, err := s.MarkCalledNotified(ctx, "t1", at)
	require.NoError(t, err)
	assert.True(t, won)
	won, err = s.MarkCalledNotified(ctx, "t1", at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, won)

	ticket, err := s.GetTicket(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, ticket.NotifiedCalledAt)
	assert.Equal(t, at, *ticket.NotifiedCalledAt)

	_, err = s.MarkApproachingNotified(ctx, "missing", at)
	assert.ErrorIs(t, err, store.ErrTicketNotFound)
}

func TestCanceledContextAborts(t *testing.T) {
	s := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.InTx(ctx, func(context.Context, store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
