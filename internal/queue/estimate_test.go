package queue

import (
	"testing"
	"time"

	"qms/queue-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateWaitMinutes(t *testing.T) {
	assert.Equal(t, 30, EstimateWaitMinutes(5, 12, 2))
	assert.Equal(t, 20, EstimateWaitMinutes(3, 20, 3))
	assert.Equal(t, 7, EstimateWaitMinutes(1, 13, 2))
	assert.Equal(t, 60, EstimateWaitMinutes(5, 12, 0))
	assert.Equal(t, 0, EstimateWaitMinutes(0, 12, 2))
}

func TestPositionFollowsCallOrder(t *testing.T) {
	base := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	a := models.Ticket{TicketID: "a", ServiceID: "s", Status: models.StatusWaiting, CreatedAt: base}
	b := models.Ticket{TicketID: "b", ServiceID: "s", Status: models.StatusWaiting, CreatedAt: base.Add(time.Minute), IsPriority: true}
	c := models.Ticket{TicketID: "c", ServiceID: "s", Status: models.StatusWaiting, CreatedAt: base.Add(2 * time.Minute)}
	waiting := []models.Ticket{c, a, b}

	assert.Equal(t, 1, Position(b, waiting))
	assert.Equal(t, 2, Position(a, waiting))
	assert.Equal(t, 3, Position(c, waiting))

	called := a
	called.Status = models.StatusCalled
	assert.Equal(t, 0, Position(called, waiting))

	SortWaiting(waiting)
	assert.Equal(t, []string{"b", "a", "c"}, []string{waiting[0].TicketID, waiting[1].TicketID, waiting[2].TicketID})
}

func TestSummarize(t *testing.T) {
	cal := Calendar{Location: time.UTC}
	base := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	day := cal.DayOf(base)
	called := base.Add(10 * time.Minute)
	started := called.Add(time.Minute)
	completed := started.Add(6 * time.Minute)

	tickets := []models.Ticket{
		{TicketID: "1", ServiceID: "s", Status: models.StatusCompleted, CreatedAt: base, CalledAt: &called, StartedAt: &started, CompletedAt: &completed},
		{TicketID: "2", ServiceID: "s", Status: models.StatusWaiting, CreatedAt: base},
		{TicketID: "3", ServiceID: "other", Status: models.StatusWaiting, CreatedAt: base},
		{TicketID: "4", ServiceID: "s", Status: models.StatusWaiting, CreatedAt: base.AddDate(0, 0, -1)},
	}

	stats := Summarize(day, "s", tickets)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.StatusCompleted])
	assert.Equal(t, 1, stats.ByStatus[models.StatusWaiting])
	assert.Equal(t, 0, stats.ByStatus[models.StatusSkipped])
	require.NotNil(t, stats.AvgWaitMinutes)
	require.NotNil(t, stats.AvgServiceMinutes)
	assert.InDelta(t, 10.0, *stats.AvgWaitMinutes, 0.001)
	assert.InDelta(t, 6.0, *stats.AvgServiceMinutes, 0.001)

	all := Summarize(day, "", tickets)
	assert.Equal(t, 3, all.Total)

	empty := Summarize(day, "s", tickets[1:2])
	assert.Nil(t, empty.AvgWaitMinutes)
	assert.Nil(t, empty.AvgServiceMinutes)
}

func TestCalendarDayBoundaries(t *testing.T) {
	cal, err := NewCalendar("Asia/Jakarta")
	require.NoError(t, err)

	// 23:30 UTC is already the next morning in Jakarta.
	day := cal.DayOf(time.Date(2026, 10, 11, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, "2026-10-12", day.Key)
	assert.Equal(t, time.Date(2026, 10, 11, 17, 0, 0, 0, time.UTC), day.Start)
	assert.Equal(t, time.Date(2026, 10, 12, 17, 0, 0, 0, time.UTC), day.End)
	assert.True(t, day.Contains(day.Start))
	assert.False(t, day.Contains(day.End))
}
