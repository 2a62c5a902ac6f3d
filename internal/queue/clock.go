package queue

import (
	"time"

	"qms/queue-core/internal/models"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Calendar partitions instants into queue days in a fixed zone.
type Calendar struct {
	Location *time.Location
}

func NewCalendar(name string) (Calendar, error) {
	if name == "" {
		return Calendar{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{Location: loc}, nil
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calendar) Local(at time.Time) time.Time {
	return at.In(c.location())
}

func (c Calendar) DayOf(at time.Time) models.Day {
	local := at.In(c.location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location())
	return models.Day{
		Key:   start.Format("2006-01-02"),
		Start: start.UTC(),
		End:   start.AddDate(0, 0, 1).UTC(),
	}
}
