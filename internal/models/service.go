package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Service struct {
	ServiceID     string   `json:"service_id"`
	Name          string   `json:"name"`
	Prefix        string   `json:"prefix"`
	AverageTime   int      `json:"average_time"`
	MaxDailyQueue int      `json:"max_daily_queue"`
	IsActive      bool     `json:"is_active"`
	Schedule      Schedule `json:"schedule"`
}

// Schedule maps a weekday to its opening window.
type Schedule map[time.Weekday]Window

type Window struct {
	Opens    string `json:"opens"`
	Closes   string `json:"closes"`
	IsActive bool   `json:"is_active"`
}

// Contains reports whether the wall clock of at falls inside [Opens, Closes).
func (w Window) Contains(at time.Time) bool {
	if !w.IsActive {
		return false
	}
	opens, err := parseClock(w.Opens)
	if err != nil {
		return false
	}
	closes, err := parseClock(w.Closes)
	if err != nil {
		return false
	}
	minute := at.Hour()*60 + at.Minute()
	return minute >= opens && minute < closes
}

// OpenAt expects at to already be in the service's local zone.
func (s Schedule) OpenAt(at time.Time) bool {
	window, ok := s[at.Weekday()]
	if !ok {
		return false
	}
	return window.Contains(at)
}

func parseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	return hour*60 + minute, nil
}

type Officer struct {
	OfficerID     string `json:"officer_id"`
	Name          string `json:"name"`
	ServiceID     string `json:"service_id"`
	CounterNumber string `json:"counter_number"`
	IsActive      bool   `json:"is_active"`
	IsAvailable   bool   `json:"is_available"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// Accepts applies the counter capacity rule given the officer's Processing load.
func (o Officer) Accepts(load int) bool {
	limit := o.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	return o.IsActive && o.IsAvailable && load < limit
}

// Day is one calendar partition of the queue in the configured zone.
type Day struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (d Day) Contains(at time.Time) bool {
	return !at.Before(d.Start) && at.Before(d.End)
}

type DailyStats struct {
	Day               string         `json:"day"`
	ServiceID         string         `json:"service_id,omitempty"`
	Total             int            `json:"total"`
	ByStatus          map[Status]int `json:"by_status"`
	AvgWaitMinutes    *float64       `json:"avg_wait_minutes"`
	AvgServiceMinutes *float64       `json:"avg_service_minutes"`
}
