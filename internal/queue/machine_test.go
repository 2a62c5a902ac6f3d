package queue

import (
	"errors"
	"testing"
	"time"

	"qms/queue-core/internal/models"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action Action
		from   models.Status
		valid  bool
	}{
		{ActionCall, models.StatusWaiting, true},
		{ActionCall, models.StatusSkipped, true},
		{ActionCall, models.StatusCalled, false},
		{ActionRecall, models.StatusCalled, true},
		{ActionRecall, models.StatusProcessing, false},
		{ActionStart, models.StatusCalled, true},
		{ActionStart, models.StatusWaiting, false},
		{ActionComplete, models.StatusProcessing, true},
		{ActionComplete, models.StatusCalled, false},
		{ActionSkip, models.StatusCalled, true},
		{ActionSkip, models.StatusProcessing, false},
		{ActionCancel, models.StatusSkipped, true},
		{ActionCancel, models.StatusCompleted, false},
		{ActionTransfer, models.StatusProcessing, true},
		{ActionTransfer, models.StatusCancelled, false},
		{Action("unknown"), models.StatusWaiting, false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		prefix string
		seq    int
		want   string
	}{
		{"A", 1, "A001"},
		{"B", 42, "B042"},
		{"A", 999, "A999"},
		{"A", 1000, "A1000"},
	}
	for _, tt := range cases {
		if got := FormatNumber(tt.prefix, tt.seq); got != tt.want {
			t.Fatalf("FormatNumber(%q, %d)=%q, want %q", tt.prefix, tt.seq, got, tt.want)
		}
	}
}

func openAllWeek() models.Schedule {
	schedule := models.Schedule{}
	for day := time.Sunday; day <= time.Saturday; day++ {
		schedule[day] = models.Window{Opens: "00:00", Closes: "24:00", IsActive: true}
	}
	return schedule
}

func TestCheckAccepting(t *testing.T) {
	monday := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	office := models.Schedule{time.Monday: {Opens: "08:00", Closes: "15:00", IsActive: true}}

	cases := []struct {
		name  string
		svc   models.Service
		count int
		at    time.Time
		ok    bool
	}{
		{"open", models.Service{IsActive: true, MaxDailyQueue: 10, Schedule: office}, 3, monday, true},
		{"no cap", models.Service{IsActive: true, Schedule: office}, 5000, monday, true},
		{"inactive", models.Service{IsActive: false, Schedule: office}, 0, monday, false},
		{"full", models.Service{IsActive: true, MaxDailyQueue: 2, Schedule: office}, 2, monday, false},
		{"after hours", models.Service{IsActive: true, Schedule: office}, 0, monday.Add(6 * time.Hour), false},
		{"no window", models.Service{IsActive: true, Schedule: office}, 0, monday.AddDate(0, 0, 1), false},
	}
	for _, tt := range cases {
		err := CheckAccepting(tt.svc, tt.count, tt.at)
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrServiceClosed) {
			t.Fatalf("%s: expected ErrServiceClosed, got %v", tt.name, err)
		}
	}
}

func TestCallRules(t *testing.T) {
	now := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	officer := models.Officer{OfficerID: "o1", ServiceID: "svc-a", IsActive: true, IsAvailable: true, MaxConcurrent: 1}
	other := "o2"

	waiting := models.Ticket{TicketID: "t1", ServiceID: "svc-a", Status: models.StatusWaiting}
	tr, err := Call(waiting, officer, 0, now)
	if err != nil {
		t.Fatalf("call waiting: %v", err)
	}
	if tr.Ticket.Status != models.StatusCalled || !tr.Ticket.HeldBy("o1") || !tr.Ticket.CalledAt.Equal(now) {
		t.Fatalf("unexpected called ticket %+v", tr.Ticket)
	}
	if tr.Log.FromStatus == nil || *tr.Log.FromStatus != models.StatusWaiting || tr.Log.ToStatus != models.StatusCalled {
		t.Fatalf("unexpected log %+v", tr.Log)
	}

	if _, err := Call(models.Ticket{ServiceID: "svc-b", Status: models.StatusWaiting}, officer, 0, now); !errors.Is(err, ErrOfficerMismatch) {
		t.Fatalf("expected ErrOfficerMismatch, got %v", err)
	}
	taken := models.Ticket{ServiceID: "svc-a", Status: models.StatusCalled, OfficerID: &other}
	if _, err := Call(taken, officer, 0, now); !errors.Is(err, ErrTicketTaken) {
		t.Fatalf("expected ErrTicketTaken, got %v", err)
	}
	done := models.Ticket{ServiceID: "svc-a", Status: models.StatusCompleted}
	if _, err := Call(done, officer, 0, now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if _, err := Call(waiting, officer, 1, now); !errors.Is(err, ErrOfficerUnavailable) {
		t.Fatalf("expected ErrOfficerUnavailable at capacity, got %v", err)
	}
	away := officer
	away.IsAvailable = false
	if _, err := Call(waiting, away, 0, now); !errors.Is(err, ErrOfficerUnavailable) {
		t.Fatalf("expected ErrOfficerUnavailable when away, got %v", err)
	}
}

func TestHeldActionsCheckStateBeforeOwner(t *testing.T) {
	now := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	owner := "o1"
	called := models.Ticket{TicketID: "t1", Status: models.StatusCalled, OfficerID: &owner}

	if _, err := Complete(called, owner, "", now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete from called: expected ErrInvalidState, got %v", err)
	}
	if _, err := Complete(called, "o2", "", now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete from called by stranger: expected ErrInvalidState, got %v", err)
	}
	if _, err := Start(called, "o2", now); !errors.Is(err, ErrOfficerMismatch) {
		t.Fatalf("start by stranger: expected ErrOfficerMismatch, got %v", err)
	}

	started, err := Start(called, owner, now)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	finished, err := Complete(started.Ticket, owner, "done", now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if d, ok := finished.Ticket.ServiceTime(); !ok || d != 5*time.Minute {
		t.Fatalf("unexpected service time %v %v", d, ok)
	}
}

func TestRecallKeepsStatus(t *testing.T) {
	owner := "o1"
	first := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	ticket := models.Ticket{TicketID: "t1", Status: models.StatusCalled, OfficerID: &owner, CalledAt: &first}

	tr, err := Recall(ticket, owner, first.Add(time.Minute))
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if tr.Ticket.Status != models.StatusCalled || !tr.Ticket.CalledAt.Equal(first.Add(time.Minute)) {
		t.Fatalf("unexpected recalled ticket %+v", tr.Ticket)
	}
	if tr.Log.Notes != "recall" || *tr.Log.FromStatus != models.StatusCalled {
		t.Fatalf("unexpected recall log %+v", tr.Log)
	}
}

func TestCancelWithoutOfficer(t *testing.T) {
	now := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	tr, err := Cancel(models.Ticket{TicketID: "t1", Status: models.StatusWaiting}, "", "changed my mind", now)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if tr.Log.OfficerID != nil {
		t.Fatalf("expected nil actor, got %v", *tr.Log.OfficerID)
	}
	if _, err := Cancel(tr.Ticket, "", "", now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on cancelled ticket, got %v", err)
	}
}

func TestApproachingCandidates(t *testing.T) {
	stamp := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	var waiting []models.Ticket
	for i := 0; i < 9; i++ {
		waiting = append(waiting, models.Ticket{TicketID: string(rune('a' + i))})
	}
	waiting[4].NotifiedApproachingAt = &stamp

	got := ApproachingCandidates(waiting)
	var ids []string
	for _, ticket := range got {
		ids = append(ids, ticket.TicketID)
	}
	want := []string{"c", "d", "f", "g"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}

	if got := ApproachingCandidates(waiting[:2]); len(got) != 0 {
		t.Fatalf("expected no candidates for a short queue, got %d", len(got))
	}
}
