package models

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	for _, status := range Statuses {
		got, err := ParseStatus(string(status))
		if err != nil || got != status {
			t.Fatalf("ParseStatus(%q) = %q, %v", status, got, err)
		}
	}
	if _, err := ParseStatus("hold"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestStatusClasses(t *testing.T) {
	if !StatusCalled.IsActive() || StatusSkipped.IsActive() {
		t.Fatal("unexpected active classification")
	}
	if !StatusCancelled.IsTerminal() || StatusSkipped.IsTerminal() {
		t.Fatal("skipped must stay re-callable")
	}
	if StatusProcessing.Label() != "Sedang Dilayani" || StatusCompleted.Color() != "green" {
		t.Fatal("unexpected presentation")
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{Opens: "08:00", Closes: "15:00", IsActive: true}
	at := func(h, m int) time.Time { return time.Date(2026, 10, 12, h, m, 0, 0, time.UTC) }

	if w.Contains(at(7, 59)) || !w.Contains(at(8, 0)) || !w.Contains(at(14, 59)) || w.Contains(at(15, 0)) {
		t.Fatal("window bounds must be [opens, closes)")
	}
	w.IsActive = false
	if w.Contains(at(9, 0)) {
		t.Fatal("inactive window must be closed")
	}
	if (Window{Opens: "8", Closes: "15:00", IsActive: true}).Contains(at(9, 0)) {
		t.Fatal("malformed clock must be closed")
	}
}

func TestTicketOrdering(t *testing.T) {
	base := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	regular := Ticket{TicketID: "a", CreatedAt: base}
	priority := Ticket{TicketID: "b", CreatedAt: base.Add(time.Minute), IsPriority: true}
	later := Ticket{TicketID: "c", CreatedAt: base.Add(2 * time.Minute)}

	if !priority.Before(regular) || !regular.Before(later) || later.Before(regular) {
		t.Fatal("priority tier first, then registration time")
	}
}

func TestOfficerAccepts(t *testing.T) {
	o := Officer{IsActive: true, IsAvailable: true}
	if !o.Accepts(0) || o.Accepts(1) {
		t.Fatal("zero capacity defaults to one")
	}
	o.MaxConcurrent = 2
	if !o.Accepts(1) || o.Accepts(2) {
		t.Fatal("capacity not applied")
	}
	o.IsAvailable = false
	if o.Accepts(0) {
		t.Fatal("unavailable officer accepted")
	}
}
