package queue

import (
	"strings"
	"time"

	"qms/queue-core/internal/models"
)

type Action string

const (
	ActionRegister Action = "register"
	ActionCall     Action = "call"
	ActionRecall   Action = "recall"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionSkip     Action = "skip"
	ActionCancel   Action = "cancel"
	ActionTransfer Action = "transfer"
)

var transitionMap = map[Action][]models.Status{
	ActionCall:     {models.StatusWaiting, models.StatusSkipped},
	ActionRecall:   {models.StatusCalled},
	ActionStart:    {models.StatusCalled},
	ActionComplete: {models.StatusProcessing},
	ActionSkip:     {models.StatusCalled},
	ActionCancel:   {models.StatusWaiting, models.StatusCalled, models.StatusProcessing, models.StatusSkipped},
	ActionTransfer: {models.StatusWaiting, models.StatusCalled, models.StatusProcessing, models.StatusSkipped},
}

func ValidTransition(action Action, from models.Status) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// Transition is the result of applying one action: the new ticket row and
// the audit entry that must be written with it.
type Transition struct {
	Ticket models.Ticket
	Log    models.StatusLog
}

func logEntry(ticket models.Ticket, officerID *string, from *models.Status, notes string, now time.Time) models.StatusLog {
	return models.StatusLog{
		TicketID:   ticket.TicketID,
		OfficerID:  officerID,
		FromStatus: from,
		ToStatus:   ticket.Status,
		Notes:      notes,
		CreatedAt:  now,
	}
}

func statusPtr(status models.Status) *models.Status {
	return &status
}

func timePtr(at time.Time) *time.Time {
	return &at
}

func stringPtr(value string) *string {
	return &value
}

// CheckAccepting applies the registration gate of a service. A non-positive
// MaxDailyQueue means no cap. local must be in the queue's zone.
func CheckAccepting(svc models.Service, todayCount int, local time.Time) error {
	switch {
	case !svc.IsActive:
		return precondition(string(ActionRegister), ErrServiceClosed, "", "service is inactive")
	case svc.MaxDailyQueue > 0 && todayCount >= svc.MaxDailyQueue:
		return precondition(string(ActionRegister), ErrServiceClosed, "", "daily capacity reached")
	case !svc.Schedule.OpenAt(local):
		return precondition(string(ActionRegister), ErrServiceClosed, "", "outside opening hours")
	}
	return nil
}

// Open creates a Waiting ticket holding the seq-th number of the day.
func Open(ticket models.Ticket, svc models.Service, seq int, day models.Day, now time.Time, notes string) Transition {
	ticket.ServiceID = svc.ServiceID
	ticket.Number = FormatNumber(svc.Prefix, seq)
	ticket.DayKey = day.Key
	ticket.Status = models.StatusWaiting
	ticket.OfficerID = nil
	ticket.CreatedAt = now
	ticket.CalledAt = nil
	ticket.StartedAt = nil
	ticket.CompletedAt = nil
	ticket.NotifiedApproachingAt = nil
	ticket.NotifiedCalledAt = nil
	return Transition{Ticket: ticket, Log: logEntry(ticket, nil, nil, notes, now)}
}

func Call(ticket models.Ticket, officer models.Officer, load int, now time.Time) (Transition, error) {
	op := string(ActionCall)
	if ticket.ServiceID != officer.ServiceID {
		return Transition{}, precondition(op, ErrOfficerMismatch, ticket.Status, "officer serves another service")
	}
	if !ValidTransition(ActionCall, ticket.Status) {
		if (ticket.Status == models.StatusCalled || ticket.Status == models.StatusProcessing) && !ticket.HeldBy(officer.OfficerID) {
			return Transition{}, precondition(op, ErrTicketTaken, ticket.Status, "")
		}
		return Transition{}, precondition(op, ErrInvalidState, ticket.Status, "")
	}
	if !officer.Accepts(load) {
		return Transition{}, precondition(op, ErrOfficerUnavailable, ticket.Status, officerRule(officer))
	}
	from := ticket.Status
	ticket.Status = models.StatusCalled
	ticket.OfficerID = stringPtr(officer.OfficerID)
	ticket.CalledAt = timePtr(now)
	return Transition{Ticket: ticket, Log: logEntry(ticket, ticket.OfficerID, statusPtr(from), "", now)}, nil
}

func officerRule(officer models.Officer) string {
	var reasons []string
	if !officer.IsActive {
		reasons = append(reasons, "officer inactive")
	}
	if !officer.IsAvailable {
		reasons = append(reasons, "officer unavailable")
	}
	if officer.IsActive && officer.IsAvailable {
		reasons = append(reasons, "at capacity")
	}
	return strings.Join(reasons, ", ")
}

// Recall re-announces the current call; the row keeps status Called.
func Recall(ticket models.Ticket, officerID string, now time.Time) (Transition, error) {
	if err := checkHeld(ActionRecall, ticket, officerID); err != nil {
		return Transition{}, err
	}
	ticket.CalledAt = timePtr(now)
	return Transition{Ticket: ticket, Log: logEntry(ticket, stringPtr(officerID), statusPtr(models.StatusCalled), "recall", now)}, nil
}

func Start(ticket models.Ticket, officerID string, now time.Time) (Transition, error) {
	if err := checkHeld(ActionStart, ticket, officerID); err != nil {
		return Transition{}, err
	}
	from := ticket.Status
	ticket.Status = models.StatusProcessing
	ticket.StartedAt = timePtr(now)
	return Transition{Ticket: ticket, Log: logEntry(ticket, stringPtr(officerID), statusPtr(from), "", now)}, nil
}

func Complete(ticket models.Ticket, officerID, notes string, now time.Time) (Transition, error) {
	if err := checkHeld(ActionComplete, ticket, officerID); err != nil {
		return Transition{}, err
	}
	from := ticket.Status
	ticket.Status = models.StatusCompleted
	ticket.CompletedAt = timePtr(now)
	ticket.Notes = notes
	return Transition{Ticket: ticket, Log: logEntry(ticket, stringPtr(officerID), statusPtr(from), notes, now)}, nil
}

func Skip(ticket models.Ticket, officerID, notes string, now time.Time) (Transition, error) {
	if err := checkHeld(ActionSkip, ticket, officerID); err != nil {
		return Transition{}, err
	}
	from := ticket.Status
	ticket.Status = models.StatusSkipped
	ticket.Notes = notes
	return Transition{Ticket: ticket, Log: logEntry(ticket, stringPtr(officerID), statusPtr(from), notes, now)}, nil
}

// Cancel accepts an empty officerID for requester self-service.
func Cancel(ticket models.Ticket, officerID, notes string, now time.Time) (Transition, error) {
	if !ValidTransition(ActionCancel, ticket.Status) {
		return Transition{}, precondition(string(ActionCancel), ErrInvalidState, ticket.Status, "")
	}
	var actor *string
	if officerID != "" {
		actor = stringPtr(officerID)
	}
	from := ticket.Status
	ticket.Status = models.StatusCancelled
	ticket.Notes = notes
	return Transition{Ticket: ticket, Log: logEntry(ticket, actor, statusPtr(from), notes, now)}, nil
}

func checkHeld(action Action, ticket models.Ticket, officerID string) error {
	if !ValidTransition(action, ticket.Status) {
		return precondition(string(action), ErrInvalidState, ticket.Status, "")
	}
	if !ticket.HeldBy(officerID) {
		return precondition(string(action), ErrOfficerMismatch, ticket.Status, "")
	}
	return nil
}

const (
	approachingScan  = 10
	approachingFirst = 2
	approachingLast  = 6
)

// ApproachingCandidates picks, from the ordered waiting list, the tickets
// ranked 3rd through 7th that were not yet told their turn is near.
func ApproachingCandidates(waiting []models.Ticket) []models.Ticket {
	var out []models.Ticket
	for i, ticket := range waiting {
		if i < approachingFirst {
			continue
		}
		if i > approachingLast {
			break
		}
		if ticket.NotifiedApproachingAt != nil {
			continue
		}
		out = append(out, ticket)
	}
	return out
}
