package models

import "time"

const (
	SourceOnline = "online"
	SourceKiosk  = "kiosk"
)

type Ticket struct {
	TicketID              string     `json:"ticket_id"`
	Number                string     `json:"number"`
	ServiceID             string     `json:"service_id"`
	DayKey                string     `json:"day_key"`
	RequesterName         string     `json:"requester_name"`
	NationalID            string     `json:"national_id,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	Email                 string     `json:"email,omitempty"`
	IsPriority            bool       `json:"is_priority"`
	Source                string     `json:"source"`
	NotifyEmail           bool       `json:"notify_email"`
	NotifySMS             bool       `json:"notify_sms"`
	Status                Status     `json:"status"`
	OfficerID             *string    `json:"officer_id,omitempty"`
	TransferredFromID     *string    `json:"transferred_from_id,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	CalledAt              *time.Time `json:"called_at,omitempty"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	NotifiedApproachingAt *time.Time `json:"notified_approaching_at,omitempty"`
	NotifiedCalledAt      *time.Time `json:"notified_called_at,omitempty"`
}

// WaitingTime is measured until the first call, or until now while still waiting.
func (t Ticket) WaitingTime(now time.Time) time.Duration {
	if t.CalledAt != nil {
		return t.CalledAt.Sub(t.CreatedAt)
	}
	return now.Sub(t.CreatedAt)
}

// ServiceTime is defined only once the ticket was both started and completed.
func (t Ticket) ServiceTime() (time.Duration, bool) {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0, false
	}
	return t.CompletedAt.Sub(*t.StartedAt), true
}

func (t Ticket) HeldBy(officerID string) bool {
	return t.OfficerID != nil && *t.OfficerID == officerID
}

// Before orders waiting tickets: priority tier first, then registration time.
func (t Ticket) Before(other Ticket) bool {
	if t.IsPriority != other.IsPriority {
		return t.IsPriority
	}
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.Before(other.CreatedAt)
	}
	return t.TicketID < other.TicketID
}

type Document struct {
	DocumentID  string    `json:"document_id"`
	TicketID    string    `json:"ticket_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}

type StatusLog struct {
	LogID      string    `json:"log_id"`
	TicketID   string    `json:"ticket_id"`
	OfficerID  *string   `json:"officer_id,omitempty"`
	FromStatus *Status   `json:"from_status,omitempty"`
	ToStatus   Status    `json:"to_status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
