package models

import "fmt"

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusCalled     Status = "called"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusWaiting,
	StatusCalled,
	StatusProcessing,
	StatusCompleted,
	StatusSkipped,
	StatusCancelled,
}

func ParseStatus(raw string) (Status, error) {
	for _, status := range Statuses {
		if string(status) == raw {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown ticket status %q", raw)
}

// IsActive reports whether the ticket still occupies the queue or a counter.
func (s Status) IsActive() bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusProcessing:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Label() string {
	switch s {
	case StatusWaiting:
		return "Menunggu"
	case StatusCalled:
		return "Dipanggil"
	case StatusProcessing:
		return "Sedang Dilayani"
	case StatusCompleted:
		return "Selesai"
	case StatusSkipped:
		return "Dilewati"
	case StatusCancelled:
		return "Dibatalkan"
	default:
		return string(s)
	}
}

// Color is the display board badge color.
func (s Status) Color() string {
	switch s {
	case StatusWaiting:
		return "gray"
	case StatusCalled:
		return "blue"
	case StatusProcessing:
		return "yellow"
	case StatusCompleted:
		return "green"
	case StatusSkipped:
		return "orange"
	case StatusCancelled:
		return "red"
	default:
		return "gray"
	}
}
