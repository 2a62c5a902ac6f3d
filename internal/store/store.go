package store

import (
	"context"
	"time"

	"qms/queue-core/internal/models"
)

// Tx is one atomic unit of work. Lock* methods hold an exclusive row lock
// until the surrounding transaction ends.
type Tx interface {
	GetService(ctx context.Context, serviceID string) (models.Service, error)
	// LockService serializes ticket numbering for the service.
	LockService(ctx context.Context, serviceID string) (models.Service, error)
	GetOfficer(ctx context.Context, officerID string) (models.Officer, error)
	OfficerLoad(ctx context.Context, officerID string) (int, error)
	CountTickets(ctx context.Context, serviceID string, day models.Day) (int, error)
	LockTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	// LockNextWaiting skips rows locked by concurrent callers.
	LockNextWaiting(ctx context.Context, serviceID string, day models.Day) (models.Ticket, bool, error)
	// NextWaiting returns every waiting ticket when limit <= 0.
	NextWaiting(ctx context.Context, serviceID string, day models.Day, limit int) ([]models.Ticket, error)
	CountAvailableOfficers(ctx context.Context, serviceID string) (int, error)
	InsertTicket(ctx context.Context, ticket models.Ticket) error
	UpdateTicket(ctx context.Context, ticket models.Ticket) error
	InsertDocuments(ctx context.Context, docs []models.Document) error
	InsertStatusLog(ctx context.Context, entry models.StatusLog) error
}

type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	GetService(ctx context.Context, serviceID string) (models.Service, error)
	GetOfficer(ctx context.Context, officerID string) (models.Officer, error)
	ListStatusLogs(ctx context.Context, ticketID string) ([]models.StatusLog, error)
	ListDocuments(ctx context.Context, ticketID string) ([]models.Document, error)
	ListWaiting(ctx context.Context, serviceID string, day models.Day) ([]models.Ticket, error)
	ListCurrentCalls(ctx context.Context, day models.Day) ([]models.Ticket, error)
	ListOfficerTickets(ctx context.Context, officerID string) ([]models.Ticket, error)
	CountAvailableOfficers(ctx context.Context, serviceID string) (int, error)
	DailyStats(ctx context.Context, day models.Day, serviceID string) (models.DailyStats, error)

	// Mark*Notified stamp a notification guard and report whether this
	// caller won it; a false result means the guard was already set.
	MarkApproachingNotified(ctx context.Context, ticketID string, at time.Time) (bool, error)
	MarkCalledNotified(ctx context.Context, ticketID string, at time.Time) (bool, error)
}
