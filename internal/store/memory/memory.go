// Package memory is an in-process store. A single mutex serializes
// transactions, and a transaction works on a copy that replaces the live
// state only on commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/queue"
	"qms/queue-core/internal/store"

	"github.com/google/uuid"
)

type state struct {
	services  map[string]models.Service
	officers  map[string]models.Officer
	tickets   map[string]models.Ticket
	logs      []models.StatusLog
	documents []models.Document
}

func newState() *state {
	return &state{
		services: make(map[string]models.Service),
		officers: make(map[string]models.Officer),
		tickets:  make(map[string]models.Ticket),
	}
}

func (s *state) clone() *state {
	out := &state{
		services:  make(map[string]models.Service, len(s.services)),
		officers:  make(map[string]models.Officer, len(s.officers)),
		tickets:   make(map[string]models.Ticket, len(s.tickets)),
		logs:      append([]models.StatusLog(nil), s.logs...),
		documents: append([]models.Document(nil), s.documents...),
	}
	for id, svc := range s.services {
		out.services[id] = svc
	}
	for id, officer := range s.officers {
		out.officers[id] = officer
	}
	for id, ticket := range s.tickets {
		out.tickets[id] = ticket
	}
	return out
}

type Store struct {
	mu   sync.Mutex
	data *state
}

func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) AddService(svc models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.services[svc.ServiceID] = svc
}

func (s *Store) AddOfficer(officer models.Officer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.officers[officer.OfficerID] = officer
}

// PutTicket stores a ticket as is, bypassing numbering. Meant for seeding.
func (s *Store) PutTicket(ticket models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.tickets[ticket.TicketID] = ticket
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := &tx{data: s.data.clone()}
	if err := fn(ctx, work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work.data
	return nil
}

func (s *Store) GetTicket(_ context.Context, ticketID string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ticket(ticketID)
}

func (s *Store) GetService(_ context.Context, serviceID string) (models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.service(serviceID)
}

func (s *Store) GetOfficer(_ context.Context, officerID string) (models.Officer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.officer(officerID)
}

func (s *Store) ListStatusLogs(_ context.Context, ticketID string) ([]models.StatusLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StatusLog
	for _, entry := range s.data.logs {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *Store) ListDocuments(_ context.Context, ticketID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, doc := range s.data.documents {
		if doc.TicketID == ticketID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *Store) ListWaiting(_ context.Context, serviceID string, day models.Day) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.waiting(serviceID, day), nil
}

func (s *Store) ListCurrentCalls(_ context.Context, day models.Day) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, ticket := range s.data.tickets {
		if ticket.Status != models.StatusCalled && ticket.Status != models.StatusProcessing {
			continue
		}
		if ticket.CalledAt == nil || !day.Contains(*ticket.CalledAt) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CalledAt.After(*out[j].CalledAt)
	})
	return out, nil
}

func (s *Store) ListOfficerTickets(_ context.Context, officerID string) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, ticket := range s.data.tickets {
		if ticket.Status.IsActive() && ticket.HeldBy(officerID) {
			out = append(out, ticket)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CalledAt.Before(*out[j].CalledAt)
	})
	return out, nil
}

func (s *Store) CountAvailableOfficers(_ context.Context, serviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.availableOfficers(serviceID), nil
}

func (s *Store) DailyStats(_ context.Context, day models.Day, serviceID string) (models.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tickets []models.Ticket
	for _, ticket := range s.data.tickets {
		if day.Contains(ticket.CreatedAt) {
			tickets = append(tickets, ticket)
		}
	}
	return queue.Summarize(day, serviceID, tickets), nil
}

func (s *Store) MarkApproachingNotified(_ context.Context, ticketID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.data.ticket(ticketID)
	if err != nil {
		return false, err
	}
	if ticket.NotifiedApproachingAt != nil {
		return false, nil
	}
	ticket.NotifiedApproachingAt = &at
	s.data.tickets[ticketID] = ticket
	return true, nil
}

func (s *Store) MarkCalledNotified(_ context.Context, ticketID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.data.ticket(ticketID)
	if err != nil {
		return false, err
	}
	if ticket.NotifiedCalledAt != nil {
		return false, nil
	}
	ticket.NotifiedCalledAt = &at
	s.data.tickets[ticketID] = ticket
	return true, nil
}

func (s *state) ticket(ticketID string) (models.Ticket, error) {
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *state) service(serviceID string) (models.Service, error) {
	svc, ok := s.services[serviceID]
	if !ok {
		return models.Service{}, store.ErrServiceNotFound
	}
	return svc, nil
}

func (s *state) officer(officerID string) (models.Officer, error) {
	officer, ok := s.officers[officerID]
	if !ok {
		return models.Officer{}, store.ErrOfficerNotFound
	}
	return officer, nil
}

// waiting returns the service's Waiting tickets of day in call order.
func (s *state) availableOfficers(serviceID string) int {
	count := 0
	for _, officer := range s.officers {
		if officer.ServiceID == serviceID && officer.IsActive && officer.IsAvailable {
			count++
		}
	}
	return count
}

func (s *state) waiting(serviceID string, day models.Day) []models.Ticket {
	var out []models.Ticket
	for _, ticket := range s.tickets {
		if ticket.ServiceID == serviceID && ticket.Status == models.StatusWaiting && day.Contains(ticket.CreatedAt) {
			out = append(out, ticket)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

type tx struct {
	data *state
}

func (t *tx) GetService(_ context.Context, serviceID string) (models.Service, error) {
	return t.data.service(serviceID)
}

func (t *tx) LockService(_ context.Context, serviceID string) (models.Service, error) {
	return t.data.service(serviceID)
}

func (t *tx) GetOfficer(_ context.Context, officerID string) (models.Officer, error) {
	return t.data.officer(officerID)
}

func (t *tx) OfficerLoad(_ context.Context, officerID string) (int, error) {
	load := 0
	for _, ticket := range t.data.tickets {
		if ticket.Status == models.StatusProcessing && ticket.HeldBy(officerID) {
			load++
		}
	}
	return load, nil
}

func (t *tx) CountTickets(_ context.Context, serviceID string, day models.Day) (int, error) {
	count := 0
	for _, ticket := range t.data.tickets {
		if ticket.ServiceID == serviceID && ticket.DayKey == day.Key {
			count++
		}
	}
	return count, nil
}

func (t *tx) LockTicket(_ context.Context, ticketID string) (models.Ticket, error) {
	return t.data.ticket(ticketID)
}

func (t *tx) LockNextWaiting(_ context.Context, serviceID string, day models.Day) (models.Ticket, bool, error) {
	waiting := t.data.waiting(serviceID, day)
	if len(waiting) == 0 {
		return models.Ticket{}, false, nil
	}
	return waiting[0], true, nil
}

func (t *tx) NextWaiting(_ context.Context, serviceID string, day models.Day, limit int) ([]models.Ticket, error) {
	waiting := t.data.waiting(serviceID, day)
	if limit > 0 && len(waiting) > limit {
		waiting = waiting[:limit]
	}
	return waiting, nil
}

func (t *tx) CountAvailableOfficers(_ context.Context, serviceID string) (int, error) {
	return t.data.availableOfficers(serviceID), nil
}

func (t *tx) InsertTicket(_ context.Context, ticket models.Ticket) error {
	if _, ok := t.data.tickets[ticket.TicketID]; ok {
		return store.ErrDuplicateNumber
	}
	for _, other := range t.data.tickets {
		if other.ServiceID == ticket.ServiceID && other.DayKey == ticket.DayKey && other.Number == ticket.Number {
			return store.ErrDuplicateNumber
		}
	}
	t.data.tickets[ticket.TicketID] = ticket
	return nil
}

func (t *tx) UpdateTicket(_ context.Context, ticket models.Ticket) error {
	if _, ok := t.data.tickets[ticket.TicketID]; !ok {
		return store.ErrTicketNotFound
	}
	t.data.tickets[ticket.TicketID] = ticket
	return nil
}

func (t *tx) InsertDocuments(_ context.Context, docs []models.Document) error {
	t.data.documents = append(t.data.documents, docs...)
	return nil
}

func (t *tx) InsertStatusLog(_ context.Context, entry models.StatusLog) error {
	if entry.LogID == "" {
		entry.LogID = uuid.NewString()
	}
	t.data.logs = append(t.data.logs, entry)
	return nil
}
