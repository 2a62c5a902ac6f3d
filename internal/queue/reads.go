package queue

import (
	"context"

	"qms/queue-core/internal/models"
)

// TicketView is a ticket with the figures shown to the requester.
type TicketView struct {
	models.Ticket
	StatusLabel          string   `json:"status_label"`
	StatusColor          string   `json:"status_color"`
	WaitingMinutes       float64  `json:"waiting_minutes"`
	ServiceMinutes       *float64 `json:"service_minutes"`
	Position             int      `json:"position"`
	EstimatedWaitMinutes int      `json:"estimated_wait_minutes"`
}

func (e *Engine) Ticket(ctx context.Context, ticketID string) (TicketView, error) {
	ticket, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return TicketView{}, err
	}
	now := e.clock.Now()
	view := TicketView{
		Ticket:         ticket,
		StatusLabel:    ticket.Status.Label(),
		StatusColor:    ticket.Status.Color(),
		WaitingMinutes: ticket.WaitingTime(now).Minutes(),
	}
	if d, ok := ticket.ServiceTime(); ok {
		minutes := d.Minutes()
		view.ServiceMinutes = &minutes
	}
	if ticket.Status != models.StatusWaiting {
		return view, nil
	}

	svc, err := e.store.GetService(ctx, ticket.ServiceID)
	if err != nil {
		return TicketView{}, err
	}
	waiting, err := e.store.ListWaiting(ctx, ticket.ServiceID, e.calendar.DayOf(ticket.CreatedAt))
	if err != nil {
		return TicketView{}, err
	}
	officers, err := e.store.CountAvailableOfficers(ctx, ticket.ServiceID)
	if err != nil {
		return TicketView{}, err
	}
	view.Position = Position(ticket, waiting)
	view.EstimatedWaitMinutes = EstimateWaitMinutes(view.Position-1, svc.AverageTime, officers)
	return view, nil
}

func (e *Engine) StatusLogs(ctx context.Context, ticketID string) ([]models.StatusLog, error) {
	if _, err := e.store.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return e.store.ListStatusLogs(ctx, ticketID)
}

func (e *Engine) Documents(ctx context.Context, ticketID string) ([]models.Document, error) {
	if _, err := e.store.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return e.store.ListDocuments(ctx, ticketID)
}

// Waiting lists today's waiting tickets of a service in call order.
func (e *Engine) Waiting(ctx context.Context, serviceID string) ([]models.Ticket, error) {
	if _, err := e.store.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	waiting, err := e.store.ListWaiting(ctx, serviceID, e.Today())
	if err != nil {
		return nil, err
	}
	SortWaiting(waiting)
	return waiting, nil
}

// EstimateWait is the expected wait in minutes for a ticket registered now.
func (e *Engine) EstimateWait(ctx context.Context, serviceID string) (int, error) {
	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return 0, err
	}
	return e.estimate(ctx, svc, e.Today())
}

func (e *Engine) estimate(ctx context.Context, svc models.Service, day models.Day) (int, error) {
	waiting, err := e.store.ListWaiting(ctx, svc.ServiceID, day)
	if err != nil {
		return 0, err
	}
	officers, err := e.store.CountAvailableOfficers(ctx, svc.ServiceID)
	if err != nil {
		return 0, err
	}
	return EstimateWaitMinutes(len(waiting), svc.AverageTime, officers), nil
}

func (e *Engine) Position(ctx context.Context, ticketID string) (int, error) {
	ticket, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return 0, err
	}
	if ticket.Status != models.StatusWaiting {
		return 0, nil
	}
	waiting, err := e.store.ListWaiting(ctx, ticket.ServiceID, e.calendar.DayOf(ticket.CreatedAt))
	if err != nil {
		return 0, err
	}
	return Position(ticket, waiting), nil
}

// TodayStats aggregates the current day; an empty serviceID covers all services.
func (e *Engine) TodayStats(ctx context.Context, serviceID string) (models.DailyStats, error) {
	if serviceID != "" {
		if _, err := e.store.GetService(ctx, serviceID); err != nil {
			return models.DailyStats{}, err
		}
	}
	return e.store.DailyStats(ctx, e.Today(), serviceID)
}

// CurrentCalls lists today's Called and Processing tickets for the display board.
func (e *Engine) CurrentCalls(ctx context.Context) ([]models.Ticket, error) {
	return e.store.ListCurrentCalls(ctx, e.Today())
}

func (e *Engine) OfficerTickets(ctx context.Context, officerID string) ([]models.Ticket, error) {
	if _, err := e.store.GetOfficer(ctx, officerID); err != nil {
		return nil, err
	}
	return e.store.ListOfficerTickets(ctx, officerID)
}
