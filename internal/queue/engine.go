package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"qms/queue-core/internal/metrics"
	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	IdleQueueEmpty         = "queue_empty"
	IdleOfficerUnavailable = "officer_unavailable"
)

var resultKinds = map[string]error{
	"validation":          ErrValidation,
	"invalid_state":       ErrInvalidState,
	"officer_mismatch":    ErrOfficerMismatch,
	"officer_unavailable": ErrOfficerUnavailable,
	"service_closed":      ErrServiceClosed,
	"invalid_transfer":    ErrInvalidTransfer,
	"ticket_taken":        ErrTicketTaken,
	"not_found":           store.ErrTicketNotFound,
}

type Options struct {
	Clock      Clock
	Calendar   Calendar
	Dispatcher Dispatcher
	Logger     *slog.Logger
	NewID      func() string
}

// Engine runs every queue operation as one store transaction and hands the
// resulting effects to the dispatcher once the transaction has committed.
type Engine struct {
	store      store.Store
	clock      Clock
	calendar   Calendar
	dispatcher Dispatcher
	logger     *slog.Logger
	tracer     trace.Tracer
	newID      func() string
}

func NewEngine(st store.Store, options Options) *Engine {
	e := &Engine{
		store:      st,
		clock:      options.Clock,
		calendar:   options.Calendar,
		dispatcher: options.Dispatcher,
		logger:     options.Logger,
		tracer:     otel.Tracer("qms/queue-core/queue"),
		newID:      options.NewID,
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.dispatcher == nil {
		e.dispatcher = discardDispatcher{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

func (e *Engine) Today() models.Day {
	return e.calendar.DayOf(e.clock.Now())
}

type Result struct {
	Ticket  models.Ticket
	Effects []Effect
	// Idle explains why CallNext called nobody.
	Idle string
	// EstimatedWaitMinutes is filled by Register: the work queued ahead of
	// the new ticket at the moment it was inserted.
	EstimatedWaitMinutes int
}

type TransferResult struct {
	Source  models.Ticket
	Target  models.Ticket
	Effects []Effect
}

func (e *Engine) commit(ctx context.Context, op Action, attrs []attribute.KeyValue, fn func(ctx context.Context, tx store.Tx) ([]Effect, error)) ([]Effect, error) {
	ctx, span := e.tracer.Start(ctx, "queue."+string(op), trace.WithAttributes(attrs...))
	defer span.End()

	var effects []Effect
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		effects, err = fn(ctx, tx)
		return err
	})
	metrics.Transitions.WithLabelValues(string(op), metrics.Result(err, resultKinds)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var pe *PreconditionError
		if !errors.As(err, &pe) && !errors.Is(err, ErrValidation) && !isNotFound(err) {
			e.logger.Error("queue operation failed", "op", op, "error", err)
		}
		return nil, err
	}
	return effects, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrTicketNotFound) || errors.Is(err, store.ErrServiceNotFound) || errors.Is(err, store.ErrOfficerNotFound)
}

func (e *Engine) Register(ctx context.Context, reg Registration) (Result, error) {
	reg.normalize()
	if err := ValidateStruct(reg); err != nil {
		metrics.Transitions.WithLabelValues(string(ActionRegister), "validation").Inc()
		return Result{}, err
	}

	now := e.clock.Now()
	day := e.calendar.DayOf(now)
	var result Result
	effects, err := e.commit(ctx, ActionRegister, []attribute.KeyValue{attribute.String("service_id", reg.ServiceID)}, func(ctx context.Context, tx store.Tx) ([]Effect, error) {
		svc, err := tx.LockService(ctx, reg.ServiceID)
		if err != nil {
			return nil, err
		}
		count, err := tx.CountTickets(ctx, svc.ServiceID, day)
		if err != nil {
			return nil, err
		}
		if err := CheckAccepting(svc, count, e.calendar.Local(now)); err != nil {
			return nil, err
		}

		tr := Open(models.Ticket{
			TicketID:      e.newID(),
			RequesterName: reg.RequesterName,
			NationalID:    reg.NationalID,
			Phone:         reg.Phone,
			Email:         reg.Email,
			IsPriority:    reg.IsPriority,
			Source:        reg.Source,
			NotifyEmail:   reg.NotifyEmail,
			NotifySMS:     reg.NotifySMS,
		}, svc, count+1, day, now, "")
		waiting, err := tx.NextWaiting(ctx, svc.ServiceID, day, 0)
		if err != nil {
			return nil, err
		}
		officers, err := tx.CountAvailableOfficers(ctx, svc.ServiceID)
		if err != nil {
			return nil, err
		}
		result.EstimatedWaitMinutes = EstimateWaitMinutes(Position(tr.Ticket, waiting)-1, svc.AverageTime, officers)
		if err := tx.InsertTicket(ctx, tr.Ticket); err != nil {
			return nil, err
		}
		if len(reg.Documents) > 0 {
			docs := make([]models.Document, 0, len(reg.Documents))
			for _, doc := range reg.Documents {
				docs = append(docs, models.Document{
					DocumentID:  e.newID(),
					TicketID:    tr.Ticket.TicketID,
					Name:        doc.Name,
					ContentType: doc.ContentType,
					SizeBytes:   doc.SizeBytes,
					StorageKey:  doc.StorageKey,
					CreatedAt:   now,
				})
			}
			if err := tx.InsertDocuments(ctx, docs); err != nil {
				return nil, err
			}
		}
		if err := tx.InsertStatusLog(ctx, tr.Log); err != nil {
			return nil, err
		}
		result.Ticket = tr.Ticket
		return []Effect{
			{Kind: EffectRegistered, Ticket: tr.Ticket, Service: svc, At: now},
			{Kind: EffectBoardUpdated, Ticket: tr.Ticket, Service: svc, At: now},
		}, nil
	})
	if err != nil {
		return Result{}, err
	}

	result.Effects = effects
	e.dispatcher.Dispatch(effects...)
	return result, nil
}

// Call calls one specific Waiting or Skipped ticket to the officer's counter.
func (e *Engine) Call(ctx context.Context, ticketID, officerID string) (Result, error) {
	now := e.clock.Now()
	day := e.calendar.DayOf(now)
	var result Result
	effects, err := e.commit(ctx, ActionCall, ticketAttrs(ticketID, officerID), func(ctx context.Context, tx store.Tx) ([]Effect, error) {
		officer, err := tx.GetOfficer(ctx, officerID)
		if err != nil {
			return nil, err
		}
		ticket, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		load, err := tx.OfficerLoad(ctx, officerID)
		if err != nil {
			return nil, err
		}
		return e.applyCall(ctx, tx, ticket, officer, load, day, now, &result)
	})
	if err != nil {
		return Result{}, err
	}
	result.Effects = effects
	e.dispatcher.Dispatch(effects...)
	return result, nil
}

// CallNext calls the best waiting ticket of the officer's service. The bool
// is false when nobody was called; Result.Idle then says why.
func (e *Engine) CallNext(ctx context.Context, officerID string) (Result, bool, error) {
	now := e.clock.Now()
	day := e.calendar.DayOf(now)
	var result Result
	effects, err := e.commit(ctx, ActionCall, []attribute.KeyValue{attribute.String("officer_id", officerID)}, func(ctx context.Context, tx store.Tx) ([]Effect, error) {
		officer, err := tx.GetOfficer(ctx, officerID)
		if err != nil {
			return nil, err
		}
		load, err := tx.OfficerLoad(ctx, officerID)
		if err != nil {
			return nil, err
		}
		if !officer.Accepts(load) {
			result.Idle = IdleOfficerUnavailable
			return nil, nil
		}
		ticket, found, err := tx.LockNextWaiting(ctx, officer.ServiceID, day)
		if err != nil {
			return nil, err
		}
		if !found {
			result.Idle = IdleQueueEmpty
			return nil, nil
		}
		return e.applyCall(ctx, tx, ticket, officer, load, day, now, &result)
	})
	if err != nil {
		return Result{}, false, err
	}
	if result.Idle != "" {
		e.logger.Debug("call next idle", "officer_id", officerID, "reason", result.Idle)
		return result, false, nil
	}
	result.Effects = effects
	e.dispatcher.Dispatch(effects...)
	return result, true, nil
}

func (e *Engine) applyCall(ctx context.Context, tx store.Tx, ticket models.Ticket, officer models.Officer, load int, day models.Day, now time.Time, result *Result) ([]Effect, error) {
	tr, err := Call(ticket, officer, load, now)
	if err != nil {
		return nil, err
	}
	if err := e.persist(ctx, tx, tr); err != nil {
		return nil, err
	}
	svc, err := tx.GetService(ctx, tr.Ticket.ServiceID)
	if err != nil {
		return nil, err
	}
	waiting, err := tx.NextWaiting(ctx, svc.ServiceID, day, approachingScan)
	if err != nil {
		return nil, err
	}

	result.Ticket = tr.Ticket
	effects := []Effect{{Kind: EffectCalled, Ticket: tr.Ticket, Service: svc, Officer: &officer, At: now}}
	for _, candidate := range ApproachingCandidates(waiting) {
		effects = append(effects, Effect{Kind: EffectApproaching, Ticket: candidate, Service: svc, At: now})
	}
	effects = append(effects, Effect{Kind: EffectBoardUpdated, Ticket: tr.Ticket, Service: svc, At: now})
	return effects, nil
}

func (e *Engine) persist(ctx context.Context, tx store.Tx, tr Transition) error {
	if err := tx.UpdateTicket(ctx, tr.Ticket); err != nil {
		return err
	}
	return tx.InsertStatusLog(ctx, tr.Log)
}

func (e *Engine) Recall(ctx context.Context, ticketID, officerID string) (Result, error) {
	now := e.clock.Now()
	var result Result
	effects, err := e.commit(ctx, ActionRecall, ticketAttrs(ticketID, officerID), func(ctx context.Context, tx store.Tx) ([]Effect, error) {
		ticket, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		tr, err := Recall(ticket, officerID, now)
		if err != nil {
			return nil, err
		}
		if err := e.persist(ctx, tx, tr); err != nil {
			return nil, err
		}
		officer, err := tx.GetOfficer(ctx, officerID)
		if err != nil {
			return nil, err
		}
		svc, err := tx.GetService(ctx, tr.Ticket.ServiceID)
		if err != nil {
			return nil, err
		}
		result.Ticket = tr.Ticket
		return []Effect{{Kind: EffectRecalled, Ticket: tr.Ticket, Service: svc, Officer: &officer, At: now}}, nil
	})
	if err != nil {
		return Result{}, err
	}
	result.Effects = effects
	e.dispatcher.Dispatch(effects...)
	return result, nil
}

func (e *Engine) StartProcessing(ctx context.Context, ticketID, officerID string) (Result, error) {
	return e.transition(ctx, ActionStart, ticketID, officerID, func(ticket models.Ticket, now time.Time) (Transition, error) {
		return Start(ticket, officerID, now)
	})
}

func (e *Engine) Complete(ctx context.Context, ticketID, officerID, notes string) (Result, error) {
	return e.transition(ctx, ActionComplete, ticketID, officerID, func(ticket models.Ticket, now time.Time) (Transition, error) {
		return Complete(ticket, officerID, notes, now)
	})
}

func (e *Engine) Skip(ctx context.Context, ticketID, officerID, notes string) (Result, error) {
	return e.transition(ctx, ActionSkip, ticketID, officerID, func(ticket models.Ticket, now time.Time) (Transition, error) {
		return Skip(ticket, officerID, notes, now)
	})
}

// Cancel takes an empty officerID when the requester cancels on their own.
func (e *Engine) Cancel(ctx context.Context, ticketID, officerID, notes string) (Result, error) {
	return e.transition(ctx, ActionCancel, ticketID, officerID, func(ticket models.Ticket, now time.Time) (Transition, error) {
		return Cancel(ticket, officerID, notes, now)
	})
}

func (e *Engine) transition(ctx context.Context, op Action, ticketID, officerID string, apply func(models.Ticket, time.Time) (Transition, error)) (Result, error) {
	now := e.clock.Now()
	var result Result
	effects, err := e.commit(ctx, op, ticketAttrs(ticketID, officerID), func(ctx context.Context, tx store.Tx) ([]Effect, error) {
		ticket, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		tr, err := apply(ticket, now)
		if err != nil {
			return nil, err
		}
		if err := e.persist(ctx, tx, tr); err != nil {
			return nil, err
		}
		result.Ticket = tr.Ticket
		return []Effect{{Kind: EffectBoardUpdated, Ticket: tr.Ticket, Service: models.Service{ServiceID: tr.Ticket.ServiceID}, At: now}}, nil
	})
	if err != nil {
		return Result{}, err
	}
	result.Effects = effects
	e.dispatcher.Dispatch(effects...)
	return result, nil
}

// Transfer cancels the ticket and re-registers its requester in the target
// service under a fresh number, in one transaction.
func (e *Engine) Transfer(ctx context.Context, ticketID, targetServiceID, officerID, notes string) (TransferResult, error) {
	now := e.clock.Now()
	day := e.calendar.DayOf(now)
	var result TransferResult
	attrs := append(ticketAttrs(ticketID, officerID), attribute.String("target_service_id", targetServiceID))
	effects, err := e.commit(ctx, ActionTransfer, attrs, func(ctx context.Context, tx store.Tx) ([]Effect, error) {
		source, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		if !ValidTransition(ActionTransfer, source.Status) {
			return nil, precondition(string(ActionTransfer), ErrInvalidState, source.Status, "")
		}
		if source.ServiceID == targetServiceID {
			return nil, precondition(string(ActionTransfer), ErrInvalidTransfer, source.Status, "target is the current service")
		}
		target, err := tx.LockService(ctx, targetServiceID)
		if err != nil {
			return nil, err
		}
		if !target.IsActive {
			return nil, precondition(string(ActionTransfer), ErrInvalidTransfer, source.Status, "target service is inactive")
		}
		count, err := tx.CountTickets(ctx, target.ServiceID, day)
		if err != nil {
			return nil, err
		}

		reason := notes
		if reason == "" {
			reason = "Dipindahkan ke layanan " + target.Name
		}
		sourceID := source.TicketID
		opened := Open(models.Ticket{
			TicketID:          e.newID(),
			RequesterName:     source.RequesterName,
			NationalID:        source.NationalID,
			Phone:             source.Phone,
			Email:             source.Email,
			IsPriority:        source.IsPriority,
			Source:            source.Source,
			NotifyEmail:       source.NotifyEmail,
			NotifySMS:         source.NotifySMS,
			TransferredFromID: &sourceID,
		}, target, count+1, day, now, "")
		opened.Log.Notes = fmt.Sprintf("transferred from %s (%s)", source.Number, source.TicketID)
		if officerID != "" {
			opened.Log.OfficerID = stringPtr(officerID)
		}

		cancelled, err := Cancel(source, officerID, reason, now)
		if err != nil {
			return nil, err
		}
		cancelled.Log.Notes = fmt.Sprintf("%s; transferred to %s (%s)", reason, opened.Ticket.Number, opened.Ticket.TicketID)

		if err := e.persist(ctx, tx, cancelled); err != nil {
			return nil, err
		}
		if err := tx.InsertTicket(ctx, opened.Ticket); err != nil {
			return nil, err
		}
		if err := tx.InsertStatusLog(ctx, opened.Log); err != nil {
			return nil, err
		}
		result.Source = cancelled.Ticket
		result.Target = opened.Ticket
		return []Effect{
			{Kind: EffectBoardUpdated, Ticket: cancelled.Ticket, Service: models.Service{ServiceID: cancelled.Ticket.ServiceID}, At: now},
			{Kind: EffectBoardUpdated, Ticket: opened.Ticket, Service: target, At: now},
		}, nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	result.Effects = effects
	e.dispatcher.Dispatch(effects...)
	return result, nil
}

func ticketAttrs(ticketID, officerID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("ticket_id", ticketID),
		attribute.String("officer_id", officerID),
	}
}
