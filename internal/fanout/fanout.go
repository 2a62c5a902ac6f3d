// Package fanout delivers the side effects of committed queue operations:
// requester notifications, call announcements and display board events.
package fanout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"qms/queue-core/internal/announce"
	"qms/queue-core/internal/broadcast"
	"qms/queue-core/internal/metrics"
	"qms/queue-core/internal/models"
	"qms/queue-core/internal/notify"
	"qms/queue-core/internal/queue"
)

// Reader supplies the derived figures notifications and boards mention.
type Reader interface {
	Ticket(ctx context.Context, ticketID string) (queue.TicketView, error)
	TodayStats(ctx context.Context, serviceID string) (models.DailyStats, error)
}

// Guards stamp notification markers so each message is sent at most once.
type Guards interface {
	MarkApproachingNotified(ctx context.Context, ticketID string, at time.Time) (bool, error)
	MarkCalledNotified(ctx context.Context, ticketID string, at time.Time) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, info notify.Info) (bool, error)
}

type Announcer interface {
	ClipURL(ctx context.Context, info announce.CallInfo) (string, error)
}

type Config struct {
	Workers int
	Buffer  int
	Timeout time.Duration
}

type Deps struct {
	Reader    Reader
	Guards    Guards
	Notifier  Notifier
	Announcer Announcer
	Publisher broadcast.Publisher
	Logger    *slog.Logger
}

// Dispatcher is a bounded worker pool. Dispatch never blocks the caller: when
// the buffer is full the effect is dropped.
type Dispatcher struct {
	deps    Deps
	workers int
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan queue.Effect
	wg     sync.WaitGroup
}

func New(cfg Config, deps Deps) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		deps:    deps,
		workers: workers,
		timeout: timeout,
		logger:  logger,
		jobs:    make(chan queue.Effect, buffer),
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for effect := range d.jobs {
				d.run(effect)
			}
		}()
	}
}

func (d *Dispatcher) Dispatch(effects ...queue.Effect) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	for _, effect := range effects {
		select {
		case d.jobs <- effect:
		default:
			metrics.FanoutDropped.Inc()
			d.logger.Warn("drop effect, dispatch buffer full",
				"kind", effect.Kind,
				"ticket_id", effect.Ticket.TicketID,
				"number", effect.Ticket.Number,
			)
		}
	}
}

// Close stops accepting effects and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(effect queue.Effect) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	d.Handle(ctx, effect)
}

// Handle delivers one effect synchronously. Failures are logged, never
// returned: the queue state is already committed.
func (d *Dispatcher) Handle(ctx context.Context, effect queue.Effect) {
	switch effect.Kind {
	case queue.EffectRegistered:
		d.notify(ctx, notify.KindRegistered, d.info(ctx, effect))
	case queue.EffectApproaching:
		if !notify.Eligible(effect.Ticket) {
			return
		}
		if !d.claim(ctx, effect, d.deps.Guards.MarkApproachingNotified) {
			return
		}
		d.notify(ctx, notify.KindApproaching, d.info(ctx, effect))
	case queue.EffectCalled:
		if notify.Eligible(effect.Ticket) && d.claim(ctx, effect, d.deps.Guards.MarkCalledNotified) {
			info := notify.Info{Ticket: effect.Ticket, ServiceName: effect.Service.Name, Counter: counter(effect)}
			d.notify(ctx, notify.KindCalled, info)
		}
		d.publishCall(ctx, broadcast.EventCalled, effect)
	case queue.EffectRecalled:
		d.publishCall(ctx, broadcast.EventRecalled, effect)
	case queue.EffectBoardUpdated:
		d.publishBoard(ctx, effect)
	default:
		d.logger.Warn("unknown effect kind", "kind", effect.Kind)
	}
}

func (d *Dispatcher) claim(ctx context.Context, effect queue.Effect, mark func(context.Context, string, time.Time) (bool, error)) bool {
	won, err := mark(ctx, effect.Ticket.TicketID, effect.At)
	if err != nil {
		metrics.Deliveries.WithLabelValues("guard", "error").Inc()
		d.logger.Warn("notification guard failed",
			"kind", effect.Kind,
			"ticket_id", effect.Ticket.TicketID,
			"error", err,
		)
		return false
	}
	return won
}

// info adds position and estimate; a failed read still sends the message
// without them.
func (d *Dispatcher) info(ctx context.Context, effect queue.Effect) notify.Info {
	info := notify.Info{Ticket: effect.Ticket, ServiceName: effect.Service.Name}
	view, err := d.deps.Reader.Ticket(ctx, effect.Ticket.TicketID)
	if err != nil {
		d.logger.Warn("ticket view for notification failed", "ticket_id", effect.Ticket.TicketID, "error", err)
		return info
	}
	info.Position = view.Position
	info.EstimatedWaitMinutes = view.EstimatedWaitMinutes
	return info
}

func (d *Dispatcher) notify(ctx context.Context, kind notify.Kind, info notify.Info) {
	// Provider failures are logged by the notifier.
	_, _ = d.deps.Notifier.Notify(ctx, kind, info)
}

func (d *Dispatcher) publishCall(ctx context.Context, eventType string, effect queue.Effect) {
	ticket := effect.Ticket
	calledAt := effect.At
	if ticket.CalledAt != nil {
		calledAt = *ticket.CalledAt
	}
	payload := broadcast.CalledPayload{
		TicketID:    ticket.TicketID,
		Number:      ticket.Number,
		Counter:     counter(effect),
		ServiceID:   ticket.ServiceID,
		ServiceName: effect.Service.Name,
		CalledAt:    calledAt,
	}

	if d.deps.Announcer != nil {
		url, err := d.deps.Announcer.ClipURL(ctx, announce.CallInfo{
			Number:      payload.Number,
			Counter:     payload.Counter,
			ServiceName: payload.ServiceName,
			CalledAt:    calledAt,
		})
		switch {
		case err != nil:
			metrics.Deliveries.WithLabelValues("announce", "error").Inc()
			d.logger.Warn("announcement clip failed",
				"ticket_id", ticket.TicketID,
				"number", ticket.Number,
				"error", err,
			)
		case url != "":
			metrics.Deliveries.WithLabelValues("announce", "ok").Inc()
			payload.AudioURL = url
		}
	}

	event, err := broadcast.NewEvent(eventType, ticket.ServiceID, payload, effect.At)
	if err != nil {
		d.logger.Warn("build call event failed", "ticket_id", ticket.TicketID, "error", err)
		return
	}
	d.publish(ctx, event, ticket)
}

// publishBoard sends the whole day's snapshot to every board; the payload
// names the service whose queue changed.
func (d *Dispatcher) publishBoard(ctx context.Context, effect queue.Effect) {
	serviceID := effect.Service.ServiceID
	if serviceID == "" {
		serviceID = effect.Ticket.ServiceID
	}
	stats, err := d.deps.Reader.TodayStats(ctx, "")
	if err != nil {
		d.logger.Warn("board stats failed", "service_id", serviceID, "error", err)
		return
	}
	event, err := broadcast.NewEvent(broadcast.EventBoardUpdated, "", broadcast.BoardPayload{
		ServiceID: serviceID,
		Stats:     stats,
		Timestamp: effect.At,
	}, effect.At)
	if err != nil {
		d.logger.Warn("build board event failed", "service_id", serviceID, "error", err)
		return
	}
	d.publish(ctx, event, effect.Ticket)
}

func (d *Dispatcher) publish(ctx context.Context, event broadcast.Event, ticket models.Ticket) {
	if err := d.deps.Publisher.Publish(ctx, event); err != nil {
		metrics.Deliveries.WithLabelValues("broadcast", "error").Inc()
		d.logger.Warn("broadcast failed",
			"type", event.Type,
			"ticket_id", ticket.TicketID,
			"number", ticket.Number,
			"error", err,
		)
		return
	}
	metrics.Deliveries.WithLabelValues("broadcast", "ok").Inc()
}

func counter(effect queue.Effect) string {
	if effect.Officer == nil {
		return ""
	}
	return effect.Officer.CounterNumber
}
