package notify

import (
	"context"
	"errors"
	"log/slog"

	"qms/queue-core/internal/metrics"
)

// Notifier routes composed messages to the provider of their channel.
// Delivery failures are logged and returned joined; callers treat them as
// non-fatal.
type Notifier struct {
	email  Sender
	text   Sender
	logger *slog.Logger
}

func NewNotifier(email, text Sender, logger *slog.Logger) *Notifier {
	if email == nil {
		email = NoopSender{}
	}
	if text == nil {
		text = NoopSender{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{email: email, text: text, logger: logger}
}

// Notify reports whether at least one channel was eligible.
func (n *Notifier) Notify(ctx context.Context, kind Kind, info Info) (bool, error) {
	messages := Compose(kind, info)
	var errs []error
	for _, msg := range messages {
		sender := n.text
		if msg.Channel == ChannelEmail {
			sender = n.email
		}
		if err := sender.Send(ctx, msg); err != nil {
			metrics.Deliveries.WithLabelValues("notify."+string(msg.Channel), "error").Inc()
			n.logger.Warn("notification delivery failed",
				"ticket_id", info.Ticket.TicketID,
				"number", info.Ticket.Number,
				"kind", kind,
				"channel", msg.Channel,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		metrics.Deliveries.WithLabelValues("notify."+string(msg.Channel), "ok").Inc()
	}
	return len(messages) > 0, errors.Join(errs...)
}
