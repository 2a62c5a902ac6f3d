// Package broadcast publishes display board events to realtime subscribers,
// either directly to the local hub or across instances through Redis.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"qms/queue-core/internal/hub"
	"qms/queue-core/internal/models"
)

const (
	EventCalled       = "ticket.called"
	EventRecalled     = "ticket.recalled"
	EventBoardUpdated = "board.updated"
)

type Event struct {
	Type      string          `json:"type"`
	ServiceID string          `json:"service_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type CalledPayload struct {
	TicketID    string    `json:"ticket_id"`
	Number      string    `json:"number"`
	Counter     string    `json:"counter"`
	ServiceID   string    `json:"service_id"`
	ServiceName string    `json:"service_name"`
	CalledAt    time.Time `json:"called_at"`
	AudioURL    string    `json:"audio_url,omitempty"`
}

type BoardPayload struct {
	ServiceID string            `json:"service_id"`
	Stats     models.DailyStats `json:"stats"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewEvent(eventType, serviceID string, payload interface{}, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, ServiceID: serviceID, Payload: raw, CreatedAt: at}, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// HubPublisher delivers to boards connected to this process.
type HubPublisher struct {
	Hub *hub.Hub
}

func (p HubPublisher) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.Hub.Broadcast(payload, hub.Subscription{ServiceID: event.ServiceID})
	return nil
}
