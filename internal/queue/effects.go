package queue

import (
	"time"

	"qms/queue-core/internal/models"
)

type EffectKind string

const (
	EffectRegistered   EffectKind = "ticket.registered"
	EffectCalled       EffectKind = "ticket.called"
	EffectRecalled     EffectKind = "ticket.recalled"
	EffectApproaching  EffectKind = "ticket.approaching"
	EffectBoardUpdated EffectKind = "board.updated"
)

// Effect is a side effect requested by a committed transition. Effects are
// delivered after commit and never influence the ticket state.
type Effect struct {
	Kind    EffectKind
	Ticket  models.Ticket
	Service models.Service
	Officer *models.Officer
	At      time.Time
}

// Dispatcher consumes effects of committed operations.
type Dispatcher interface {
	Dispatch(effects ...Effect)
}

type discardDispatcher struct{}

func (discardDispatcher) Dispatch(...Effect) {}
