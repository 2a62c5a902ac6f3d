package queue

import (
	"errors"
	"fmt"
	"strings"

	"qms/queue-core/internal/models"
)

var (
	ErrValidation         = errors.New("invalid input")
	ErrInvalidState       = errors.New("ticket state does not allow this action")
	ErrOfficerMismatch    = errors.New("ticket is not held by this officer")
	ErrOfficerUnavailable = errors.New("officer cannot accept another ticket")
	ErrServiceClosed      = errors.New("service is not accepting registrations")
	ErrInvalidTransfer    = errors.New("transfer target is not valid")
	ErrTicketTaken        = errors.New("ticket already called by another officer")
)

// PreconditionError names the operation and the rule it violated.
type PreconditionError struct {
	Op     string
	Kind   error
	Status models.Status
	Detail string
}

func (e *PreconditionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Status != "" {
		fmt.Fprintf(&b, " (status %s)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *PreconditionError) Unwrap() error {
	return e.Kind
}

func precondition(op string, kind error, status models.Status, detail string) error {
	return &PreconditionError{Op: op, Kind: kind, Status: status, Detail: detail}
}

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
