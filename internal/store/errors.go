package store

import "errors"

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrOfficerNotFound = errors.New("officer not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrDuplicateNumber = errors.New("ticket number already issued")
)
