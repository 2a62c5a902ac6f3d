package queue

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"qms/queue-core/internal/models"
)

const (
	MaxDocuments     = 5
	MaxDocumentBytes = 5 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Registration is the intake payload of a new ticket.
type Registration struct {
	ServiceID     string          `json:"service_id" validate:"required"`
	RequesterName string          `json:"requester_name" validate:"required,max=255"`
	NationalID    string          `json:"national_id" validate:"omitempty,len=16,number"`
	Phone         string          `json:"phone" validate:"omitempty,min=8,max=20"`
	Email         string          `json:"email" validate:"omitempty,email"`
	IsPriority    bool            `json:"is_priority"`
	Source        string          `json:"source" validate:"omitempty,oneof=online kiosk"`
	NotifyEmail   bool            `json:"notify_email"`
	NotifySMS     bool            `json:"notify_sms"`
	Documents     []DocumentInput `json:"documents" validate:"max=5,dive"`
}

type DocumentInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,oneof=application/pdf image/jpeg image/png"`
	SizeBytes   int64  `json:"size_bytes" validate:"gt=0,lte=5242880"`
	StorageKey  string `json:"storage_key" validate:"required"`
}

func (r *Registration) normalize() {
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.RequesterName = strings.TrimSpace(r.RequesterName)
	r.NationalID = strings.TrimSpace(r.NationalID)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.Source = strings.ToLower(strings.TrimSpace(r.Source))
	if r.Source == "" {
		r.Source = models.SourceOnline
	}
}

// ValidateStruct reports every failed field rule as one ValidationError.
func ValidateStruct(value interface{}) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fieldMessage(fe))
	}
	return &ValidationError{Fields: messages}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", field, fe.Param())
	case "number":
		return fmt.Sprintf("%s must contain digits only", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
