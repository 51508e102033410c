package events

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"visitortrack/api/apperrors"
	"visitortrack/api/models"
)

// FieldError is one failed rule on an ingestion payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidator returns a validator that knows the event rules and reports json field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("eventtype", validateEventType)
	return v
}

func validateEventType(fl validator.FieldLevel) bool {
	return models.EventType(fl.Field().String()).Valid()
}

func formatFieldError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return "value is too long"
	case "min":
		return "value must not be negative"
	case "eventtype":
		return "unknown event type"
	default:
		return "invalid value"
	}
}

// toValidationError converts validator output into an apperrors validation error.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("invalid event: %v", err)
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Message: formatFieldError(fe)})
	}
	msg := "invalid event"
	if len(details) > 0 {
		msg = "invalid event: " + details[0].Field + " " + details[0].Message
	}
	return apperrors.Validation("%s", msg).WithDetails(details)
}
