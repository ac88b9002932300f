// Package validation rejects malformed participant and message payloads.
// Every input is sanitized first and validated afterwards, so length
// bounds apply to the text that will actually be stored.
package validation

import (
	"batepapo/backend/internal/apperr"
	"batepapo/backend/internal/models"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type participantInput struct {
	Name string `json:"name" validate:"required,min=1,max=30"`
}

type messageInput struct {
	To   string `json:"to" validate:"required,min=1,max=15"`
	Text string `json:"text" validate:"required,min=1,max=200"`
	Type string `json:"type" validate:"required,oneof=message private_message"`
}

// Validator sanitizes and validates inbound payloads.
type Validator struct {
	validate  *validator.Validate
	sanitizer *Sanitizer
}

// New builds a Validator reporting fields by their JSON names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, sanitizer: NewSanitizer()}
}

// Sanitize exposes the underlying sanitizer.
func (v *Validator) Sanitize(text string) string {
	return v.sanitizer.Sanitize(text)
}

// Participant returns the normalized name for a join request.
func (v *Validator) Participant(name string) (string, error) {
	in := participantInput{Name: v.Sanitize(name)}
	if err := v.check(in); err != nil {
		return "", err
	}
	return in.Name, nil
}

// Message returns the normalized body of a post or edit request.
func (v *Validator) Message(req models.MessageRequest) (models.MessageRequest, error) {
	in := messageInput{
		To:   v.Sanitize(req.To),
		Text: v.Sanitize(req.Text),
		Type: v.Sanitize(req.Type),
	}
	if err := v.check(in); err != nil {
		return models.MessageRequest{}, err
	}
	return models.MessageRequest{To: in.To, Text: in.Text, Type: in.Type}, nil
}

// Requester normalizes the identity taken from the user header.
func (v *Validator) Requester(user string) (string, error) {
	name := v.Sanitize(user)
	if name == "" {
		return "", apperr.Invalid("user", "user header is required")
	}
	return name, nil
}

func (v *Validator) check(in any) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &apperr.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, apperr.FieldError{
			Field:   fe.Field(),
			Message: describe(fe),
		})
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
