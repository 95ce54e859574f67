package contact

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Submission is a contact form entry that passed validation.
type Submission struct {
	Name    string `json:"name" validate:"min=1"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"min=1"`
	Message string `json:"message" validate:"min=1,max=5000"`
	Website string `json:"website,omitempty"` // honeypot
}

// IsHoneypot reports whether the hidden website field was filled in, which
// only automated senders do.
func (s *Submission) IsHoneypot() bool {
	return strings.TrimSpace(s.Website) != ""
}

// ValidationError lists what is wrong with a submission. It is serialised
// as is into the 400 response.
type ValidationError struct {
	FormErrors  []string            `json:"formErrors"`
	FieldErrors map[string][]string `json:"fieldErrors"`
}

func newValidationError() *ValidationError {
	return &ValidationError{
		FormErrors:  []string{},
		FieldErrors: map[string][]string{},
	}
}

func (e *ValidationError) addForm(msg string) {
	e.FormErrors = append(e.FormErrors, msg)
}

func (e *ValidationError) addField(field, msg string) {
	e.FieldErrors[field] = append(e.FieldErrors[field], msg)
}

func (e *ValidationError) empty() bool {
	return len(e.FormErrors) == 0 && len(e.FieldErrors) == 0
}

// Fields returns the violated field names in sorted order.
func (e *ValidationError) Fields() []string {
	fields := lo.Keys(e.FieldErrors)
	sort.Strings(fields)
	return fields
}

func (e *ValidationError) Error() string {
	parts := append([]string{}, e.FormErrors...)
	for _, f := range e.Fields() {
		parts = append(parts, f+": "+strings.Join(e.FieldErrors[f], ", "))
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var requiredFields = []string{"name", "email", "subject", "message"}

// ParseSubmission decodes and validates a raw request body. On failure the
// returned error is a *ValidationError.
func ParseSubmission(body []byte) (*Submission, error) {
	verr := newValidationError()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			verr.addForm(fmt.Sprintf("Expected object, received %s", typeErr.Value))
		} else {
			verr.addForm("Malformed JSON")
		}
		return nil, verr
	}
	if raw == nil {
		verr.addForm("Expected object, received null")
		return nil, verr
	}

	fields := map[string]string{}
	for _, name := range requiredFields {
		value, present := raw[name]
		if !present {
			verr.addField(name, "Required")
			continue
		}
		s, ok := decodeString(value)
		if !ok {
			verr.addField(name, "Expected string, received "+jsonKind(value))
			continue
		}
		fields[name] = s
	}

	var website string
	if value, present := raw["website"]; present && jsonKind(value) != "null" {
		s, ok := decodeString(value)
		if !ok {
			verr.addField("website", "Expected string, received "+jsonKind(value))
		}
		website = s
	}

	sub := &Submission{
		Name:    fields["name"],
		Email:   fields["email"],
		Subject: fields["subject"],
		Message: fields["message"],
		Website: website,
	}

	if err := validate.Struct(sub); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("validate submission: %w", err)
		}
		for _, fe := range fieldErrs {
			// type errors already describe the field
			if _, reported := verr.FieldErrors[fe.Field()]; reported {
				continue
			}
			verr.addField(fe.Field(), fieldMessage(fe))
		}
	}

	if !verr.empty() {
		return nil, verr
	}
	return sub, nil
}

// decodeString accepts JSON strings only; null does not count as one.
func decodeString(value json.RawMessage) (string, bool) {
	if jsonKind(value) != "string" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", false
	}
	return s, true
}

func jsonKind(value json.RawMessage) string {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" {
		return "undefined"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "email":
		return "Invalid email"
	case "min":
		return fmt.Sprintf("String must contain at least %s character(s)", fe.Param())
	case "max":
		return fmt.Sprintf("String must contain at most %s character(s)", fe.Param())
	default:
		return fmt.Sprintf("Failed on %s", fe.Tag())
	}
}
