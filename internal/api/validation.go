package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var errUnsupportedBody = errors.New("unsupported request body")

// ValidationErrors maps a field name to its messages.
type ValidationErrors url.Values

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e))
	for field, messages := range e {
		if len(messages) > 0 {
			parts = append(parts, field+": "+messages[0])
		}
	}
	return "validation error: " + strings.Join(parts, ", ")
}

func (e ValidationErrors) Add(field, message string) {
	url.Values(e).Add(field, message)
}

func (e ValidationErrors) Has(field string) bool {
	return len(e[field]) > 0
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind decodes a JSON or form encoded body into dst and validates it.
// Payload structs use only string fields tagged with json names, so form
// values go through the same JSON mapping.
func (h *Handler) bind(r *http.Request, dst any) error {
	if err := decode(r, dst); err != nil {
		return err
	}

	err := h.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(ValidationErrors, len(verrs))
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func decode(r *http.Request, dst any) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
		if err := dec.Decode(dst); err != nil {
			return ValidationErrors{"body": {"must be valid JSON"}}
		}
		return nil
	case "application/x-www-form-urlencoded", "":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return ValidationErrors{"body": {"must be a valid form"}}
		}
		fields := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dst)
	default:
		return fmt.Errorf("%w: %s", errUnsupportedBody, ct)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "eqfield":
		return "does not match"
	default:
		return "is invalid"
	}
}
