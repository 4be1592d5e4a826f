package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

// maxBodyBytes bounds every JSON body. Code is capped at 100KB by the
// service; JSON escaping can roughly double that.
const maxBodyBytes = 1 << 20

// validate checks request shapes (required fields, lengths, enums) before
// they reach the services. The services repeat the business rules, so this
// only exists to give HTTP clients early, field-named errors.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their JSON name ("subCategoryName", not "SubCategoryName")
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// category accepts any member of the fixed Category enum
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.Category(strings.TrimSpace(fl.Field().String())).Valid()
	})

	return v
}

// decodeJSON reads the body into dst and validates it.
// Every failure is returned as an apperror validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperror.ValidationFailed("body", "request body is too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}

	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns the first validator failure into a readable message.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return apperror.ValidationFailed("body", "invalid request")
	}

	fe := errs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "max":
		msg = fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	case "category":
		msg = fmt.Sprintf("%s %q is not a known category", field, fe.Value())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return apperror.ValidationFailed(field, msg)
}
