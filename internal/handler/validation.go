package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/collection-ledger/pkg/errors"
	"github.com/segyhp/collection-ledger/pkg/response"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

// newValidator returns a validator that understands decimal amounts.
// Decimals are validated through their string form so decimal_gt and
// decimal_gte can compare them exactly.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("decimal_gt", decimalBound(func(d, bound decimal.Decimal) bool {
		return d.GreaterThan(bound)
	}))
	_ = v.RegisterValidation("decimal_gte", decimalBound(func(d, bound decimal.Decimal) bool {
		return d.GreaterThanOrEqual(bound)
	}))

	return v
}

func decimalBound(cmp func(d, bound decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return cmp(d, bound)
	}
}

// validationError flattens validator output into one readable message
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return customError.WrapInvalidRequest("validation failed", err)
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			msgs = append(msgs, fe.Field()+" failed "+fe.Tag()+"="+fe.Param())
		} else {
			msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
		}
	}
	return customError.WrapInvalidRequest(strings.Join(msgs, "; "), nil)
}

// decodeAndValidate reads a JSON body into dst. It writes the 400 response
// itself and reports false when the request cannot be used.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid JSON payload", customError.WrapInvalidRequest("malformed body", err))
		return false
	}
	if err := v.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", validationError(err))
		return false
	}
	return true
}

// pathUUID parses a UUID route variable, answering 400 when it is malformed
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+name, customError.WrapInvalidRequest(name+" must be a UUID", err))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses a required UUID query parameter
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		response.BadRequest(w, "Missing "+name, customError.WrapInvalidRequest(name+" is required", nil))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(w, "Invalid "+name, customError.WrapInvalidRequest(name+" must be a UUID", err))
		return uuid.Nil, false
	}
	return id, true
}

// queryDate parses a YYYY-MM-DD query parameter, using fallback when absent
func queryDate(w http.ResponseWriter, r *http.Request, name string, fallback *time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if fallback != nil {
			return *fallback, true
		}
		response.BadRequest(w, "Missing "+name, customError.WrapInvalidRequest(name+" is required", nil))
		return time.Time{}, false
	}
	d, err := utils.ParseDate(raw)
	if err != nil {
		response.BadRequest(w, "Invalid "+name, customError.WrapInvalidRequest(name+" must be YYYY-MM-DD", err))
		return time.Time{}, false
	}
	return d, true
}

// optionalDate parses a date already checked by the validator
func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := utils.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

// mustDate parses a date the validator has already required
func mustDate(s string) time.Time {
	d, _ := utils.ParseDate(s)
	return d
}
