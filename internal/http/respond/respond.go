package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	// Lets numeric tags such as gt=0 apply to decimal fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}

		return nil
	}, decimal.Decimal{})

	return v
}

type errorResponse struct {
	Code   apperr.Code       `json:"code,omitempty"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Decode reads a JSON body into v and validates it. Failures are returned as
// validation errors.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request body")
	}

	if err := validate.Struct(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request body")
	}

	return nil
}

// QueryInt reads a required integer query parameter.
func QueryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperr.Validation("%s query parameter is required", name)
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeValidation, err, "%s must be an integer", name)
	}

	return n, nil
}

func JSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// StatusFor maps an error code to the HTTP status it is reported with.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInsufficientBalance, apperr.CodeConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON error body. Errors without a code are logged and
// reported as a generic internal error.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	status := StatusFor(code)

	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		JSON(w, logger, status, errorResponse{Error: "internal error"})

		return
	}

	resp := errorResponse{Code: code, Error: err.Error()}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Error = "invalid request body"
		resp.Fields = make(map[string]string, len(verrs))

		for _, fe := range verrs {
			resp.Fields[fe.Field()] = fe.Tag()
		}
	}

	JSON(w, logger, status, resp)
}
