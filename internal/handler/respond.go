package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/pantry/internal/recipeai"
	"github.com/dukerupert/pantry/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

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

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, string(recipeai.KindInvalidInput), msg)
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, "not_found", msg)
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// decode reads a JSON body into v and validates its struct tags. On failure
// it writes a 400 response and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid JSON")
		return false
	}
	if err := validate.Struct(v); err != nil {
		badRequest(w, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email address")
		case "url":
			msgs = append(msgs, fe.Field()+" must be a valid URL")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// aiStatus maps a failed generation outcome onto an HTTP status.
func aiStatus(kind recipeai.Kind) int {
	switch kind {
	case recipeai.KindInvalidInput:
		return http.StatusBadRequest
	case recipeai.KindConfiguration:
		return http.StatusServiceUnavailable
	case recipeai.KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeAIError(w http.ResponseWriter, logger *slog.Logger, op string, e *recipeai.Error) {
	status := aiStatus(e.Kind)
	logger.Warn("recipe generation failed",
		"op", op,
		"kind", e.Kind,
		"status_code", e.StatusCode,
		"finish_reason", e.FinishReason,
		"error", e.Message,
	)
	writeJSON(w, status, errorResponse{
		Error:     e.UserMessage(),
		Kind:      string(e.Kind),
		Retryable: e.Retryable(),
	})
}

// writeStoreError reports a storage failure. Duplicate writes become 409;
// anything else is logged and hidden behind a 500.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "conflict", msg+": already exists")
		return
	}
	logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "persistence", msg)
}
