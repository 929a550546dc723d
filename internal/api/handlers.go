/**
 * @description
 * This file contains the shared plumbing for the registry-service's HTTP
 * handlers: the handler container, the JSON response helpers, and the mapping
 * from the service error taxonomy to HTTP status codes. The per-resource
 * handlers live in handlers_property.go, handlers_transfer.go, and
 * handlers_webhook.go.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/store: For service logic and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/landchain/registry-service/internal/app"
	"github.com/landchain/registry-service/internal/store"
)

// RegistryHandlers holds the application services that handlers will use.
type RegistryHandlers struct {
	properties *app.PropertyService
	transfers  *app.TransferService

	limiter          *app.RedisSubmissionRateLimiter
	submissionLimit  int
	submissionWindow time.Duration
}

// NewRegistryHandlers creates a new instance of RegistryHandlers.
func NewRegistryHandlers(properties *app.PropertyService, transfers *app.TransferService, limiter *app.RedisSubmissionRateLimiter, submissionLimitPerMinute int) *RegistryHandlers {
	return &RegistryHandlers{
		properties:       properties,
		transfers:        transfers,
		limiter:          limiter,
		submissionLimit:  submissionLimitPerMinute,
		submissionWindow: time.Minute,
	}
}

func (h *RegistryHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *RegistryHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service-layer errors to HTTP responses. Unrecognized
// errors are logged and become a 500 without leaking internals to the client.
func (h *RegistryHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrPropertyNotFound),
		errors.Is(err, store.ErrTransferNotFound),
		errors.Is(err, store.ErrApprovalNotFound),
		errors.Is(err, store.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateMatricula),
		errors.Is(err, store.ErrActiveTransferExists),
		errors.Is(err, store.ErrStatusConflict),
		errors.Is(err, store.ErrApprovalAlreadyDecided):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrStateMismatch),
		errors.Is(err, app.ErrUnknownOwner):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// enforceSubmissionLimit applies the per-subject fixed-window rate limit on
// the write endpoints. Limiter errors fail open: a Redis outage must not take
// the write path down with it.
func (h *RegistryHandlers) enforceSubmissionLimit(w http.ResponseWriter, r *http.Request, scope, subject string) bool {
	if h.limiter == nil || h.submissionLimit <= 0 {
		return true
	}

	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), scope, subject, h.submissionLimit, h.submissionWindow)
	if err != nil {
		log.Printf("level=warn component=api endpoint=%s msg=\"rate limiter unavailable; allowing request\" err=%v", scope, err)
		return true
	}
	if count > h.submissionLimit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "too many submissions; slow down")
		return false
	}
	return true
}
