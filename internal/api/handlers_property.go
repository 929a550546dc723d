/**
 * @description
 * This file contains the HTTP handlers for the property endpoints: title
 * registration intake, lookups, the owner/comarca list filters, the
 * freeze/unfreeze administrative actions, and the relay of registration
 * approvals to the off-chain approval API.
 *
 * @dependencies
 * - encoding/json, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/domain: For request/response models.
 */

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/landchain/registry-service/internal/domain"
)

// RegisterPropertyHandler handles requests to register a new title record.
func (h *RegistryHandlers) RegisterPropertyHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.enforceSubmissionLimit(w, r, "register_property", req.OwnerID.String()) {
		return
	}

	property, err := h.properties.RegisterProperty(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "register_property", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, property)
}

// GetPropertyHandler returns a single property by its matricula.
func (h *RegistryHandlers) GetPropertyHandler(w http.ResponseWriter, r *http.Request) {
	matriculaID, ok := h.matriculaParam(w, r)
	if !ok {
		return
	}

	property, err := h.properties.GetPropertyByMatricula(r.Context(), matriculaID)
	if err != nil {
		h.writeServiceError(w, "get_property", err)
		return
	}

	h.writeJSON(w, http.StatusOK, property)
}

// ListPropertiesHandler lists properties, optionally filtered by owner or comarca.
func (h *RegistryHandlers) ListPropertiesHandler(w http.ResponseWriter, r *http.Request) {
	if ownerParam := strings.TrimSpace(r.URL.Query().Get("owner")); ownerParam != "" {
		ownerID, err := uuid.Parse(ownerParam)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid owner id")
			return
		}
		properties, err := h.properties.ListPropertiesByOwner(r.Context(), ownerID)
		if err != nil {
			h.writeServiceError(w, "list_properties", err)
			return
		}
		h.writeJSON(w, http.StatusOK, properties)
		return
	}

	if comarca := strings.TrimSpace(r.URL.Query().Get("comarca")); comarca != "" {
		properties, err := h.properties.ListPropertiesByComarca(r.Context(), comarca)
		if err != nil {
			h.writeServiceError(w, "list_properties", err)
			return
		}
		h.writeJSON(w, http.StatusOK, properties)
		return
	}

	properties, err := h.properties.ListProperties(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_properties", err)
		return
	}
	h.writeJSON(w, http.StatusOK, properties)
}

// FreezePropertyHandler marks a property irregular and dispatches the freeze job.
func (h *RegistryHandlers) FreezePropertyHandler(w http.ResponseWriter, r *http.Request) {
	matriculaID, ok := h.matriculaParam(w, r)
	if !ok {
		return
	}

	property, err := h.properties.FreezeProperty(r.Context(), matriculaID)
	if err != nil {
		h.writeServiceError(w, "freeze_property", err)
		return
	}
	h.writeJSON(w, http.StatusOK, property)
}

// UnfreezePropertyHandler marks a frozen property regular again.
func (h *RegistryHandlers) UnfreezePropertyHandler(w http.ResponseWriter, r *http.Request) {
	matriculaID, ok := h.matriculaParam(w, r)
	if !ok {
		return
	}

	property, err := h.properties.UnfreezeProperty(r.Context(), matriculaID)
	if err != nil {
		h.writeServiceError(w, "unfreeze_property", err)
		return
	}
	h.writeJSON(w, http.StatusOK, property)
}

// ForwardRegistrationApprovalHandler relays an approving entity's registration
// approval to the off-chain approval API.
func (h *RegistryHandlers) ForwardRegistrationApprovalHandler(w http.ResponseWriter, r *http.Request) {
	matriculaID, ok := h.matriculaParam(w, r)
	if !ok {
		return
	}

	kind := domain.ApproverKind(strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "role"))))
	if err := h.properties.ForwardRegistrationApproval(r.Context(), matriculaID, kind); err != nil {
		h.writeServiceError(w, "forward_registration_approval", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "forwarded"})
}

func (h *RegistryHandlers) matriculaParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "matriculaID")
	matriculaID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || matriculaID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid matricula id")
		return 0, false
	}
	return matriculaID, true
}
