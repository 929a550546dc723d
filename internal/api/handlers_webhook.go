/**
 * @description
 * This file contains the HTTP handlers for the ledger webhook endpoints. The
 * ledger worker calls these after a job settles; the same payloads can also
 * arrive over the event queue, so each handler delegates to the idempotent
 * reconciliation methods on the services.
 *
 * Delivery is at-least-once: a record that cannot be found is reported as a
 * 404 so the caller can drop the delivery, while transient errors surface as
 * 500 and get retried by the worker.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/domain: For event payload models.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/landchain/registry-service/internal/domain"
)

// LedgerRegistrationWebhookHandler ingests registration progress for a property.
func (h *RegistryHandlers) LedgerRegistrationWebhookHandler(w http.ResponseWriter, r *http.Request) {
	matriculaID, ok := h.matriculaParam(w, r)
	if !ok {
		return
	}

	var event domain.PropertyRegistrationEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.properties.ApplyRegistrationConfirmation(r.Context(), matriculaID, event.LedgerTxHash, event.RequestHash, event.Phase)
	if err != nil {
		h.writeServiceError(w, "ledger_registration_webhook", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// LedgerPropertyTransferredWebhookHandler ingests a ledger-executed ownership change.
func (h *RegistryHandlers) LedgerPropertyTransferredWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var event domain.PropertyTransferredEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if event.MatriculaID <= 0 || event.NewOwnerAddress == "" {
		h.writeError(w, http.StatusBadRequest, "matricula_id and to are required")
		return
	}

	err := h.properties.ApplyOwnerChange(r.Context(), event.MatriculaID, event.NewOwnerAddress, event.LedgerTxHash)
	if err != nil {
		h.writeServiceError(w, "ledger_property_transferred_webhook", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// LedgerTransferConfiguredWebhookHandler ingests the configuration confirmation
// that opens a transfer's approval window.
func (h *RegistryHandlers) LedgerTransferConfiguredWebhookHandler(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.transferParam(w, r)
	if !ok {
		return
	}

	var event domain.TransferConfiguredEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.transfers.ApplyConfigurationConfirmation(r.Context(), transferID, event.LedgerTxHash, event.RequestHash); err != nil {
		h.writeServiceError(w, "ledger_transfer_configured_webhook", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// LedgerTransferCompletedWebhookHandler ingests the execution confirmation
// that closes a transfer and moves ownership to the buyer.
func (h *RegistryHandlers) LedgerTransferCompletedWebhookHandler(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.transferParam(w, r)
	if !ok {
		return
	}

	var event domain.TransferCompletedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.transfers.ApplyCompletionConfirmation(r.Context(), transferID, event.LedgerTxHash); err != nil {
		h.writeServiceError(w, "ledger_transfer_completed_webhook", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}
