/**
 * @description
 * This file contains the HTTP handlers for the transfer endpoints: initiation,
 * approver decisions, buyer acceptance, and the transfer/approval read views.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
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

// InitiateTransferHandler handles requests to start an ownership transfer.
func (h *RegistryHandlers) InitiateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.InitiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.enforceSubmissionLimit(w, r, "initiate_transfer", req.SellerID.String()) {
		return
	}

	transfer, err := h.transfers.InitiateTransfer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "initiate_transfer", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, transfer)
}

// ApproveTransferHandler records an approving entity's decision.
func (h *RegistryHandlers) ApproveTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.transferParam(w, r)
	if !ok {
		return
	}

	var req domain.ApproveTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.transfers.RecordApproverDecision(r.Context(), transferID, req); err != nil {
		h.writeServiceError(w, "approve_transfer", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// AcceptTransferHandler records the buyer's acceptance.
func (h *RegistryHandlers) AcceptTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.transferParam(w, r)
	if !ok {
		return
	}

	var req domain.AcceptTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.transfers.RecordBuyerAcceptance(r.Context(), transferID, req); err != nil {
		h.writeServiceError(w, "accept_transfer", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// GetTransferHandler returns a single transfer by its id.
func (h *RegistryHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.transferParam(w, r)
	if !ok {
		return
	}

	transfer, err := h.transfers.GetTransferByID(r.Context(), transferID)
	if err != nil {
		h.writeServiceError(w, "get_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, transfer)
}

// ListTransfersHandler lists transfers, optionally filtered by matricula,
// seller, or buyer.
func (h *RegistryHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	if raw := strings.TrimSpace(r.URL.Query().Get("matricula")); raw != "" {
		matriculaID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || matriculaID <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid matricula id")
			return
		}
		transfers, err := h.transfers.ListTransfersByMatricula(r.Context(), matriculaID)
		if err != nil {
			h.writeServiceError(w, "list_transfers", err)
			return
		}
		h.writeJSON(w, http.StatusOK, transfers)
		return
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("seller")); raw != "" {
		sellerID, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid seller id")
			return
		}
		transfers, err := h.transfers.ListTransfersBySeller(r.Context(), sellerID)
		if err != nil {
			h.writeServiceError(w, "list_transfers", err)
			return
		}
		h.writeJSON(w, http.StatusOK, transfers)
		return
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("buyer")); raw != "" {
		buyerID, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid buyer id")
			return
		}
		transfers, err := h.transfers.ListTransfersByBuyer(r.Context(), buyerID)
		if err != nil {
			h.writeServiceError(w, "list_transfers", err)
			return
		}
		h.writeJSON(w, http.StatusOK, transfers)
		return
	}

	transfers, err := h.transfers.ListTransfers(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_transfers", err)
		return
	}
	h.writeJSON(w, http.StatusOK, transfers)
}

// ListTransferApprovalsHandler returns the approval rows for a transfer.
func (h *RegistryHandlers) ListTransferApprovalsHandler(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.transferParam(w, r)
	if !ok {
		return
	}

	approvals, err := h.transfers.ListTransferApprovals(r.Context(), transferID)
	if err != nil {
		h.writeServiceError(w, "list_transfer_approvals", err)
		return
	}
	h.writeJSON(w, http.StatusOK, approvals)
}

func (h *RegistryHandlers) transferParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	transferID, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid transfer id")
		return uuid.Nil, false
	}
	return transferID, true
}
