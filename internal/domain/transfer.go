/**
 * @description
 * This file defines the transfer and approval domain models. A Transfer tracks
 * one ownership change for a property; TransferApproval rows track the
 * per-entity approval gate that the external ledger enforces before executing.
 *
 * @notes
 * - At most one non-terminal Transfer may exist per matricula at any time;
 *   the store enforces this with a partial unique index.
 * - Approval rows are observational: the ledger is the source of truth for
 *   quorum, the local rows exist for visibility and auditing.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferStatus is the lifecycle status of an ownership transfer.
//
// Full flow: PENDING -> CONFIGURING -> AWAITING_APPROVALS -> COMPLETED
type TransferStatus string

const (
	// TransferStatusPending means the transfer is persisted but the configure
	// job has not been accepted by the queue yet.
	TransferStatusPending TransferStatus = "PENDING"
	// TransferStatusConfiguring means the ledger worker is configuring the
	// transfer contract with the approver set.
	TransferStatusConfiguring TransferStatus = "CONFIGURING"
	// TransferStatusAwaitingApprovals means the ledger confirmed the
	// configuration and is collecting entity approvals plus buyer acceptance.
	TransferStatusAwaitingApprovals TransferStatus = "AWAITING_APPROVALS"
	// TransferStatusCompleted is terminal; the ledger executed the transfer.
	TransferStatusCompleted TransferStatus = "COMPLETED"
)

// Terminal reports whether the status admits no further transitions.
func (s TransferStatus) Terminal() bool {
	return s == TransferStatusCompleted
}

// Transfer represents one ownership change request for a property.
// This struct maps directly to the `transfers` table in the database.
type Transfer struct {
	ID           uuid.UUID      `json:"id"`
	MatriculaID  int64          `json:"matricula_id"`
	SellerID     uuid.UUID      `json:"seller_id"`
	BuyerID      uuid.UUID      `json:"buyer_id"`
	Status       TransferStatus `json:"status"`
	LedgerTxHash *string        `json:"ledger_tx_hash,omitempty"`
	RequestHash  *string        `json:"request_hash,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ApproverKind identifies one of the entities whose approval is required
// before a transfer executes.
type ApproverKind string

const (
	// ApproverKindNotary is the cartorio (notary office).
	ApproverKindNotary ApproverKind = "NOTARY"
	// ApproverKindFinancial is the financial institution.
	ApproverKindFinancial ApproverKind = "FINANCIAL"
	// ApproverKindMunicipality is the prefeitura (city hall).
	ApproverKindMunicipality ApproverKind = "MUNICIPALITY"
)

// RequiredApproverKinds is the fixed set of roles every transfer must collect.
// The wallet address backing each role is configuration, not domain logic.
var RequiredApproverKinds = []ApproverKind{
	ApproverKindNotary,
	ApproverKindFinancial,
	ApproverKindMunicipality,
}

// ValidApproverKind reports whether k is a member of the required role set.
func ValidApproverKind(k ApproverKind) bool {
	for _, kind := range RequiredApproverKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ApprovalDecision is the state of a single approval row.
type ApprovalDecision string

const (
	ApprovalDecisionPending  ApprovalDecision = "PENDING"
	ApprovalDecisionApproved ApprovalDecision = "APPROVED"
	ApprovalDecisionRejected ApprovalDecision = "REJECTED"
)

// TransferApproval represents one required approval for a transfer. Exactly
// one row exists per (transfer, approver kind); it is decided at most once.
type TransferApproval struct {
	ID             uuid.UUID        `json:"id"`
	TransferID     uuid.UUID        `json:"transfer_id"`
	ApproverKind   ApproverKind     `json:"approver_kind"`
	ApproverUserID *uuid.UUID       `json:"approver_user_id,omitempty"`
	Decision       ApprovalDecision `json:"decision"`
	Comment        *string          `json:"comment,omitempty"`
	DecidedAt      *time.Time       `json:"decided_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// InitiateTransferRequest is the DTO for incoming transfer initiation API requests.
type InitiateTransferRequest struct {
	MatriculaID int64     `json:"matricula_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
}

// ApproveTransferRequest is the DTO for an approver's decision on a transfer.
type ApproveTransferRequest struct {
	ApproverKind ApproverKind     `json:"approver_kind"`
	ApproverID   uuid.UUID        `json:"approver_id"`
	Decision     ApprovalDecision `json:"decision"`
	Comment      *string          `json:"comment,omitempty"`
}

// AcceptTransferRequest is the DTO for the buyer's acceptance of a transfer.
type AcceptTransferRequest struct {
	BuyerID uuid.UUID `json:"buyer_id"`
}
