/**
 * @description
 * This file contains the transfer lifecycle service. A transfer moves a
 * registered title from a seller to a buyer through an externally-settled
 * multi-party approval flow: the service records the local view, dispatches
 * the configure/approve/accept jobs to the ledger queue, and reconciles the
 * configured/completed confirmations that flow back.
 *
 * Key behaviors:
 * - Initiation takes the property's transfer hold before creating the
 *   transfer row, so at most one non-terminal transfer exists per matricula.
 * - Approver decisions and buyer acceptance are recorded locally for audit
 *   but the ledger's approval bookkeeping is authoritative; a local decision
 *   whose job dispatch fails is still recorded.
 * - Confirmation handlers are idempotent; replayed completion events no-op.
 *
 * @dependencies
 * - context, errors, fmt, log, strings: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/landchain/registry-service/internal/domain"
	"github.com/landchain/registry-service/internal/store"
)

// TransferService provides the business logic for the transfer lifecycle.
type TransferService struct {
	repo       store.Repository
	jobs       JobPublisher
	properties *PropertyService

	// approvers maps each required approver kind to its ledger wallet
	// address, as provisioned in configuration.
	approvers map[domain.ApproverKind]string
}

// NewTransferService creates a new transfer lifecycle service.
func NewTransferService(repo store.Repository, jobs JobPublisher, properties *PropertyService, approvers map[domain.ApproverKind]string) *TransferService {
	return &TransferService{repo: repo, jobs: jobs, properties: properties, approvers: approvers}
}

// InitiateTransfer validates the request, takes the property's transfer hold,
// creates the transfer at PENDING, and dispatches the configuration job. On
// dispatch success the transfer advances to CONFIGURING; on dispatch failure
// the hold is released and the transfer stays PENDING.
func (s *TransferService) InitiateTransfer(ctx context.Context, req domain.InitiateTransferRequest) (*domain.Transfer, error) {
	if req.MatriculaID <= 0 {
		return nil, fmt.Errorf("%w: matricula_id must be greater than 0", ErrValidation)
	}
	if req.SellerID == uuid.Nil || req.BuyerID == uuid.Nil {
		return nil, fmt.Errorf("%w: seller_id and buyer_id are required", ErrValidation)
	}
	if req.SellerID == req.BuyerID {
		return nil, fmt.Errorf("%w: seller and buyer must differ", ErrValidation)
	}

	property, err := s.repo.FindPropertyByMatricula(ctx, req.MatriculaID)
	if err != nil {
		return nil, err
	}

	// An in-flight transfer on the same matricula is a conflict, and takes
	// precedence over the status mismatch the stale hold would also produce.
	existing, err := s.repo.ListTransfersByMatricula(ctx, req.MatriculaID)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		if !t.Status.Terminal() {
			return nil, fmt.Errorf("%w: transfer %s", store.ErrActiveTransferExists, t.ID)
		}
	}

	if property.OwnerID != req.SellerID {
		return nil, fmt.Errorf("%w: seller %s does not own matricula %d", ErrStateMismatch, req.SellerID, req.MatriculaID)
	}
	if !property.IsRegular {
		return nil, fmt.Errorf("%w: matricula %d is frozen", ErrStateMismatch, req.MatriculaID)
	}

	seller, err := s.repo.FindUserByID(ctx, req.SellerID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: seller %s", ErrUnknownOwner, req.SellerID)
		}
		return nil, fmt.Errorf("resolve seller: %w", err)
	}
	buyer, err := s.repo.FindUserByID(ctx, req.BuyerID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: buyer %s", ErrUnknownOwner, req.BuyerID)
		}
		return nil, fmt.Errorf("resolve buyer: %w", err)
	}

	if err := s.properties.BeginTransferHold(ctx, req.MatriculaID); err != nil {
		return nil, err
	}

	transfer := &domain.Transfer{
		ID:          uuid.New(),
		MatriculaID: req.MatriculaID,
		SellerID:    seller.ID,
		BuyerID:     buyer.ID,
		Status:      domain.TransferStatusPending,
	}

	if err := s.repo.CreateTransfer(ctx, transfer); err != nil {
		if releaseErr := s.properties.EndTransferHold(ctx, req.MatriculaID); releaseErr != nil {
			log.Printf("level=error component=transfer_service msg=\"failed to release transfer hold\" matricula_id=%d err=%v",
				req.MatriculaID, releaseErr)
		}
		return nil, err
	}

	log.Printf("level=info component=transfer_service msg=\"transfer initiated\" transfer_id=%s matricula_id=%d",
		transfer.ID, transfer.MatriculaID)

	approverAddresses := make([]string, 0, len(domain.RequiredApproverKinds))
	for _, kind := range domain.RequiredApproverKinds {
		approverAddresses = append(approverAddresses, s.approvers[kind])
	}

	jobID, err := s.jobs.PublishLedgerJob(ctx, domain.JobConfigureTransfer, map[string]interface{}{
		"transferId":  transfer.ID.String(),
		"matriculaId": fmt.Sprintf("%d", transfer.MatriculaID),
		"vendedor":    seller.WalletAddress,
		"comprador":   buyer.WalletAddress,
		"aprovadores": approverAddresses,
	})
	if err != nil {
		log.Printf("level=warn component=transfer_service msg=\"configure job dispatch failed; transfer stays PENDING\" transfer_id=%s err=%v",
			transfer.ID, err)
		if releaseErr := s.properties.EndTransferHold(ctx, req.MatriculaID); releaseErr != nil {
			log.Printf("level=error component=transfer_service msg=\"failed to release transfer hold\" matricula_id=%d err=%v",
				req.MatriculaID, releaseErr)
		}
		return transfer, nil
	}

	log.Printf("level=info component=transfer_service msg=\"configure job dispatched\" job_id=%s transfer_id=%s",
		jobID, transfer.ID)

	if err := s.repo.UpdateTransferStatus(ctx, transfer.ID,
		domain.TransferStatusPending, domain.TransferStatusConfiguring); err != nil {
		if !errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("advance transfer status: %w", err)
		}
	} else {
		transfer.Status = domain.TransferStatusConfiguring
	}

	return transfer, nil
}

// RecordApproverDecision records an approving entity's decision on a transfer
// and, when approved, dispatches the approval job to the ledger. The decision
// row is the local audit trail; the ledger's approval tally is authoritative,
// so the row is written even when the job dispatch fails.
func (s *TransferService) RecordApproverDecision(ctx context.Context, transferID uuid.UUID, req domain.ApproveTransferRequest) error {
	if !domain.ValidApproverKind(req.ApproverKind) {
		return fmt.Errorf("%w: unknown approver kind %q", ErrValidation, req.ApproverKind)
	}
	if req.Decision != domain.ApprovalDecisionApproved && req.Decision != domain.ApprovalDecisionRejected {
		return fmt.Errorf("%w: decision must be APPROVED or REJECTED", ErrValidation)
	}
	if req.ApproverID == uuid.Nil {
		return fmt.Errorf("%w: approver_id is required", ErrValidation)
	}

	transfer, err := s.repo.FindTransferByID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != domain.TransferStatusAwaitingApprovals {
		return fmt.Errorf("%w: transfer %s is %s, not %s",
			ErrStateMismatch, transferID, transfer.Status, domain.TransferStatusAwaitingApprovals)
	}

	if _, err := s.repo.FindTransferApproval(ctx, transferID, req.ApproverKind); err != nil {
		return err
	}

	approverAddress, ok := s.approvers[req.ApproverKind]
	if !ok || strings.TrimSpace(approverAddress) == "" {
		return fmt.Errorf("%w: no wallet provisioned for approver kind %s", ErrUnknownOwner, req.ApproverKind)
	}

	if req.Decision == domain.ApprovalDecisionApproved {
		jobID, err := s.jobs.PublishLedgerJob(ctx, domain.JobApproveTransfer, map[string]interface{}{
			"transferId":  transfer.ID.String(),
			"matriculaId": fmt.Sprintf("%d", transfer.MatriculaID),
			"aprovador":   approverAddress,
		})
		if err != nil {
			log.Printf("level=warn component=transfer_service msg=\"approve job dispatch failed; decision recorded locally\" transfer_id=%s approver_kind=%s err=%v",
				transfer.ID, req.ApproverKind, err)
		} else {
			log.Printf("level=info component=transfer_service msg=\"approve job dispatched\" job_id=%s transfer_id=%s approver_kind=%s",
				jobID, transfer.ID, req.ApproverKind)
		}
	}

	if err := s.repo.DecideTransferApproval(ctx, transferID, req.ApproverKind, req.ApproverID, req.Decision, req.Comment); err != nil {
		return err
	}

	log.Printf("level=info component=transfer_service msg=\"approver decision recorded\" transfer_id=%s approver_kind=%s decision=%s",
		transfer.ID, req.ApproverKind, req.Decision)
	return nil
}

// RecordBuyerAcceptance records the buyer's acceptance of a transfer and
// dispatches the acceptance job. Acceptance is only meaningful while the
// transfer is awaiting approvals; execution itself is the ledger's call.
func (s *TransferService) RecordBuyerAcceptance(ctx context.Context, transferID uuid.UUID, req domain.AcceptTransferRequest) error {
	transfer, err := s.repo.FindTransferByID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != domain.TransferStatusAwaitingApprovals {
		return fmt.Errorf("%w: transfer %s is %s, not %s",
			ErrStateMismatch, transferID, transfer.Status, domain.TransferStatusAwaitingApprovals)
	}
	if req.BuyerID != transfer.BuyerID {
		return fmt.Errorf("%w: acceptance must come from the transfer's buyer", ErrValidation)
	}

	buyer, err := s.repo.FindUserByID(ctx, transfer.BuyerID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("%w: buyer %s", ErrUnknownOwner, transfer.BuyerID)
		}
		return fmt.Errorf("resolve buyer: %w", err)
	}

	jobID, err := s.jobs.PublishLedgerJob(ctx, domain.JobAcceptTransfer, map[string]interface{}{
		"transferId":  transfer.ID.String(),
		"matriculaId": fmt.Sprintf("%d", transfer.MatriculaID),
		"comprador":   buyer.WalletAddress,
	})
	if err != nil {
		log.Printf("level=warn component=transfer_service msg=\"accept job dispatch failed\" transfer_id=%s err=%v",
			transfer.ID, err)
		return nil
	}

	log.Printf("level=info component=transfer_service msg=\"accept job dispatched\" job_id=%s transfer_id=%s",
		jobID, transfer.ID)
	return nil
}

// ApplyConfigurationConfirmation reconciles the ledger's confirmation that a
// transfer's approval flow is configured. It records the correlation hashes,
// advances the transfer to AWAITING_APPROVALS, and seeds the pending approval
// rows for the required approver kinds. Replays no-op once the transfer has
// completed.
func (s *TransferService) ApplyConfigurationConfirmation(ctx context.Context, transferID uuid.UUID, ledgerTxHash, requestHash string) error {
	transfer, err := s.repo.FindTransferByID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status == domain.TransferStatusCompleted {
		log.Printf("level=info component=transfer_service msg=\"configuration replay on completed transfer ignored\" transfer_id=%s",
			transferID)
		return nil
	}

	state := store.TransferLedgerState{
		LedgerTxHash: optionalString(ledgerTxHash),
		RequestHash:  optionalString(requestHash),
	}
	if err := s.repo.SetTransferLedgerState(ctx, transferID, state); err != nil {
		return fmt.Errorf("record configuration confirmation: %w", err)
	}

	err = s.repo.UpdateTransferStatus(ctx, transferID,
		domain.TransferStatusConfiguring, domain.TransferStatusAwaitingApprovals)
	if errors.Is(err, store.ErrStatusConflict) {
		// The confirmation can outrun the CONFIGURING flip when the initial
		// job dispatch succeeded but the local status advance lost a race.
		err = s.repo.UpdateTransferStatus(ctx, transferID,
			domain.TransferStatusPending, domain.TransferStatusAwaitingApprovals)
		if errors.Is(err, store.ErrStatusConflict) {
			log.Printf("level=info component=transfer_service msg=\"configuration confirmation replay ignored\" transfer_id=%s",
				transferID)
			err = nil
		}
	}
	if err != nil {
		return err
	}

	if err := s.repo.CreateTransferApprovals(ctx, transferID, domain.RequiredApproverKinds); err != nil {
		return fmt.Errorf("seed transfer approvals: %w", err)
	}

	log.Printf("level=info component=transfer_service msg=\"transfer awaiting approvals\" transfer_id=%s", transferID)
	return nil
}

// ApplyCompletionConfirmation reconciles the ledger's confirmation that a
// transfer executed. The transfer is closed at COMPLETED, the property's
// ownership moves to the buyer, and the transfer hold ends. Replays no-op.
func (s *TransferService) ApplyCompletionConfirmation(ctx context.Context, transferID uuid.UUID, ledgerTxHash string) error {
	transfer, err := s.repo.FindTransferByID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status == domain.TransferStatusCompleted {
		log.Printf("level=info component=transfer_service msg=\"completion replay ignored\" transfer_id=%s", transferID)
		return nil
	}

	if hash := optionalString(ledgerTxHash); hash != nil {
		if err := s.repo.SetTransferLedgerState(ctx, transferID, store.TransferLedgerState{LedgerTxHash: hash}); err != nil {
			return fmt.Errorf("record completion confirmation: %w", err)
		}
	}

	if err := s.repo.UpdateTransferStatus(ctx, transferID, transfer.Status, domain.TransferStatusCompleted); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			// Lost a race with another delivery of the same confirmation.
			return nil
		}
		return err
	}

	if err := s.properties.RecordOwnerChange(ctx, transfer.MatriculaID, transfer.BuyerID, ledgerTxHash); err != nil {
		return fmt.Errorf("apply ownership change: %w", err)
	}

	log.Printf("level=info component=transfer_service msg=\"transfer completed\" transfer_id=%s matricula_id=%d new_owner_id=%s",
		transferID, transfer.MatriculaID, transfer.BuyerID)
	return nil
}

// Read queries

func (s *TransferService) GetTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	return s.repo.FindTransferByID(ctx, transferID)
}

func (s *TransferService) ListTransfers(ctx context.Context) ([]domain.Transfer, error) {
	return s.repo.ListTransfers(ctx)
}

func (s *TransferService) ListTransfersByMatricula(ctx context.Context, matriculaID int64) ([]domain.Transfer, error) {
	return s.repo.ListTransfersByMatricula(ctx, matriculaID)
}

func (s *TransferService) ListTransfersBySeller(ctx context.Context, sellerID uuid.UUID) ([]domain.Transfer, error) {
	return s.repo.ListTransfersBySeller(ctx, sellerID)
}

func (s *TransferService) ListTransfersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Transfer, error) {
	return s.repo.ListTransfersByBuyer(ctx, buyerID)
}

func (s *TransferService) ListTransferApprovals(ctx context.Context, transferID uuid.UUID) ([]domain.TransferApproval, error) {
	if _, err := s.repo.FindTransferByID(ctx, transferID); err != nil {
		return nil, err
	}
	return s.repo.ListTransferApprovals(ctx, transferID)
}
