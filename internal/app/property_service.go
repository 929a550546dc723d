/**
 * @description
 * This file contains the property lifecycle service. It owns the property
 * state machine: registration intake, dispatch of the registration job to the
 * ledger queue, reconciliation of ledger confirmations, ownership changes,
 * transfer holds, and freeze/unfreeze.
 *
 * Key behaviors:
 * - Registration persists the record first, then dispatches; a dispatch
 *   failure is logged and the record stays PENDING for operational retry.
 * - Every confirmation handler is idempotent because the webhook/queue
 *   channel is at-least-once.
 * - Transfer holds are compare-and-swap status flips, so they double as the
 *   per-property serialization point for concurrent initiations.
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

// PropertyService provides the business logic for the property lifecycle.
type PropertyService struct {
	repo      store.Repository
	jobs      JobPublisher
	approvals ApprovalForwarder
}

// NewPropertyService creates a new property lifecycle service.
func NewPropertyService(repo store.Repository, jobs JobPublisher, approvals ApprovalForwarder) *PropertyService {
	return &PropertyService{repo: repo, jobs: jobs, approvals: approvals}
}

// RegisterProperty validates and persists a new title record at PENDING, then
// dispatches the registration job. On dispatch success the record advances to
// PROCESSING_REGISTRATION; on dispatch failure it stays PENDING and the
// failure is logged for operational retry.
func (s *PropertyService) RegisterProperty(ctx context.Context, req domain.RegisterPropertyRequest) (*domain.Property, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	owner, err := s.repo.FindUserByID(ctx, req.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: owner %s", ErrUnknownOwner, req.OwnerID)
		}
		return nil, fmt.Errorf("resolve owner: %w", err)
	}

	isRegular := true
	if req.IsRegular != nil {
		isRegular = *req.IsRegular
	}

	property := &domain.Property{
		ID:              uuid.New(),
		MatriculaID:     req.MatriculaID,
		Folha:           req.Folha,
		Comarca:         strings.TrimSpace(req.Comarca),
		Endereco:        strings.TrimSpace(req.Endereco),
		Metragem:        req.Metragem,
		OwnerID:         owner.ID,
		MatriculaOrigem: req.MatriculaOrigem,
		Tipo:            req.Tipo,
		IsRegular:       isRegular,
		Status:          domain.PropertyStatusPending,
	}

	if err := s.repo.CreateProperty(ctx, property); err != nil {
		return nil, err
	}

	log.Printf("level=info component=property_service msg=\"property registered\" matricula_id=%d property_id=%s",
		property.MatriculaID, property.ID)

	var matriculaOrigem int64
	if req.MatriculaOrigem != nil {
		matriculaOrigem = *req.MatriculaOrigem
	}

	jobID, err := s.jobs.PublishLedgerJob(ctx, domain.JobRegisterProperty, map[string]interface{}{
		"propertyId":      property.ID.String(),
		"matriculaId":     fmt.Sprintf("%d", property.MatriculaID),
		"folha":           fmt.Sprintf("%d", property.Folha),
		"comarca":         property.Comarca,
		"endereco":        property.Endereco,
		"metragem":        fmt.Sprintf("%d", property.Metragem),
		"proprietario":    owner.WalletAddress,
		"matriculaOrigem": fmt.Sprintf("%d", matriculaOrigem),
		"tipo":            property.Tipo.LedgerOrdinal(),
		"isRegular":       property.IsRegular,
	})
	if err != nil {
		// The record stays PENDING; retry is an operational action.
		log.Printf("level=warn component=property_service msg=\"registration job dispatch failed; property stays PENDING\" matricula_id=%d err=%v",
			property.MatriculaID, err)
		return property, nil
	}

	log.Printf("level=info component=property_service msg=\"registration job dispatched\" job_id=%s matricula_id=%d",
		jobID, property.MatriculaID)

	if err := s.repo.UpdatePropertyStatus(ctx, property.MatriculaID,
		domain.PropertyStatusPending, domain.PropertyStatusProcessingRegistration); err != nil {
		// A confirmation may already have advanced the record; that is fine.
		if !errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("advance property status: %w", err)
		}
	} else {
		property.Status = domain.PropertyStatusProcessingRegistration
	}

	return property, nil
}

// ApplyRegistrationConfirmation reconciles a ledger confirmation for a
// registration job. It records the tx hash and approval-system request hash,
// and advances the status according to the reported phase. Replays are
// harmless: a stale PENDING_APPROVALS delivery never downgrades a record that
// already reached OK.
func (s *PropertyService) ApplyRegistrationConfirmation(ctx context.Context, matriculaID int64, ledgerTxHash, requestHash, phase string) error {
	property, err := s.repo.FindPropertyByMatricula(ctx, matriculaID)
	if err != nil {
		return err
	}

	state := store.PropertyLedgerState{
		LedgerTxHash: optionalString(ledgerTxHash),
		RequestHash:  optionalString(requestHash),
	}

	switch strings.ToUpper(strings.TrimSpace(phase)) {
	case domain.RegistrationPhasePendingApprovals:
		if property.Status == domain.PropertyStatusPending ||
			property.Status == domain.PropertyStatusProcessingRegistration {
			status := domain.PropertyStatusProcessingRegistration
			state.Status = &status
		}
	case domain.RegistrationPhaseExecuted:
		if property.Status != domain.PropertyStatusInTransfer {
			status := domain.PropertyStatusOK
			state.Status = &status
		}
	default:
		// Unknown phase: keep the correlation fields, leave the status alone.
		log.Printf("level=warn component=property_service msg=\"unknown registration phase\" matricula_id=%d phase=%q",
			matriculaID, phase)
	}

	if err := s.repo.SetPropertyLedgerState(ctx, matriculaID, state); err != nil {
		return fmt.Errorf("record registration confirmation: %w", err)
	}

	log.Printf("level=info component=property_service msg=\"registration confirmation applied\" matricula_id=%d phase=%s",
		matriculaID, phase)
	return nil
}

// ApplyOwnerChange reconciles a ledger-reported ownership change. The new
// owner arrives as a wallet address and must resolve to a local user.
func (s *PropertyService) ApplyOwnerChange(ctx context.Context, matriculaID int64, newOwnerAddress, ledgerTxHash string) error {
	owner, err := s.repo.FindUserByWalletAddress(ctx, newOwnerAddress)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("%w: wallet %s", ErrUnknownOwner, newOwnerAddress)
		}
		return fmt.Errorf("resolve new owner: %w", err)
	}
	return s.RecordOwnerChange(ctx, matriculaID, owner.ID, ledgerTxHash)
}

// RecordOwnerChange sets the property's owner and returns it to OK. Applying
// the same owner twice is a no-op, which keeps completion replays safe.
func (s *PropertyService) RecordOwnerChange(ctx context.Context, matriculaID int64, newOwnerID uuid.UUID, ledgerTxHash string) error {
	if err := s.repo.SetPropertyOwner(ctx, matriculaID, newOwnerID); err != nil {
		return err
	}
	if hash := optionalString(ledgerTxHash); hash != nil {
		if err := s.repo.SetPropertyLedgerState(ctx, matriculaID, store.PropertyLedgerState{LedgerTxHash: hash}); err != nil {
			return err
		}
	}
	log.Printf("level=info component=property_service msg=\"property owner updated\" matricula_id=%d owner_id=%s",
		matriculaID, newOwnerID)
	return nil
}

// BeginTransferHold flips an OK property into IN_TRANSFER. The
// compare-and-swap guarantees only one concurrent transfer wins the hold.
func (s *PropertyService) BeginTransferHold(ctx context.Context, matriculaID int64) error {
	err := s.repo.UpdatePropertyStatus(ctx, matriculaID, domain.PropertyStatusOK, domain.PropertyStatusInTransfer)
	if errors.Is(err, store.ErrStatusConflict) {
		return fmt.Errorf("%w: property %d is not available for transfer", ErrStateMismatch, matriculaID)
	}
	return err
}

// EndTransferHold returns an IN_TRANSFER property to OK. Releasing a hold
// that is no longer held is a no-op, so completion and release may race.
func (s *PropertyService) EndTransferHold(ctx context.Context, matriculaID int64) error {
	err := s.repo.UpdatePropertyStatus(ctx, matriculaID, domain.PropertyStatusInTransfer, domain.PropertyStatusOK)
	if errors.Is(err, store.ErrStatusConflict) {
		return nil
	}
	return err
}

// FreezeProperty marks a registered property irregular and dispatches the
// freeze job. The local flag is durable even when the dispatch fails.
func (s *PropertyService) FreezeProperty(ctx context.Context, matriculaID int64) (*domain.Property, error) {
	return s.setRegularity(ctx, matriculaID, false, domain.JobFreezeProperty)
}

// UnfreezeProperty marks a frozen property regular again and dispatches the
// unfreeze job.
func (s *PropertyService) UnfreezeProperty(ctx context.Context, matriculaID int64) (*domain.Property, error) {
	return s.setRegularity(ctx, matriculaID, true, domain.JobUnfreezeProperty)
}

func (s *PropertyService) setRegularity(ctx context.Context, matriculaID int64, regular bool, jobType domain.LedgerJobType) (*domain.Property, error) {
	property, err := s.repo.FindPropertyByMatricula(ctx, matriculaID)
	if err != nil {
		return nil, err
	}
	if property.IsRegular == regular {
		return nil, fmt.Errorf("%w: property %d regularity is already %t", ErrStateMismatch, matriculaID, regular)
	}

	if err := s.repo.SetPropertyRegularity(ctx, matriculaID, regular); err != nil {
		return nil, err
	}
	property.IsRegular = regular

	jobID, err := s.jobs.PublishLedgerJob(ctx, jobType, map[string]interface{}{
		"matriculaId": fmt.Sprintf("%d", matriculaID),
	})
	if err != nil {
		log.Printf("level=warn component=property_service msg=\"regularity job dispatch failed\" matricula_id=%d job_type=%s err=%v",
			matriculaID, jobType, err)
		return property, nil
	}

	log.Printf("level=info component=property_service msg=\"regularity job dispatched\" job_id=%s matricula_id=%d job_type=%s",
		jobID, matriculaID, jobType)
	return property, nil
}

// ForwardRegistrationApproval relays an entity's registration approval to the
// off-chain approval API. The property must already carry the request hash
// assigned by the ledger's approval system.
func (s *PropertyService) ForwardRegistrationApproval(ctx context.Context, matriculaID int64, kind domain.ApproverKind) error {
	if !domain.ValidApproverKind(kind) {
		return fmt.Errorf("%w: unknown approver kind %q", ErrValidation, kind)
	}

	property, err := s.repo.FindPropertyByMatricula(ctx, matriculaID)
	if err != nil {
		return err
	}
	if property.RequestHash == nil || strings.TrimSpace(*property.RequestHash) == "" {
		return fmt.Errorf("%w: property %d has no request hash yet", ErrStateMismatch, matriculaID)
	}

	if err := s.approvals.ForwardRegistrationApproval(ctx, *property.RequestHash, kind); err != nil {
		return fmt.Errorf("forward registration approval: %w", err)
	}

	log.Printf("level=info component=property_service msg=\"registration approval forwarded\" matricula_id=%d approver_kind=%s",
		matriculaID, kind)
	return nil
}

// Read queries

func (s *PropertyService) GetPropertyByMatricula(ctx context.Context, matriculaID int64) (*domain.Property, error) {
	return s.repo.FindPropertyByMatricula(ctx, matriculaID)
}

func (s *PropertyService) ListProperties(ctx context.Context) ([]domain.Property, error) {
	return s.repo.ListProperties(ctx)
}

func (s *PropertyService) ListPropertiesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Property, error) {
	return s.repo.ListPropertiesByOwner(ctx, ownerID)
}

func (s *PropertyService) ListPropertiesByComarca(ctx context.Context, comarca string) ([]domain.Property, error) {
	if strings.TrimSpace(comarca) == "" {
		return nil, fmt.Errorf("%w: comarca cannot be empty", ErrValidation)
	}
	return s.repo.ListPropertiesByComarca(ctx, comarca)
}

func validateRegistration(req domain.RegisterPropertyRequest) error {
	if req.MatriculaID <= 0 {
		return fmt.Errorf("%w: matricula_id must be greater than 0", ErrValidation)
	}
	if req.Folha <= 0 {
		return fmt.Errorf("%w: folha must be greater than 0", ErrValidation)
	}
	if strings.TrimSpace(req.Comarca) == "" {
		return fmt.Errorf("%w: comarca cannot be empty", ErrValidation)
	}
	if strings.TrimSpace(req.Endereco) == "" {
		return fmt.Errorf("%w: endereco cannot be empty", ErrValidation)
	}
	if req.Metragem <= 0 {
		return fmt.Errorf("%w: metragem must be greater than 0", ErrValidation)
	}
	if req.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner_id is required", ErrValidation)
	}
	if !domain.ValidPropertyType(req.Tipo) {
		return fmt.Errorf("%w: invalid property type %q", ErrValidation, req.Tipo)
	}
	return nil
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
