package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/landchain/registry-service/internal/domain"
	"github.com/landchain/registry-service/internal/store"
)

type transferRepoStub struct {
	store.Repository

	property  *domain.Property
	users     map[uuid.UUID]*domain.User
	transfers []domain.Transfer

	createdTransfer *domain.Transfer
	createErr       error

	propertyStatusFrom domain.PropertyStatus
	propertyStatusTo   domain.PropertyStatus
	propertyHoldErr    error
	holdReleased       bool

	transferStatusFrom domain.TransferStatus
	transferStatusTo   domain.TransferStatus
	transferStatusErr  error

	approval          *domain.TransferApproval
	decidedKind       domain.ApproverKind
	decidedDecision   domain.ApprovalDecision
	decideErr         error
	approvalsSeeded   []domain.ApproverKind
	ledgerState       store.TransferLedgerState
	ledgerStateSet    bool
	ownerSet          bool
	newOwnerID        uuid.UUID
	propertyStateSets int
}

func (s *transferRepoStub) FindPropertyByMatricula(ctx context.Context, matriculaID int64) (*domain.Property, error) {
	if s.property == nil || s.property.MatriculaID != matriculaID {
		return nil, store.ErrPropertyNotFound
	}
	return s.property, nil
}

func (s *transferRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (s *transferRepoStub) FindUserByWalletAddress(ctx context.Context, walletAddress string) (*domain.User, error) {
	for _, user := range s.users {
		if user.WalletAddress == walletAddress {
			return user, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *transferRepoStub) ListTransfersByMatricula(ctx context.Context, matriculaID int64) ([]domain.Transfer, error) {
	return s.transfers, nil
}

func (s *transferRepoStub) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdTransfer = transfer
	return nil
}

func (s *transferRepoStub) UpdatePropertyStatus(ctx context.Context, matriculaID int64, from, to domain.PropertyStatus) error {
	if s.propertyHoldErr != nil && to == domain.PropertyStatusInTransfer {
		return s.propertyHoldErr
	}
	s.propertyStatusFrom = from
	s.propertyStatusTo = to
	if to == domain.PropertyStatusOK && from == domain.PropertyStatusInTransfer {
		s.holdReleased = true
	}
	return nil
}

func (s *transferRepoStub) UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, from, to domain.TransferStatus) error {
	if s.transferStatusErr != nil {
		return s.transferStatusErr
	}
	s.transferStatusFrom = from
	s.transferStatusTo = to
	return nil
}

func (s *transferRepoStub) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	for i := range s.transfers {
		if s.transfers[i].ID == transferID {
			return &s.transfers[i], nil
		}
	}
	return nil, store.ErrTransferNotFound
}

func (s *transferRepoStub) FindTransferApproval(ctx context.Context, transferID uuid.UUID, kind domain.ApproverKind) (*domain.TransferApproval, error) {
	if s.approval == nil {
		return nil, store.ErrApprovalNotFound
	}
	return s.approval, nil
}

func (s *transferRepoStub) DecideTransferApproval(ctx context.Context, transferID uuid.UUID, kind domain.ApproverKind, approverID uuid.UUID, decision domain.ApprovalDecision, comment *string) error {
	if s.decideErr != nil {
		return s.decideErr
	}
	s.decidedKind = kind
	s.decidedDecision = decision
	return nil
}

func (s *transferRepoStub) CreateTransferApprovals(ctx context.Context, transferID uuid.UUID, kinds []domain.ApproverKind) error {
	s.approvalsSeeded = kinds
	return nil
}

func (s *transferRepoStub) SetTransferLedgerState(ctx context.Context, transferID uuid.UUID, state store.TransferLedgerState) error {
	s.ledgerStateSet = true
	s.ledgerState = state
	return nil
}

func (s *transferRepoStub) SetPropertyOwner(ctx context.Context, matriculaID int64, ownerID uuid.UUID) error {
	s.ownerSet = true
	s.newOwnerID = ownerID
	return nil
}

func (s *transferRepoStub) SetPropertyLedgerState(ctx context.Context, matriculaID int64, state store.PropertyLedgerState) error {
	s.propertyStateSets++
	return nil
}

func testApprovers() map[domain.ApproverKind]string {
	return map[domain.ApproverKind]string{
		domain.ApproverKindNotary:       "0xnotary",
		domain.ApproverKindFinancial:    "0xbank",
		domain.ApproverKindMunicipality: "0xcity",
	}
}

func newTransferFixture(sellerID, buyerID uuid.UUID) *transferRepoStub {
	return &transferRepoStub{
		property: &domain.Property{
			ID:          uuid.New(),
			MatriculaID: 555001,
			OwnerID:     sellerID,
			IsRegular:   true,
			Status:      domain.PropertyStatusOK,
		},
		users: map[uuid.UUID]*domain.User{
			sellerID: {ID: sellerID, Username: "seller", WalletAddress: "0xseller"},
			buyerID:  {ID: buyerID, Username: "buyer", WalletAddress: "0xbuyer"},
		},
	}
}

func newTransferServices(repo *transferRepoStub, jobs *fakeJobPublisher) *TransferService {
	properties := NewPropertyService(repo, jobs, &fakeApprovalForwarder{})
	return NewTransferService(repo, jobs, properties, testApprovers())
}

func TestInitiateTransfer_DispatchesConfigureJob(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	jobs := &fakeJobPublisher{}
	svc := newTransferServices(repo, jobs)

	transfer, err := svc.InitiateTransfer(context.Background(), domain.InitiateTransferRequest{
		MatriculaID: 555001, SellerID: sellerID, BuyerID: buyerID,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if transfer.Status != domain.TransferStatusConfiguring {
		t.Fatalf("expected CONFIGURING, got %s", transfer.Status)
	}
	if len(jobs.jobs) != 1 || jobs.jobs[0].jobType != domain.JobConfigureTransfer {
		t.Fatalf("expected one CONFIGURE_TRANSFER job, got %+v", jobs.jobs)
	}
	approvers, ok := jobs.jobs[0].payload["aprovadores"].([]string)
	if !ok || len(approvers) != 3 {
		t.Fatalf("expected three approver wallets, got %v", jobs.jobs[0].payload["aprovadores"])
	}
	if approvers[0] != "0xnotary" || approvers[1] != "0xbank" || approvers[2] != "0xcity" {
		t.Fatalf("expected role-ordered approver wallets, got %v", approvers)
	}
	if repo.propertyStatusTo != domain.PropertyStatusInTransfer {
		t.Fatal("expected the property hold to be taken")
	}
}

func TestInitiateTransfer_ActiveTransferConflict(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	repo.property.Status = domain.PropertyStatusInTransfer
	repo.transfers = []domain.Transfer{{
		ID:          uuid.New(),
		MatriculaID: 555001,
		Status:      domain.TransferStatusAwaitingApprovals,
	}}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	_, err := svc.InitiateTransfer(context.Background(), domain.InitiateTransferRequest{
		MatriculaID: 555001, SellerID: sellerID, BuyerID: buyerID,
	})
	if !errors.Is(err, store.ErrActiveTransferExists) {
		t.Fatalf("expected active transfer conflict, got %v", err)
	}
}

func TestInitiateTransfer_CompletedTransferDoesNotBlock(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	repo.transfers = []domain.Transfer{{
		ID:          uuid.New(),
		MatriculaID: 555001,
		Status:      domain.TransferStatusCompleted,
	}}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	if _, err := svc.InitiateTransfer(context.Background(), domain.InitiateTransferRequest{
		MatriculaID: 555001, SellerID: sellerID, BuyerID: buyerID,
	}); err != nil {
		t.Fatalf("expected completed transfer to be ignored, got %v", err)
	}
}

func TestInitiateTransfer_SellerMustOwnProperty(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(uuid.New(), buyerID)
	repo.users[sellerID] = &domain.User{ID: sellerID, WalletAddress: "0xseller"}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	_, err := svc.InitiateTransfer(context.Background(), domain.InitiateTransferRequest{
		MatriculaID: 555001, SellerID: sellerID, BuyerID: buyerID,
	})
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch for non-owner seller, got %v", err)
	}
}

func TestInitiateTransfer_SellerCannotBeBuyer(t *testing.T) {
	sellerID := uuid.New()
	repo := newTransferFixture(sellerID, uuid.New())
	svc := newTransferServices(repo, &fakeJobPublisher{})

	_, err := svc.InitiateTransfer(context.Background(), domain.InitiateTransferRequest{
		MatriculaID: 555001, SellerID: sellerID, BuyerID: sellerID,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitiateTransfer_PropertyMustBeOK(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	repo.property.Status = domain.PropertyStatusPending
	repo.propertyHoldErr = store.ErrStatusConflict
	svc := newTransferServices(repo, &fakeJobPublisher{})

	_, err := svc.InitiateTransfer(context.Background(), domain.InitiateTransferRequest{
		MatriculaID: 555001, SellerID: sellerID, BuyerID: buyerID,
	})
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch for unregistered property, got %v", err)
	}
}

func TestInitiateTransfer_FrozenPropertyRejected(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	repo.property.IsRegular = false
	svc := newTransferServices(repo, &fakeJobPublisher{})

	_, err := svc.InitiateTransfer(context.Background(), domain.InitiateTransferRequest{
		MatriculaID: 555001, SellerID: sellerID, BuyerID: buyerID,
	})
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch for frozen property, got %v", err)
	}
}

func TestInitiateTransfer_DispatchFailureReleasesHold(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	jobs := &fakeJobPublisher{publishErr: errors.New("broker down")}
	svc := newTransferServices(repo, jobs)

	transfer, err := svc.InitiateTransfer(context.Background(), domain.InitiateTransferRequest{
		MatriculaID: 555001, SellerID: sellerID, BuyerID: buyerID,
	})
	if err != nil {
		t.Fatalf("expected nil error despite dispatch failure, got %v", err)
	}
	if transfer.Status != domain.TransferStatusPending {
		t.Fatalf("expected transfer to stay PENDING, got %s", transfer.Status)
	}
	if !repo.holdReleased {
		t.Fatal("expected the property hold to be released")
	}
}

func TestRecordApproverDecision_RequiresAwaitingApprovals(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusConfiguring,
	}}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	err := svc.RecordApproverDecision(context.Background(), transferID, domain.ApproveTransferRequest{
		ApproverKind: domain.ApproverKindNotary,
		ApproverID:   uuid.New(),
		Decision:     domain.ApprovalDecisionApproved,
	})
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch, got %v", err)
	}
}

func TestRecordApproverDecision_RejectedOnCompletedTransfer(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusCompleted,
	}}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	err := svc.RecordApproverDecision(context.Background(), transferID, domain.ApproveTransferRequest{
		ApproverKind: domain.ApproverKindMunicipality,
		ApproverID:   uuid.New(),
		Decision:     domain.ApprovalDecisionApproved,
	})
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch on completed transfer, got %v", err)
	}
}

func TestRecordApproverDecision_ApprovedDispatchesJob(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusAwaitingApprovals,
	}}
	repo.approval = &domain.TransferApproval{
		TransferID:   transferID,
		ApproverKind: domain.ApproverKindFinancial,
		Decision:     domain.ApprovalDecisionPending,
	}
	jobs := &fakeJobPublisher{}
	svc := newTransferServices(repo, jobs)

	err := svc.RecordApproverDecision(context.Background(), transferID, domain.ApproveTransferRequest{
		ApproverKind: domain.ApproverKindFinancial,
		ApproverID:   uuid.New(),
		Decision:     domain.ApprovalDecisionApproved,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(jobs.jobs) != 1 || jobs.jobs[0].jobType != domain.JobApproveTransfer {
		t.Fatalf("expected one APPROVE_TRANSFER job, got %+v", jobs.jobs)
	}
	if got := jobs.jobs[0].payload["aprovador"]; got != "0xbank" {
		t.Fatalf("expected financial approver wallet, got %v", got)
	}
	if repo.decidedDecision != domain.ApprovalDecisionApproved {
		t.Fatalf("expected APPROVED recorded, got %s", repo.decidedDecision)
	}
}

func TestRecordApproverDecision_RejectionStaysLocal(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusAwaitingApprovals,
	}}
	repo.approval = &domain.TransferApproval{
		TransferID:   transferID,
		ApproverKind: domain.ApproverKindNotary,
		Decision:     domain.ApprovalDecisionPending,
	}
	jobs := &fakeJobPublisher{}
	svc := newTransferServices(repo, jobs)

	err := svc.RecordApproverDecision(context.Background(), transferID, domain.ApproveTransferRequest{
		ApproverKind: domain.ApproverKindNotary,
		ApproverID:   uuid.New(),
		Decision:     domain.ApprovalDecisionRejected,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatal("did not expect a ledger job for a rejection")
	}
	if repo.decidedDecision != domain.ApprovalDecisionRejected {
		t.Fatalf("expected REJECTED recorded, got %s", repo.decidedDecision)
	}
}

func TestRecordBuyerAcceptance_WrongBuyerRejected(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusAwaitingApprovals,
	}}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	err := svc.RecordBuyerAcceptance(context.Background(), transferID, domain.AcceptTransferRequest{BuyerID: uuid.New()})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordBuyerAcceptance_DispatchesAcceptJob(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusAwaitingApprovals,
	}}
	jobs := &fakeJobPublisher{}
	svc := newTransferServices(repo, jobs)

	if err := svc.RecordBuyerAcceptance(context.Background(), transferID, domain.AcceptTransferRequest{BuyerID: buyerID}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(jobs.jobs) != 1 || jobs.jobs[0].jobType != domain.JobAcceptTransfer {
		t.Fatalf("expected one ACCEPT_TRANSFER job, got %+v", jobs.jobs)
	}
	if got := jobs.jobs[0].payload["comprador"]; got != "0xbuyer" {
		t.Fatalf("expected buyer wallet in payload, got %v", got)
	}
}

func TestApplyConfigurationConfirmation_SeedsApprovals(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusConfiguring,
	}}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	if err := svc.ApplyConfigurationConfirmation(context.Background(), transferID, "0xcfg", "req-9"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.transferStatusFrom != domain.TransferStatusConfiguring || repo.transferStatusTo != domain.TransferStatusAwaitingApprovals {
		t.Fatalf("expected CONFIGURING -> AWAITING_APPROVALS, got %s -> %s", repo.transferStatusFrom, repo.transferStatusTo)
	}
	if len(repo.approvalsSeeded) != len(domain.RequiredApproverKinds) {
		t.Fatalf("expected all approval rows seeded, got %v", repo.approvalsSeeded)
	}
	if !repo.ledgerStateSet || repo.ledgerState.RequestHash == nil || *repo.ledgerState.RequestHash != "req-9" {
		t.Fatal("expected request hash recorded on the transfer")
	}
}

func TestApplyCompletionConfirmation_ReplayNoOps(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusCompleted,
	}}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	if err := svc.ApplyCompletionConfirmation(context.Background(), transferID, "0xdone"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.ownerSet {
		t.Fatal("did not expect ownership to change on a replay")
	}
	if repo.ledgerStateSet {
		t.Fatal("did not expect ledger state writes on a replay")
	}
}

func TestApplyCompletionConfirmation_MovesOwnershipToBuyer(t *testing.T) {
	sellerID, buyerID := uuid.New(), uuid.New()
	repo := newTransferFixture(sellerID, buyerID)
	transferID := uuid.New()
	repo.transfers = []domain.Transfer{{
		ID:          transferID,
		MatriculaID: 555001,
		SellerID:    sellerID,
		BuyerID:     buyerID,
		Status:      domain.TransferStatusAwaitingApprovals,
	}}
	svc := newTransferServices(repo, &fakeJobPublisher{})

	if err := svc.ApplyCompletionConfirmation(context.Background(), transferID, "0xdone"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.transferStatusTo != domain.TransferStatusCompleted {
		t.Fatalf("expected transfer closed at COMPLETED, got %s", repo.transferStatusTo)
	}
	if !repo.ownerSet || repo.newOwnerID != buyerID {
		t.Fatalf("expected ownership moved to buyer, got set=%t owner=%s", repo.ownerSet, repo.newOwnerID)
	}
}
