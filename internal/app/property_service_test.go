package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/landchain/registry-service/internal/domain"
	"github.com/landchain/registry-service/internal/store"
)

type publishedJob struct {
	jobType domain.LedgerJobType
	payload map[string]interface{}
}

type fakeJobPublisher struct {
	jobs       []publishedJob
	publishErr error
}

func (f *fakeJobPublisher) PublishLedgerJob(ctx context.Context, jobType domain.LedgerJobType, payload map[string]interface{}) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.jobs = append(f.jobs, publishedJob{jobType: jobType, payload: payload})
	return uuid.New().String(), nil
}

type fakeApprovalForwarder struct {
	forwardedHash string
	forwardedRole domain.ApproverKind
	forwardErr    error
	called        bool
}

func (f *fakeApprovalForwarder) ForwardRegistrationApproval(ctx context.Context, requestHash string, role domain.ApproverKind) error {
	f.called = true
	f.forwardedHash = requestHash
	f.forwardedRole = role
	return f.forwardErr
}

type registrationRepoStub struct {
	store.Repository

	owner *domain.User

	createdProperty *domain.Property
	createErr       error

	statusFrom domain.PropertyStatus
	statusTo   domain.PropertyStatus
	statusErr  error
}

func (s *registrationRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if s.owner == nil || s.owner.ID != userID {
		return nil, store.ErrUserNotFound
	}
	return s.owner, nil
}

func (s *registrationRepoStub) CreateProperty(ctx context.Context, property *domain.Property) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdProperty = property
	return nil
}

func (s *registrationRepoStub) UpdatePropertyStatus(ctx context.Context, matriculaID int64, from, to domain.PropertyStatus) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	s.statusFrom = from
	s.statusTo = to
	return nil
}

func validRegistration(ownerID uuid.UUID) domain.RegisterPropertyRequest {
	return domain.RegisterPropertyRequest{
		MatriculaID: 555001,
		Folha:       12,
		Comarca:     "Florianopolis",
		Endereco:    "Rua das Gaivotas, 100",
		Metragem:    420,
		OwnerID:     ownerID,
		Tipo:        domain.PropertyTypeUrbano,
	}
}

func TestRegisterProperty_DispatchesJobAndAdvancesStatus(t *testing.T) {
	owner := &domain.User{ID: uuid.New(), Username: "ana", WalletAddress: "0xabc"}
	repo := &registrationRepoStub{owner: owner}
	jobs := &fakeJobPublisher{}
	svc := NewPropertyService(repo, jobs, &fakeApprovalForwarder{})

	property, err := svc.RegisterProperty(context.Background(), validRegistration(owner.ID))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if property.Status != domain.PropertyStatusProcessingRegistration {
		t.Fatalf("expected PROCESSING_REGISTRATION, got %s", property.Status)
	}
	if len(jobs.jobs) != 1 || jobs.jobs[0].jobType != domain.JobRegisterProperty {
		t.Fatalf("expected one REGISTER_PROPERTY job, got %+v", jobs.jobs)
	}
	if got := jobs.jobs[0].payload["proprietario"]; got != "0xabc" {
		t.Fatalf("expected owner wallet in payload, got %v", got)
	}
	if got := jobs.jobs[0].payload["tipo"]; got != 0 {
		t.Fatalf("expected URBANO ordinal 0 in payload, got %v", got)
	}
	if repo.statusFrom != domain.PropertyStatusPending || repo.statusTo != domain.PropertyStatusProcessingRegistration {
		t.Fatalf("expected PENDING -> PROCESSING_REGISTRATION transition, got %s -> %s", repo.statusFrom, repo.statusTo)
	}
}

func TestRegisterProperty_RejectsInvalidType(t *testing.T) {
	owner := &domain.User{ID: uuid.New(), WalletAddress: "0xabc"}
	repo := &registrationRepoStub{owner: owner}
	jobs := &fakeJobPublisher{}
	svc := NewPropertyService(repo, jobs, &fakeApprovalForwarder{})

	req := validRegistration(owner.ID)
	req.Tipo = "SUBURBANO"

	_, err := svc.RegisterProperty(context.Background(), req)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatal("did not expect a job dispatch for invalid input")
	}
}

func TestRegisterProperty_UnknownOwner(t *testing.T) {
	repo := &registrationRepoStub{}
	svc := NewPropertyService(repo, &fakeJobPublisher{}, &fakeApprovalForwarder{})

	_, err := svc.RegisterProperty(context.Background(), validRegistration(uuid.New()))
	if !errors.Is(err, ErrUnknownOwner) {
		t.Fatalf("expected unknown owner error, got %v", err)
	}
}

func TestRegisterProperty_DuplicateMatricula(t *testing.T) {
	owner := &domain.User{ID: uuid.New(), WalletAddress: "0xabc"}
	repo := &registrationRepoStub{owner: owner, createErr: store.ErrDuplicateMatricula}
	jobs := &fakeJobPublisher{}
	svc := NewPropertyService(repo, jobs, &fakeApprovalForwarder{})

	_, err := svc.RegisterProperty(context.Background(), validRegistration(owner.ID))
	if !errors.Is(err, store.ErrDuplicateMatricula) {
		t.Fatalf("expected duplicate matricula error, got %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatal("did not expect a job dispatch for a duplicate matricula")
	}
}

func TestRegisterProperty_StaysPendingWhenDispatchFails(t *testing.T) {
	owner := &domain.User{ID: uuid.New(), WalletAddress: "0xabc"}
	repo := &registrationRepoStub{owner: owner}
	jobs := &fakeJobPublisher{publishErr: errors.New("broker down")}
	svc := NewPropertyService(repo, jobs, &fakeApprovalForwarder{})

	property, err := svc.RegisterProperty(context.Background(), validRegistration(owner.ID))
	if err != nil {
		t.Fatalf("expected nil error despite dispatch failure, got %v", err)
	}
	if property.Status != domain.PropertyStatusPending {
		t.Fatalf("expected property to stay PENDING, got %s", property.Status)
	}
	if repo.statusTo != "" {
		t.Fatalf("did not expect a status transition, got %s -> %s", repo.statusFrom, repo.statusTo)
	}
}

type confirmationRepoStub struct {
	store.Repository

	property *domain.Property

	ledgerState     store.PropertyLedgerState
	ledgerStateSet  bool
	ownerSet        bool
	newOwnerID      uuid.UUID
	statusUpdateErr error
}

func (s *confirmationRepoStub) FindPropertyByMatricula(ctx context.Context, matriculaID int64) (*domain.Property, error) {
	if s.property == nil || s.property.MatriculaID != matriculaID {
		return nil, store.ErrPropertyNotFound
	}
	return s.property, nil
}

func (s *confirmationRepoStub) SetPropertyLedgerState(ctx context.Context, matriculaID int64, state store.PropertyLedgerState) error {
	s.ledgerStateSet = true
	s.ledgerState = state
	return nil
}

func (s *confirmationRepoStub) SetPropertyOwner(ctx context.Context, matriculaID int64, ownerID uuid.UUID) error {
	s.ownerSet = true
	s.newOwnerID = ownerID
	return nil
}

func (s *confirmationRepoStub) UpdatePropertyStatus(ctx context.Context, matriculaID int64, from, to domain.PropertyStatus) error {
	return s.statusUpdateErr
}

func TestApplyRegistrationConfirmation_ExecutedSetsOK(t *testing.T) {
	repo := &confirmationRepoStub{property: &domain.Property{
		MatriculaID: 555001,
		Status:      domain.PropertyStatusProcessingRegistration,
	}}
	svc := NewPropertyService(repo, &fakeJobPublisher{}, &fakeApprovalForwarder{})

	err := svc.ApplyRegistrationConfirmation(context.Background(), 555001, "0xhash", "req-1", domain.RegistrationPhaseExecuted)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !repo.ledgerStateSet {
		t.Fatal("expected ledger state to be recorded")
	}
	if repo.ledgerState.Status == nil || *repo.ledgerState.Status != domain.PropertyStatusOK {
		t.Fatalf("expected status OK, got %+v", repo.ledgerState.Status)
	}
	if repo.ledgerState.LedgerTxHash == nil || *repo.ledgerState.LedgerTxHash != "0xhash" {
		t.Fatal("expected tx hash to be recorded")
	}
}

func TestApplyRegistrationConfirmation_PendingReplayDoesNotDowngrade(t *testing.T) {
	repo := &confirmationRepoStub{property: &domain.Property{
		MatriculaID: 555001,
		Status:      domain.PropertyStatusOK,
	}}
	svc := NewPropertyService(repo, &fakeJobPublisher{}, &fakeApprovalForwarder{})

	err := svc.ApplyRegistrationConfirmation(context.Background(), 555001, "0xhash", "req-1", domain.RegistrationPhasePendingApprovals)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.ledgerState.Status != nil {
		t.Fatalf("expected status downgrade to be ignored, got %s", *repo.ledgerState.Status)
	}
	if repo.ledgerState.RequestHash == nil || *repo.ledgerState.RequestHash != "req-1" {
		t.Fatal("expected request hash to still be recorded")
	}
}

func TestBeginTransferHold_ConflictMapsToStateMismatch(t *testing.T) {
	repo := &confirmationRepoStub{statusUpdateErr: store.ErrStatusConflict}
	svc := NewPropertyService(repo, &fakeJobPublisher{}, &fakeApprovalForwarder{})

	err := svc.BeginTransferHold(context.Background(), 555001)
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch, got %v", err)
	}
}

func TestEndTransferHold_IgnoresAlreadyReleased(t *testing.T) {
	repo := &confirmationRepoStub{statusUpdateErr: store.ErrStatusConflict}
	svc := NewPropertyService(repo, &fakeJobPublisher{}, &fakeApprovalForwarder{})

	if err := svc.EndTransferHold(context.Background(), 555001); err != nil {
		t.Fatalf("expected nil error for already released hold, got %v", err)
	}
}

func TestForwardRegistrationApproval_RequiresRequestHash(t *testing.T) {
	repo := &confirmationRepoStub{property: &domain.Property{
		MatriculaID: 555001,
		Status:      domain.PropertyStatusProcessingRegistration,
	}}
	forwarder := &fakeApprovalForwarder{}
	svc := NewPropertyService(repo, &fakeJobPublisher{}, forwarder)

	err := svc.ForwardRegistrationApproval(context.Background(), 555001, domain.ApproverKindNotary)
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch for missing request hash, got %v", err)
	}
	if forwarder.called {
		t.Fatal("did not expect the approval API to be called")
	}
}

func TestForwardRegistrationApproval_RelaysHashAndRole(t *testing.T) {
	hash := "req-42"
	repo := &confirmationRepoStub{property: &domain.Property{
		MatriculaID: 555001,
		Status:      domain.PropertyStatusProcessingRegistration,
		RequestHash: &hash,
	}}
	forwarder := &fakeApprovalForwarder{}
	svc := NewPropertyService(repo, &fakeJobPublisher{}, forwarder)

	if err := svc.ForwardRegistrationApproval(context.Background(), 555001, domain.ApproverKindMunicipality); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if forwarder.forwardedHash != "req-42" || forwarder.forwardedRole != domain.ApproverKindMunicipality {
		t.Fatalf("expected hash and role to be relayed, got %q %q", forwarder.forwardedHash, forwarder.forwardedRole)
	}
}
