package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/landchain/registry-service/internal/domain"
	"github.com/landchain/registry-service/internal/store"
)

type consumerRepoStub struct {
	store.Repository

	property  *domain.Property
	lookupErr error

	ledgerStateSet bool
}

func (s *consumerRepoStub) FindPropertyByMatricula(ctx context.Context, matriculaID int64) (*domain.Property, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if s.property == nil {
		return nil, store.ErrPropertyNotFound
	}
	return s.property, nil
}

func (s *consumerRepoStub) SetPropertyLedgerState(ctx context.Context, matriculaID int64, state store.PropertyLedgerState) error {
	s.ledgerStateSet = true
	return nil
}

func newConsumer(repo store.Repository) *LedgerEventConsumer {
	properties := NewPropertyService(repo, &fakeJobPublisher{}, &fakeApprovalForwarder{})
	transfers := NewTransferService(repo, &fakeJobPublisher{}, properties, testApprovers())
	return NewLedgerEventConsumer(properties, transfers)
}

func TestHandleRegistrationUpdate_AcksMalformedPayload(t *testing.T) {
	consumer := newConsumer(&consumerRepoStub{})

	if !consumer.HandleRegistrationUpdate([]byte("{not json")) {
		t.Fatal("expected malformed payload to be acked")
	}
}

func TestHandleRegistrationUpdate_AcksUnknownMatricula(t *testing.T) {
	consumer := newConsumer(&consumerRepoStub{})

	body := []byte(`{"matricula_id": 999999, "tx_hash": "0xabc", "approval_status": "EXECUTED"}`)
	if !consumer.HandleRegistrationUpdate(body) {
		t.Fatal("expected unknown matricula to be acked and dropped")
	}
}

func TestHandleRegistrationUpdate_RequeuesOnTransientError(t *testing.T) {
	consumer := newConsumer(&consumerRepoStub{lookupErr: errors.New("connection reset")})

	body := []byte(`{"matricula_id": 555001, "tx_hash": "0xabc", "approval_status": "EXECUTED"}`)
	if consumer.HandleRegistrationUpdate(body) {
		t.Fatal("expected transient error to requeue the delivery")
	}
}

func TestHandleRegistrationUpdate_AppliesConfirmation(t *testing.T) {
	repo := &consumerRepoStub{property: &domain.Property{
		MatriculaID: 555001,
		Status:      domain.PropertyStatusProcessingRegistration,
	}}
	consumer := newConsumer(repo)

	body := []byte(`{"matricula_id": 555001, "tx_hash": "0xabc", "request_hash": "req-1", "approval_status": "EXECUTED"}`)
	if !consumer.HandleRegistrationUpdate(body) {
		t.Fatal("expected successful confirmation to be acked")
	}
	if !repo.ledgerStateSet {
		t.Fatal("expected ledger state to be recorded")
	}
}

func TestHandleTransferCompleted_AcksInvalidTransferID(t *testing.T) {
	consumer := newConsumer(&consumerRepoStub{})

	body := []byte(`{"transfer_id": "not-a-uuid", "tx_hash": "0xabc"}`)
	if !consumer.HandleTransferCompleted(body) {
		t.Fatal("expected invalid transfer id to be acked and dropped")
	}
}

func TestHandleTransferCompleted_AcksUnknownTransfer(t *testing.T) {
	repo := &transferRepoStub{}
	consumer := newConsumer(repo)

	body := []byte(fmt.Sprintf(`{"transfer_id": %q, "tx_hash": "0xabc"}`, uuid.New()))
	if !consumer.HandleTransferCompleted(body) {
		t.Fatal("expected unknown transfer to be acked and dropped")
	}
}

func TestHandlePropertyTransferred_AcksUnresolvableWallet(t *testing.T) {
	repo := &transferRepoStub{property: &domain.Property{MatriculaID: 555001}}
	consumer := newConsumer(repo)

	body := []byte(`{"matricula_id": 555001, "to": "0xstranger", "tx_hash": "0xabc"}`)
	if !consumer.HandlePropertyTransferred(body) {
		t.Fatal("expected unresolvable wallet to be acked and dropped")
	}
}
