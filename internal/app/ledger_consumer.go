package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/landchain/registry-service/internal/domain"
	"github.com/landchain/registry-service/internal/store"
)

// LedgerEventConsumer handles ledger confirmations delivered over the event
// queue. Each handler returns true to ack and false to requeue: malformed
// payloads and unknown correlation ids are acked (redelivery cannot fix
// them), transient processing errors are requeued.
type LedgerEventConsumer struct {
	properties *PropertyService
	transfers  *TransferService
}

func NewLedgerEventConsumer(properties *PropertyService, transfers *TransferService) *LedgerEventConsumer {
	return &LedgerEventConsumer{properties: properties, transfers: transfers}
}

func (c *LedgerEventConsumer) HandleRegistrationUpdate(body []byte) bool {
	var event domain.PropertyRegistrationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("ledger-consumer: failed to unmarshal registration event: %v", err)
		return true
	}
	if event.MatriculaID <= 0 {
		log.Printf("ledger-consumer: missing matricula id in registration event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := c.properties.ApplyRegistrationConfirmation(ctx, event.MatriculaID, event.LedgerTxHash, event.RequestHash, event.Phase)
	if err != nil {
		if errors.Is(err, store.ErrPropertyNotFound) {
			log.Printf("ledger-consumer: no property found for matricula %d; acknowledging", event.MatriculaID)
			return true
		}
		log.Printf("ledger-consumer: registration update failed for matricula %d: %v", event.MatriculaID, err)
		return false
	}
	return true
}

func (c *LedgerEventConsumer) HandlePropertyTransferred(body []byte) bool {
	var event domain.PropertyTransferredEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("ledger-consumer: failed to unmarshal ownership event: %v", err)
		return true
	}
	if event.MatriculaID <= 0 || event.NewOwnerAddress == "" {
		log.Printf("ledger-consumer: incomplete ownership event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := c.properties.ApplyOwnerChange(ctx, event.MatriculaID, event.NewOwnerAddress, event.LedgerTxHash)
	if err != nil {
		if errors.Is(err, store.ErrPropertyNotFound) || errors.Is(err, ErrUnknownOwner) {
			log.Printf("ledger-consumer: cannot apply ownership event for matricula %d: %v; acknowledging", event.MatriculaID, err)
			return true
		}
		log.Printf("ledger-consumer: ownership update failed for matricula %d: %v", event.MatriculaID, err)
		return false
	}
	return true
}

func (c *LedgerEventConsumer) HandleTransferConfigured(body []byte) bool {
	var event domain.TransferConfiguredEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("ledger-consumer: failed to unmarshal configuration event: %v", err)
		return true
	}
	transferID, err := uuid.Parse(event.TransferID)
	if err != nil {
		log.Printf("ledger-consumer: invalid transfer id %q in configuration event", event.TransferID)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.transfers.ApplyConfigurationConfirmation(ctx, transferID, event.LedgerTxHash, event.RequestHash); err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			log.Printf("ledger-consumer: no transfer found for id %s; acknowledging", transferID)
			return true
		}
		log.Printf("ledger-consumer: configuration update failed for transfer %s: %v", transferID, err)
		return false
	}
	return true
}

func (c *LedgerEventConsumer) HandleTransferCompleted(body []byte) bool {
	var event domain.TransferCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("ledger-consumer: failed to unmarshal completion event: %v", err)
		return true
	}
	transferID, err := uuid.Parse(event.TransferID)
	if err != nil {
		log.Printf("ledger-consumer: invalid transfer id %q in completion event", event.TransferID)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.transfers.ApplyCompletionConfirmation(ctx, transferID, event.LedgerTxHash); err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			log.Printf("ledger-consumer: no transfer found for id %s; acknowledging", transferID)
			return true
		}
		log.Printf("ledger-consumer: completion update failed for transfer %s: %v", transferID, err)
		return false
	}
	return true
}
