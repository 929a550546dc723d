/**
 * @description
 * This file defines the core domain models for the registry-service. These structs
 * represent the property title records tracked by the service, the request DTOs
 * accepted by the API layer, and the closed enums that drive the property
 * lifecycle state machine.
 *
 * @notes
 * - The authoritative state change for every record happens on the external
 *   ledger; the statuses here track how far the local record has progressed
 *   through dispatch and reconciliation.
 * - `MatriculaID` is the external asset identifier and is globally unique.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PropertyStatus is the lifecycle status of a property record.
//
// Registration flow: PENDING -> PROCESSING_REGISTRATION -> OK
// Transfer flow:     OK -> IN_TRANSFER -> OK (with a new owner)
type PropertyStatus string

const (
	// PropertyStatusPending means the record is persisted locally but the
	// registration job has not been accepted by the queue yet.
	PropertyStatusPending PropertyStatus = "PENDING"
	// PropertyStatusProcessingRegistration means the ledger worker holds the
	// registration job and entity approvals are in flight.
	PropertyStatusProcessingRegistration PropertyStatus = "PROCESSING_REGISTRATION"
	// PropertyStatusInTransfer means an active ownership transfer holds the record.
	PropertyStatusInTransfer PropertyStatus = "IN_TRANSFER"
	// PropertyStatusOK is the terminal success state for both registration and transfer.
	PropertyStatusOK PropertyStatus = "OK"
)

// PropertyType is the closed set of property classifications. The values match
// the ledger contract's enum and are kept in their original wire form.
type PropertyType string

const (
	PropertyTypeUrbano  PropertyType = "URBANO"
	PropertyTypeRural   PropertyType = "RURAL"
	PropertyTypeLitoral PropertyType = "LITORAL"
)

// ValidPropertyType reports whether t is a member of the closed type set.
func ValidPropertyType(t PropertyType) bool {
	switch t {
	case PropertyTypeUrbano, PropertyTypeRural, PropertyTypeLitoral:
		return true
	}
	return false
}

// LedgerOrdinal returns the integer the ledger contract uses for the type.
func (t PropertyType) LedgerOrdinal() int {
	switch t {
	case PropertyTypeUrbano:
		return 0
	case PropertyTypeRural:
		return 1
	case PropertyTypeLitoral:
		return 2
	}
	return -1
}

// Property represents a registered (or registering) title record.
// This struct maps directly to the `properties` table in the database.
type Property struct {
	ID              uuid.UUID      `json:"id"`
	MatriculaID     int64          `json:"matricula_id"`
	Folha           int64          `json:"folha"`
	Comarca         string         `json:"comarca"`
	Endereco        string         `json:"endereco"`
	Metragem        int64          `json:"metragem"`
	OwnerID         uuid.UUID      `json:"owner_id"`
	MatriculaOrigem *int64         `json:"matricula_origem,omitempty"`
	Tipo            PropertyType   `json:"tipo"`
	IsRegular       bool           `json:"is_regular"`
	LedgerTxHash    *string        `json:"ledger_tx_hash,omitempty"`
	RequestHash     *string        `json:"request_hash,omitempty"`
	Status          PropertyStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// RegisterPropertyRequest is the DTO for incoming property registration API requests.
type RegisterPropertyRequest struct {
	MatriculaID     int64        `json:"matricula_id"`
	Folha           int64        `json:"folha"`
	Comarca         string       `json:"comarca"`
	Endereco        string       `json:"endereco"`
	Metragem        int64        `json:"metragem"`
	OwnerID         uuid.UUID    `json:"owner_id"`
	MatriculaOrigem *int64       `json:"matricula_origem,omitempty"`
	Tipo            PropertyType `json:"tipo"`
	IsRegular       *bool        `json:"is_regular,omitempty"`
}

// User is the simplified owner-directory view of a platform user. The
// registry-service never writes users; it only resolves wallet addresses to
// local identities and back.
type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"wallet_address"`
}
