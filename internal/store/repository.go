/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the registry-service. By defining an
 * interface, we decouple the lifecycle services from the specific database
 * implementation (e.g., PostgreSQL), making the code more modular and easier
 * to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/landchain/registry-service/internal/domain"
)

// PropertyLedgerState carries the reconciliation fields a ledger confirmation
// may set on a property. Nil fields are left untouched.
type PropertyLedgerState struct {
	LedgerTxHash *string
	RequestHash  *string
	Status       *domain.PropertyStatus
}

// TransferLedgerState carries the reconciliation fields a ledger confirmation
// may set on a transfer. Nil fields are left untouched.
type TransferLedgerState struct {
	LedgerTxHash *string
	RequestHash  *string
}

// Repository defines the set of methods for interacting with the database.
//
// All status transitions are compare-and-swap: the update only applies when
// the row still holds the expected current status, so concurrent callers and
// replayed confirmations cannot double-apply a transition.
type Repository interface {
	// Owner directory (read-only from this service's view)
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByWalletAddress(ctx context.Context, walletAddress string) (*domain.User, error)

	// Property methods
	CreateProperty(ctx context.Context, property *domain.Property) error
	FindPropertyByID(ctx context.Context, propertyID uuid.UUID) (*domain.Property, error)
	FindPropertyByMatricula(ctx context.Context, matriculaID int64) (*domain.Property, error)
	ListProperties(ctx context.Context) ([]domain.Property, error)
	ListPropertiesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Property, error)
	ListPropertiesByComarca(ctx context.Context, comarca string) ([]domain.Property, error)
	UpdatePropertyStatus(ctx context.Context, matriculaID int64, from, to domain.PropertyStatus) error
	SetPropertyLedgerState(ctx context.Context, matriculaID int64, state PropertyLedgerState) error
	SetPropertyOwner(ctx context.Context, matriculaID int64, ownerID uuid.UUID) error
	SetPropertyRegularity(ctx context.Context, matriculaID int64, isRegular bool) error

	// Transfer methods
	CreateTransfer(ctx context.Context, transfer *domain.Transfer) error
	FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error)
	ListTransfers(ctx context.Context) ([]domain.Transfer, error)
	ListTransfersByMatricula(ctx context.Context, matriculaID int64) ([]domain.Transfer, error)
	ListTransfersBySeller(ctx context.Context, sellerID uuid.UUID) ([]domain.Transfer, error)
	ListTransfersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Transfer, error)
	UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, from, to domain.TransferStatus) error
	SetTransferLedgerState(ctx context.Context, transferID uuid.UUID, state TransferLedgerState) error

	// Approval methods
	CreateTransferApprovals(ctx context.Context, transferID uuid.UUID, kinds []domain.ApproverKind) error
	FindTransferApproval(ctx context.Context, transferID uuid.UUID, kind domain.ApproverKind) (*domain.TransferApproval, error)
	ListTransferApprovals(ctx context.Context, transferID uuid.UUID) ([]domain.TransferApproval, error)
	DecideTransferApproval(ctx context.Context, transferID uuid.UUID, kind domain.ApproverKind, approverID uuid.UUID, decision domain.ApprovalDecision, comment *string) error
}
