/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL queries for properties, transfers, transfer approvals,
 * and the read-only users view.
 *
 * Two business invariants are enforced by the schema rather than by
 * application-level checks, so they hold under concurrent requests:
 * - `ux_properties_matricula`: unique index on properties(matricula_id);
 *   a duplicate registration loses with a 23505 and maps to ErrDuplicateMatricula.
 * - `ux_transfers_active`: partial unique index on transfers(matricula_id)
 *   WHERE status <> 'COMPLETED'; a second concurrent initiate loses with a
 *   23505 and maps to ErrActiveTransferExists.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/landchain/registry-service/internal/domain"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrPropertyNotFound       = errors.New("property not found")
	ErrTransferNotFound       = errors.New("transfer not found")
	ErrApprovalNotFound       = errors.New("approval not found")
	ErrDuplicateMatricula     = errors.New("property with this matricula already exists")
	ErrActiveTransferExists   = errors.New("property already has an active transfer")
	ErrStatusConflict         = errors.New("record is not in the expected status")
	ErrApprovalAlreadyDecided = errors.New("approval has already been decided")
)

const (
	uniqueViolationCode     = "23505"
	matriculaUniqueIndex    = "ux_properties_matricula"
	activeTransferUniqueIdx = "ux_transfers_active"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return false
	}
	// Some deployments name the backing constraint after the index; match either.
	return pgErr.ConstraintName == constraint || strings.Contains(pgErr.ConstraintName, constraint)
}

// FindUserByID retrieves a user from the read-only users view by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, btrim(username), wallet_address FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &user.WalletAddress)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByWalletAddress resolves a ledger wallet address to a local user.
func (r *PostgresRepository) FindUserByWalletAddress(ctx context.Context, walletAddress string) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, btrim(username), wallet_address FROM users WHERE lower(wallet_address) = lower(btrim($1))`
	err := r.db.QueryRow(ctx, query, walletAddress).Scan(&user.ID, &user.Username, &user.WalletAddress)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

const propertyColumns = `id, matricula_id, folha, comarca, endereco, metragem, owner_id,
	matricula_origem, tipo, is_regular, ledger_tx_hash, request_hash, status, created_at, updated_at`

func scanProperty(row pgx.Row) (*domain.Property, error) {
	var p domain.Property
	err := row.Scan(
		&p.ID, &p.MatriculaID, &p.Folha, &p.Comarca, &p.Endereco, &p.Metragem, &p.OwnerID,
		&p.MatriculaOrigem, &p.Tipo, &p.IsRegular, &p.LedgerTxHash, &p.RequestHash,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProperty inserts a new property record. Duplicate matricula ids are
// rejected by the unique index and surfaced as ErrDuplicateMatricula.
func (r *PostgresRepository) CreateProperty(ctx context.Context, property *domain.Property) error {
	query := `
		INSERT INTO properties (id, matricula_id, folha, comarca, endereco, metragem, owner_id,
			matricula_origem, tipo, is_regular, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		property.ID, property.MatriculaID, property.Folha, property.Comarca, property.Endereco,
		property.Metragem, property.OwnerID, property.MatriculaOrigem, property.Tipo,
		property.IsRegular, property.Status,
	).Scan(&property.CreatedAt, &property.UpdatedAt)
	if err != nil {
		if uniqueViolation(err, matriculaUniqueIndex) {
			return ErrDuplicateMatricula
		}
		return err
	}
	return nil
}

// FindPropertyByID retrieves a property by its internal ID.
func (r *PostgresRepository) FindPropertyByID(ctx context.Context, propertyID uuid.UUID) (*domain.Property, error) {
	row := r.db.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, propertyID)
	p, err := scanProperty(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return p, nil
}

// FindPropertyByMatricula retrieves a property by its external matricula id.
func (r *PostgresRepository) FindPropertyByMatricula(ctx context.Context, matriculaID int64) (*domain.Property, error) {
	row := r.db.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE matricula_id = $1`, matriculaID)
	p, err := scanProperty(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) listProperties(ctx context.Context, query string, args ...interface{}) ([]domain.Property, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	properties := []domain.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *p)
	}
	return properties, rows.Err()
}

// ListProperties returns all property records, newest first.
func (r *PostgresRepository) ListProperties(ctx context.Context) ([]domain.Property, error) {
	return r.listProperties(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY created_at DESC`)
}

// ListPropertiesByOwner returns all properties held by an owner.
func (r *PostgresRepository) ListPropertiesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Property, error) {
	return r.listProperties(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

// ListPropertiesByComarca returns all properties registered in a comarca.
func (r *PostgresRepository) ListPropertiesByComarca(ctx context.Context, comarca string) ([]domain.Property, error) {
	return r.listProperties(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE lower(btrim(comarca)) = lower(btrim($1)) ORDER BY created_at DESC`, comarca)
}

// UpdatePropertyStatus transitions a property's status with a compare-and-swap:
// the update only applies when the row still holds the `from` status.
func (r *PostgresRepository) UpdatePropertyStatus(ctx context.Context, matriculaID int64, from, to domain.PropertyStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE properties SET status = $1, updated_at = NOW() WHERE matricula_id = $2 AND status = $3`,
		to, matriculaID, from,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a lost CAS race.
		var exists bool
		if scanErr := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM properties WHERE matricula_id = $1)`, matriculaID,
		).Scan(&exists); scanErr != nil {
			return scanErr
		}
		if !exists {
			return ErrPropertyNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// SetPropertyLedgerState records reconciliation fields from a ledger
// confirmation. Nil fields keep their current value, so replays are harmless.
func (r *PostgresRepository) SetPropertyLedgerState(ctx context.Context, matriculaID int64, state PropertyLedgerState) error {
	query := `
		UPDATE properties
		SET
			ledger_tx_hash = COALESCE($1, ledger_tx_hash),
			request_hash   = COALESCE($2, request_hash),
			status         = COALESCE($3, status),
			updated_at     = NOW()
		WHERE matricula_id = $4
	`
	tag, err := r.db.Exec(ctx, query, state.LedgerTxHash, state.RequestHash, state.Status, matriculaID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}
	return nil
}

// SetPropertyOwner records a completed ownership change: the new owner is set
// and the property returns to OK. Applying the same owner twice is a no-op.
func (r *PostgresRepository) SetPropertyOwner(ctx context.Context, matriculaID int64, ownerID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE properties SET owner_id = $1, status = $2, updated_at = NOW() WHERE matricula_id = $3`,
		ownerID, domain.PropertyStatusOK, matriculaID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}
	return nil
}

// SetPropertyRegularity flips the regularity flag (freeze/unfreeze).
func (r *PostgresRepository) SetPropertyRegularity(ctx context.Context, matriculaID int64, isRegular bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE properties SET is_regular = $1, updated_at = NOW() WHERE matricula_id = $2`,
		isRegular, matriculaID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}
	return nil
}

const transferColumns = `id, matricula_id, seller_id, buyer_id, status, ledger_tx_hash, request_hash, created_at, updated_at`

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	err := row.Scan(
		&t.ID, &t.MatriculaID, &t.SellerID, &t.BuyerID, &t.Status,
		&t.LedgerTxHash, &t.RequestHash, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransfer inserts a new transfer record. The partial unique index on
// (matricula_id) over non-terminal statuses rejects a second active transfer
// for the same property, surfaced as ErrActiveTransferExists.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers (id, matricula_id, seller_id, buyer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		transfer.ID, transfer.MatriculaID, transfer.SellerID, transfer.BuyerID, transfer.Status,
	).Scan(&transfer.CreatedAt, &transfer.UpdatedAt)
	if err != nil {
		if uniqueViolation(err, activeTransferUniqueIdx) {
			return ErrActiveTransferExists
		}
		return err
	}
	return nil
}

// FindTransferByID retrieves a transfer by its ID.
func (r *PostgresRepository) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, transferID)
	t, err := scanTransfer(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *PostgresRepository) listTransfers(ctx context.Context, query string, args ...interface{}) ([]domain.Transfer, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := []domain.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// ListTransfers returns all transfer records, newest first.
func (r *PostgresRepository) ListTransfers(ctx context.Context) ([]domain.Transfer, error) {
	return r.listTransfers(ctx, `SELECT `+transferColumns+` FROM transfers ORDER BY created_at DESC`)
}

// ListTransfersByMatricula returns the transfer history for a property.
func (r *PostgresRepository) ListTransfersByMatricula(ctx context.Context, matriculaID int64) ([]domain.Transfer, error) {
	return r.listTransfers(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE matricula_id = $1 ORDER BY created_at DESC`, matriculaID)
}

// ListTransfersBySeller returns the transfers initiated by a seller.
func (r *PostgresRepository) ListTransfersBySeller(ctx context.Context, sellerID uuid.UUID) ([]domain.Transfer, error) {
	return r.listTransfers(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
}

// ListTransfersByBuyer returns the transfers addressed to a buyer.
func (r *PostgresRepository) ListTransfersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Transfer, error) {
	return r.listTransfers(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

// UpdateTransferStatus transitions a transfer's status with a compare-and-swap.
func (r *PostgresRepository) UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, from, to domain.TransferStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transfers SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, transferID, from,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if scanErr := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM transfers WHERE id = $1)`, transferID,
		).Scan(&exists); scanErr != nil {
			return scanErr
		}
		if !exists {
			return ErrTransferNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// SetTransferLedgerState records reconciliation fields from a ledger confirmation.
func (r *PostgresRepository) SetTransferLedgerState(ctx context.Context, transferID uuid.UUID, state TransferLedgerState) error {
	query := `
		UPDATE transfers
		SET
			ledger_tx_hash = COALESCE($1, ledger_tx_hash),
			request_hash   = COALESCE($2, request_hash),
			updated_at     = NOW()
		WHERE id = $3
	`
	tag, err := r.db.Exec(ctx, query, state.LedgerTxHash, state.RequestHash, transferID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransferNotFound
	}
	return nil
}

// CreateTransferApprovals creates one PENDING approval row per required kind.
// ON CONFLICT DO NOTHING makes a replayed configuration confirmation harmless:
// the unique constraint on (transfer_id, approver_kind) keeps exactly one row
// per kind.
func (r *PostgresRepository) CreateTransferApprovals(ctx context.Context, transferID uuid.UUID, kinds []domain.ApproverKind) error {
	query := `
		INSERT INTO transfer_approvals (id, transfer_id, approver_kind, decision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (transfer_id, approver_kind) DO NOTHING
	`
	for _, kind := range kinds {
		if _, err := r.db.Exec(ctx, query, uuid.New(), transferID, kind, domain.ApprovalDecisionPending); err != nil {
			return err
		}
	}
	return nil
}

const approvalColumns = `id, transfer_id, approver_kind, approver_user_id, decision, comment, decided_at, created_at, updated_at`

func scanApproval(row pgx.Row) (*domain.TransferApproval, error) {
	var a domain.TransferApproval
	err := row.Scan(
		&a.ID, &a.TransferID, &a.ApproverKind, &a.ApproverUserID, &a.Decision,
		&a.Comment, &a.DecidedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindTransferApproval retrieves the approval row for one approver kind.
func (r *PostgresRepository) FindTransferApproval(ctx context.Context, transferID uuid.UUID, kind domain.ApproverKind) (*domain.TransferApproval, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM transfer_approvals WHERE transfer_id = $1 AND approver_kind = $2`,
		transferID, kind,
	)
	a, err := scanApproval(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrApprovalNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListTransferApprovals returns all approval rows for a transfer.
func (r *PostgresRepository) ListTransferApprovals(ctx context.Context, transferID uuid.UUID) ([]domain.TransferApproval, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+approvalColumns+` FROM transfer_approvals WHERE transfer_id = $1 ORDER BY approver_kind`,
		transferID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	approvals := []domain.TransferApproval{}
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *a)
	}
	return approvals, rows.Err()
}

// DecideTransferApproval records an approver's decision. The row is decided
// at most once: the WHERE clause only matches a still-PENDING row, so a
// duplicate decision maps to ErrApprovalAlreadyDecided.
func (r *PostgresRepository) DecideTransferApproval(ctx context.Context, transferID uuid.UUID, kind domain.ApproverKind, approverID uuid.UUID, decision domain.ApprovalDecision, comment *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transfer_approvals
		SET approver_user_id = $1, decision = $2, comment = $3, decided_at = NOW(), updated_at = NOW()
		WHERE transfer_id = $4 AND approver_kind = $5 AND decision = $6
	`, approverID, decision, comment, transferID, kind, domain.ApprovalDecisionPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if scanErr := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM transfer_approvals WHERE transfer_id = $1 AND approver_kind = $2)`,
			transferID, kind,
		).Scan(&exists); scanErr != nil {
			return scanErr
		}
		if !exists {
			return ErrApprovalNotFound
		}
		return ErrApprovalAlreadyDecided
	}
	return nil
}
