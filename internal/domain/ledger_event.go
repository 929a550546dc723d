/**
 * @description
 * This file defines the inbound confirmation payloads sent by the ledger once
 * a job has progressed or completed. The same shapes arrive over the HTTP
 * webhook channel and over the ledger event queue; both channels are
 * at-least-once, so every consumer of these events must be idempotent.
 */

package domain

// Registration approval phases reported by the ledger's approval system.
const (
	RegistrationPhasePendingApprovals = "PENDING_APPROVALS"
	RegistrationPhaseExecuted         = "EXECUTED"
)

// PropertyRegistrationEvent reports progress of a REGISTER_PROPERTY job.
// RequestHash is the correlation id the approval system assigned; Phase is
// one of the registration phase constants above.
type PropertyRegistrationEvent struct {
	MatriculaID  int64  `json:"matricula_id"`
	LedgerTxHash string `json:"tx_hash"`
	RequestHash  string `json:"request_hash"`
	Phase        string `json:"approval_status"`
}

// PropertyTransferredEvent reports that the ledger executed an ownership
// change. NewOwnerAddress is the wallet address of the new owner.
type PropertyTransferredEvent struct {
	MatriculaID     int64  `json:"matricula_id"`
	NewOwnerAddress string `json:"to"`
	LedgerTxHash    string `json:"tx_hash"`
}

// TransferConfiguredEvent reports that a CONFIGURE_TRANSFER job finished and
// the approval window opened.
type TransferConfiguredEvent struct {
	TransferID   string `json:"transfer_id"`
	RequestHash  string `json:"request_hash"`
	LedgerTxHash string `json:"tx_hash"`
}

// TransferCompletedEvent reports that the ledger executed the transfer.
type TransferCompletedEvent struct {
	TransferID   string `json:"transfer_id"`
	LedgerTxHash string `json:"tx_hash"`
}
