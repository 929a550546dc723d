/**
 * @description
 * This file defines the queue envelope for outbound ledger jobs. Jobs are
 * published to RabbitMQ and consumed by the external ledger worker; the job id
 * serves as the correlation reference for later confirmations.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerJobType enumerates the operations the ledger worker can execute.
type LedgerJobType string

const (
	JobRegisterProperty  LedgerJobType = "REGISTER_PROPERTY"
	JobConfigureTransfer LedgerJobType = "CONFIGURE_TRANSFER"
	JobApproveTransfer   LedgerJobType = "APPROVE_TRANSFER"
	JobAcceptTransfer    LedgerJobType = "ACCEPT_TRANSFER"
	JobExecuteTransfer   LedgerJobType = "EXECUTE_TRANSFER"
	JobFreezeProperty    LedgerJobType = "FREEZE_PROPERTY"
	JobUnfreezeProperty  LedgerJobType = "UNFREEZE_PROPERTY"
)

// LedgerJob is the message published to the ledger job queue. Delivery is
// at-least-once; the worker deduplicates on ID.
type LedgerJob struct {
	ID          string                 `json:"id"`
	Type        LedgerJobType          `json:"type"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   string                 `json:"createdAt"`
	MaxAttempts int                    `json:"maxAttempts"`
}

// NewLedgerJob builds a job envelope with a fresh correlation id.
func NewLedgerJob(jobType LedgerJobType, payload map[string]interface{}) LedgerJob {
	return LedgerJob{
		ID:          uuid.New().String(),
		Type:        jobType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		MaxAttempts: 3,
	}
}
