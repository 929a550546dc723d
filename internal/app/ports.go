package app

import (
	"context"

	"github.com/landchain/registry-service/internal/domain"
)

// JobPublisher is the outbound command port to the ledger's job queue.
// Delivery is at-least-once and asynchronous: the returned job id is for
// correlation and logging only, never a completion guarantee.
type JobPublisher interface {
	PublishLedgerJob(ctx context.Context, jobType domain.LedgerJobType, payload map[string]interface{}) (string, error)
}

// ApprovalForwarder forwards a registration approval decision to the
// off-chain approval API. The request hash is the correlation id the approval
// system assigned when the ledger confirmed the registration.
type ApprovalForwarder interface {
	ForwardRegistrationApproval(ctx context.Context, requestHash string, role domain.ApproverKind) error
}
