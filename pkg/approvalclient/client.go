/**
 * @description
 * This package provides a client for the off-chain approval API. The approval
 * system tracks per-entity sign-off on pending registrations; this client
 * relays an entity's approval using the request hash the ledger assigned when
 * it accepted the registration.
 *
 * @dependencies
 * - context, fmt, net/http, time: Standard Go libraries.
 * - internal/domain: For the approver role enum.
 */
package approvalclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/landchain/registry-service/internal/domain"
)

// Client is a client for the off-chain approval API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new approval API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// roleSegment maps the internal approver kinds to the role path segments the
// approval API expects.
func roleSegment(kind domain.ApproverKind) (string, error) {
	switch kind {
	case domain.ApproverKindNotary:
		return "registry-office", nil
	case domain.ApproverKindFinancial:
		return "financial", nil
	case domain.ApproverKindMunicipality:
		return "municipality", nil
	}
	return "", fmt.Errorf("unsupported approver kind: %s", kind)
}

// ForwardRegistrationApproval posts one entity's approval of a pending
// registration, keyed by the ledger-assigned request hash.
func (c *Client) ForwardRegistrationApproval(ctx context.Context, requestHash string, role domain.ApproverKind) error {
	segment, err := roleSegment(role)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/approvals/v2/registration/%s/%s", c.BaseURL, requestHash, segment)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build approval request: %w", err)
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("call approval API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("approval API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
