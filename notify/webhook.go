// Package notify delivers claim outcomes and batch summaries to an external
// webhook. Delivery is best-effort by contract: callers fire it off the job
// path and never let a failure change a job's fate.
package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/sym"
)

// DefaultTimeout bounds one webhook delivery attempt
const DefaultTimeout = 5 * time.Second

// Webhook posts JSON notifications to a configured URL
type Webhook struct {
	client *resty.Client
	url    string
	logger *zap.SugaredLogger
}

// NewWebhook creates a webhook notifier. A zero timeout falls back to
// DefaultTimeout.
func NewWebhook(url string, timeout time.Duration, logger *zap.SugaredLogger) *Webhook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "claimd")

	return &Webhook{
		client: client,
		url:    url,
		logger: logger,
	}
}

// outcomePayload is the wire shape for a per-account outcome
type outcomePayload struct {
	Type         string   `json:"type"`
	AccountID    string   `json:"account_id"`
	State        string   `json:"state"`
	ItemsClaimed []string `json:"items_claimed,omitempty"`
	Error        string   `json:"error,omitempty"`
	SentAt       string   `json:"sent_at"`
}

// batchPayload is the wire shape for a batch summary
type batchPayload struct {
	Type           string `json:"type"`
	BatchID        string `json:"batch_id"`
	TriggeredBy    string `json:"triggered_by"`
	TotalTargets   int    `json:"total_targets"`
	Succeeded      int    `json:"succeeded"`
	Failed         int    `json:"failed"`
	AlreadyClaimed int    `json:"already_claimed"`
	StartedAt      string `json:"started_at"`
	EndedAt        string `json:"ended_at,omitempty"`
	SentAt         string `json:"sent_at"`
}

// Notify posts one account's terminal claim outcome
func (w *Webhook) Notify(ctx context.Context, accountID string, state claim.JobState, items []string, errMsg string) error {
	payload := outcomePayload{
		Type:         "claim_outcome",
		AccountID:    accountID,
		State:        string(state),
		ItemsClaimed: items,
		Error:        errMsg,
		SentAt:       time.Now().UTC().Format(time.RFC3339),
	}

	return w.post(ctx, payload)
}

// NotifyBatch posts a finished batch's summary
func (w *Webhook) NotifyBatch(ctx context.Context, batch *claim.BatchRun) error {
	payload := batchPayload{
		Type:           "batch_summary",
		BatchID:        batch.ID,
		TriggeredBy:    string(batch.TriggeredBy),
		TotalTargets:   batch.TotalTargets,
		Succeeded:      batch.Succeeded,
		Failed:         batch.Failed,
		AlreadyClaimed: batch.AlreadyClaimed,
		StartedAt:      batch.StartedAt.UTC().Format(time.RFC3339),
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}
	if batch.EndedAt != nil {
		payload.EndedAt = batch.EndedAt.UTC().Format(time.RFC3339)
	}

	return w.post(ctx, payload)
}

func (w *Webhook) post(ctx context.Context, payload interface{}) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)

	if err != nil {
		return errors.Wrap(err, "failed to deliver webhook")
	}

	if resp.StatusCode() >= 300 {
		return errors.Newf("webhook returned status %d", resp.StatusCode())
	}

	w.logger.Debugw(sym.Notify+" Webhook delivered", "status", resp.StatusCode())
	return nil
}

// Noop is a notifier that discards everything. Used when no webhook URL is
// configured.
type Noop struct{}

// NewNoop creates a discarding notifier
func NewNoop() *Noop {
	return &Noop{}
}

func (Noop) Notify(ctx context.Context, accountID string, state claim.JobState, items []string, errMsg string) error {
	return nil
}

func (Noop) NotifyBatch(ctx context.Context, batch *claim.BatchRun) error {
	return nil
}
