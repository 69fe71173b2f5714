// Package session adapts the external automation driver to the claim
// engine. The driver owns the actual interactive browsing session; claimd
// only asks it to perform one claim at a time and relays what happened.
package session

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/sym"
)

// DefaultRequestTimeout bounds one driver call. It sits just under the
// runner's five minute job ceiling so the HTTP layer gives up first and the
// job fails with the driver's error rather than a bare timeout.
const DefaultRequestTimeout = 280 * time.Second

// Remote calls an automation driver service over HTTP
type Remote struct {
	client *resty.Client
	url    string
	logger *zap.SugaredLogger
}

// NewRemote creates a session backed by the driver at baseURL. A zero
// timeout falls back to DefaultRequestTimeout.
func NewRemote(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Remote {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "claimd")

	return &Remote{
		client: client,
		url:    baseURL,
		logger: logger,
	}
}

type claimRequest struct {
	AccountID string `json:"account_id"`
}

type claimStep struct {
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

type claimResponse struct {
	ItemsClaimed []string    `json:"items_claimed"`
	Steps        []claimStep `json:"steps,omitempty"`
	Error        string      `json:"error,omitempty"`
	FailedStep   string      `json:"failed_step,omitempty"`
}

// PerformClaim asks the driver to run one claim for accountID. The driver
// reports the steps it took as structured entries; they are replayed through
// onStep in order so progress subscribers see them.
func (r *Remote) PerformClaim(ctx context.Context, accountID string, onStep claim.StepFunc) (*claim.SessionResult, error) {
	var result claimResponse

	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(claimRequest{AccountID: accountID}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/claim")

	if err != nil {
		return nil, &claim.AutomationError{
			AccountID: accountID,
			Cause:     errors.Wrap(err, "automation driver unreachable"),
		}
	}

	if onStep != nil {
		for _, step := range result.Steps {
			onStep(claim.StepEvent{
				AccountID: accountID,
				Step:      step.Step,
				Timestamp: step.Timestamp,
			})
		}
	}

	if resp.StatusCode() >= 300 || result.Error != "" {
		cause := errors.Newf("driver returned status %d", resp.StatusCode())
		if result.Error != "" {
			cause = errors.New(result.Error)
		}
		return nil, &claim.AutomationError{
			AccountID: accountID,
			Step:      result.FailedStep,
			Cause:     cause,
		}
	}

	r.logger.Debugw(sym.Claim+" Driver claim complete",
		"account_id", accountID,
		"items", len(result.ItemsClaimed),
		"steps", len(result.Steps))

	return &claim.SessionResult{ItemsClaimed: result.ItemsClaimed}, nil
}
