// Package analysis implements both sides of the image analysis contract:
// the client the relay calls, and the service that turns an image URL into
// an item specifics attribute set.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/raine/ebay-specifics/internal/specifics"
)

// ContractError reports a response that violates the analysis contract:
// a non-2xx status, a body that is not JSON, or JSON that lacks the
// expected shape. Transport failures are reported as plain errors.
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("analysis contract violation: %s", e.Reason)
}

// ClientOpts configures a Client. Endpoint is the full analyze URL and is
// required; it is injected so that swapping the deployment never touches
// this package.
type ClientOpts struct {
	Endpoint string
}

// Client calls the remote analysis endpoint.
type Client struct {
	httpClient *resty.Client
	endpoint   string
}

// NewClient creates an analysis client for the given endpoint. No request
// timeout is set; the caller bounds requests through context if it wants a
// bound at all.
func NewClient(opts ClientOpts) *Client {
	c := Client{endpoint: opts.Endpoint}
	c.httpClient = resty.New().
		SetDebug(false).
		SetHeader("Accept", "application/json")

	return &c
}

// Analyze submits one image URL for analysis and returns the decoded
// result. The endpoint is idempotent per request; correlation is purely by
// HTTP call.
func (c *Client) Analyze(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error) {
	res, err := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(specifics.AnalysisRequest{ImageURL: imageURL}).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}

	if res.IsError() {
		return nil, &ContractError{Reason: fmt.Sprintf("status %d from %s", res.StatusCode(), c.endpoint)}
	}

	var result specifics.AnalysisResult
	if err := json.Unmarshal(res.Body(), &result); err != nil {
		return nil, &ContractError{Reason: fmt.Sprintf("response is not JSON: %v", err)}
	}
	if result.ItemSpecifics == nil {
		return nil, &ContractError{Reason: "response has no itemSpecifics"}
	}

	return &result, nil
}
