package mailgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attention-engine/internal/model"
	"attention-engine/pkg/trace"
)

// CandidateQuery bounds what the gateway is asked for: unread mail in
// the included labels, within the lookback window, never touching the
// excluded ("never scan") labels.
type CandidateQuery struct {
	IncludeLabels []string `json:"include_labels"`
	ExcludeLabels []string `json:"exclude_labels"`
	LookbackDays  int      `json:"lookback_days"`
}

// Gateway is the mail collaborator boundary. The engine never speaks
// Gmail; it asks the product's mail service for candidates and bodies.
type Gateway interface {
	FetchCandidates(ctx context.Context, account model.AccountID, q CandidateQuery) ([]model.Email, error)
	FetchBody(ctx context.Context, account model.AccountID, emailID string) (string, error)
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type candidatesRequest struct {
	Account string `json:"account"`
	CandidateQuery
}

type candidatesResponse struct {
	Emails []model.Email `json:"emails"`
}

func (c *Client) FetchCandidates(ctx context.Context, account model.AccountID, q CandidateQuery) ([]model.Email, error) {
	var resp candidatesResponse
	err := c.post(ctx, "/candidates", candidatesRequest{Account: account.String(), CandidateQuery: q}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Emails, nil
}

type bodyRequest struct {
	Account string `json:"account"`
	EmailID string `json:"email_id"`
}

type bodyResponse struct {
	Body string `json:"body"`
}

func (c *Client) FetchBody(ctx context.Context, account model.AccountID, emailID string) (string, error) {
	var resp bodyResponse
	err := c.post(ctx, "/body", bodyRequest{Account: account.String(), EmailID: emailID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("mail gateway 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail gateway error: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
