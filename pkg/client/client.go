// Package client is a small Go SDK for the PrePaMS reward service HTTP API.
// Binary payloads (credential requests, confirmed participations, payout
// proofs) are produced and consumed by the participant/organizer clients;
// this package only moves them over the wire.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one reward service instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Study is one published study as returned by the listing endpoint.
type Study struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Owner    string  `json:"owner"`
	Abstract string  `json:"abstract"`
	Duration string  `json:"duration"`
	Reward   int     `json:"reward"`
	WebBased bool    `json:"webBased"`
	StudyURL *string `json:"studyUrl"`
}

// Transaction is the public projection of one ledger entry.
type Transaction struct {
	Value int     `json:"value"`
	Study *string `json:"study"`
	Tag   string  `json:"tag"`
	Coin  []byte  `json:"coin"`
}

// LedgerEntry is one record of the serialized issuer ledger.
type LedgerEntry struct {
	Participation *string `json:"participation"`
	Tag           string  `json:"tag"`
	Value         int     `json:"value"`
	Coin          []byte  `json:"coin"`
	Chain         []byte  `json:"chain"`
}

// Ledger is the decoded serialized ledger.
type Ledger struct {
	Head    []byte        `json:"head"`
	Entries []LedgerEntry `json:"entries"`
}

// Health reports the service health status string.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/healthz", &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// IssuerPublicKey fetches the issuer's credential public key.
func (c *Client) IssuerPublicKey(ctx context.Context) ([]byte, error) {
	return c.getBinary(ctx, "/api/issuer/pk")
}

// LedgerVerificationKey fetches the ledger chain verification key.
func (c *Client) LedgerVerificationKey(ctx context.Context) ([]byte, error) {
	return c.getBinary(ctx, "/api/ledger/vk")
}

// Ledger fetches and decodes the full serialized ledger.
func (c *Client) Ledger(ctx context.Context) (*Ledger, error) {
	blob, err := c.getBinary(ctx, "/api/ledger")
	if err != nil {
		return nil, err
	}
	var l Ledger
	if err := json.Unmarshal(blob, &l); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return &l, nil
}

// Studies lists published studies, optionally filtered by owner.
func (c *Client) Studies(ctx context.Context, owner string) ([]Study, error) {
	path := "/api/studies"
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var resp struct {
		Studies []Study `json:"studies"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Studies, nil
}

// Transactions lists the public ledger projection, optionally for one study.
func (c *Client) Transactions(ctx context.Context, study string) ([]Transaction, error) {
	path := "/api/rewards"
	if study != "" {
		path += "/" + url.PathEscape(study)
	}
	var resp struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// StageParticipation uploads an encrypted participation blob. Returns the
// assigned id and retrieval URL.
func (c *Client) StageParticipation(ctx context.Context, blob []byte) (id, retrievalURL string, err error) {
	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.postBinaryJSON(ctx, "/api/participations", blob, &resp); err != nil {
		return "", "", err
	}
	return resp.ID, resp.URL, nil
}

// FetchParticipation downloads a staged participation blob.
func (c *Client) FetchParticipation(ctx context.Context, id string) ([]byte, error) {
	return c.getBinary(ctx, "/api/participations/"+url.PathEscape(id))
}

// IssueReward submits a serialized confirmed participation and returns the
// binary reward entry receipt.
func (c *Client) IssueReward(ctx context.Context, participation []byte) ([]byte, error) {
	return c.postBinary(ctx, "/api/rewards", participation)
}

// RequestPayout submits a payout proof and returns the payout receipt.
func (c *Client) RequestPayout(ctx context.Context, proof []byte) ([]byte, error) {
	var resp struct {
		Receipt []byte `json:"receipt"`
	}
	if err := c.postBinaryJSON(ctx, "/api/payout", proof, &resp); err != nil {
		return nil, err
	}
	return resp.Receipt, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) getBinary(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) postBinary(ctx context.Context, path string, payload []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) postBinaryJSON(ctx context.Context, path string, payload []byte, out any) error {
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}
