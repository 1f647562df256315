// Package push is a client for the Expo push notification HTTP API.
//
// Delivery is two-phase: sending a message yields a ticket per recipient, and
// tickets that were accepted carry a receipt id that can be queried later for
// the actual delivery outcome. The provider caps both the number of messages
// per send call and the number of receipt ids per receipt call, so callers
// chunk through ChunkTokens / ChunkReceiptIDs.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the production Expo push API.
	DefaultBaseURL = "https://exp.host/--/api/v2"

	// SendBatchSize is the provider limit on recipients per send call.
	SendBatchSize = 100

	// ReceiptBatchSize is the provider limit on ids per receipt call.
	ReceiptBatchSize = 300
)

// ErrorDeviceNotRegistered is the ticket/receipt detail code meaning the
// device token is permanently dead and should be dropped.
const ErrorDeviceNotRegistered = "DeviceNotRegistered"

// Message is one push notification addressed to up to SendBatchSize tokens.
type Message struct {
	To    []string          `json:"to"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Sound string            `json:"sound,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Details carries the provider error code on failed tickets and receipts.
type Details struct {
	Error string `json:"error,omitempty"`
}

// Ticket is the per-recipient submission outcome. Status "ok" tickets carry
// the receipt id; "error" tickets carry a message and optional details.
type Ticket struct {
	Status  string   `json:"status"`
	ID      string   `json:"id,omitempty"`
	Message string   `json:"message,omitempty"`
	Details *Details `json:"details,omitempty"`
}

// Receipt is the eventual delivery outcome for an accepted ticket.
type Receipt struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Details *Details `json:"details,omitempty"`
}

// OK reports whether the ticket was accepted by the provider.
func (t Ticket) OK() bool { return t.Status == "ok" }

// DeviceNotRegistered reports the permanent device-gone failure.
func (t Ticket) DeviceNotRegistered() bool {
	return t.Details != nil && t.Details.Error == ErrorDeviceNotRegistered
}

// OK reports whether delivery succeeded.
func (r Receipt) OK() bool { return r.Status == "ok" }

// DeviceNotRegistered reports the permanent device-gone failure.
func (r Receipt) DeviceNotRegistered() bool {
	return r.Details != nil && r.Details.Error == ErrorDeviceNotRegistered
}

// Config holds push client settings.
type Config struct {
	BaseURL     string        // defaults to DefaultBaseURL
	AccessToken string        // optional, for enhanced push security
	Timeout     time.Duration // per-request bound on provider calls
}

// Client talks to the Expo push API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	logger      *zap.Logger
}

// NewClient creates a push client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: cfg.AccessToken,
		logger:      logger,
	}
}

// IsValidToken reports whether a string looks like an Expo push token.
// Invalid tokens are filtered out before dispatch so a stale registration
// can't fail a whole batch.
func IsValidToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

// ChunkTokens partitions tokens into provider-limit sized batches.
func ChunkTokens(tokens []string) [][]string {
	return chunk(tokens, SendBatchSize)
}

// ChunkReceiptIDs partitions receipt ids into provider-limit sized batches.
func ChunkReceiptIDs(ids []string) [][]string {
	return chunk(ids, ReceiptBatchSize)
}

func chunk(items []string, size int) [][]string {
	var batches [][]string
	for len(items) > 0 {
		n := size
		if len(items) < n {
			n = len(items)
		}
		batches = append(batches, items[:n])
		items = items[n:]
	}
	return batches
}

type sendResponse struct {
	Data []Ticket `json:"data"`
}

// Send submits one message and returns a ticket per token, in token order.
func (c *Client) Send(ctx context.Context, msg Message) ([]Ticket, error) {
	var resp sendResponse
	if err := c.post(ctx, "/push/send", msg, &resp); err != nil {
		return nil, fmt.Errorf("send push: %w", err)
	}

	if len(resp.Data) != len(msg.To) {
		return nil, fmt.Errorf("send push: got %d tickets for %d tokens", len(resp.Data), len(msg.To))
	}

	return resp.Data, nil
}

type receiptsRequest struct {
	IDs []string `json:"ids"`
}

type receiptsResponse struct {
	Data map[string]Receipt `json:"data"`
}

// GetReceipts fetches delivery receipts for a batch of ticket ids. Receipts
// not yet available are simply absent from the returned map.
func (c *Client) GetReceipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	var resp receiptsResponse
	if err := c.post(ctx, "/push/getReceipts", receiptsRequest{IDs: ids}, &resp); err != nil {
		return nil, fmt.Errorf("get receipts: %w", err)
	}
	return resp.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(preview))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
