package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestIsValidToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"ExponentPushToken[abc123]", true},
		{"ExpoPushToken[abc123]", true},
		{"ExponentPushToken[abc123", false},
		{"abc123]", false},
		{"", false},
		{"fcm-token-from-another-provider", false},
	}

	for _, tt := range tests {
		if got := IsValidToken(tt.token); got != tt.want {
			t.Errorf("IsValidToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestChunkTokens(t *testing.T) {
	tokens := make([]string, SendBatchSize*2+5)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("ExponentPushToken[%d]", i)
	}

	batches := ChunkTokens(tokens)

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != SendBatchSize || len(batches[1]) != SendBatchSize {
		t.Errorf("full batches must hold %d tokens", SendBatchSize)
	}
	if len(batches[2]) != 5 {
		t.Errorf("expected 5 tokens in the final batch, got %d", len(batches[2]))
	}
}

func TestChunkTokens_Empty(t *testing.T) {
	if batches := ChunkTokens(nil); batches != nil {
		t.Errorf("expected no batches for no tokens, got %v", batches)
	}
}

func TestClient_Send(t *testing.T) {
	var gotAuth string
	var gotMsg Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/push/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotMsg); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []Ticket{
				{Status: "ok", ID: "ticket-1"},
				{Status: "error", Message: "device gone", Details: &Details{Error: ErrorDeviceNotRegistered}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AccessToken: "secret"}, zap.NewNop())

	tickets, err := c.Send(context.Background(), Message{
		To:    []string{"ExponentPushToken[a]", "ExponentPushToken[b]"},
		Title: "Pipeline Failed!",
		Body:  "Pipeline #42 failed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotMsg.Title != "Pipeline Failed!" || len(gotMsg.To) != 2 {
		t.Errorf("request body not forwarded: %+v", gotMsg)
	}

	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(tickets))
	}
	if !tickets[0].OK() || tickets[0].ID != "ticket-1" {
		t.Errorf("unexpected first ticket: %+v", tickets[0])
	}
	if tickets[1].OK() || !tickets[1].DeviceNotRegistered() {
		t.Errorf("unexpected second ticket: %+v", tickets[1])
	}
}

func TestClient_SendTicketCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []Ticket{{Status: "ok", ID: "only-one"}},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())

	_, err := c.Send(context.Background(), Message{
		To: []string{"ExponentPushToken[a]", "ExponentPushToken[b]"},
	})
	if err == nil {
		t.Fatal("expected error on ticket/token count mismatch")
	}
}

func TestClient_SendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())

	_, err := c.Send(context.Background(), Message{To: []string{"ExponentPushToken[a]"}})
	if err == nil {
		t.Fatal("expected error on provider 502")
	}
}

func TestClient_GetReceipts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/push/getReceipts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.IDs) != 2 {
			t.Errorf("expected 2 ids, got %v", req.IDs)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]Receipt{
				"ticket-1": {Status: "ok"},
				"ticket-2": {Status: "error", Details: &Details{Error: ErrorDeviceNotRegistered}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())

	receipts, err := c.GetReceipts(context.Background(), []string{"ticket-1", "ticket-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !receipts["ticket-1"].OK() {
		t.Errorf("expected ok receipt, got %+v", receipts["ticket-1"])
	}
	if !receipts["ticket-2"].DeviceNotRegistered() {
		t.Errorf("expected device-gone receipt, got %+v", receipts["ticket-2"])
	}
}
