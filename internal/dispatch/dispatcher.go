// Package dispatch fans a composed push message out to the provider in
// provider-limited batches and reconciles the asynchronous delivery
// tickets/receipts afterwards.
//
// Everything here is an observability concern: by the time the dispatcher
// runs, the webhook has been durably accepted, so push-path failures are
// logged and counted but never surface to the HTTP caller.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gitping/relay/internal/metrics"
	"github.com/gitping/relay/internal/push"
)

// Client is the provider surface the dispatcher needs. *push.Client and its
// circuit-breaker wrapper both satisfy this.
type Client interface {
	Send(ctx context.Context, msg push.Message) ([]push.Ticket, error)
	GetReceipts(ctx context.Context, ids []string) (map[string]push.Receipt, error)
}

// Message is one composed notification addressed to a set of device tokens.
type Message struct {
	Title  string
	Body   string
	Tokens []string
	Data   map[string]string
}

// Result summarizes a dispatch run. StaleTokens lists device tokens the
// provider reported as permanently unregistered; the caller drops them from
// the user's token set.
type Result struct {
	Accepted    int
	Failed      int
	StaleTokens []string
}

// Dispatcher sends push messages and reconciles their delivery outcome.
type Dispatcher struct {
	client Client
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(client Client, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger,
	}
}

// Dispatch sends msg to all tokens in provider-limited batches, then queries
// delivery receipts for the accepted tickets.
//
// Batches are independent: each gets exactly one submission attempt, and one
// batch failing does not abort the others. Batches run concurrently; the only
// shared state is the append-only result collection behind a mutex.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Result {
	var (
		mu         sync.Mutex
		result     Result
		receiptIDs []string
		// ticket receipt id -> token, so receipt-level permanent failures
		// can still be traced back to the device.
		tokenByReceipt = make(map[string]string)
	)

	var wg sync.WaitGroup
	for _, batch := range push.ChunkTokens(msg.Tokens) {
		wg.Add(1)
		go func(batch []string) {
			defer wg.Done()

			tickets, err := d.client.Send(ctx, push.Message{
				To:    batch,
				Title: msg.Title,
				Body:  msg.Body,
				Sound: "default",
				Data:  msg.Data,
			})
			if err != nil {
				d.logger.Error("push batch submission failed",
					zap.Error(err),
					zap.Int("tokens", len(batch)),
				)
				metrics.RecordPushBatchFailure()
				mu.Lock()
				result.Failed += len(batch)
				mu.Unlock()
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for i, ticket := range tickets {
				metrics.RecordPushTicket(ticket.Status)

				if ticket.OK() {
					result.Accepted++
					if ticket.ID != "" {
						receiptIDs = append(receiptIDs, ticket.ID)
						tokenByReceipt[ticket.ID] = batch[i]
					}
					continue
				}

				result.Failed++
				d.logger.Warn("push ticket error",
					zap.String("message", ticket.Message),
					zap.String("token", batch[i]),
				)
				if ticket.DeviceNotRegistered() {
					result.StaleTokens = append(result.StaleTokens, batch[i])
				}
			}
		}(batch)
	}
	wg.Wait()

	stale := d.reconcile(ctx, receiptIDs, tokenByReceipt)
	result.StaleTokens = append(result.StaleTokens, stale...)

	if len(result.StaleTokens) > 0 {
		metrics.RecordStaleTokens(len(result.StaleTokens))
	}

	d.logger.Info("push dispatch finished",
		zap.Int("accepted", result.Accepted),
		zap.Int("failed", result.Failed),
		zap.Int("stale_tokens", len(result.StaleTokens)),
	)

	return result
}

// reconcile queries delivery receipts for the captured ticket ids. Receipt
// batches are independent too: a failing batch is logged and skipped.
func (d *Dispatcher) reconcile(ctx context.Context, receiptIDs []string, tokenByReceipt map[string]string) []string {
	if len(receiptIDs) == 0 {
		return nil
	}

	var (
		mu    sync.Mutex
		stale []string
	)

	var wg sync.WaitGroup
	for _, batch := range push.ChunkReceiptIDs(receiptIDs) {
		wg.Add(1)
		go func(batch []string) {
			defer wg.Done()

			receipts, err := d.client.GetReceipts(ctx, batch)
			if err != nil {
				d.logger.Error("receipt batch query failed",
					zap.Error(err),
					zap.Int("ids", len(batch)),
				)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for id, receipt := range receipts {
				metrics.RecordPushReceipt(receipt.Status)

				if receipt.OK() {
					continue
				}

				errCode := ""
				if receipt.Details != nil {
					errCode = receipt.Details.Error
				}
				d.logger.Warn("push delivery failed",
					zap.String("receipt_id", id),
					zap.String("error", errCode),
					zap.String("message", receipt.Message),
				)

				if receipt.DeviceNotRegistered() {
					if token, ok := tokenByReceipt[id]; ok {
						stale = append(stale, token)
					}
				}
			}
		}(batch)
	}
	wg.Wait()

	return stale
}
