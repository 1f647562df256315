package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gitping/relay/internal/push"
)

// PushSender mirrors the dispatcher's view of the push client to avoid a
// circular import.
type PushSender interface {
	Send(ctx context.Context, msg push.Message) ([]push.Ticket, error)
	GetReceipts(ctx context.Context, ids []string) (map[string]push.Receipt, error)
}

// ProtectedClient wraps a push sender with a CircuitBreaker. While the
// provider is down, Send and GetReceipts fail fast with ErrCircuitOpen
// instead of burning the webhook request timeout on a dead upstream.
type ProtectedClient struct {
	sender  PushSender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedClient wraps a push sender with circuit breaker protection.
func NewProtectedClient(sender PushSender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedClient {
	return &ProtectedClient{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send attempts a provider send through the circuit breaker.
func (p *ProtectedClient) Send(ctx context.Context, msg push.Message) ([]push.Ticket, error) {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected push send",
			zap.String("breaker", p.breaker.config.Name),
			zap.Int("tokens", len(msg.To)),
			zap.String("state", p.breaker.GetState().String()),
		)
		return nil, fmt.Errorf("%w: push provider unavailable", ErrCircuitOpen)
	}

	tickets, err := p.sender.Send(ctx, msg)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}

	p.breaker.RecordSuccess()
	return tickets, nil
}

// GetReceipts attempts a receipt query through the circuit breaker.
func (p *ProtectedClient) GetReceipts(ctx context.Context, ids []string) (map[string]push.Receipt, error) {
	if !p.breaker.Allow() {
		return nil, fmt.Errorf("%w: push provider unavailable", ErrCircuitOpen)
	}

	receipts, err := p.sender.GetReceipts(ctx, ids)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}

	p.breaker.RecordSuccess()
	return receipts, nil
}

// Breaker returns the underlying circuit breaker for metrics/monitoring.
func (p *ProtectedClient) Breaker() *CircuitBreaker {
	return p.breaker
}
