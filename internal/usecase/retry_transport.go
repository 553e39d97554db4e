package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vitos/ladder_bot/internal/domain"
	"go.uber.org/zap"
)

// RetryPolicy bounds how often a transport call is retried.
type RetryPolicy struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// RetryingTransport retries transport errors with the same order link id,
// so the exchange deduplicates a request that landed before its response
// was lost. Rejections are returned at once. A duplicate id is an ack.
type RetryingTransport struct {
	next   domain.TradingTransport
	policy RetryPolicy
	logger *zap.Logger
}

func NewRetryingTransport(next domain.TradingTransport, policy RetryPolicy, logger *zap.Logger) *RetryingTransport {
	return &RetryingTransport{next: next, policy: policy, logger: logger}
}

func (t *RetryingTransport) SubmitOrder(ctx context.Context, req domain.OrderRequest) error {
	return t.retry(ctx, "submit", req.OrderLinkID, func() error {
		err := t.next.SubmitOrder(ctx, req)
		if errors.Is(err, domain.ErrDuplicateOrder) {
			return nil
		}
		return err
	})
}

func (t *RetryingTransport) AmendOrder(ctx context.Context, req domain.AmendRequest) error {
	return t.retry(ctx, "amend", req.OrderLinkID, func() error {
		return t.next.AmendOrder(ctx, req)
	})
}

func (t *RetryingTransport) QueryOrderStatus(ctx context.Context, symbol, orderLinkID string) (domain.OrderStatusReport, error) {
	var rep domain.OrderStatusReport
	err := t.retry(ctx, "query", orderLinkID, func() error {
		var err error
		rep, err = t.next.QueryOrderStatus(ctx, symbol, orderLinkID)
		return err
	})
	return rep, err
}

func (t *RetryingTransport) retry(ctx context.Context, op, orderLinkID string, fn func() error) error {
	call := func() error {
		err := fn()
		if errors.Is(err, domain.ErrOrderRejected) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.logger.Warn("Transport call failed, retrying",
			zap.String("op", op),
			zap.String("order_id", orderLinkID),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(call, t.policy.backOff(ctx), notify)
}
