package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/ladder_bot/internal/domain"
	"go.uber.org/zap"
)

// scriptedTrader returns the scripted errors in order, then nil.
type scriptedTrader struct {
	errs  []error
	calls []string
}

func (s *scriptedTrader) next(id string) error {
	s.calls = append(s.calls, id)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedTrader) SubmitOrder(ctx context.Context, req domain.OrderRequest) error {
	return s.next(req.OrderLinkID)
}

func (s *scriptedTrader) AmendOrder(ctx context.Context, req domain.AmendRequest) error {
	return s.next(req.OrderLinkID)
}

func (s *scriptedTrader) QueryOrderStatus(ctx context.Context, symbol, id string) (domain.OrderStatusReport, error) {
	if err := s.next(id); err != nil {
		return domain.OrderStatusReport{}, err
	}
	return domain.OrderStatusReport{Status: domain.OrderStatusOpen}, nil
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryingTransport_LostAckThenDuplicate(t *testing.T) {
	inner := &scriptedTrader{errs: []error{errors.New("i/o timeout"), domain.ErrDuplicateOrder}}
	tr := NewRetryingTransport(inner, fastPolicy(3), zap.NewNop())

	err := tr.SubmitOrder(context.Background(), domain.OrderRequest{OrderLinkID: "BTCUSDT-open-1"})

	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT-open-1", "BTCUSDT-open-1"}, inner.calls)
}

func TestRetryingTransport_RejectionIsNotRetried(t *testing.T) {
	inner := &scriptedTrader{errs: []error{domain.ErrOrderRejected}}
	tr := NewRetryingTransport(inner, fastPolicy(5), zap.NewNop())

	err := tr.SubmitOrder(context.Background(), domain.OrderRequest{OrderLinkID: "x"})

	assert.ErrorIs(t, err, domain.ErrOrderRejected)
	assert.Len(t, inner.calls, 1)
}

func TestRetryingTransport_BoundedAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	inner := &scriptedTrader{errs: []error{boom, boom, boom, boom, boom}}
	tr := NewRetryingTransport(inner, fastPolicy(3), zap.NewNop())

	err := tr.AmendOrder(context.Background(), domain.AmendRequest{OrderLinkID: "x"})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, inner.calls, 3)
}

func TestRetryingTransport_QueryRecovers(t *testing.T) {
	inner := &scriptedTrader{errs: []error{errors.New("502 bad gateway")}}
	tr := NewRetryingTransport(inner, fastPolicy(2), zap.NewNop())

	rep, err := tr.QueryOrderStatus(context.Background(), "BTCUSDT", "x")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, rep.Status)
}

func TestRetryingTransport_StopsOnCancel(t *testing.T) {
	boom := errors.New("connection refused")
	inner := &scriptedTrader{errs: []error{boom, boom, boom}}
	tr := NewRetryingTransport(inner, RetryPolicy{MaxAttempts: 3, InitialInterval: time.Hour, MaxInterval: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.SubmitOrder(ctx, domain.OrderRequest{OrderLinkID: "x"})

	assert.Error(t, err)
	assert.LessOrEqual(t, len(inner.calls), 1)
}
