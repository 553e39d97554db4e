package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/ladder_bot/internal/domain"
)

type recordedCall struct {
	Method  string
	Path    string
	Query   map[string][]string
	Payload map[string]interface{}
	Signed  bool
}

type fakeBybit struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses map[string]string
}

func newFakeBybit(t *testing.T, responses map[string]string) (*fakeBybit, *BybitAdapter) {
	fb := &fakeBybit{responses: responses}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Signed: r.Header.Get("X-BAPI-SIGN") != "" && r.Header.Get("X-BAPI-API-KEY") == "key",
		}
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&call.Payload)
		}
		fb.mu.Lock()
		fb.calls = append(fb.calls, call)
		body, ok := fb.responses[r.URL.Path]
		fb.mu.Unlock()

		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return fb, NewBybitAdapter("key", "secret", srv.URL)
}

func (f *fakeBybit) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func TestGetCandlesReturnsOldestFirst(t *testing.T) {
	_, adapter := newFakeBybit(t, map[string]string{
		"/v5/market/kline": `{"retCode":0,"retMsg":"OK","result":{"list":[
			["1700007200000","102","104","101","103","10","0"],
			["1700003600000","101","103","100","102","11","0"],
			["1700000000000","100","102","99","101","12","0"]
		]}}`,
	})

	candles, err := adapter.GetCandles(context.Background(), "BTCUSDT", "240", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, int64(1700000000), candles[0].Time)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 103.0, candles[2].Close)
	assert.Equal(t, 104.0, candles[2].High)
	assert.Equal(t, 12.0, candles[0].Volume)
}

func TestGetCandlesErrorCode(t *testing.T) {
	_, adapter := newFakeBybit(t, map[string]string{
		"/v5/market/kline": `{"retCode":10001,"retMsg":"params error","result":{}}`,
	})
	_, err := adapter.GetCandles(context.Background(), "BTCUSDT", "240", 3)
	assert.Error(t, err)
}

func TestSubmitConditionalOrderPayload(t *testing.T) {
	fb, adapter := newFakeBybit(t, map[string]string{
		"/v5/order/create": `{"retCode":0,"retMsg":"OK","result":{"orderLinkId":"BTCUSDT-exit1-1"}}`,
	})

	err := adapter.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol:           "BTCUSDT",
		OrderLinkID:      "BTCUSDT-exit1-1",
		Side:             domain.OrderSideSell,
		Qty:              0.667,
		TriggerPrice:     99.5,
		TriggerDirection: domain.TriggerFall,
		ReduceOnly:       true,
	})
	require.NoError(t, err)

	calls := fb.Calls()
	require.Len(t, calls, 1)
	c := calls[0]
	assert.True(t, c.Signed)
	assert.Equal(t, "linear", c.Payload["category"])
	assert.Equal(t, "Sell", c.Payload["side"])
	assert.Equal(t, "Market", c.Payload["orderType"])
	assert.Equal(t, "0.667", c.Payload["qty"])
	assert.Equal(t, "99.5", c.Payload["triggerPrice"])
	assert.Equal(t, float64(2), c.Payload["triggerDirection"])
	assert.Equal(t, true, c.Payload["reduceOnly"])
}

func TestSubmitMarketOrderHasNoTrigger(t *testing.T) {
	fb, adapter := newFakeBybit(t, map[string]string{
		"/v5/order/create": `{"retCode":0,"retMsg":"OK","result":{}}`,
	})

	err := adapter.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", OrderLinkID: "BTCUSDT-open-1", Side: domain.OrderSideBuy, Qty: 2,
	})
	require.NoError(t, err)

	payload := fb.Calls()[0].Payload
	assert.NotContains(t, payload, "triggerPrice")
	assert.NotContains(t, payload, "triggerDirection")
	assert.Equal(t, false, payload["reduceOnly"])
}

func TestSubmitOrderRetCodeMapping(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   error
		retryable bool
	}{
		{"duplicate", `{"retCode":110072,"retMsg":"OrderLinkedID is duplicate"}`, domain.ErrDuplicateOrder, false},
		{"rejected", `{"retCode":110007,"retMsg":"insufficient balance"}`, domain.ErrOrderRejected, false},
		{"rate limited", `{"retCode":10006,"retMsg":"too many visits"}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, adapter := newFakeBybit(t, map[string]string{"/v5/order/create": tt.body})
			err := adapter.SubmitOrder(context.Background(), domain.OrderRequest{
				Symbol: "BTCUSDT", OrderLinkID: "id", Side: domain.OrderSideBuy, Qty: 1,
			})
			require.Error(t, err)
			if tt.retryable {
				assert.False(t, errors.Is(err, domain.ErrOrderRejected))
				assert.False(t, errors.Is(err, domain.ErrDuplicateOrder))
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAmendOrder(t *testing.T) {
	fb, adapter := newFakeBybit(t, map[string]string{
		"/v5/order/amend": `{"retCode":0,"retMsg":"OK","result":{}}`,
	})

	err := adapter.AmendOrder(context.Background(), domain.AmendRequest{
		Symbol: "BTCUSDT", OrderLinkID: "BTCUSDT-exit2-1", TriggerPrice: 98.25,
	})
	require.NoError(t, err)
	payload := fb.Calls()[0].Payload
	assert.Equal(t, "BTCUSDT-exit2-1", payload["orderLinkId"])
	assert.Equal(t, "98.25", payload["triggerPrice"])
}

func TestQueryOrderStatusFromRealtime(t *testing.T) {
	fb, adapter := newFakeBybit(t, map[string]string{
		"/v5/order/realtime": `{"retCode":0,"result":{"list":[{"orderLinkId":"x","orderStatus":"Untriggered","avgPrice":"","cumExecQty":"0"}]}}`,
		"/v5/order/history":  `{"retCode":0,"result":{"list":[]}}`,
	})

	report, err := adapter.QueryOrderStatus(context.Background(), "BTCUSDT", "x")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, report.Status)
	assert.Len(t, fb.Calls(), 1)
	assert.Equal(t, []string{"x"}, fb.Calls()[0].Query["orderLinkId"])
}

func TestQueryOrderStatusFallsBackToHistory(t *testing.T) {
	fb, adapter := newFakeBybit(t, map[string]string{
		"/v5/order/realtime": `{"retCode":0,"result":{"list":[]}}`,
		"/v5/order/history":  `{"retCode":0,"result":{"list":[{"orderLinkId":"x","orderStatus":"Filled","avgPrice":"101.5","cumExecQty":"2"}]}}`,
	})

	report, err := adapter.QueryOrderStatus(context.Background(), "BTCUSDT", "x")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, report.Status)
	assert.Equal(t, 101.5, report.AvgPrice)
	assert.Equal(t, 2.0, report.FilledQty)
	assert.Len(t, fb.Calls(), 2)
}

func TestQueryOrderStatusNotFoundIsAbsent(t *testing.T) {
	_, adapter := newFakeBybit(t, map[string]string{
		"/v5/order/realtime": `{"retCode":0,"result":{"list":[]}}`,
		"/v5/order/history":  `{"retCode":0,"result":{"list":[]}}`,
	})

	report, err := adapter.QueryOrderStatus(context.Background(), "BTCUSDT", "x")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAbsent, report.Status)
}

func TestQueryOrderStatusHTTPError(t *testing.T) {
	_, adapter := newFakeBybit(t, map[string]string{})
	_, err := adapter.QueryOrderStatus(context.Background(), "BTCUSDT", "x")
	assert.Error(t, err)
}

func TestMapOrderStatus(t *testing.T) {
	cases := map[string]domain.OrderStatus{
		"New":             domain.OrderStatusOpen,
		"PartiallyFilled": domain.OrderStatusOpen,
		"Untriggered":     domain.OrderStatusOpen,
		"Triggered":       domain.OrderStatusOpen,
		"Filled":          domain.OrderStatusFilled,
		"Cancelled":       domain.OrderStatusAbsent,
		"Rejected":        domain.OrderStatusAbsent,
		"Deactivated":     domain.OrderStatusAbsent,
	}
	for in, want := range cases {
		assert.Equal(t, want, mapOrderStatus(in), in)
	}
}

func TestSetLeverageNotModifiedIsSuccess(t *testing.T) {
	fb, adapter := newFakeBybit(t, map[string]string{
		"/v5/position/set-leverage": `{"retCode":110043,"retMsg":"leverage not modified"}`,
	})
	require.NoError(t, adapter.SetLeverage(context.Background(), "BTCUSDT", 5))
	payload := fb.Calls()[0].Payload
	assert.Equal(t, "5", payload["buyLeverage"])
	assert.Equal(t, "5", payload["sellLeverage"])
}

func TestSignIsDeterministic(t *testing.T) {
	a := NewBybitAdapter("key", "secret", "")
	s1 := a.sign("category=linear", 1700000000000)
	s2 := a.sign("category=linear", 1700000000000)
	assert.Equal(t, s1, s2)
	assert.Len(t, s1, 64)
	assert.NotEqual(t, s1, a.sign("category=spot", 1700000000000))
}
