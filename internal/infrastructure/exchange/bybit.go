package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vitos/ladder_bot/internal/domain"
)

const (
	BybitBaseURL       = "https://api.bybit.com"
	BybitPrivateWSURL  = "wss://stream.bybit.com/v5/private"
	defaultRecvWindow  = 5000
	categoryLinear     = "linear"
	triggerByMarkPrice = "MarkPrice"
)

// Bybit V5 return codes the adapter treats specially.
const (
	retCodeOK                   = 0
	retCodeServerError          = 10000
	retCodeRateLimited          = 10006
	retCodeServiceUnavailable   = 10016
	retCodeLeverageNotModified  = 110043
	retCodeDuplicateOrderLinkID = 110072
)

// BybitAdapter implements market data, trading transport and leverage
// setting over the Bybit V5 REST API for linear perpetuals.
type BybitAdapter struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	recvWindow int
	client     *http.Client
}

func NewBybitAdapter(apiKey, apiSecret, baseURL string) *BybitAdapter {
	if baseURL == "" {
		baseURL = BybitBaseURL
	}
	return &BybitAdapter{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		recvWindow: defaultRecvWindow,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// apiResponse is the common V5 envelope.
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// --- REST API ---

func (b *BybitAdapter) sign(params string, timestamp int64) string {
	// timestamp + apiKey + recvWindow + params
	toSign := fmt.Sprintf("%d%s%d%s", timestamp, b.apiKey, b.recvWindow, params)
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

// sendRequest performs a signed call. GET parameters go in query, POST
// parameters in payload. HTTP level failures are returned as plain errors
// so callers may retry them.
func (b *BybitAdapter) sendRequest(ctx context.Context, method, path string, query url.Values, payload map[string]interface{}) (*apiResponse, error) {
	timestamp := time.Now().UnixMilli()

	var body []byte
	var paramsStr string
	target := b.baseURL + path

	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", path, err)
		}
		body = jsonBody
		paramsStr = string(jsonBody)
	} else if len(query) > 0 {
		paramsStr = query.Encode()
		target += "?" + paramsStr
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-BAPI-SIGN", b.sign(paramsStr, timestamp))
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(b.recvWindow))
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bybit %s: http %d: %s", path, resp.StatusCode, string(respBody))
	}

	var out apiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("bybit %s: decode response: %w", path, err)
	}
	return &out, nil
}

// retCodeError maps a non-zero return code onto the domain error taxonomy.
// Server-side throttling and outages stay plain errors and are retried.
func retCodeError(op string, code int, msg string) error {
	switch code {
	case retCodeOK:
		return nil
	case retCodeDuplicateOrderLinkID:
		return fmt.Errorf("bybit %s: %s: %w", op, msg, domain.ErrDuplicateOrder)
	case retCodeServerError, retCodeRateLimited, retCodeServiceUnavailable:
		return fmt.Errorf("bybit %s error %d: %s", op, code, msg)
	}
	return fmt.Errorf("bybit %s error %d: %s: %w", op, code, msg, domain.ErrOrderRejected)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (b *BybitAdapter) GetCandles(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
	query := url.Values{}
	query.Set("category", categoryLinear)
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))

	resp, err := b.sendRequest(ctx, http.MethodGet, "/v5/market/kline", query, nil)
	if err != nil {
		return nil, err
	}
	if resp.RetCode != retCodeOK {
		return nil, fmt.Errorf("bybit kline error %d: %s", resp.RetCode, resp.RetMsg)
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("bybit kline: decode result: %w", err)
	}

	candles := make(domain.CandleSeries, 0, len(result.List))
	for _, raw := range result.List {
		// Format: [startTime, open, high, low, close, volume, turnover]
		if len(raw) < 6 {
			continue
		}
		c, err := parseKline(raw)
		if err != nil {
			return nil, fmt.Errorf("bybit kline: %w", err)
		}
		candles = append(candles, c)
	}

	// Bybit returns newest first
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func parseKline(raw []string) (domain.Candle, error) {
	ts, err := strconv.ParseInt(raw[0], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("start time %q: %w", raw[0], err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(raw[i+1], 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d %q: %w", i+1, raw[i+1], err)
		}
		vals[i] = v
	}
	return domain.Candle{
		Time:   ts / 1000,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func (b *BybitAdapter) SubmitOrder(ctx context.Context, req domain.OrderRequest) error {
	payload := map[string]interface{}{
		"category":    categoryLinear,
		"symbol":      req.Symbol,
		"side":        string(req.Side),
		"orderType":   "Market",
		"qty":         formatFloat(req.Qty),
		"orderLinkId": req.OrderLinkID,
		"reduceOnly":  req.ReduceOnly,
	}
	if req.Conditional() {
		payload["triggerPrice"] = formatFloat(req.TriggerPrice)
		payload["triggerDirection"] = int(req.TriggerDirection)
		payload["triggerBy"] = triggerByMarkPrice
		payload["timeInForce"] = "GTC"
	}

	resp, err := b.sendRequest(ctx, http.MethodPost, "/v5/order/create", nil, payload)
	if err != nil {
		return err
	}
	return retCodeError("order create", resp.RetCode, resp.RetMsg)
}

func (b *BybitAdapter) AmendOrder(ctx context.Context, req domain.AmendRequest) error {
	payload := map[string]interface{}{
		"category":     categoryLinear,
		"symbol":       req.Symbol,
		"orderLinkId":  req.OrderLinkID,
		"triggerPrice": formatFloat(req.TriggerPrice),
	}
	resp, err := b.sendRequest(ctx, http.MethodPost, "/v5/order/amend", nil, payload)
	if err != nil {
		return err
	}
	return retCodeError("order amend", resp.RetCode, resp.RetMsg)
}

type orderRecord struct {
	OrderLinkID string `json:"orderLinkId"`
	OrderStatus string `json:"orderStatus"`
	AvgPrice    string `json:"avgPrice"`
	CumExecQty  string `json:"cumExecQty"`
}

// QueryOrderStatus looks the order up among open orders first and falls
// back to order history. An order found in neither is absent.
func (b *BybitAdapter) QueryOrderStatus(ctx context.Context, symbol, orderLinkID string) (domain.OrderStatusReport, error) {
	for _, path := range []string{"/v5/order/realtime", "/v5/order/history"} {
		rec, found, err := b.findOrder(ctx, path, symbol, orderLinkID)
		if err != nil {
			return domain.OrderStatusReport{}, err
		}
		if found {
			avg, _ := strconv.ParseFloat(rec.AvgPrice, 64)
			qty, _ := strconv.ParseFloat(rec.CumExecQty, 64)
			return domain.OrderStatusReport{
				Status:    mapOrderStatus(rec.OrderStatus),
				AvgPrice:  avg,
				FilledQty: qty,
			}, nil
		}
	}
	return domain.OrderStatusReport{Status: domain.OrderStatusAbsent}, nil
}

func (b *BybitAdapter) findOrder(ctx context.Context, path, symbol, orderLinkID string) (orderRecord, bool, error) {
	query := url.Values{}
	query.Set("category", categoryLinear)
	query.Set("symbol", symbol)
	query.Set("orderLinkId", orderLinkID)

	resp, err := b.sendRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return orderRecord{}, false, err
	}
	if resp.RetCode != retCodeOK {
		return orderRecord{}, false, fmt.Errorf("bybit %s error %d: %s", path, resp.RetCode, resp.RetMsg)
	}

	var result struct {
		List []orderRecord `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return orderRecord{}, false, fmt.Errorf("bybit %s: decode result: %w", path, err)
	}
	for _, rec := range result.List {
		if rec.OrderLinkID == orderLinkID {
			return rec, true, nil
		}
	}
	return orderRecord{}, false, nil
}

func mapOrderStatus(s string) domain.OrderStatus {
	switch s {
	case "New", "PartiallyFilled", "Untriggered", "Triggered", "Created":
		return domain.OrderStatusOpen
	case "Filled":
		return domain.OrderStatusFilled
	}
	// Cancelled, Rejected, Deactivated, PartiallyFilledCanceled
	return domain.OrderStatusAbsent
}

func (b *BybitAdapter) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	payload := map[string]interface{}{
		"category":     categoryLinear,
		"symbol":       symbol,
		"buyLeverage":  strconv.Itoa(leverage),
		"sellLeverage": strconv.Itoa(leverage),
	}
	resp, err := b.sendRequest(ctx, http.MethodPost, "/v5/position/set-leverage", nil, payload)
	if err != nil {
		return err
	}
	if resp.RetCode == retCodeLeverageNotModified {
		return nil
	}
	return retCodeError("set leverage", resp.RetCode, resp.RetMsg)
}
