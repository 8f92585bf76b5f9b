package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"breakbot/internal/exchange"
	"breakbot/internal/logger"
	"breakbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Options{BaseURL: srv.URL, ApiKey: "key", Secret: "secret", Timeout: time.Second}, logger.NewNop())
	c.fillTimeout = 50 * time.Millisecond
	c.pollInterval = 5 * time.Millisecond
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

const instrumentsBody = `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT",
	"priceFilter":{"tickSize":"0.10"},"lotSizeFilter":{"minOrderQty":"0.001","qtyStep":"0.001"}}]}}`

func TestCandlesNormalizesDescendingRows(t *testing.T) {
	var query map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/kline", r.URL.Path)
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"symbol":"BTCUSDT","category":"linear","list":[
			["1700007200000","102","103","101","102.5","10","1000"],
			["1700003600000","101","102","100","101.5","12","1200"],
			["1700000000000","100","101","99","100.5","bad","0"]
		]}}`))
	})

	got, err := c.Candles(context.Background(), "BTCUSDT", "1h", 1699990000, 1700010000)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "60", query["interval"])
	assert.Equal(t, "linear", query["category"])
	assert.Equal(t, "1699990000000", query["start"])

	assert.Equal(t, int64(1700000000), got[0].Timestamp)
	assert.False(t, got[0].HasVolume)
	assert.Equal(t, int64(1700007200), got[2].Timestamp)
	assert.InDelta(t, 102.5, got[2].Close, 1e-12)
	assert.True(t, got[2].HasVolume)
}

func TestCandlesPagesBackwards(t *testing.T) {
	const step = int64(60_000)
	newest := int64(1_700_000_000_000)
	var calls int

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		end, _ := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
		start, _ := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)

		rows := make([][]string, 0, klineLimit)
		for ts := newest; ts >= start && len(rows) < klineLimit; ts -= step {
			if ts > end {
				continue
			}
			s := strconv.FormatInt(ts, 10)
			rows = append(rows, []string{s, "1", "2", "0.5", "1.5", "3", "0"})
		}
		writeJSON(w, map[string]any{"retCode": 0, "retMsg": "OK", "result": map[string]any{"list": rows}})
	})

	start := (newest - 1500*step) / 1000
	got, err := c.Candles(context.Background(), "BTCUSDT", "1m", start, newest/1000)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Len(t, got, 1501)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, int64(60), got[i].Timestamp-got[i-1].Timestamp)
	}
}

func TestDoRequestErrorTaxonomy(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   error
	}{
		"rate limit code": {http.StatusOK, `{"retCode":10006,"retMsg":"Too many visits"}`, exchange.ErrRateLimited},
		"http 429":        {http.StatusTooManyRequests, ``, exchange.ErrRateLimited},
		"http 502":        {http.StatusBadGateway, ``, exchange.ErrTransient},
		"business error":  {http.StatusOK, `{"retCode":10001,"retMsg":"params error"}`, exchange.ErrBadResponse},
		"garbage":         {http.StatusOK, `<html>`, exchange.ErrBadResponse},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Candles(context.Background(), "BTCUSDT", "1h", 0, 1)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestKlineInterval(t *testing.T) {
	for in, want := range map[string]string{"1m": "1", "15m": "15", "1h": "60", "4h": "240", "1d": "D", "1w": "W"} {
		got, err := klineInterval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := klineInterval("2d")
	assert.Error(t, err)
}

func TestExecuteMarketOrder(t *testing.T) {
	var mu sync.Mutex
	var created map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/market/instruments-info":
			_, _ = w.Write([]byte(instrumentsBody))
		case "/v5/order/create":
			assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
			mu.Lock()
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"o-1"}}`))
		case "/v5/execution/list":
			link := r.URL.Query().Get("orderLinkId")
			fmt.Fprintf(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
				{"orderLinkId":%q,"execPrice":"100","execQty":"0.5"},
				{"orderLinkId":%q,"execPrice":"101","execQty":"0.5"}]}}`, link, link)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	fill, err := c.Execute(context.Background(), models.Order{
		Asset: "BTCUSDT", Side: models.SideShort, Kind: models.OrderKindExit,
		Qty: 1.0004, Price: 99, Reduce: true, TradeID: "0b6c7a9e-3d4f-4a51-9a0e-6f2d8c1b7e55",
	})
	require.NoError(t, err)

	assert.InDelta(t, 100.5, fill.Price, 1e-9)
	assert.InDelta(t, 1.0, fill.Qty, 1e-9)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Buy", created["side"])
	assert.Equal(t, "Market", created["orderType"])
	assert.Equal(t, "1.000", created["qty"])
	assert.Equal(t, true, created["reduceOnly"])
	assert.Equal(t, "0b6c7a9e3d4f4a519a0e6f2d8c1b7e55-x", created["orderLinkId"])
}

func TestExecuteDuplicateLinkWaitsForExistingFill(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/market/instruments-info":
			_, _ = w.Write([]byte(instrumentsBody))
		case "/v5/order/create":
			_, _ = w.Write([]byte(`{"retCode":110072,"retMsg":"OrderLinkedID is duplicate"}`))
		case "/v5/execution/list":
			link := r.URL.Query().Get("orderLinkId")
			fmt.Fprintf(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"orderLinkId":%q,"execPrice":"50","execQty":"2"}]}}`, link)
		}
	})

	fill, err := c.Execute(context.Background(), models.Order{
		Asset: "BTCUSDT", Side: models.SideLong, Kind: models.OrderKindEntry, Qty: 2, Price: 49, TradeID: "t1",
	})
	require.NoError(t, err)
	assert.InDelta(t, 50, fill.Price, 1e-12)
}

func TestExecuteFallsBackToReferencePrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/market/instruments-info":
			_, _ = w.Write([]byte(instrumentsBody))
		case "/v5/order/create":
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"o-2"}}`))
		case "/v5/execution/list":
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[]}}`))
		}
	})

	fill, err := c.Execute(context.Background(), models.Order{
		Asset: "BTCUSDT", Side: models.SideLong, Kind: models.OrderKindEntry, Qty: 0.0129, Price: 42, TradeID: "t2",
	})
	require.NoError(t, err)
	assert.InDelta(t, 42, fill.Price, 1e-12)
	assert.InDelta(t, 0.012, fill.Qty, 1e-12)
}

func TestExecuteRejectsBelowMinQty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(instrumentsBody))
	})

	_, err := c.Execute(context.Background(), models.Order{Asset: "BTCUSDT", Side: models.SideLong, Qty: 0.0004, TradeID: "t3"})
	assert.ErrorIs(t, err, exchange.ErrBadResponse)
}

func TestOrderSide(t *testing.T) {
	assert.Equal(t, "Buy", orderSide(models.Order{Side: models.SideLong}))
	assert.Equal(t, "Sell", orderSide(models.Order{Side: models.SideLong, Reduce: true}))
	assert.Equal(t, "Sell", orderSide(models.Order{Side: models.SideShort}))
	assert.Equal(t, "Buy", orderSide(models.Order{Side: models.SideShort, Reduce: true}))
}

func TestFormatWithStep(t *testing.T) {
	assert.Equal(t, "0.3", formatWithStep(0.3, 0.1))
	assert.Equal(t, "12.34", formatWithStep(12.349, 0.01))
	assert.Equal(t, "5", formatWithStep(5.9, 1))
}
