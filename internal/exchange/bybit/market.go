package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"breakbot/internal/candles"
	"breakbot/internal/exchange"
	"breakbot/internal/models"

	"github.com/shopspring/decimal"
)

const (
	klineLimit    = 1000
	maxKlinePages = 20
)

// Candles тянет /v5/market/kline постранично от end к start.
func (c *Client) Candles(ctx context.Context, symbol, resolution string, start, end int64) ([]models.Candle, error) {
	interval, err := klineInterval(resolution)
	if err != nil {
		return nil, err
	}

	var out []models.Candle
	skippedTotal := 0
	cursor := end * 1000

	for page := 0; page < maxKlinePages; page++ {
		params := url.Values{}
		params.Set("category", c.category)
		params.Set("symbol", symbol)
		params.Set("interval", interval)
		params.Set("start", strconv.FormatInt(start*1000, 10))
		params.Set("end", strconv.FormatInt(cursor, 10))
		params.Set("limit", strconv.Itoa(klineLimit))

		var resp bybitResponse[klineResult]
		if err := c.doRequest(ctx, http.MethodGet, "/v5/market/kline", params, nil, false, &resp); err != nil {
			return nil, err
		}

		batch, skipped := candles.Normalize(resp.Result.List)
		skippedTotal += skipped
		if len(batch) == 0 {
			break
		}
		out = append(out, batch...)

		oldest := batch[0].Timestamp * 1000
		if len(resp.Result.List) < klineLimit || oldest <= start*1000 || oldest-1 >= cursor {
			break
		}
		cursor = oldest - 1
	}

	if skippedTotal > 0 {
		c.logEntry(symbol).WithField("skipped", skippedTotal).
			Debug("Пропущены некорректные свечи.")
	}
	return candles.SortDedup(out), nil
}

// klineInterval: "1h" -> "60", "1d" -> "D", "1w" -> "W".
func klineInterval(resolution string) (string, error) {
	d, err := candles.ParseTimeframe(resolution)
	if err != nil {
		return "", err
	}
	switch {
	case d == 7*24*time.Hour:
		return "W", nil
	case d == 24*time.Hour:
		return "D", nil
	case d < 24*time.Hour && d%time.Minute == 0:
		return strconv.Itoa(int(d / time.Minute)), nil
	}
	return "", fmt.Errorf("Таймфрейм %q не поддерживается bybit", resolution)
}

// InstrumentRules кэширует фильтры инструмента на время жизни клиента.
func (c *Client) InstrumentRules(ctx context.Context, symbol string) (exchange.InstrumentRules, error) {
	c.rulesMu.Lock()
	rules, ok := c.rules[symbol]
	c.rulesMu.Unlock()
	if ok {
		return rules, nil
	}

	params := url.Values{}
	params.Set("category", c.category)
	params.Set("symbol", symbol)

	var resp bybitResponse[instrumentInfo]
	if err := c.doRequest(ctx, http.MethodGet, "/v5/market/instruments-info", params, nil, false, &resp); err != nil {
		return exchange.InstrumentRules{}, err
	}

	if len(resp.Result.List) == 0 {
		return exchange.InstrumentRules{}, exchange.BadResponse("Торговая пара не найдена: %s", symbol)
	}

	info := resp.Result.List[0]

	tick, err := parseDecimalOrZero(info.PriceFilter.TickSize)
	if err != nil {
		return exchange.InstrumentRules{}, exchange.BadResponse("Некорректное значение tickSize=%q", info.PriceFilter.TickSize)
	}

	lot, err := parseDecimalOrZero(info.LotSizeFilter.QtyStep)
	if err != nil {
		return exchange.InstrumentRules{}, exchange.BadResponse("Некорректное значение qtyStep=%q", info.LotSizeFilter.QtyStep)
	}
	if lot.IsZero() {
		lot, err = parseDecimalOrZero(info.LotSizeFilter.BasePrecision)
		if err != nil {
			return exchange.InstrumentRules{}, exchange.BadResponse("Некорректное значение basePrecision=%q", info.LotSizeFilter.BasePrecision)
		}
	}
	if lot.IsZero() {
		return exchange.InstrumentRules{}, exchange.BadResponse("Не удалось определить lot size для торговой пары: %s", symbol)
	}

	minQty, err := parseDecimalOrZero(info.LotSizeFilter.MinOrderQty)
	if err != nil {
		return exchange.InstrumentRules{}, exchange.BadResponse("Некорректное значение minOrderQty=%q", info.LotSizeFilter.MinOrderQty)
	}

	rules = exchange.InstrumentRules{
		TickSize: tick.InexactFloat64(),
		LotSize:  lot.InexactFloat64(),
		MinQty:   minQty.InexactFloat64(),
	}

	c.rulesMu.Lock()
	c.rules[symbol] = rules
	c.rulesMu.Unlock()

	return rules, nil
}

func parseDecimalOrZero(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
