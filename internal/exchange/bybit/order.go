package bybit

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"breakbot/internal/exchange"
	"breakbot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Execute отправляет рыночный ордер и ждёт исполнения по orderLinkId.
// Повторная отправка с тем же TradeID и Kind не создаёт второй ордер.
func (c *Client) Execute(ctx context.Context, order models.Order) (models.Fill, error) {
	rules, err := c.InstrumentRules(ctx, order.Asset)
	if err != nil {
		return models.Fill{}, err
	}

	qty := quantize(order.Qty, rules.LotSize)
	if !qty.IsPositive() || qty.LessThan(decimal.NewFromFloat(rules.MinQty)) {
		return models.Fill{}, exchange.BadResponse("объём %s меньше минимального %v для %s", qty, rules.MinQty, order.Asset)
	}

	linkID := orderLinkID(order.TradeID, order.Kind)
	body := map[string]any{
		"category":    c.category,
		"symbol":      order.Asset,
		"side":        orderSide(order),
		"orderType":   "Market",
		"qty":         formatWithStep(order.Qty, rules.LotSize),
		"orderLinkId": linkID,
	}
	if order.Reduce && c.category != "spot" {
		body["reduceOnly"] = true
	}

	entry := c.logEntry(order.Asset).WithFields(logrus.Fields{
		"kind":          order.Kind,
		"order_link_id": linkID,
		"qty":           body["qty"],
	})

	var resp bybitResponse[struct {
		OrderID string `json:"orderId"`
	}]
	if err := c.doRequest(ctx, http.MethodPost, "/v5/order/create", nil, body, true, &resp); err != nil {
		if !isDuplicateLink(err) {
			return models.Fill{}, err
		}
		entry.Info("Ордер с таким orderLinkId уже существует, ожидаем исполнение.")
	} else {
		entry.WithField("order_id", resp.Result.OrderID).Info("Ордер отправлен.")
	}

	fill, err := c.waitFill(ctx, order.Asset, linkID)
	if err != nil {
		return models.Fill{}, err
	}
	if fill.Qty <= 0 {
		entry.Warn("Исполнение не подтверждено, используем расчётную цену.")
		return models.Fill{Price: order.Price, Qty: qty.InexactFloat64()}, nil
	}
	return fill, nil
}

// waitFill опрашивает /v5/execution/list до fillTimeout и возвращает среднюю цену исполнения.
func (c *Client) waitFill(ctx context.Context, symbol, linkID string) (models.Fill, error) {
	deadline := time.Now().Add(c.fillTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		fill, err := c.fillsByLink(ctx, symbol, linkID)
		if err != nil && !exchange.IsTransient(err) {
			return models.Fill{}, err
		}
		if err == nil && fill.Qty > 0 {
			return fill, nil
		}
		if time.Now().After(deadline) {
			return models.Fill{}, nil
		}

		select {
		case <-ctx.Done():
			return models.Fill{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fillsByLink(ctx context.Context, symbol, linkID string) (models.Fill, error) {
	params := url.Values{}
	params.Set("category", c.category)
	params.Set("symbol", symbol)
	params.Set("orderLinkId", linkID)

	var resp bybitResponse[executionList]
	if err := c.doRequest(ctx, http.MethodGet, "/v5/execution/list", params, nil, true, &resp); err != nil {
		return models.Fill{}, err
	}

	notional := decimal.Zero
	total := decimal.Zero
	for _, item := range resp.Result.List {
		if item.OrderLink != linkID {
			continue
		}
		price, err := decimal.NewFromString(item.ExecPrice)
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(item.ExecQty)
		if err != nil {
			continue
		}
		notional = notional.Add(price.Mul(qty))
		total = total.Add(qty)
	}
	if !total.IsPositive() {
		return models.Fill{}, nil
	}
	return models.Fill{
		Price: notional.Div(total).InexactFloat64(),
		Qty:   total.InexactFloat64(),
	}, nil
}

// orderSide: вход по стороне позиции, выход - противоположной.
func orderSide(order models.Order) string {
	side := order.Side
	if order.Reduce {
		side = side.Opposite()
	}
	if side == models.SideLong {
		return "Buy"
	}
	return "Sell"
}

// orderLinkId у bybit не длиннее 36 символов.
func orderLinkID(tradeID string, kind models.OrderKind) string {
	id := strings.ReplaceAll(tradeID, "-", "")
	if len(id) > 32 {
		id = id[:32]
	}
	suffix := "e"
	switch kind {
	case models.OrderKindPartial:
		suffix = "p"
	case models.OrderKindExit:
		suffix = "x"
	}
	return id + "-" + suffix
}

func isDuplicateLink(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Code == retCodeDuplicateLink || apiErr.Code == retCodeDuplicateSpot
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate")
}
