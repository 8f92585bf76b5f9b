package exchange

import (
	"context"

	"breakbot/internal/models"
)

// CandleSource отдаёт свечи за окно [start, end] в секундах.
type CandleSource interface {
	Candles(ctx context.Context, symbol, resolution string, start, end int64) ([]models.Candle, error)
}

// Executor исполняет рыночные ордера стратегии. Paper-режим исполняет по запрошенной цене.
type Executor interface {
	Execute(ctx context.Context, order models.Order) (models.Fill, error)
}

type InstrumentRules struct {
	TickSize float64
	LotSize  float64
	MinQty   float64
}

type PaperExecutor struct{}

func (PaperExecutor) Execute(_ context.Context, order models.Order) (models.Fill, error) {
	if order.Qty <= 0 {
		return models.Fill{}, BadResponse("нулевой объём ордера")
	}
	return models.Fill{Price: order.Price, Qty: order.Qty}, nil
}
