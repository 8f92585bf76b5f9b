package ledger

import (
	"fmt"

	"breakbot/internal/models"
)

// Tx - изменения по одному активу в рамках Commit. Работает с копией состояния.
type Tx struct {
	asset   string
	barTime int64
	feeRate float64
	state   State
}

type PartialResult struct {
	Position models.Position
	Qty      float64
	Price    float64
	Net      float64
	Equity   float64
}

type CloseResult struct {
	Position models.Position
	Price    float64
	Gross    float64
	Fee      float64
	Net      float64
	Reason   models.CloseReason
	Equity   float64
}

func (tx *Tx) Position() (models.Position, bool) {
	p, ok := tx.state.Positions[tx.asset]
	return p, ok
}

// Open регистрирует позицию, списывает комиссию входа и запоминает бар входа для паузы между сделками.
func (tx *Tx) Open(pos models.Position) (float64, error) {
	if _, ok := tx.state.Positions[tx.asset]; ok {
		return 0, ErrPositionExists
	}
	if pos.Quantity <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQty, pos.Quantity)
	}
	pos.Asset = tx.asset
	if pos.InitialQty == 0 {
		pos.InitialQty = pos.Quantity
	}
	if pos.InitialStop == 0 {
		pos.InitialStop = pos.StopPrice
	}

	fee := EntryFee(pos.EntryPrice, pos.Quantity, tx.feeRate)
	tx.state.Equity -= fee
	tx.state.Positions[tx.asset] = pos
	tx.state.LastTradeTime[tx.asset] = tx.barTime
	return fee, nil
}

// SetStop только подтягивает стоп: вверх для LONG, вниз для SHORT.
func (tx *Tx) SetStop(stop float64) (bool, error) {
	pos, ok := tx.state.Positions[tx.asset]
	if !ok {
		return false, ErrNoPosition
	}
	tighter := (pos.Side == models.SideLong && stop > pos.StopPrice) ||
		(pos.Side == models.SideShort && stop < pos.StopPrice)
	if !tighter {
		return false, nil
	}
	pos.StopPrice = stop
	tx.state.Positions[tx.asset] = pos
	return true, nil
}

func (tx *Tx) PartialExit(qty, price float64) (PartialResult, error) {
	pos, ok := tx.state.Positions[tx.asset]
	if !ok {
		return PartialResult{}, ErrNoPosition
	}
	if qty <= 0 || qty >= pos.Quantity {
		return PartialResult{}, fmt.Errorf("%w: частичный выход %v из %v", ErrInvalidQty, qty, pos.Quantity)
	}

	net := GrossPnL(pos.Side, pos.EntryPrice, price, qty) - ExitFee(pos.EntryPrice, price, qty, tx.feeRate)
	tx.state.Equity += net
	tx.state.RealizedPnL += net

	pos.Quantity -= qty
	pos.TP1Hit = true
	tx.state.Positions[tx.asset] = pos

	return PartialResult{Position: pos, Qty: qty, Price: price, Net: net, Equity: tx.state.Equity}, nil
}

func (tx *Tx) Close(price float64, reason models.CloseReason) (CloseResult, error) {
	pos, ok := tx.state.Positions[tx.asset]
	if !ok {
		return CloseResult{}, ErrNoPosition
	}

	gross := GrossPnL(pos.Side, pos.EntryPrice, price, pos.Quantity)
	fee := ExitFee(pos.EntryPrice, price, pos.Quantity, tx.feeRate)
	net := gross - fee

	tx.state.Equity += net
	tx.state.RealizedPnL += net
	tx.state.PeakEquity = max(tx.state.PeakEquity, tx.state.Equity)
	delete(tx.state.Positions, tx.asset)

	return CloseResult{
		Position: pos,
		Price:    price,
		Gross:    gross,
		Fee:      fee,
		Net:      net,
		Reason:   reason,
		Equity:   tx.state.Equity,
	}, nil
}
