package models

import "time"

type Side string
type SignalKind string
type CloseReason string
type OrderKind string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"

	SignalNone  SignalKind = "NONE"
	SignalLong  SignalKind = "LONG"
	SignalShort SignalKind = "SHORT"

	ReasonStop CloseReason = "stop"
	ReasonFlip CloseReason = "flip"
	ReasonTP1  CloseReason = "TP1"
	ReasonTP2  CloseReason = "TP2"

	OrderKindEntry   OrderKind = "entry"
	OrderKindPartial OrderKind = "tp1"
	OrderKindExit    OrderKind = "exit"
)

// Opposite возвращает противоположную сторону.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Sign: +1 для LONG, -1 для SHORT.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

func (k SignalKind) Side() (Side, bool) {
	switch k {
	case SignalLong:
		return SideLong, true
	case SignalShort:
		return SideShort, true
	}
	return "", false
}

type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	HasVolume bool    `json:"has_volume"`
}

func (c Candle) Bullish() bool { return c.Close > c.Open }
func (c Candle) Bearish() bool { return c.Close < c.Open }

type Position struct {
	Asset             string    `json:"asset"`
	Side              Side      `json:"side"`
	EntryPrice        float64   `json:"entry_price"`
	StopPrice         float64   `json:"stop_price"`
	InitialStop       float64   `json:"initial_stop"`
	Quantity          float64   `json:"quantity"`
	InitialQty        float64   `json:"initial_qty"`
	TP1Hit            bool      `json:"tp1_hit"`
	ReferenceBarIndex int       `json:"reference_bar_index"`
	ReferenceBarTime  int64     `json:"reference_bar_time"`
	OpenTime          time.Time `json:"open_time"`
	TradeID           string    `json:"trade_id"`
}

// R - исходная дистанция вход-стоп, не меняется при трейлинге.
func (p Position) R() float64 {
	r := p.EntryPrice - p.InitialStop
	if r < 0 {
		return -r
	}
	return r
}

type Order struct {
	Asset   string    `json:"asset"`
	Side    Side      `json:"side"`
	Kind    OrderKind `json:"kind"`
	Qty     float64   `json:"qty"`
	Price   float64   `json:"price"`
	Reduce  bool      `json:"reduce"`
	TradeID string    `json:"trade_id"`
}

type Fill struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}
