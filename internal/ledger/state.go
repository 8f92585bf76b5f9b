package ledger

import (
	"maps"

	"breakbot/internal/models"
)

type State struct {
	Equity        float64                    `json:"equity"`
	PeakEquity    float64                    `json:"peak_equity"`
	RealizedPnL   float64                    `json:"realized_pnl"`
	Positions     map[string]models.Position `json:"positions"`
	LastBarTime   map[string]int64           `json:"last_bar_time"`
	LastTradeTime map[string]int64           `json:"last_trade_time"`
}

func Defaults(startEquity float64) State {
	return State{
		Equity:        startEquity,
		PeakEquity:    startEquity,
		Positions:     map[string]models.Position{},
		LastBarTime:   map[string]int64{},
		LastTradeTime: map[string]int64{},
	}
}

func (s State) Clone() State {
	out := s
	out.Positions = maps.Clone(s.Positions)
	out.LastBarTime = maps.Clone(s.LastBarTime)
	out.LastTradeTime = maps.Clone(s.LastTradeTime)
	if out.Positions == nil {
		out.Positions = map[string]models.Position{}
	}
	if out.LastBarTime == nil {
		out.LastBarTime = map[string]int64{}
	}
	if out.LastTradeTime == nil {
		out.LastTradeTime = map[string]int64{}
	}
	return out
}
