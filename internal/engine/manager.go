package engine

import (
	"time"

	"breakbot/internal/ledger"
	"breakbot/internal/models"
	"breakbot/internal/signal"
)

type ActionKind string

const (
	ActionTrail   ActionKind = "TRAIL"
	ActionPartial ActionKind = "PARTIAL"
	ActionClose   ActionKind = "CLOSE"
	ActionOpen    ActionKind = "OPEN"
)

type Action struct {
	Kind   ActionKind
	Side   models.Side
	Price  float64
	Stop   float64
	Qty    float64
	Reason models.CloseReason
}

type ManagerParams struct {
	TrailATRMult     float64
	TP1R             float64
	TP2R             float64
	TP1Scale         float64
	TP2RequiresTP1   bool
	MinTradeGap      int
	MaxOpenPositions int

	RiskPct        float64
	Leverage       float64
	MinDistancePct float64
	FeeRate        float64
	Slippage       float64

	Interval time.Duration
}

type PlanInput struct {
	View   ledger.AssetView
	Bar    models.Candle
	ATR    float64
	ATROK  bool
	Signal signal.Result
}

type Plan struct {
	Actions []Action
	// Skip - почему сигнал не привёл к входу; пусто, если входа не ждали.
	Skip string
}

const (
	SkipCooldown     = "cooldown"
	SkipMaxPositions = "max_open_positions"
	SkipBadStop      = "stop_wrong_side"
	SkipZeroQty      = "zero_qty"
)

// Manager решает, что делать с активом на новом закрытом баре. Он ничего не меняет:
// работает на копии позиции и эквити, применение - через ledger.Commit.
type Manager struct {
	p ManagerParams
}

func NewManager(p ManagerParams) *Manager {
	return &Manager{p: p}
}

// Plan: трейлинг, TP2, TP1, стоп, разворот, затем вход, если позиции нет.
// Все проверки цены - по закрытию пробойного бара. TP2 проверяется раньше TP1:
// если в одном баре пройдены оба уровня, позиция закрывается целиком.
func (m *Manager) Plan(in PlanInput) Plan {
	var plan Plan

	price := in.Bar.Close
	equity := in.View.Equity
	openCount := in.View.OpenCount
	pos := in.View.Position
	has := in.View.HasPosition
	sigSide, hasSignal := in.Signal.Kind.Side()

	if has {
		closed := false

		if in.ATROK && m.p.TrailATRMult > 0 {
			cand := TrailCandidate(price, in.ATR, m.p.TrailATRMult, pos.Side)
			if tighter(pos.Side, cand, pos.StopPrice) {
				pos.StopPrice = cand
				plan.Actions = append(plan.Actions, Action{Kind: ActionTrail, Side: pos.Side, Stop: cand})
			}
		}

		r := pos.R()
		tp2Armed := !m.p.TP2RequiresTP1 || pos.TP1Hit
		switch {
		case r > 0 && tp2Armed && reached(pos.Side, price, TargetPrice(pos.EntryPrice, r, m.p.TP2R, pos.Side)):
			plan.Actions = append(plan.Actions, m.closeAction(pos, price, models.ReasonTP2))
			equity += m.exitNet(pos, price, pos.Quantity)
			closed = true

		case r > 0 && !pos.TP1Hit && reached(pos.Side, price, TargetPrice(pos.EntryPrice, r, m.p.TP1R, pos.Side)):
			qty := pos.Quantity * m.p.TP1Scale
			if qty > 0 && qty < pos.Quantity {
				plan.Actions = append(plan.Actions, Action{
					Kind: ActionPartial, Side: pos.Side, Price: price, Qty: qty, Reason: models.ReasonTP1,
				})
				equity += m.exitNet(pos, price, qty)
				pos.Quantity -= qty
				pos.TP1Hit = true
			}
		}

		if !closed && stopHit(pos.Side, price, pos.StopPrice) {
			plan.Actions = append(plan.Actions, m.closeAction(pos, pos.StopPrice, models.ReasonStop))
			equity += m.exitNet(pos, pos.StopPrice, pos.Quantity)
			closed = true
		}

		if !closed && hasSignal && sigSide != pos.Side {
			plan.Actions = append(plan.Actions, m.closeAction(pos, price, models.ReasonFlip))
			equity += m.exitNet(pos, price, pos.Quantity)
			closed = true
		}

		if !closed {
			return plan
		}
		openCount--
	}

	if !hasSignal {
		return plan
	}

	if m.p.MinTradeGap > 0 && in.View.HasTraded && m.p.Interval > 0 {
		bars := (in.Bar.Timestamp - in.View.LastTradeTime) / int64(m.p.Interval/time.Second)
		if bars < int64(m.p.MinTradeGap) {
			plan.Skip = SkipCooldown
			return plan
		}
	}
	if m.p.MaxOpenPositions > 0 && openCount >= m.p.MaxOpenPositions {
		plan.Skip = SkipMaxPositions
		return plan
	}

	entry := EntryWithSlippage(price, m.p.Slippage, sigSide)
	if !protective(sigSide, entry, in.Signal.Stop) {
		plan.Skip = SkipBadStop
		return plan
	}
	qty := PositionSize(equity, m.p.RiskPct, m.p.Leverage, m.p.MinDistancePct, entry, in.Signal.Stop)
	if qty <= 0 {
		plan.Skip = SkipZeroQty
		return plan
	}

	plan.Actions = append(plan.Actions, Action{
		Kind:  ActionOpen,
		Side:  sigSide,
		Price: entry,
		Stop:  in.Signal.Stop,
		Qty:   qty,
	})
	return plan
}

func (m *Manager) closeAction(pos models.Position, price float64, reason models.CloseReason) Action {
	return Action{Kind: ActionClose, Side: pos.Side, Price: price, Qty: pos.Quantity, Reason: reason}
}

func (m *Manager) exitNet(pos models.Position, price, qty float64) float64 {
	return ledger.GrossPnL(pos.Side, pos.EntryPrice, price, qty) -
		ledger.ExitFee(pos.EntryPrice, price, qty, m.p.FeeRate)
}
