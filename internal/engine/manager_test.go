package engine

import (
	"testing"
	"time"

	"breakbot/internal/ledger"
	"breakbot/internal/logger"
	"breakbot/internal/models"
	"breakbot/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func managerParams() ManagerParams {
	return ManagerParams{
		TrailATRMult: 1.5,
		TP1R:         1,
		TP2R:         2,
		TP1Scale:     0.5,
		RiskPct:      0.01,
		Leverage:     1,
		Interval:     time.Hour,
	}
}

func openLong() ledger.AssetView {
	return ledger.AssetView{
		Equity:      10_000,
		OpenCount:   1,
		HasPosition: true,
		Position: models.Position{
			Asset: "BTCUSDT", Side: models.SideLong,
			EntryPrice: 100, StopPrice: 95, InitialStop: 95,
			Quantity: 20, InitialQty: 20, TradeID: "t-1",
		},
	}
}

func closeBar(ts int64, close float64) models.Candle {
	return models.Candle{Timestamp: ts, Open: close, High: close, Low: close, Close: close}
}

func noSignal() signal.Result { return signal.Result{Kind: models.SignalNone} }

func TestPositionSizeExact(t *testing.T) {
	assert.InDelta(t, 20.0, PositionSize(10_000, 0.01, 1, 0, 100, 95), eps)
	// минимальная дистанция 1% от входа перекрывает стоп в 0.5
	assert.InDelta(t, 100.0, PositionSize(10_000, 0.01, 1, 0.01, 100, 99.5), eps)
	assert.InDelta(t, 0.0, PositionSize(10_000, 0.01, 1, 0, 100, 100), eps)
}

func TestPlanOpenSizing(t *testing.T) {
	m := NewManager(managerParams())
	plan := m.Plan(PlanInput{
		View:   ledger.AssetView{Equity: 10_000},
		Bar:    closeBar(3600, 100),
		Signal: signal.Result{Kind: models.SignalLong, Stop: 95},
	})

	require.Len(t, plan.Actions, 1)
	open := plan.Actions[0]
	assert.Equal(t, ActionOpen, open.Kind)
	assert.Equal(t, models.SideLong, open.Side)
	assert.InDelta(t, 100.0, open.Price, eps)
	assert.InDelta(t, 95.0, open.Stop, eps)
	assert.InDelta(t, 20.0, open.Qty, eps)
}

func TestPlanEntrySlippageWorseSide(t *testing.T) {
	p := managerParams()
	p.Slippage = 0.0002
	m := NewManager(p)

	long := m.Plan(PlanInput{View: ledger.AssetView{Equity: 10_000}, Bar: closeBar(1, 100),
		Signal: signal.Result{Kind: models.SignalLong, Stop: 95}})
	short := m.Plan(PlanInput{View: ledger.AssetView{Equity: 10_000}, Bar: closeBar(1, 100),
		Signal: signal.Result{Kind: models.SignalShort, Stop: 105}})

	assert.InDelta(t, 100.02, long.Actions[0].Price, eps)
	assert.InDelta(t, 99.98, short.Actions[0].Price, eps)
}

func TestPlanTP1ScaleOut(t *testing.T) {
	m := NewManager(managerParams())
	view := openLong()

	plan := m.Plan(PlanInput{View: view, Bar: closeBar(7200, 105), Signal: noSignal()})
	require.Len(t, plan.Actions, 1)
	part := plan.Actions[0]
	assert.Equal(t, ActionPartial, part.Kind)
	assert.Equal(t, models.ReasonTP1, part.Reason)
	assert.InDelta(t, 10.0, part.Qty, eps)
	assert.InDelta(t, 105.0, part.Price, eps)

	// применяем к леджеру: позиция остаётся открытой с половиной объёма
	l := ledger.New(&ledger.MemoryStore{}, 10_000, 0, logger.NewNop())
	_, err := l.Commit("BTCUSDT", 3600, func(tx *ledger.Tx) error {
		_, err := tx.Open(view.Position)
		return err
	})
	require.NoError(t, err)
	_, err = l.Commit("BTCUSDT", 7200, func(tx *ledger.Tx) error {
		_, err := tx.PartialExit(part.Qty, part.Price)
		return err
	})
	require.NoError(t, err)

	got := l.View("BTCUSDT")
	require.True(t, got.HasPosition)
	assert.InDelta(t, 10.0, got.Position.Quantity, eps)
	assert.True(t, got.Position.TP1Hit)
}

func TestPlanTP2TakesPrecedence(t *testing.T) {
	m := NewManager(managerParams())

	plan := m.Plan(PlanInput{View: openLong(), Bar: closeBar(7200, 110), Signal: noSignal()})
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionClose, plan.Actions[0].Kind)
	assert.Equal(t, models.ReasonTP2, plan.Actions[0].Reason)
	assert.InDelta(t, 20.0, plan.Actions[0].Qty, eps)
	assert.InDelta(t, 110.0, plan.Actions[0].Price, eps)
}

func TestPlanTP2RequiresTP1(t *testing.T) {
	p := managerParams()
	p.TP2RequiresTP1 = true
	m := NewManager(p)

	plan := m.Plan(PlanInput{View: openLong(), Bar: closeBar(7200, 110), Signal: noSignal()})
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionPartial, plan.Actions[0].Kind)

	view := openLong()
	view.Position.TP1Hit = true
	view.Position.Quantity = 10
	plan = m.Plan(PlanInput{View: view, Bar: closeBar(10800, 110), Signal: noSignal()})
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, models.ReasonTP2, plan.Actions[0].Reason)
	assert.InDelta(t, 10.0, plan.Actions[0].Qty, eps)
}

func TestPlanStopExitsAtStopPrice(t *testing.T) {
	m := NewManager(managerParams())

	plan := m.Plan(PlanInput{View: openLong(), Bar: closeBar(7200, 94), Signal: noSignal()})
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionClose, plan.Actions[0].Kind)
	assert.Equal(t, models.ReasonStop, plan.Actions[0].Reason)
	assert.InDelta(t, 95.0, plan.Actions[0].Price, eps)
}

func TestTrailingStopMonotonic(t *testing.T) {
	m := NewManager(managerParams())

	for _, side := range []models.Side{models.SideLong, models.SideShort} {
		view := openLong()
		view.Position.Side = side
		view.Position.StopPrice = 100 - side.Sign()*5
		view.Position.InitialStop = view.Position.StopPrice

		closes := []float64{101, 103, 102, 99, 104, 100, 102}
		if side == models.SideShort {
			closes = []float64{99, 97, 98, 101, 96, 100, 98}
		}
		prev := view.Position.StopPrice
		for i, c := range closes {
			plan := m.Plan(PlanInput{View: view, Bar: closeBar(int64(i+2)*3600, c), ATR: 1, ATROK: true, Signal: noSignal()})
			for _, a := range plan.Actions {
				if a.Kind == ActionTrail {
					view.Position.StopPrice = a.Stop
				}
			}
			if side == models.SideLong {
				assert.GreaterOrEqual(t, view.Position.StopPrice, prev)
			} else {
				assert.LessOrEqual(t, view.Position.StopPrice, prev)
			}
			prev = view.Position.StopPrice
		}
	}
}

func TestTrailSkippedWithoutATR(t *testing.T) {
	m := NewManager(managerParams())
	plan := m.Plan(PlanInput{View: openLong(), Bar: closeBar(7200, 101), ATROK: false, Signal: noSignal()})
	assert.Empty(t, plan.Actions)
}

func TestPlanFlip(t *testing.T) {
	m := NewManager(managerParams())
	view := ledger.AssetView{
		Equity:      10_000,
		OpenCount:   1,
		HasPosition: true,
		Position: models.Position{
			Asset: "ETHUSDT", Side: models.SideShort,
			EntryPrice: 100, StopPrice: 105, InitialStop: 105, Quantity: 20,
		},
	}

	plan := m.Plan(PlanInput{
		View:   view,
		Bar:    closeBar(7200, 102),
		Signal: signal.Result{Kind: models.SignalLong, Stop: 98},
	})

	require.Len(t, plan.Actions, 2)
	assert.Equal(t, ActionClose, plan.Actions[0].Kind)
	assert.Equal(t, models.ReasonFlip, plan.Actions[0].Reason)
	assert.InDelta(t, 102.0, plan.Actions[0].Price, eps)

	open := plan.Actions[1]
	assert.Equal(t, ActionOpen, open.Kind)
	assert.Equal(t, models.SideLong, open.Side)
	// эквити после закрытия 10000 - 2*20 = 9960, риск 99.6 на дистанцию 4
	assert.InDelta(t, 24.9, open.Qty, eps)
}

func TestPlanSameSideSignalKeepsPosition(t *testing.T) {
	m := NewManager(managerParams())
	plan := m.Plan(PlanInput{View: openLong(), Bar: closeBar(7200, 101),
		Signal: signal.Result{Kind: models.SignalLong, Stop: 99}})
	assert.Empty(t, plan.Actions)
}

func TestPlanCooldownAndCap(t *testing.T) {
	p := managerParams()
	p.MinTradeGap = 3
	m := NewManager(p)
	sig := signal.Result{Kind: models.SignalLong, Stop: 95}

	view := ledger.AssetView{Equity: 10_000, HasTraded: true, LastTradeTime: 3600}
	plan := m.Plan(PlanInput{View: view, Bar: closeBar(3600*3, 100), Signal: sig})
	assert.Empty(t, plan.Actions)
	assert.Equal(t, SkipCooldown, plan.Skip)

	plan = m.Plan(PlanInput{View: view, Bar: closeBar(3600*4, 100), Signal: sig})
	require.Len(t, plan.Actions, 1)

	p = managerParams()
	p.MaxOpenPositions = 2
	m = NewManager(p)
	plan = m.Plan(PlanInput{View: ledger.AssetView{Equity: 10_000, OpenCount: 2}, Bar: closeBar(3600, 100), Signal: sig})
	assert.Equal(t, SkipMaxPositions, plan.Skip)
}

func TestPlanRejectsStopOnWrongSide(t *testing.T) {
	m := NewManager(managerParams())
	plan := m.Plan(PlanInput{View: ledger.AssetView{Equity: 10_000}, Bar: closeBar(3600, 100),
		Signal: signal.Result{Kind: models.SignalLong, Stop: 101}})
	assert.Empty(t, plan.Actions)
	assert.Equal(t, SkipBadStop, plan.Skip)
}

func TestPlanReopenAfterStopOut(t *testing.T) {
	m := NewManager(managerParams())
	plan := m.Plan(PlanInput{View: openLong(), Bar: closeBar(7200, 94),
		Signal: signal.Result{Kind: models.SignalShort, Stop: 97}})

	require.Len(t, plan.Actions, 2)
	assert.Equal(t, models.ReasonStop, plan.Actions[0].Reason)
	assert.Equal(t, ActionOpen, plan.Actions[1].Kind)
	assert.Equal(t, models.SideShort, plan.Actions[1].Side)
}
