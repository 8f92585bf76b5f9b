package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"breakbot/internal/candles"
	"breakbot/internal/config"
	"breakbot/internal/exchange"
	"breakbot/internal/indicators"
	"breakbot/internal/journal"
	"breakbot/internal/ledger"
	"breakbot/internal/logger"
	"breakbot/internal/metrics"
	"breakbot/internal/models"
	"breakbot/internal/notify"
	"breakbot/internal/signal"

	"github.com/sirupsen/logrus"
)

type TradeJournal interface {
	Append(r journal.Record) error
}

type Deps struct {
	Candles  *candles.Store
	Ledger   *ledger.Ledger
	Executor exchange.Executor
	Notifier notify.Notifier
	Journal  TradeJournal
	Metrics  *metrics.Metrics
	Log      *logger.Logger
}

// Engine раз в tick_interval проходит по активам и обрабатывает каждый новый закрытый бар
// ровно один раз: last_bar_time в леджере служит ключом идемпотентности.
type Engine struct {
	cfg *config.Config

	candles  *candles.Store
	ledger   *ledger.Ledger
	executor exchange.Executor
	notifier notify.Notifier
	journal  TradeJournal
	metrics  *metrics.Metrics
	log      *logger.Logger

	indParams indicators.Params
	detector  *signal.Detector
	manager   *Manager

	trading atomic.Bool
	now     func() time.Time
}

func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if deps.Candles == nil || deps.Ledger == nil {
		return nil, errors.New("Не заданы хранилище свечей или леджер.")
	}
	interval, err := candles.ParseTimeframe(cfg.Strategy.Timeframe)
	if err != nil {
		return nil, err
	}
	if deps.Executor == nil {
		deps.Executor = exchange.PaperExecutor{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}

	s := cfg.Strategy
	r := cfg.Risk
	e := &Engine{
		cfg:      cfg,
		candles:  deps.Candles,
		ledger:   deps.Ledger,
		executor: deps.Executor,
		notifier: deps.Notifier,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		log:      deps.Log,
		indParams: indicators.Params{
			TrendWindow: s.TrendWindow,
			ATRWindow:   s.ATRWindow,
			VolWindow:   s.VolWindow,
		},
		detector: signal.New(signal.Params{
			TrendWindow: s.TrendWindow,
			ATRWindow:   s.ATRWindow,
			VolWindow:   s.VolWindow,
			ATRPctMin:   s.ATRPctMin,
			ATRPctMax:   s.ATRPctMax,
			VolMult:     s.VolMult,
		}),
		manager: NewManager(ManagerParams{
			TrailATRMult:     s.TrailATRMult,
			TP1R:             s.TP1R,
			TP2R:             s.TP2R,
			TP1Scale:         s.TP1Scale,
			TP2RequiresTP1:   s.TP2RequiresTP1,
			MinTradeGap:      s.MinTradeGap,
			MaxOpenPositions: s.MaxOpenPositions,
			RiskPct:          r.RiskPct,
			Leverage:         r.Leverage,
			MinDistancePct:   r.MinDistancePct,
			FeeRate:          r.FeeRate,
			Slippage:         r.SlippageRate(),
			Interval:         interval,
		}),
		now: time.Now,
	}
	e.trading.Store(true)
	e.metrics.SetTrading(true)
	return e, nil
}

// Start делает тик сразу и затем раз в tick_interval до отмены ctx.
func (e *Engine) Start(ctx context.Context) {
	e.logEntry().WithFields(logrus.Fields{
		"assets":    e.cfg.Strategy.Assets,
		"timeframe": e.cfg.Strategy.Timeframe,
		"interval":  e.cfg.Strategy.TickInterval,
	}).Info("Движок запущен.")
	e.notifier.Notify(notify.FormatStart(e.cfg.Runtime.Mode, e.cfg.Strategy.Timeframe, e.cfg.Strategy.Assets))

	ticker := time.NewTicker(e.cfg.Strategy.TickInterval)
	defer ticker.Stop()

	for {
		e.Tick(ctx)
		select {
		case <-ctx.Done():
			e.logEntry().Info("Движок остановлен.")
			return
		case <-ticker.C:
		}
	}
}

// Tick обрабатывает все активы последовательно. Ошибка одного актива не влияет на остальные.
func (e *Engine) Tick(ctx context.Context) {
	e.metrics.Tick()
	for _, asset := range e.cfg.Strategy.Assets {
		if ctx.Err() != nil {
			return
		}
		if err := e.ProcessAsset(ctx, asset); err != nil {
			kind := exchange.Kind(err)
			e.metrics.AssetError(asset, kind)
			e.assetEntry(asset).WithError(err).WithField("kind", kind).Warn("Ход по активу пропущен.")
		}
	}

	st := e.ledger.Status()
	e.observe(st)
	e.logEntry().WithFields(logrus.Fields{
		"equity":   fmt.Sprintf("%.2f", st.Equity),
		"open":     len(st.OpenPositions),
		"trading":  e.TradingEnabled(),
		"drawdown": fmt.Sprintf("%.2f", st.DrawdownPct),
	}).Info("Цикл завершён.")
}

// ProcessAsset: свечи (без блокировки) -> проверка бара -> сигнал -> план ->
// исполнение (без блокировки) -> Commit в леджер -> уведомления.
func (e *Engine) ProcessAsset(ctx context.Context, asset string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника при обработке %s: %v", asset, r)
			e.assetEntry(asset).WithField("stack", string(debug.Stack())).Error("Паника при обработке актива.")
			e.notifier.Notify(notify.FormatError(asset, err))
		}
	}()

	if _, err := e.candles.Refresh(ctx, asset); err != nil {
		return fmt.Errorf("Не удалось получить свечи %s: %w", asset, err)
	}

	bars := e.candles.Series(asset)
	if len(bars) < e.detector.MinHistory() {
		e.assetEntry(asset).WithField("bars", len(bars)).Debug("Недостаточно истории.")
		return nil
	}
	breakIdx := len(bars) - 2
	brk := bars[breakIdx]

	if !e.TradingEnabled() {
		return nil
	}

	view := e.ledger.View(asset)
	if brk.Timestamp <= view.LastBarTime {
		return nil
	}

	snap := indicators.Compute(bars, e.indParams)
	sig := e.detector.Evaluate(bars, snap)
	atr, atrOK := snap.ATR.At(breakIdx)

	plan := e.manager.Plan(PlanInput{View: view, Bar: brk, ATR: atr, ATROK: atrOK, Signal: sig})
	e.assetEntry(asset).WithFields(logrus.Fields{
		"bar":     brk.Timestamp,
		"signal":  sig.Kind,
		"reason":  sig.Reason,
		"actions": len(plan.Actions),
		"skip":    plan.Skip,
	}).Debug("Бар оценён.")

	executed, execErr := e.execute(ctx, asset, brk.Timestamp, view, plan.Actions)
	if execErr != nil && !anyOrder(executed) {
		return execErr
	}

	events, err := e.apply(asset, brk, breakIdx, executed)
	if err != nil {
		return errors.Join(execErr, err)
	}
	e.publish(asset, events)
	return execErr
}

func (e *Engine) apply(asset string, brk models.Candle, breakIdx int, executed []executedAction) ([]tradeEvent, error) {
	var events []tradeEvent
	at := e.now().UTC()

	committed, err := e.ledger.Commit(asset, brk.Timestamp, func(tx *ledger.Tx) error {
		events = events[:0]
		for _, ex := range executed {
			switch ex.Kind {
			case ActionTrail:
				old, _ := tx.Position()
				changed, err := tx.SetStop(ex.Stop)
				if err != nil {
					return err
				}
				if changed {
					events = append(events, tradeEvent{kind: eventTrail, asset: asset, at: at, pos: old, oldStop: old.StopPrice, newStop: ex.Stop})
				}

			case ActionPartial:
				res, err := tx.PartialExit(ex.Fill.Qty, ex.Fill.Price)
				if err != nil {
					return err
				}
				events = append(events, tradeEvent{kind: journal.EventTP1, asset: asset, at: at, partial: res})

			case ActionClose:
				res, err := tx.Close(ex.Fill.Price, ex.Reason)
				if err != nil {
					return err
				}
				events = append(events, tradeEvent{kind: journal.EventClose, asset: asset, at: at, closed: res})

			case ActionOpen:
				pos := models.Position{
					Asset:             asset,
					Side:              ex.Side,
					EntryPrice:        ex.Fill.Price,
					StopPrice:         ex.Stop,
					InitialStop:       ex.Stop,
					Quantity:          ex.Fill.Qty,
					InitialQty:        ex.Fill.Qty,
					ReferenceBarIndex: breakIdx,
					ReferenceBarTime:  brk.Timestamp,
					OpenTime:          at,
					TradeID:           ex.TradeID,
				}
				fee, err := tx.Open(pos)
				if err != nil {
					return err
				}
				events = append(events, tradeEvent{kind: journal.EventOpen, asset: asset, at: at, pos: pos, fee: fee})
			}
		}
		return nil
	})
	if err != nil && !committed {
		return nil, err
	}
	if err != nil {
		e.assetEntry(asset).WithError(err).Error("Состояние применено, но не сохранено.")
	}
	return events, nil
}

func (e *Engine) publish(asset string, events []tradeEvent) {
	for _, ev := range events {
		if ev.kind == eventTrail {
			e.assetEntry(asset).WithFields(logrus.Fields{"from": ev.oldStop, "to": ev.newStop}).Debug("Стоп подтянут.")
			continue
		}
		if msg, ok := ev.message(e.cfg.Strategy.TP1R); ok {
			e.notifier.Notify(msg)
		}
		e.metrics.Trade(asset, ev.kind)
		if rec, ok := ev.journalRecord(); ok && e.journal != nil {
			if err := e.journal.Append(rec); err != nil {
				e.assetEntry(asset).WithError(err).Warn("Не удалось записать сделку в журнал.")
			}
		}
		e.assetEntry(asset).WithField("event", ev.kind).Info("Сделка применена.")
	}
}

// SetTrading включает или ставит торговлю на паузу. Возвращает true, если флаг изменился.
func (e *Engine) SetTrading(enabled bool) bool {
	if e.trading.Swap(enabled) == enabled {
		return false
	}
	e.metrics.SetTrading(enabled)
	e.logEntry().WithField("trading", enabled).Info("Флаг торговли изменён.")
	e.notifier.Notify(notify.FormatTrading(enabled))
	return true
}

func (e *Engine) TradingEnabled() bool {
	return e.trading.Load()
}

func (e *Engine) Status() ledger.Status {
	st := e.ledger.Status()
	st.Assets = append([]string(nil), e.cfg.Strategy.Assets...)
	st.TradingEnabled = e.TradingEnabled()
	return st
}

func (e *Engine) observe(st ledger.Status) {
	e.metrics.Observe(metrics.Snapshot{
		Equity:        st.Equity,
		PeakEquity:    st.PeakEquity,
		DrawdownPct:   st.DrawdownPct,
		RealizedPnL:   st.RealizedPnL,
		OpenPositions: len(st.OpenPositions),
	})
}
