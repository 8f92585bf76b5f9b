package engine

import (
	"time"

	"breakbot/internal/journal"
	"breakbot/internal/ledger"
	"breakbot/internal/models"
	"breakbot/internal/notify"
)

// tradeEvent - то, что уже применено к леджеру и должно уйти в уведомления,
// журнал и метрики после снятия блокировки.
type tradeEvent struct {
	kind    string
	asset   string
	at      time.Time
	pos     models.Position
	fee     float64
	partial ledger.PartialResult
	closed  ledger.CloseResult
	oldStop float64
	newStop float64
}

const eventTrail = "TRAIL"

func (ev tradeEvent) journalRecord() (journal.Record, bool) {
	switch ev.kind {
	case journal.EventOpen:
		return journal.Record{
			Time: ev.at, TradeID: ev.pos.TradeID, Asset: ev.asset, Event: journal.EventOpen,
			Side: string(ev.pos.Side), Qty: ev.pos.Quantity, Price: ev.pos.EntryPrice, PnL: -ev.fee,
		}, true
	case journal.EventTP1:
		return journal.Record{
			Time: ev.at, TradeID: ev.partial.Position.TradeID, Asset: ev.asset, Event: journal.EventTP1,
			Side: string(ev.partial.Position.Side), Qty: ev.partial.Qty, Price: ev.partial.Price,
			PnL: ev.partial.Net, Reason: string(models.ReasonTP1),
		}, true
	case journal.EventClose:
		return journal.Record{
			Time: ev.at, TradeID: ev.closed.Position.TradeID, Asset: ev.asset, Event: journal.EventClose,
			Side: string(ev.closed.Position.Side), Qty: ev.closed.Position.Quantity, Price: ev.closed.Price,
			PnL: ev.closed.Net, Reason: string(ev.closed.Reason),
		}, true
	}
	return journal.Record{}, false
}

func (ev tradeEvent) message(tp1R float64) (string, bool) {
	switch ev.kind {
	case journal.EventOpen:
		return notify.FormatOpen(ev.pos), true
	case journal.EventTP1:
		return notify.FormatPartial(ev.asset, ev.partial.Price, ev.partial.Net, tp1R), true
	case journal.EventClose:
		return notify.FormatClose(ev.asset, ev.closed.Reason, ev.closed.Price, ev.closed.Net, ev.closed.Equity), true
	}
	return "", false
}
