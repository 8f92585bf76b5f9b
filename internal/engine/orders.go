package engine

import (
	"context"
	"fmt"
	"strconv"

	"breakbot/internal/ledger"
	"breakbot/internal/models"

	"github.com/google/uuid"
)

type executedAction struct {
	Action
	Fill    models.Fill
	TradeID string
}

// execute отправляет ордера плана по порядку и останавливается на первой ошибке.
// Возвращает успешно исполненный префикс; трейлинг ордера не требует.
func (e *Engine) execute(ctx context.Context, asset string, barTime int64, view ledger.AssetView, actions []Action) ([]executedAction, error) {
	out := make([]executedAction, 0, len(actions))
	tradeID := view.Position.TradeID

	for _, act := range actions {
		if act.Kind == ActionTrail {
			out = append(out, executedAction{Action: act, TradeID: tradeID})
			continue
		}

		order := models.Order{
			Asset:   asset,
			Side:    act.Side,
			Qty:     act.Qty,
			Price:   act.Price,
			TradeID: tradeID,
		}
		switch act.Kind {
		case ActionOpen:
			tradeID = entryTradeID(asset, barTime)
			order.Kind = models.OrderKindEntry
			order.TradeID = tradeID
		case ActionPartial:
			order.Kind = models.OrderKindPartial
			order.Reduce = true
		case ActionClose:
			order.Kind = models.OrderKindExit
			order.Reduce = true
		}

		fill, err := e.executor.Execute(ctx, order)
		if err != nil {
			return out, fmt.Errorf("Не удалось исполнить %s по %s: %w", act.Kind, asset, err)
		}
		if fill.Qty <= 0 {
			fill.Qty = act.Qty
		}
		if fill.Price <= 0 {
			fill.Price = act.Price
		}
		out = append(out, executedAction{Action: act, Fill: fill, TradeID: order.TradeID})
	}
	return out, nil
}

// entryTradeID детерминирован по активу и бару пробоя: повтор входа на следующем
// тике уходит с тем же orderLinkId, и биржа отвечает дублем вместо второго ордера.
func entryTradeID(asset string, barTime int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(asset+":"+strconv.FormatInt(barTime, 10))).String()
}

func anyOrder(executed []executedAction) bool {
	for _, ex := range executed {
		if ex.Kind != ActionTrail {
			return true
		}
	}
	return false
}
