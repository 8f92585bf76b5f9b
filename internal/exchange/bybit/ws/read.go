package ws

import (
	"encoding/json"
	"strings"
	"time"

	"breakbot/internal/candles"
)

func (w *Client) readLoop() {
	w.logEntry().Debug("readLoop запущен.")
	defer close(w.events)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			w.logEntry().WithError(err).Warn("Ошибка чтения WS.")

			if !w.reconnect() {
				return
			}
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			w.logEntry().WithError(err).Warn("Не удалось разобрать WS сообщение.")
			continue
		}

		switch {
		case msg.Op == "subscribe" && msg.Success != nil && !*msg.Success:
			w.logEntry().WithField("ret_msg", msg.RetMsg).Warn("Подписка WS отклонена.")
		case strings.HasPrefix(msg.Topic, "kline."):
			if ev, ok := parseKline(msg); ok {
				select {
				case w.events <- ev:
				case <-w.stopCh:
					return
				}
			}
		}
	}
}

// parseKline оставляет только закрытые свечи (confirm=true).
func parseKline(msg Message) (KlineEvent, bool) {
	parts := strings.Split(msg.Topic, ".")
	if len(parts) != 3 {
		return KlineEvent{}, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(msg.Data, &items); err != nil {
		return KlineEvent{}, false
	}

	// В объекте есть и start, и timestamp; строим строку-массив, чтобы время бара не перепуталось.
	confirmed := make([]json.RawMessage, 0, len(items))
	for _, raw := range items {
		var k struct {
			Start   int64  `json:"start"`
			Open    string `json:"open"`
			High    string `json:"high"`
			Low     string `json:"low"`
			Close   string `json:"close"`
			Volume  string `json:"volume"`
			Confirm bool   `json:"confirm"`
		}
		if err := json.Unmarshal(raw, &k); err != nil || !k.Confirm {
			continue
		}
		row, err := json.Marshal([]any{k.Start, k.Open, k.High, k.Low, k.Close, k.Volume})
		if err != nil {
			continue
		}
		confirmed = append(confirmed, row)
	}

	bars, _ := candles.Normalize(confirmed)
	if len(bars) == 0 {
		return KlineEvent{}, false
	}
	return KlineEvent{Symbol: parts[2], Candles: bars}, true
}

func (w *Client) reconnect() bool {
	backoff := w.reconnectMin

	for {
		select {
		case <-w.stopCh:
			return false
		case <-time.After(backoff):
		}

		w.logEntry().Info("Попытка переподключения к WS.")

		conn, _, err := w.dialer.Dial(w.url, nil)
		if err != nil {
			w.logEntry().WithError(err).Warn("Не удалось переподключиться к WS.")
			backoff = w.nextBackoff(backoff)
			continue
		}

		w.writeMu.Lock()
		if w.conn != nil {
			_ = w.conn.Close()
		}
		w.conn = conn
		w.conn.SetReadLimit(2 << 20)
		w.writeMu.Unlock()

		if len(w.topics) > 0 {
			if err := w.SubscribeToTopics(w.topics); err != nil {
				w.logEntry().WithError(err).Warn("Не удалось повторно подписаться на WS.")
				backoff = w.nextBackoff(backoff)
				continue
			}
		}

		w.logEntry().Info("WS переподключён и подписки восстановлены.")
		return true
	}
}

func (w *Client) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > w.reconnectMax {
		return w.reconnectMax
	}
	return next
}
