package ws

import (
	"context"
	"fmt"
	"time"

	"breakbot/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func New(url string, log *logger.Logger) *Client {
	return &Client{
		url:          url,
		log:          log,
		dialer:       websocket.DefaultDialer,
		events:       make(chan KlineEvent, 100),
		stopCh:       make(chan struct{}),
		pingEvery:    20 * time.Second,
		reconnectMin: 1 * time.Second,
		reconnectMax: 30 * time.Second,
	}
}

func (w *Client) Connect(ctx context.Context) error {
	w.logEntry().WithField("url", w.url).Info("Подключение к WS.")

	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("Не удалось подключиться к WS: %w", err)
	}

	w.conn = conn
	w.conn.SetReadLimit(2 << 20)

	w.logEntry().Info("WS соединение установлено.")

	go w.readLoop()
	go w.pingLoop()

	return nil
}

// Close останавливает чтение и переподключения; канал событий закрывается readLoop.
func (w *Client) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.writeMu.Lock()
		if w.conn != nil {
			_ = w.conn.Close()
		}
		w.writeMu.Unlock()
	})
}

func (w *Client) logEntry() *logrus.Entry {
	return w.log.WithComponent("bybit_ws")
}

func (w *Client) Events() <-chan KlineEvent {
	return w.events
}

func (w *Client) pingLoop() {
	ticker := time.NewTicker(w.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.writeJSON(map[string]string{"op": "ping"}); err != nil {
				w.logEntry().WithError(err).Debug("Не удалось отправить ping.")
			}
		}
	}
}

func (w *Client) writeJSON(v any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.conn == nil {
		return fmt.Errorf("WS не подключён")
	}
	return w.conn.WriteJSON(v)
}
