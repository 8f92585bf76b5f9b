package ws

import (
	"fmt"
	"strings"
	"time"
)

// KlineTopics строит топики kline.<interval>.<symbol> для списка активов.
func KlineTopics(interval time.Duration, symbols []string) ([]string, error) {
	code, err := intervalCode(interval)
	if err != nil {
		return nil, err
	}
	topics := make([]string, 0, len(symbols))
	for _, s := range symbols {
		topics = append(topics, fmt.Sprintf("kline.%s.%s", code, strings.ToUpper(s)))
	}
	return topics, nil
}

func (w *Client) SubscribeToTopics(topics []string) error {
	w.topics = topics

	msg := SubscribeMessage{
		Op:   "subscribe",
		Args: topics,
	}

	return w.writeJSON(msg)
}

func intervalCode(d time.Duration) (string, error) {
	switch {
	case d == 7*24*time.Hour:
		return "W", nil
	case d == 24*time.Hour:
		return "D", nil
	case d > 0 && d < 24*time.Hour && d%time.Minute == 0:
		return fmt.Sprintf("%d", int(d/time.Minute)), nil
	}
	return "", fmt.Errorf("Интервал %s не поддерживается WS", d)
}
