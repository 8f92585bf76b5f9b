package ws

import (
	"encoding/json"
	"sync"
	"time"

	"breakbot/internal/logger"
	"breakbot/internal/models"

	"github.com/gorilla/websocket"
)

type Client struct {
	url          string
	log          *logger.Logger
	dialer       *websocket.Dialer
	writeMu      sync.Mutex
	conn         *websocket.Conn
	events       chan KlineEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	topics       []string
	pingEvery    time.Duration
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// KlineEvent - закрытая свеча из топика kline.<interval>.<symbol>.
type KlineEvent struct {
	Symbol  string
	Candles []models.Candle
}

type Message struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	Data    json.RawMessage `json:"data"`
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
}

type SubscribeMessage struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}
