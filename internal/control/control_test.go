package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"breakbot/internal/ledger"
	"breakbot/internal/logger"
	"breakbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerChat = int64(42)

type fakeEngine struct {
	mu      sync.Mutex
	trading bool
	status  ledger.Status
}

func (f *fakeEngine) SetTrading(enabled bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := f.trading != enabled
	f.trading = enabled
	return changed
}

func (f *fakeEngine) TradingEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trading
}

func (f *fakeEngine) Status() ledger.Status {
	st := f.status
	st.TradingEnabled = f.TradingEnabled()
	return st
}

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func newHandler() (*Handler, *fakeEngine) {
	eng := &fakeEngine{
		trading: true,
		status: ledger.Status{
			Equity:      10250.5,
			DrawdownPct: 1.25,
			OpenPositions: []models.Position{
				{Asset: "BTCUSDT", Side: models.SideLong},
			},
			Assets: []string{"ETHUSDT", "BTCUSDT"},
		},
	}
	return NewHandler(eng, ownerChat, logger.NewNop()), eng
}

func TestHandleCommands(t *testing.T) {
	h, eng := newHandler()

	reply, ok := h.Handle(ownerChat, "/ping")
	require.True(t, ok)
	assert.Equal(t, "pong", reply)

	reply, ok = h.Handle(ownerChat, "PAUSE")
	require.True(t, ok)
	assert.False(t, eng.TradingEnabled())
	assert.Contains(t, reply, "пауз")

	reply, ok = h.Handle(ownerChat, "/resume@break_bot")
	require.True(t, ok)
	assert.True(t, eng.TradingEnabled())
	assert.Contains(t, reply, "возобновлена")

	reply, ok = h.Handle(ownerChat, "/help")
	require.True(t, ok)
	assert.Equal(t, HelpText, reply)

	reply, ok = h.Handle(ownerChat, "/buy everything")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(reply, "Неизвестная команда"))
}

func TestHandleStatus(t *testing.T) {
	h, _ := newHandler()

	reply, ok := h.Handle(ownerChat, "status")
	require.True(t, ok)
	assert.Contains(t, reply, "Eq=10250.50")
	assert.Contains(t, reply, "DD=1.25%")
	assert.Contains(t, reply, "BTCUSDT:LONG")
	assert.Contains(t, reply, "ETHUSDT, BTCUSDT")
}

func TestHandleIgnoresStrangers(t *testing.T) {
	h, eng := newHandler()

	reply, ok := h.Handle(7, "/pause")
	assert.False(t, ok)
	assert.Empty(t, reply)
	assert.True(t, eng.TradingEnabled())
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, "status", parseCommand("  /Status@bot now "))
	assert.Equal(t, "ping", parseCommand("ping"))
	assert.Equal(t, "", parseCommand("   "))
}

func TestBotRepliesToOwnerOnly(t *testing.T) {
	h, _ := newHandler()
	sender := &fakeSender{}
	bot := NewBot(h, sender)

	bot.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: ownerChat}, Text: "/ping"}})
	bot.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "/ping"}})
	bot.HandleUpdate(tgbotapi.Update{})

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, ownerChat, sent[0].ChatID)
	assert.Equal(t, "pong", sent[0].Text)
}

type fakeUpdater struct {
	ch      chan tgbotapi.Update
	stopped chan struct{}
}

func (f *fakeUpdater) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.ch }
func (f *fakeUpdater) StopReceivingUpdates()                                         { close(f.stopped) }

func TestRunPolling(t *testing.T) {
	h, eng := newHandler()
	sender := &fakeSender{}
	bot := NewBot(h, sender)
	updater := &fakeUpdater{ch: make(chan tgbotapi.Update, 1), stopped: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bot.RunPolling(ctx, updater)
		close(done)
	}()

	updater.ch <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: ownerChat}, Text: "/pause"}}
	assert.Eventually(t, func() bool { return !eng.TradingEnabled() }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("polling не остановился")
	}
	_, open := <-updater.stopped
	assert.False(t, open, "StopReceivingUpdates не вызван")
}

func TestWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newHandler()
	sender := &fakeSender{}
	bot := NewBot(h, sender)

	r := gin.New()
	r.POST("/telegram/hook", bot.Webhook())

	body := `{"update_id":1,"message":{"message_id":5,"date":0,"chat":{"id":42,"type":"private"},"text":"/ping"}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/telegram/hook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sender.messages(), 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/telegram/hook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
