package control

import (
	"strings"

	"breakbot/internal/ledger"
	"breakbot/internal/logger"
	"breakbot/internal/models"
	"breakbot/internal/notify"

	"github.com/sirupsen/logrus"
)

// Engine - то, чем управляют команды.
type Engine interface {
	SetTrading(enabled bool) bool
	TradingEnabled() bool
	Status() ledger.Status
}

const HelpText = "Команды: /ping, /status, /pause, /resume, /help"

// Handler разбирает текстовые команды от доверенного чата.
type Handler struct {
	engine Engine
	chatID int64
	log    *logger.Logger
}

func NewHandler(engine Engine, chatID int64, log *logger.Logger) *Handler {
	return &Handler{engine: engine, chatID: chatID, log: log}
}

func (h *Handler) logEntry() *logrus.Entry {
	return h.log.WithComponent("control")
}

// Handle возвращает ответ и ok=false, если чат не тот, что в конфиге.
func (h *Handler) Handle(chatID int64, text string) (string, bool) {
	if chatID != h.chatID {
		h.logEntry().WithField("chat_id", chatID).Warn("Команда из неизвестного чата проигнорирована.")
		return "", false
	}

	cmd := parseCommand(text)
	h.logEntry().WithField("command", cmd).Debug("Команда получена.")

	switch cmd {
	case "ping":
		return "pong", true
	case "status":
		return notify.FormatStatus(StatusView(h.engine.Status())), true
	case "pause":
		h.engine.SetTrading(false)
		return notify.FormatTrading(false), true
	case "resume":
		h.engine.SetTrading(true)
		return notify.FormatTrading(true), true
	case "help", "start":
		return HelpText, true
	}
	return "Неизвестная команда. " + HelpText, true
}

// parseCommand: "/Status@my_bot now" -> "status".
func parseCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

func StatusView(st ledger.Status) notify.StatusView {
	positions := make(map[string]models.Side, len(st.OpenPositions))
	for _, p := range st.OpenPositions {
		positions[p.Asset] = p.Side
	}
	return notify.StatusView{
		Equity:         st.Equity,
		DrawdownPct:    st.DrawdownPct,
		Positions:      positions,
		Assets:         st.Assets,
		TradingEnabled: st.TradingEnabled,
	}
}
