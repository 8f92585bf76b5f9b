package control

import (
	"context"
	"net/http"

	"breakbot/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
)

// Updater - часть tgbotapi.BotAPI для long polling.
type Updater interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot связывает Handler с Telegram: принимает апдейты и отвечает в тот же чат.
type Bot struct {
	handler *Handler
	sender  notify.Sender
}

func NewBot(handler *Handler, sender notify.Sender) *Bot {
	return &Bot{handler: handler, sender: sender}
}

func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	reply, ok := b.handler.Handle(msg.Chat.ID, msg.Text)
	if !ok {
		return
	}
	if err := notify.Reply(b.sender, msg.Chat.ID, reply); err != nil {
		b.handler.logEntry().WithError(err).Warn("Не удалось отправить ответ на команду.")
	}
}

// RunPolling читает апдейты до отмены ctx.
func (b *Bot) RunPolling(ctx context.Context, updater Updater) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := updater.GetUpdatesChan(u)
	b.handler.logEntry().Info("Telegram: long polling запущен.")
	for {
		select {
		case <-ctx.Done():
			updater.StopReceivingUpdates()
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(up)
		}
	}
}

// Webhook - gin-обработчик для POST /telegram/<path>.
func (b *Bot) Webhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "некорректный update"})
			return
		}
		b.HandleUpdate(update)
		c.Status(http.StatusOK)
	}
}
