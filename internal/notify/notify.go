package notify

import (
	"context"
	"sync"

	"breakbot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Notifier не должен блокировать вызывающего.
type Notifier interface {
	Notify(text string)
}

type Nop struct{}

func (Nop) Notify(string) {}

// Sender - часть tgbotapi.BotAPI, нужная для отправки.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

const defaultQueueSize = 64

// Telegram шлёт сообщения из одной горутины; при полной очереди сообщение теряется.
type Telegram struct {
	bot    Sender
	chatID int64
	log    *logger.Logger

	queue chan string
	once  sync.Once
	done  chan struct{}
}

func newTelegram(bot Sender, chatID int64, queueSize int, log *logger.Logger) *Telegram {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		log:    log,
		queue:  make(chan string, queueSize),
		done:   make(chan struct{}),
	}
}

// NewTelegram поднимает бота. Без токена или chat id, а также при ошибке
// авторизации возвращает Nop: уведомления просто выключены.
func NewTelegram(token string, chatID int64, log *logger.Logger) (Notifier, *tgbotapi.BotAPI) {
	entry := log.WithComponent("notify")
	if token == "" || chatID == 0 {
		entry.Warn("Telegram не настроен, уведомления отключены.")
		return Nop{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		entry.WithError(err).Warn("Не удалось подключиться к Telegram, уведомления отключены.")
		return Nop{}, nil
	}
	entry.WithField("bot", bot.Self.UserName).Info("Telegram подключён.")
	return newTelegram(bot, chatID, defaultQueueSize, log), bot
}

func (t *Telegram) logEntry() *logrus.Entry {
	return t.log.WithComponent("notify")
}

func (t *Telegram) Notify(text string) {
	select {
	case t.queue <- text:
	default:
		t.logEntry().WithField("text", text).Warn("Очередь уведомлений переполнена, сообщение отброшено.")
	}
}

// Run отправляет сообщения до отмены ctx, затем дочищает очередь.
func (t *Telegram) Run(ctx context.Context) {
	defer t.once.Do(func() { close(t.done) })
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case text := <-t.queue:
					t.send(text)
				default:
					return
				}
			}
		case text := <-t.queue:
			t.send(text)
		}
	}
}

func (t *Telegram) Done() <-chan struct{} { return t.done }

func (t *Telegram) send(text string) {
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.logEntry().WithError(err).Warn("Не удалось отправить уведомление.")
	}
}

// Reply отправляет ответ в произвольный чат синхронно; для команд управления.
func Reply(bot Sender, chatID int64, text string) error {
	_, err := bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
