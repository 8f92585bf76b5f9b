package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"breakbot/internal/candles"
	"breakbot/internal/config"
	"breakbot/internal/control"
	"breakbot/internal/engine"
	"breakbot/internal/exchange"
	"breakbot/internal/exchange/bybit"
	"breakbot/internal/exchange/bybit/ws"
	"breakbot/internal/exchange/delta"
	"breakbot/internal/httpapi"
	"breakbot/internal/journal"
	"breakbot/internal/ledger"
	"breakbot/internal/logger"
	"breakbot/internal/metrics"
	"breakbot/internal/notify"

	"github.com/gin-gonic/gin"
)

func run(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:      cfg.Runtime.Log.Level,
		Format:     cfg.Runtime.Log.Format,
		Output:     cfg.Runtime.Log.File,
		MaxSize:    cfg.Runtime.Log.MaxSize,
		MaxBackups: cfg.Runtime.Log.MaxBackups,
		MaxAge:     cfg.Runtime.Log.MaxAge,
		Compress:   cfg.Runtime.Log.Compress,
	})
	log.Info("Бот запущен.")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval, err := candles.ParseTimeframe(cfg.Strategy.Timeframe)
	if err != nil {
		return err
	}

	led := ledger.New(ledger.NewFileStore(cfg.Runtime.StatePath), cfg.Risk.StartEquity, cfg.Risk.FeeRate, log)

	var tradeJournal engine.TradeJournal
	var journalReader httpapi.Journal
	if j, err := journal.Open(cfg.Runtime.JournalPath); err != nil {
		log.WithError(err).Warn("Журнал сделок недоступен, запись отключена.")
	} else {
		tradeJournal, journalReader = j, j
	}

	m := metrics.New()

	notifier, bot := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	var tgDone <-chan struct{}
	if tg, ok := notifier.(*notify.Telegram); ok {
		go tg.Run(ctx)
		tgDone = tg.Done()
	}

	var source candles.Source
	var bybitClient *bybit.Client
	switch cfg.Exchange.Source {
	case "bybit":
		bybitClient = bybit.New(bybit.Options{
			BaseURL:  cfg.Exchange.BaseUrl,
			Category: cfg.Exchange.Category,
			ApiKey:   cfg.Exchange.ApiKey,
			Secret:   cfg.Exchange.Secret,
			Timeout:  cfg.Exchange.Timeout,
		}, log)
		source = bybitClient
	default:
		source = delta.New(cfg.Exchange.BaseUrl, cfg.Exchange.Timeout, log)
	}

	store := candles.NewStore(source, candles.StoreConfig{
		Resolution: cfg.Strategy.Timeframe,
		Interval:   interval,
		Lookback:   time.Duration(cfg.Strategy.LookbackDays) * 24 * time.Hour,
		MaxBars:    cfg.Strategy.MaxBars,
	})

	if cfg.Exchange.Stream {
		if err := startStream(ctx, cfg, interval, store, log); err != nil {
			log.WithError(err).Warn("WS поток свечей не запущен, работаем только через REST.")
		}
	}

	var executor exchange.Executor = exchange.PaperExecutor{}
	if cfg.Runtime.Mode == "live" && bybitClient != nil {
		executor = bybitClient
		logBalance(ctx, bybitClient, led, log)
	}

	eng, err := engine.New(cfg, engine.Deps{
		Candles:  store,
		Ledger:   led,
		Executor: executor,
		Notifier: notifier,
		Journal:  tradeJournal,
		Metrics:  m,
		Log:      log,
	})
	if err != nil {
		return err
	}

	var webhook gin.HandlerFunc
	if bot != nil {
		tgBot := control.NewBot(control.NewHandler(eng, cfg.Telegram.ChatID, log), bot)
		if cfg.Telegram.Mode == "webhook" {
			webhook = tgBot.Webhook()
		} else {
			go tgBot.RunPolling(ctx, bot)
		}
	}

	if cfg.HTTP.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := httpapi.New(httpapi.Options{
			Addr:         cfg.HTTP.Addr,
			ControlToken: cfg.HTTP.ControlToken,
			Engine:       eng,
			Journal:      journalReader,
			Metrics:      m.Handler(),
			Webhook:      webhook,
			WebhookPath:  cfg.Telegram.WebhookPath,
			Log:          log,
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("HTTP сервер завершился с ошибкой.")
			}
		}()
	}

	eng.Start(ctx)

	if tgDone != nil {
		select {
		case <-tgDone:
		case <-time.After(5 * time.Second):
		}
	}
	log.Info("Бот остановлен.")
	return nil
}

// startStream подписывается на закрытые свечи и вливает их в хранилище между тиками.
func startStream(ctx context.Context, cfg *config.Config, interval time.Duration, store *candles.Store, log *logger.Logger) error {
	topics, err := ws.KlineTopics(interval, cfg.Strategy.Assets)
	if err != nil {
		return err
	}

	client := ws.New(cfg.Exchange.WSPublicURL, log)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.SubscribeToTopics(topics); err != nil {
		client.Close()
		return fmt.Errorf("Не удалось подписаться на свечи: %w", err)
	}

	go func() {
		<-ctx.Done()
		client.Close()
	}()
	go func() {
		for ev := range client.Events() {
			store.Merge(ev.Symbol, ev.Candles)
		}
	}()
	return nil
}

// logBalance сверяет баланс счёта с учётным капиталом; расхождение только логируется.
func logBalance(ctx context.Context, client *bybit.Client, led *ledger.Ledger, log *logger.Logger) {
	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	bal, err := client.Balance(reqCtx, "USDT")
	if err != nil {
		log.WithError(err).Warn("Не удалось получить баланс счёта.")
		return
	}
	log.WithFields(map[string]interface{}{
		"coin":          bal.Coin,
		"wallet":        bal.Wallet.String(),
		"equity":        bal.Equity.String(),
		"ledger_equity": led.Status().Equity,
	}).Info("Баланс счёта.")
}
