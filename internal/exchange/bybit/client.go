package bybit

import (
	"net/http"
	"sync"
	"time"

	"breakbot/internal/exchange"
	"breakbot/internal/logger"

	"github.com/sirupsen/logrus"
)

type Options struct {
	BaseURL  string
	Category string
	ApiKey   string
	Secret   string
	Timeout  time.Duration
}

type Client struct {
	baseURL    string
	category   string
	apiKey     string
	secret     string
	httpClient *http.Client
	log        *logger.Logger

	fillTimeout  time.Duration
	pollInterval time.Duration

	rulesMu sync.Mutex
	rules   map[string]exchange.InstrumentRules
}

func New(opts Options, log *logger.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Category == "" {
		opts.Category = "linear"
	}
	return &Client{
		baseURL:  opts.BaseURL,
		category: opts.Category,
		apiKey:   opts.ApiKey,
		secret:   opts.Secret,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		log:          log,
		fillTimeout:  10 * time.Second,
		pollInterval: 500 * time.Millisecond,
		rules:        make(map[string]exchange.InstrumentRules),
	}
}

func (c *Client) logEntry(symbol string) *logrus.Entry {
	entry := c.log.WithComponent("bybit")
	if symbol != "" {
		entry = entry.WithField("symbol", symbol)
	}
	return entry
}
