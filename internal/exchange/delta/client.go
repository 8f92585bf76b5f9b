package delta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"breakbot/internal/candles"
	"breakbot/internal/exchange"
	"breakbot/internal/logger"
	"breakbot/internal/models"

	"github.com/sirupsen/logrus"
)

// maxBarsPerRequest - лимит /v2/history/candles на один запрос.
const maxBarsPerRequest = 2000

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

type deltaResponse struct {
	Success *bool             `json:"success"`
	Result  []json.RawMessage `json:"result"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Candles режет окно [start, end] на куски по maxBarsPerRequest баров.
func (c *Client) Candles(ctx context.Context, symbol, resolution string, start, end int64) ([]models.Candle, error) {
	interval, err := candles.ParseTimeframe(resolution)
	if err != nil {
		return nil, err
	}
	span := int64(maxBarsPerRequest) * int64(interval/time.Second)

	var out []models.Candle
	skippedTotal := 0
	for from := start; from < end; from += span {
		to := from + span
		if to > end {
			to = end
		}
		batch, skipped, err := c.fetch(ctx, symbol, resolution, from, to)
		if err != nil {
			return nil, err
		}
		skippedTotal += skipped
		out = append(out, batch...)
	}

	if skippedTotal > 0 {
		c.logEntry(symbol).WithField("skipped", skippedTotal).Debug("Пропущены некорректные свечи.")
	}
	return candles.SortDedup(out), nil
}

func (c *Client) fetch(ctx context.Context, symbol, resolution string, start, end int64) ([]models.Candle, int, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("resolution", resolution)
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/history/candles?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("Не удалось создать запрос: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, exchange.Transient(fmt.Errorf("Ошибка запроса свечей %s: %w", symbol, err))
	}
	defer resp.Body.Close()

	if err := exchange.FromStatus(resp.StatusCode, resp.Status); err != nil {
		return nil, 0, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, exchange.Transient(fmt.Errorf("Не удалось прочитать ответ: %w", err))
	}

	var body deltaResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, 0, exchange.BadResponse("Не удалось разобрать ответ delta: %v", err)
	}
	if body.Success != nil && !*body.Success {
		code, msg := "unknown", ""
		if body.Error != nil {
			code, msg = body.Error.Code, body.Error.Message
		}
		return nil, 0, exchange.BadResponse("Ошибка delta: %s %s", code, msg)
	}

	bars, skipped := candles.Normalize(body.Result)
	return bars, skipped, nil
}

func (c *Client) logEntry(symbol string) *logrus.Entry {
	return c.log.WithComponent("delta").WithField("symbol", symbol)
}
