package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Exchange ExchangeConfig
	Strategy StrategyConfig
	Risk     RiskConfig
	Telegram TelegramConfig
	HTTP     HTTPConfig
	Runtime  RuntimeConfig
}

type ExchangeConfig struct {
	Source      string
	BaseUrl     string
	WSPublicURL string
	Category    string
	ApiKey      string
	Secret      string
	Stream      bool
	Timeout     time.Duration
}

type StrategyConfig struct {
	Assets           []string
	Timeframe        string
	LookbackDays     int
	MaxBars          int
	TickInterval     time.Duration
	TrendWindow      int
	ATRWindow        int
	ATRPctMin        float64
	ATRPctMax        float64
	VolWindow        int
	VolMult          float64
	TrailATRMult     float64
	TP1R             float64
	TP2R             float64
	TP1Scale         float64
	TP2RequiresTP1   bool
	MinTradeGap      int
	MaxOpenPositions int
}

type RiskConfig struct {
	StartEquity    float64
	RiskPct        float64
	Leverage       float64
	MinDistancePct float64
	FeeRate        float64
	SlippageBps    float64
}

type TelegramConfig struct {
	Token       string
	ChatID      int64
	Mode        string
	WebhookPath string
}

type HTTPConfig struct {
	Addr         string
	ControlToken string
}

type RuntimeConfig struct {
	Mode        string
	StatePath   string
	JournalPath string
	Log         LogConfig
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.source", "delta")
	v.SetDefault("exchange.base_url", "https://api.delta.exchange")
	v.SetDefault("exchange.ws_public_url", "wss://stream.bybit.com/v5/public/linear")
	v.SetDefault("exchange.category", "linear")
	v.SetDefault("exchange.timeout", "30s")

	v.SetDefault("strategy.assets", []string{"ETHUSDT", "BTCUSDT", "SOLUSDT", "BNBUSDT"})
	v.SetDefault("strategy.timeframe", "1h")
	v.SetDefault("strategy.lookback_days", 120)
	v.SetDefault("strategy.max_bars", 5000)
	v.SetDefault("strategy.tick_interval", "60s")
	v.SetDefault("strategy.trend_window", 200)
	v.SetDefault("strategy.atr_window", 14)
	v.SetDefault("strategy.atr_pct_min", 0.004)
	v.SetDefault("strategy.atr_pct_max", 0.0)
	v.SetDefault("strategy.vol_window", 20)
	v.SetDefault("strategy.vol_mult", 1.2)
	v.SetDefault("strategy.trail_atr_mult", 1.5)
	v.SetDefault("strategy.tp1_r", 1.0)
	v.SetDefault("strategy.tp2_r", 2.0)
	v.SetDefault("strategy.tp1_scale", 0.5)
	v.SetDefault("strategy.tp2_requires_tp1", false)
	v.SetDefault("strategy.min_trade_gap", 0)
	v.SetDefault("strategy.max_open_positions", 0)

	v.SetDefault("risk.start_equity", 10000.0)
	v.SetDefault("risk.risk_pct", 0.01)
	v.SetDefault("risk.leverage", 1.0)
	v.SetDefault("risk.min_distance_pct", 0.001)
	v.SetDefault("risk.fee_rate", 0.0005)
	v.SetDefault("risk.slippage_bps", 2.0)

	v.SetDefault("telegram.mode", "polling")
	v.SetDefault("telegram.webhook_path", "")

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("runtime.mode", "paper")
	v.SetDefault("runtime.state_path", "data/state.json")
	v.SetDefault("runtime.journal_path", "data/trades.csv")
	v.SetDefault("runtime.log.level", "info")
	v.SetDefault("runtime.log.format", "text")
	v.SetDefault("runtime.log.file", "stdout")
	v.SetDefault("runtime.log.max_size", 50)
	v.SetDefault("runtime.log.max_backups", 5)
	v.SetDefault("runtime.log.max_age", 14)
}

// Load читает конфиг из path (или configs/config.yaml), переменные окружения
// перекрывают файл: exchange.api_key -> EXCHANGE_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && path != "" {
			return nil, fmt.Errorf("Не удалось прочитать конфиг %s: %w", path, err)
		}
	}

	cfg := &Config{}

	cfg.Exchange = ExchangeConfig{
		Source:      strings.ToLower(v.GetString("exchange.source")),
		BaseUrl:     strings.TrimRight(v.GetString("exchange.base_url"), "/"),
		WSPublicURL: v.GetString("exchange.ws_public_url"),
		Category:    v.GetString("exchange.category"),
		ApiKey:      envSub(v, "exchange.api_key"),
		Secret:      envSub(v, "exchange.secret"),
		Stream:      v.GetBool("exchange.stream"),
		Timeout:     v.GetDuration("exchange.timeout"),
	}

	cfg.Strategy = StrategyConfig{
		Assets:           upperAll(v.GetStringSlice("strategy.assets")),
		Timeframe:        v.GetString("strategy.timeframe"),
		LookbackDays:     v.GetInt("strategy.lookback_days"),
		MaxBars:          v.GetInt("strategy.max_bars"),
		TickInterval:     v.GetDuration("strategy.tick_interval"),
		TrendWindow:      v.GetInt("strategy.trend_window"),
		ATRWindow:        v.GetInt("strategy.atr_window"),
		ATRPctMin:        v.GetFloat64("strategy.atr_pct_min"),
		ATRPctMax:        v.GetFloat64("strategy.atr_pct_max"),
		VolWindow:        v.GetInt("strategy.vol_window"),
		VolMult:          v.GetFloat64("strategy.vol_mult"),
		TrailATRMult:     v.GetFloat64("strategy.trail_atr_mult"),
		TP1R:             v.GetFloat64("strategy.tp1_r"),
		TP2R:             v.GetFloat64("strategy.tp2_r"),
		TP1Scale:         v.GetFloat64("strategy.tp1_scale"),
		TP2RequiresTP1:   v.GetBool("strategy.tp2_requires_tp1"),
		MinTradeGap:      v.GetInt("strategy.min_trade_gap"),
		MaxOpenPositions: v.GetInt("strategy.max_open_positions"),
	}

	cfg.Risk = RiskConfig{
		StartEquity:    v.GetFloat64("risk.start_equity"),
		RiskPct:        v.GetFloat64("risk.risk_pct"),
		Leverage:       v.GetFloat64("risk.leverage"),
		MinDistancePct: v.GetFloat64("risk.min_distance_pct"),
		FeeRate:        v.GetFloat64("risk.fee_rate"),
		SlippageBps:    v.GetFloat64("risk.slippage_bps"),
	}

	cfg.Telegram = TelegramConfig{
		Token:       envSub(v, "telegram.token"),
		ChatID:      v.GetInt64("telegram.chat_id"),
		Mode:        strings.ToLower(v.GetString("telegram.mode")),
		WebhookPath: v.GetString("telegram.webhook_path"),
	}

	cfg.HTTP = HTTPConfig{
		Addr:         v.GetString("http.addr"),
		ControlToken: envSub(v, "http.control_token"),
	}

	cfg.Runtime = RuntimeConfig{
		Mode:        strings.ToLower(v.GetString("runtime.mode")),
		StatePath:   v.GetString("runtime.state_path"),
		JournalPath: v.GetString("runtime.journal_path"),
		Log: LogConfig{
			Level:      v.GetString("runtime.log.level"),
			Format:     v.GetString("runtime.log.format"),
			File:       v.GetString("runtime.log.file"),
			MaxSize:    v.GetInt("runtime.log.max_size"),
			MaxBackups: v.GetInt("runtime.log.max_backups"),
			MaxAge:     v.GetInt("runtime.log.max_age"),
			Compress:   v.GetBool("runtime.log.compress"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate отсекает только неисправимые ошибки конфигурации.
func (c *Config) Validate() error {
	s := c.Strategy
	r := c.Risk
	switch {
	case len(s.Assets) == 0:
		return errors.New("Не задан список активов (strategy.assets).")
	case s.TrendWindow <= 0 || s.ATRWindow <= 0 || s.VolWindow <= 0:
		return errors.New("Окна индикаторов должны быть положительными.")
	case s.TickInterval <= 0:
		return errors.New("strategy.tick_interval должен быть положительным.")
	case s.TP1Scale <= 0 || s.TP1Scale >= 1:
		return fmt.Errorf("strategy.tp1_scale вне (0,1): %v", s.TP1Scale)
	case s.TP1R <= 0 || s.TP2R <= 0:
		return errors.New("strategy.tp1_r и strategy.tp2_r должны быть положительными.")
	case s.ATRPctMax > 0 && s.ATRPctMax < s.ATRPctMin:
		return errors.New("strategy.atr_pct_max меньше atr_pct_min.")
	case r.RiskPct <= 0 || r.RiskPct > 1:
		return fmt.Errorf("risk.risk_pct вне (0,1]: %v", r.RiskPct)
	case r.Leverage <= 0:
		return errors.New("risk.leverage должен быть положительным.")
	case r.StartEquity <= 0:
		return errors.New("risk.start_equity должен быть положительным.")
	case r.FeeRate < 0 || r.SlippageBps < 0 || r.MinDistancePct < 0:
		return errors.New("Комиссия, проскальзывание и min_distance_pct не могут быть отрицательными.")
	}
	switch c.Runtime.Mode {
	case "paper":
	case "live":
		if c.Exchange.Source != "bybit" {
			return errors.New("Режим live поддерживается только с exchange.source=bybit.")
		}
		if c.Exchange.ApiKey == "" || c.Exchange.Secret == "" {
			return errors.New("Режим live требует exchange.api_key и exchange.secret.")
		}
	default:
		return fmt.Errorf("Неизвестный runtime.mode: %q", c.Runtime.Mode)
	}
	switch c.Exchange.Source {
	case "delta", "bybit":
	default:
		return fmt.Errorf("Неизвестный exchange.source: %q", c.Exchange.Source)
	}
	if c.Exchange.Stream && c.Exchange.Source != "bybit" {
		return errors.New("exchange.stream поддерживается только с exchange.source=bybit.")
	}
	switch c.Telegram.Mode {
	case "polling":
	case "webhook":
		if strings.Trim(c.Telegram.WebhookPath, "/") == "" {
			return errors.New("Режим webhook требует telegram.webhook_path.")
		}
		if c.HTTP.Addr == "" {
			return errors.New("Режим webhook требует http.addr.")
		}
	default:
		return fmt.Errorf("Неизвестный telegram.mode: %q", c.Telegram.Mode)
	}
	return nil
}

// SlippageRate переводит bps в долю.
func (r RiskConfig) SlippageRate() float64 {
	return r.SlippageBps / 10_000
}

var envPattern = regexp.MustCompile(`\$\{(\w+)\}`)

func envSub(v *viper.Viper, key string) string {
	val := v.GetString(key)
	if val == "" {
		return ""
	}

	return envPattern.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
