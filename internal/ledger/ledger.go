package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"breakbot/internal/logger"
	"breakbot/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrPositionExists = errors.New("позиция по активу уже открыта")
	ErrNoPosition     = errors.New("открытой позиции по активу нет")
	ErrInvalidQty     = errors.New("некорректный объём")
)

// Ledger - единственный владелец эквити, позиций и last_bar_time.
// Все изменения идут через Commit под блокировкой, чтение - через View/Status.
type Ledger struct {
	store   Store
	feeRate float64
	log     *logger.Logger

	mu    sync.RWMutex
	state State
}

// New поднимает состояние из store. Отсутствующий или битый снимок не ошибка:
// стартуем с startEquity и пишем предупреждение.
func New(store Store, startEquity, feeRate float64, log *logger.Logger) *Ledger {
	l := &Ledger{store: store, feeRate: feeRate, log: log}

	st, err := store.Load()
	switch {
	case err == nil:
		l.state = st.Clone()
		l.logEntry().WithFields(logrus.Fields{
			"equity":    st.Equity,
			"positions": len(st.Positions),
		}).Info("Состояние восстановлено из снимка.")
	case errors.Is(err, ErrNoSnapshot):
		l.state = Defaults(startEquity)
		l.logEntry().WithField("equity", startEquity).Info("Снимка нет, стартуем с начального эквити.")
	default:
		l.state = Defaults(startEquity)
		l.logEntry().WithError(err).Warn("Снимок не прочитан, используем состояние по умолчанию.")
	}
	return l
}

func (l *Ledger) logEntry() *logrus.Entry {
	return l.log.WithComponent("ledger")
}

type AssetView struct {
	Position      models.Position
	HasPosition   bool
	Equity        float64
	OpenCount     int
	LastBarTime   int64
	LastTradeTime int64
	HasTraded     bool
}

func (l *Ledger) View(asset string) AssetView {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.state.Positions[asset]
	tradeTime, traded := l.state.LastTradeTime[asset]
	return AssetView{
		Position:      pos,
		HasPosition:   ok,
		Equity:        l.state.Equity,
		OpenCount:     len(l.state.Positions),
		LastBarTime:   l.state.LastBarTime[asset],
		LastTradeTime: tradeTime,
		HasTraded:     traded,
	}
}

// Commit применяет fn атомарно для бара barTime. Бар не новее last_bar_time
// отклоняется без изменений (false, nil). Ошибка fn откатывает всё, что она сделала.
func (l *Ledger) Commit(asset string, barTime int64, fn func(tx *Tx) error) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.state.LastBarTime[asset]; ok && barTime <= last {
		return false, nil
	}

	tx := &Tx{asset: asset, barTime: barTime, feeRate: l.feeRate, state: l.state.Clone()}
	if fn != nil {
		if err := fn(tx); err != nil {
			return false, err
		}
	}
	tx.state.LastBarTime[asset] = barTime
	l.state = tx.state

	if err := l.store.Save(l.state); err != nil {
		return true, fmt.Errorf("Не удалось сохранить состояние: %w", err)
	}
	return true, nil
}

// Snapshot - копия всего состояния.
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}

type Status struct {
	Equity         float64           `json:"equity"`
	PeakEquity     float64           `json:"peak_equity"`
	RealizedPnL    float64           `json:"realized_pnl"`
	DrawdownPct    float64           `json:"drawdown_pct"`
	OpenPositions  []models.Position `json:"open_positions"`
	LastBarTime    map[string]int64  `json:"last_bar_time"`
	Assets         []string          `json:"assets,omitempty"`
	TradingEnabled bool              `json:"trading_enabled"`
}

func (l *Ledger) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make([]models.Position, 0, len(l.state.Positions))
	for _, p := range l.state.Positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Asset < positions[j].Asset })

	lastBars := make(map[string]int64, len(l.state.LastBarTime))
	for k, v := range l.state.LastBarTime {
		lastBars[k] = v
	}

	return Status{
		Equity:        l.state.Equity,
		PeakEquity:    l.state.PeakEquity,
		RealizedPnL:   l.state.RealizedPnL,
		DrawdownPct:   Drawdown(l.state.PeakEquity, l.state.Equity),
		OpenPositions: positions,
		LastBarTime:   lastBars,
	}
}
