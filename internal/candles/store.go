package candles

import (
	"context"
	"sync"
	"time"

	"breakbot/internal/models"
)

// Source - поставщик свечей. Пустой ответ без ошибки означает "данных пока нет".
type Source interface {
	Candles(ctx context.Context, symbol, resolution string, start, end int64) ([]models.Candle, error)
}

type StoreConfig struct {
	Resolution string
	Interval   time.Duration
	Lookback   time.Duration
	MaxBars    int
}

type Store struct {
	source Source
	cfg    StoreConfig
	now    func() time.Time

	mu     sync.RWMutex
	series map[string][]models.Candle
}

func NewStore(source Source, cfg StoreConfig) *Store {
	if cfg.MaxBars <= 0 {
		cfg.MaxBars = 5000
	}
	return &Store{
		source: source,
		cfg:    cfg,
		now:    time.Now,
		series: make(map[string][]models.Candle),
	}
}

// Refresh подтягивает свежие бары и вливает их в историю актива.
// Сетевой вызов идёт без блокировки; при ошибке история не меняется.
func (s *Store) Refresh(ctx context.Context, asset string) (int, error) {
	start, end := s.window(asset)
	fetched, err := s.source.Candles(ctx, asset, s.cfg.Resolution, start, end)
	if err != nil {
		return 0, err
	}
	if len(fetched) == 0 {
		return 0, nil
	}
	s.Merge(asset, fetched)
	return len(fetched), nil
}

func (s *Store) window(asset string) (int64, int64) {
	end := s.now().Unix()

	s.mu.RLock()
	existing := s.series[asset]
	s.mu.RUnlock()

	if len(existing) == 0 {
		return end - int64(s.cfg.Lookback/time.Second), end
	}
	overlap := int64(2 * s.cfg.Interval / time.Second)
	return existing[len(existing)-1].Timestamp - overlap, end
}

// Merge объединяет бары по времени: новые перекрывают старые с тем же timestamp.
func (s *Store) Merge(asset string, fresh []models.Candle) {
	if len(fresh) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]models.Candle, 0, len(s.series[asset])+len(fresh))
	merged = append(merged, s.series[asset]...)
	merged = append(merged, fresh...)
	merged = SortDedup(merged)

	if len(merged) > s.cfg.MaxBars {
		merged = merged[len(merged)-s.cfg.MaxBars:]
	}
	s.series[asset] = merged
}

// Series возвращает копию ряда.
func (s *Store) Series(asset string) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.series[asset]
	out := make([]models.Candle, len(src))
	copy(out, src)
	return out
}

func (s *Store) Len(asset string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[asset])
}
