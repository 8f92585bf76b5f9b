package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	EventOpen  = "OPEN"
	EventTP1   = "TP1"
	EventClose = "CLOSE"
)

var header = []string{"ts", "trade_id", "asset", "event", "side", "qty", "price", "pnl", "reason"}

type Record struct {
	Time    time.Time `json:"ts"`
	TradeID string    `json:"trade_id"`
	Asset   string    `json:"asset"`
	Event   string    `json:"event"`
	Side    string    `json:"side"`
	Qty     float64   `json:"qty"`
	Price   float64   `json:"price"`
	PnL     float64   `json:"pnl"`
	Reason  string    `json:"reason"`
}

// Journal - CSV-журнал сделок только на дозапись.
type Journal struct {
	path string
	mu   sync.Mutex
}

func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("Не задан путь журнала сделок.")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("Не удалось создать каталог журнала: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("Не удалось создать журнал %s: %w", path, err)
		}
		w := csv.NewWriter(f)
		_ = w.Write(header)
		w.Flush()
		if err := errors.Join(w.Error(), f.Close()); err != nil {
			return nil, fmt.Errorf("Не удалось записать заголовок журнала: %w", err)
		}
	}
	return &Journal{path: path}, nil
}

func (j *Journal) Append(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("Не удалось открыть журнал: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		r.Time.UTC().Format(time.RFC3339),
		r.TradeID,
		r.Asset,
		r.Event,
		r.Side,
		formatFloat(r.Qty),
		formatFloat(r.Price),
		formatFloat(r.PnL),
		r.Reason,
	}); err != nil {
		return fmt.Errorf("Не удалось записать сделку: %w", err)
	}
	w.Flush()
	return w.Error()
}

// LastN - последние n записей, от старых к новым.
func (j *Journal) LastN(n int) ([]Record, error) {
	if n <= 0 {
		n = 20
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("Не удалось открыть журнал: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("Не удалось прочитать журнал: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == header[0] {
		rows = rows[1:]
	}
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		if rec, ok := parseRow(row); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func parseRow(row []string) (Record, bool) {
	if len(row) != len(header) {
		return Record{}, false
	}
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return Record{}, false
	}
	qty, _ := strconv.ParseFloat(row[5], 64)
	price, _ := strconv.ParseFloat(row[6], 64)
	pnl, _ := strconv.ParseFloat(row[7], 64)
	return Record{
		Time:    ts,
		TradeID: row[1],
		Asset:   row[2],
		Event:   row[3],
		Side:    row[4],
		Qty:     qty,
		Price:   price,
		PnL:     pnl,
		Reason:  row[8],
	}, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
