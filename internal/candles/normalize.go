package candles

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"breakbot/internal/models"
)

var (
	timeKeys   = []string{"time", "timestamp", "t", "start", "startTime", "open_time"}
	openKeys   = []string{"open", "o"}
	highKeys   = []string{"high", "h"}
	lowKeys    = []string{"low", "l"}
	closeKeys  = []string{"close", "c"}
	volumeKeys = []string{"volume", "v", "vol"}
)

// Normalize приводит строки ответа биржи (массивы или объекты) к Candle.
// Битые строки пропускаются и считаются в skipped.
func Normalize(rows []json.RawMessage) ([]models.Candle, int) {
	out := make([]models.Candle, 0, len(rows))
	skipped := 0
	for _, raw := range rows {
		c, ok := normalizeRow(raw)
		if !ok {
			skipped++
			continue
		}
		out = append(out, c)
	}
	return SortDedup(out), skipped
}

func normalizeRow(raw json.RawMessage) (models.Candle, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return models.Candle{}, false
	}
	switch raw[0] {
	case '[':
		var cols []any
		if err := decode(raw, &cols); err != nil {
			return models.Candle{}, false
		}
		return fromList(cols)
	case '{':
		var obj map[string]any
		if err := decode(raw, &obj); err != nil {
			return models.Candle{}, false
		}
		return fromObject(obj)
	}
	return models.Candle{}, false
}

func decode(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

func fromList(cols []any) (models.Candle, bool) {
	if len(cols) < 5 {
		return models.Candle{}, false
	}
	var vol any
	if len(cols) > 5 {
		vol = cols[5]
	}
	return build(cols[0], cols[1], cols[2], cols[3], cols[4], vol)
}

func fromObject(obj map[string]any) (models.Candle, bool) {
	return build(
		pick(obj, timeKeys),
		pick(obj, openKeys),
		pick(obj, highKeys),
		pick(obj, lowKeys),
		pick(obj, closeKeys),
		pick(obj, volumeKeys),
	)
}

func pick(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

func build(ts, open, high, low, cls, vol any) (models.Candle, bool) {
	t, ok := toFloat(ts)
	if !ok || t <= 0 {
		return models.Candle{}, false
	}
	o, ok1 := toFloat(open)
	h, ok2 := toFloat(high)
	l, ok3 := toFloat(low)
	c, ok4 := toFloat(cls)
	if !ok1 || !ok2 || !ok3 || !ok4 || h < l {
		return models.Candle{}, false
	}

	stamp := int64(t)
	if stamp > 1e12 {
		stamp /= 1000
	}

	candle := models.Candle{Timestamp: stamp, Open: o, High: h, Low: l, Close: c}
	if v, ok := toFloat(vol); ok && v >= 0 {
		candle.Volume = v
		candle.HasVolume = true
	}
	return candle, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// SortDedup сортирует по времени; при совпадении времени побеждает более поздняя строка.
func SortDedup(in []models.Candle) []models.Candle {
	if len(in) == 0 {
		return in
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Timestamp < in[j].Timestamp })
	out := in[:0]
	for _, c := range in {
		if n := len(out); n > 0 && out[n-1].Timestamp == c.Timestamp {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
