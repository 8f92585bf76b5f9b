// Package indicators считает трендовую EMA, ATR, ATR% и SMA объёма по ряду свечей.
// Значение, для которого не хватает истории, помечается как неопределённое, а не нулевое.
package indicators

import (
	"math"

	"breakbot/internal/models"
)

type Series struct {
	values []float64
	ok     []bool
}

func newSeries(n int) Series {
	return Series{values: make([]float64, n), ok: make([]bool, n)}
}

func (s Series) set(i int, v float64) {
	s.values[i] = v
	s.ok[i] = true
}

// At возвращает значение и признак того, что оно определено.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.values) || !s.ok[i] {
		return 0, false
	}
	return s.values[i], true
}

func (s Series) Len() int { return len(s.values) }

type Params struct {
	TrendWindow int
	ATRWindow   int
	VolWindow   int
}

type Snapshot struct {
	EMATrend  Series
	ATR       Series
	ATRPct    Series
	VolumeSMA Series

	// VolumeAvailable=false, если ни у одной свечи ряда нет объёма.
	VolumeAvailable bool
}

func Compute(candles []models.Candle, p Params) Snapshot {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	atr := ATR(candles, p.ATRWindow)
	return Snapshot{
		EMATrend:        EMA(closes, p.TrendWindow),
		ATR:             atr,
		ATRPct:          ATRPct(candles, atr),
		VolumeSMA:       VolumeSMA(candles, p.VolWindow),
		VolumeAvailable: hasVolume(candles),
	}
}

// EMA с затравкой первым значением: ema[0]=x[0], alpha=2/(span+1).
// Рекурсия идёт с нулевого индекса, но значения до span-1 остаются неопределёнными.
func EMA(x []float64, span int) Series {
	out := newSeries(len(x))
	if len(x) == 0 || span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	prev := x[0]
	for i := range x {
		if i > 0 {
			prev = alpha*x[i] + (1-alpha)*prev
		}
		if i >= span-1 {
			out.set(i, prev)
		}
	}
	return out
}

func TrueRange(candles []models.Candle) []float64 {
	tr := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			tr[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return tr
}

// ATR - простое скользящее среднее TR, определено начиная с window-1.
func ATR(candles []models.Candle, window int) Series {
	tr := TrueRange(candles)
	out := newSeries(len(tr))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range tr {
		sum += v
		if i >= window {
			sum -= tr[i-window]
		}
		if i >= window-1 {
			out.set(i, sum/float64(window))
		}
	}
	return out
}

func ATRPct(candles []models.Candle, atr Series) Series {
	out := newSeries(len(candles))
	for i, c := range candles {
		a, ok := atr.At(i)
		if !ok || c.Close == 0 {
			continue
		}
		out.set(i, a/c.Close)
	}
	return out
}

// VolumeSMA не определена там, где в окне есть свеча без объёма.
func VolumeSMA(candles []models.Candle, window int) Series {
	out := newSeries(len(candles))
	if window <= 0 {
		return out
	}
	sum := 0.0
	missing := 0
	for i, c := range candles {
		if c.HasVolume {
			sum += c.Volume
		} else {
			missing++
		}
		if i >= window {
			old := candles[i-window]
			if old.HasVolume {
				sum -= old.Volume
			} else {
				missing--
			}
		}
		if i >= window-1 && missing == 0 {
			out.set(i, sum/float64(window))
		}
	}
	return out
}

func hasVolume(candles []models.Candle) bool {
	for _, c := range candles {
		if c.HasVolume {
			return true
		}
	}
	return false
}
