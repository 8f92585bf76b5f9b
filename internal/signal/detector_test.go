package signal

import (
	"testing"

	"breakbot/internal/indicators"
	"breakbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		TrendWindow: 3,
		ATRWindow:   2,
		VolWindow:   2,
		ATRPctMin:   0.004,
		VolMult:     1.2,
	}
}

// rising: бычьи свечи с растущим трендом, у сетапа (индекс n-3) повышенный объём.
func rising(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		f := float64(i)
		out[i] = models.Candle{
			Timestamp: int64(3600 * (i + 1)),
			Open:      100 + f,
			Close:     101 + f,
			High:      102 + f,
			Low:       99.5 + f,
			Volume:    10,
			HasVolume: true,
		}
	}
	out[n-3].Volume = 30
	return out
}

func falling(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		f := float64(i)
		out[i] = models.Candle{
			Timestamp: int64(3600 * (i + 1)),
			Open:      200 - f,
			Close:     199 - f,
			High:      200.5 - f,
			Low:       198 - f,
			Volume:    10,
			HasVolume: true,
		}
	}
	out[n-3].Volume = 30
	return out
}

func evaluate(p Params, bars []models.Candle) Result {
	snap := indicators.Compute(bars, indicators.Params{
		TrendWindow: p.TrendWindow,
		ATRWindow:   p.ATRWindow,
		VolWindow:   p.VolWindow,
	})
	return New(p).Evaluate(bars, snap)
}

func TestLongSignal(t *testing.T) {
	res := evaluate(testParams(), rising(10))

	require.Equal(t, models.SignalLong, res.Kind, res.Reason)
	assert.Equal(t, 7, res.SetupIndex)
	assert.Equal(t, 8, res.BreakIndex)
	assert.InDelta(t, 106.5, res.Stop, 1e-9)
}

func TestShortSignal(t *testing.T) {
	res := evaluate(testParams(), falling(10))

	require.Equal(t, models.SignalShort, res.Kind, res.Reason)
	assert.InDelta(t, 193.5, res.Stop, 1e-9)
}

func TestInsufficientHistory(t *testing.T) {
	p := testParams()
	assert.Equal(t, 8, New(p).MinHistory())

	res := evaluate(p, rising(7))
	assert.Equal(t, models.SignalNone, res.Kind)
	assert.Equal(t, ReasonInsufficientHistory, res.Reason)
}

func TestFormingCandleIgnored(t *testing.T) {
	bars := rising(10)
	bars[9].High = 0
	bars[9].Low = 0
	bars[9].Close = 1

	res := evaluate(testParams(), bars)
	assert.Equal(t, models.SignalLong, res.Kind)
}

func TestVolumeFilterBlocks(t *testing.T) {
	bars := rising(10)
	bars[7].Volume = 10

	res := evaluate(testParams(), bars)
	assert.Equal(t, models.SignalNone, res.Kind)
	assert.Equal(t, ReasonFiltered, res.Reason)
}

func TestVolumeBypassWhenAbsent(t *testing.T) {
	bars := rising(10)
	for i := range bars {
		bars[i].Volume = 0
		bars[i].HasVolume = false
	}

	res := evaluate(testParams(), bars)
	assert.Equal(t, models.SignalLong, res.Kind, res.Reason)
}

func TestMissingSetupVolumeIsUndefined(t *testing.T) {
	bars := rising(10)
	bars[7].HasVolume = false

	res := evaluate(testParams(), bars)
	assert.Equal(t, models.SignalNone, res.Kind)
	assert.Equal(t, ReasonIndicatorUndefined, res.Reason)
}

func TestRegimeFilter(t *testing.T) {
	bars := falling(10)
	bars[7] = models.Candle{Timestamp: bars[7].Timestamp, Open: 191, Close: 192, High: 193, Low: 190.5, Volume: 30, HasVolume: true}
	bars[8] = models.Candle{Timestamp: bars[8].Timestamp, Open: 192, Close: 193.5, High: 194, Low: 191.5, Volume: 10, HasVolume: true}

	res := evaluate(testParams(), bars)
	assert.Equal(t, models.SignalNone, res.Kind)
	assert.Equal(t, ReasonFiltered, res.Reason)
}

func TestVolatilityBounds(t *testing.T) {
	p := testParams()
	p.ATRPctMin = 0.5
	assert.Equal(t, ReasonFiltered, evaluate(p, rising(10)).Reason)

	p = testParams()
	p.ATRPctMax = 0.001
	assert.Equal(t, ReasonFiltered, evaluate(p, rising(10)).Reason)
}

func TestNoSetup(t *testing.T) {
	bars := rising(10)
	bars[8].High = bars[7].High

	res := evaluate(testParams(), bars)
	assert.Equal(t, ReasonNoSetup, res.Reason)
}
