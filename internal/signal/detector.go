package signal

import (
	"math"

	"breakbot/internal/indicators"
	"breakbot/internal/models"
)

const (
	ReasonInsufficientHistory = "insufficient_history"
	ReasonIndicatorUndefined  = "indicator_undefined"
	ReasonNoSetup             = "no_setup"
	ReasonFiltered            = "filtered"
	ReasonOK                  = "ok"

	historyMargin = 5
)

type Params struct {
	TrendWindow int
	ATRWindow   int
	VolWindow   int
	ATRPctMin   float64
	ATRPctMax   float64 // 0 - без верхней границы
	VolMult     float64
}

type Result struct {
	Kind       models.SignalKind
	Stop       float64
	SetupIndex int
	BreakIndex int
	Reason     string
}

type Detector struct {
	p Params
}

func New(p Params) *Detector {
	return &Detector{p: p}
}

// MinHistory - минимальная длина ряда, с которой детектор вообще что-то оценивает.
func (d *Detector) MinHistory() int {
	return max(d.p.TrendWindow, d.p.VolWindow, d.p.ATRWindow) + historyMargin
}

// Evaluate смотрит только на закрытые свечи: последняя в ряду ещё формируется,
// пробойная - предпоследняя, сетап - перед ней.
func (d *Detector) Evaluate(candles []models.Candle, snap indicators.Snapshot) Result {
	res := Result{Kind: models.SignalNone, SetupIndex: -1, BreakIndex: -1}
	if len(candles) < d.MinHistory() || len(candles) < 3 {
		res.Reason = ReasonInsufficientHistory
		return res
	}

	res.SetupIndex = len(candles) - 3
	res.BreakIndex = len(candles) - 2
	setup := candles[res.SetupIndex]
	brk := candles[res.BreakIndex]

	ema, okEMA := snap.EMATrend.At(res.SetupIndex)
	atrPct, okATR := snap.ATRPct.At(res.SetupIndex)
	volSMA, okVol := snap.VolumeSMA.At(res.SetupIndex)
	if !okEMA || !okATR || (snap.VolumeAvailable && (!okVol || !setup.HasVolume)) {
		res.Reason = ReasonIndicatorUndefined
		return res
	}

	var kind models.SignalKind
	var stop float64
	switch {
	case setup.Bullish() && brk.High > setup.High:
		kind, stop = models.SignalLong, setup.Low
	case setup.Bearish() && brk.Low < setup.Low:
		kind, stop = models.SignalShort, setup.High
	default:
		res.Reason = ReasonNoSetup
		return res
	}

	regime := (kind == models.SignalLong && setup.Close > ema) ||
		(kind == models.SignalShort && setup.Close < ema)
	volatility := atrPct >= d.p.ATRPctMin && (d.p.ATRPctMax <= 0 || atrPct <= d.p.ATRPctMax)
	volume := !snap.VolumeAvailable || setup.Volume > d.p.VolMult*math.Max(1e-9, volSMA)

	if !regime || !volatility || !volume {
		res.Reason = ReasonFiltered
		return res
	}

	res.Kind = kind
	res.Stop = stop
	res.Reason = ReasonOK
	return res
}
