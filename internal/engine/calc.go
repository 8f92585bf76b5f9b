package engine

import (
	"math"

	"breakbot/internal/models"
)

// PositionSize: risk_cash = equity*risk_pct, distance не меньше entry*min_distance_pct,
// qty = risk_cash*leverage/distance.
func PositionSize(equity, riskPct, leverage, minDistancePct, entry, stop float64) float64 {
	distance := math.Max(math.Abs(entry-stop), entry*minDistancePct)
	if distance <= 0 {
		return 0
	}
	return equity * riskPct * leverage / distance
}

// EntryWithSlippage сдвигает цену в худшую для входа сторону.
func EntryWithSlippage(price, slippage float64, side models.Side) float64 {
	return price * (1 + side.Sign()*slippage)
}

// TargetPrice - цена в R от входа в сторону прибыли.
func TargetPrice(entry, r, multiple float64, side models.Side) float64 {
	return entry + side.Sign()*multiple*r
}

// TrailCandidate - стоп на расстоянии mult*ATR от закрытия.
func TrailCandidate(close, atr, mult float64, side models.Side) float64 {
	return close - side.Sign()*mult*atr
}

func reached(side models.Side, price, target float64) bool {
	if side == models.SideLong {
		return price >= target
	}
	return price <= target
}

func stopHit(side models.Side, price, stop float64) bool {
	if side == models.SideLong {
		return price <= stop
	}
	return price >= stop
}

func tighter(side models.Side, candidate, current float64) bool {
	if side == models.SideLong {
		return candidate > current
	}
	return candidate < current
}

// protective: стоп по защитную сторону от входа.
func protective(side models.Side, entry, stop float64) bool {
	if side == models.SideLong {
		return stop < entry
	}
	return stop > entry
}
