package ledger

import "breakbot/internal/models"

func GrossPnL(side models.Side, entry, exit, qty float64) float64 {
	return side.Sign() * (exit - entry) * qty
}

// ExitFee берётся на закрытии с суммы входа и выхода; комиссия входа уже списана при открытии.
func ExitFee(entry, exit, qty, rate float64) float64 {
	return (entry + exit) * qty * rate
}

func EntryFee(entry, qty, rate float64) float64 {
	return entry * qty * rate
}

// Drawdown в процентах от пика. Пик обновляется только на закрытиях,
// поэтому сравниваем с max(peak, equity).
func Drawdown(peak, equity float64) float64 {
	top := max(peak, equity)
	if top <= 0 {
		return 0
	}
	return (top - equity) / top * 100
}
