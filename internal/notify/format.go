package notify

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"breakbot/internal/models"
)

func FormatStart(mode, timeframe string, assets []string) string {
	return fmt.Sprintf("🚀 Бот запущен (%s) | TF %s | %s", mode, timeframe, strings.Join(assets, ", "))
}

func FormatOpen(pos models.Position) string {
	return fmt.Sprintf("⚡ %s %s @ %s | стоп %s | объём %s",
		pos.Asset, pos.Side, price(pos.EntryPrice), price(pos.StopPrice), qty(pos.Quantity))
}

func FormatPartial(asset string, exitPrice, pnl, r float64) string {
	return fmt.Sprintf("🎯 %s TP1 +%.1fR @ %s | %+.2f", asset, r, price(exitPrice), pnl)
}

func FormatClose(asset string, reason models.CloseReason, exitPrice, pnl, equity float64) string {
	return fmt.Sprintf("🧾 %s выход %s @ %s | PnL %+.2f | Eq %.2f", asset, reason, price(exitPrice), pnl, equity)
}

func FormatTrading(enabled bool) string {
	if enabled {
		return "▶ Торговля возобновлена"
	}
	return "⏸ Торговля на паузе"
}

func FormatError(asset string, err error) string {
	return fmt.Sprintf("❗ %s: %v", asset, err)
}

type StatusView struct {
	Equity         float64
	DrawdownPct    float64
	Positions      map[string]models.Side
	Assets         []string
	TradingEnabled bool
}

func FormatStatus(s StatusView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Eq=%.2f | DD=%.2f%%", s.Equity, s.DrawdownPct)
	if !s.TradingEnabled {
		b.WriteString(" | пауза")
	}

	open := make([]string, 0, len(s.Positions))
	for _, a := range s.Assets {
		if side, ok := s.Positions[a]; ok {
			open = append(open, a+":"+string(side))
		}
	}
	var extra []string
	for a, side := range s.Positions {
		if !slices.Contains(s.Assets, a) {
			extra = append(extra, a+":"+string(side))
		}
	}
	slices.Sort(extra)
	open = append(open, extra...)
	if len(open) == 0 {
		b.WriteString("\nОткрытых позиций нет")
	} else {
		b.WriteString("\nОткрыто: " + strings.Join(open, ", "))
	}
	b.WriteString("\nАктивы: " + strings.Join(s.Assets, ", "))
	return b.String()
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func qty(v float64) string {
	formatted := strconv.FormatFloat(v, 'f', 6, 64)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")
	if formatted == "" || formatted == "-0" {
		return "0"
	}
	return formatted
}
