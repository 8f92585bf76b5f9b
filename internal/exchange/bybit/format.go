package bybit

import "github.com/shopspring/decimal"

// quantize округляет value вниз до кратного step.
func quantize(value, step float64) decimal.Decimal {
	v := decimal.NewFromFloat(value)
	if step <= 0 {
		return v
	}
	s := decimal.NewFromFloat(step)
	return v.Div(s).Floor().Mul(s)
}

// formatWithStep печатает value с числом знаков шага: 0.01 -> "12.34".
func formatWithStep(value, step float64) string {
	q := quantize(value, step)
	if step <= 0 {
		return q.String()
	}
	places := -decimal.NewFromFloat(step).Exponent()
	if places < 0 {
		places = 0
	}
	return q.StringFixed(places)
}
