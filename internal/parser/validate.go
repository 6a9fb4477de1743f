package parser

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// validate coerces a parsed receipt into a consistent shape: comma decimals
// become dots, missing fields get defaults, nameless products are dropped and
// absent line totals are computed from quantity and price.
func validate(in *Receipt) *Receipt {
	out := &Receipt{
		StoreName: strings.TrimSpace(in.StoreName),
		Date:      normalizeDate(in.Date),
		Total:     round2(in.Total),
		Currency:  strings.ToUpper(strings.TrimSpace(in.Currency)),
	}
	if out.Currency == "" {
		out.Currency = "PLN"
	}
	if out.Total < 0 {
		out.Total = 0
	}

	for _, p := range in.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}

		qty := p.Quantity
		if qty <= 0 {
			qty = 1
		}
		price := p.Price
		if price < 0 {
			price = 0
		}
		unit := strings.TrimSpace(p.Unit)
		if unit == "" {
			unit = "szt"
		}

		// A supplied line total may reflect a discount; keep it.
		totalPrice := p.TotalPrice
		if totalPrice <= 0 {
			totalPrice = qty * price
		}

		out.Products = append(out.Products, Product{
			Name:       name,
			Quantity:   qty,
			Price:      round2(price),
			TotalPrice: round2(totalPrice),
			Unit:       unit,
		})
	}

	return out
}

// normalizeDate keeps only dates the time package can confirm; anything else
// becomes empty rather than a bad guess.
func normalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") {
		return ""
	}
	for _, layout := range []string{"2006-01-02", "02.01.2006", "02-01-2006", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// parseAmount converts a receipt amount, accepting the Polish comma decimal.
func parseAmount(raw string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func titleCase(s string) string {
	s = strings.ToLower(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
