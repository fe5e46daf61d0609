package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var amountExpr = regexp.MustCompile(`\d[\d,.\s]*\d|\d`)

var currencyTokens = []struct {
	token string
	code  string
}{
	{"$", "USD"},
	{"usd", "USD"},
	{"€", "EUR"},
	{"eur", "EUR"},
	{"£", "GBP"},
	{"gbp", "GBP"},
	{"₴", "UAH"},
	{"грн", "UAH"},
	{"uah", "UAH"},
}

// ParseSalary extracts a salary range from free text. A single bound sets
// both min and max; text without a recognizable amount ("competitive",
// "negotiable") leaves everything unset — never zero.
func ParseSalary(text string) (min, max *int64, currency string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ""
	}

	var amounts []int64
	for _, loc := range amountExpr.FindAllStringIndex(text, -1) {
		v, ok := parseAmount(text[loc[0]:loc[1]])
		if !ok {
			continue
		}
		if rest := text[loc[1]:]; len(rest) > 0 && (rest[0] == 'k' || rest[0] == 'K') {
			v *= 1000
		}
		amounts = append(amounts, v)
		if len(amounts) == 2 {
			break
		}
	}

	if len(amounts) == 0 {
		return nil, nil, ""
	}

	lo, hi := amounts[0], amounts[0]
	if len(amounts) > 1 {
		hi = amounts[1]
		if hi < lo {
			lo, hi = hi, lo
		}
	}

	return &lo, &hi, detectCurrency(text)
}

func detectCurrency(text string) string {
	lower := strings.ToLower(text)
	for _, c := range currencyTokens {
		if strings.Contains(lower, c.token) {
			return c.code
		}
	}
	return ""
}

// parseAmount normalizes "50,000", "40 000" and "50.000" style grouping.
// A dot followed by fewer than three digits is treated as a decimal part
// and truncated.
func parseAmount(s string) (int64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\t', ' ':
			return -1
		}
		return r
	}, s)

	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		if len(s)-i-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s[:i], ".", "")
		}
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
