// Package normalize coerces loosely typed spreadsheet cells into numbers and
// clean text.
//
// Nothing in this package panics or returns an error: malformed input
// degrades to the documented default (0 for numbers, "" for text). Callers
// that need to know whether a coercion failed use NumberOK.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Locale describes how numerals are written in a source.
type Locale struct {
	Decimal rune
	Group   rune
}

var (
	// DefaultLocale reads "12,345.67".
	DefaultLocale = Locale{Decimal: '.', Group: ','}
	// CommaDecimalLocale reads "12.345,67".
	CommaDecimalLocale = Locale{Decimal: ',', Group: '.'}
)

// LocaleFor returns the locale whose decimal separator is decimal.
// Anything other than "," selects DefaultLocale.
func LocaleFor(decimal string) Locale {
	if strings.TrimSpace(decimal) == "," {
		return CommaDecimalLocale
	}
	return DefaultLocale
}

// Normalizer holds the per-dataset coercion rules. The zero value uses
// DefaultLocale and strips no marker characters; Default strips "*".
type Normalizer struct {
	Locale Locale
	// Markers lists characters stripped from both ends of text values,
	// e.g. the trailing "*" used as a footnote marker.
	Markers string
}

// Default is the normalizer used by the package-level helpers.
var Default = Normalizer{Locale: DefaultLocale, Markers: "*"}

// Number coerces raw using Default.
func Number(raw any) float64 { return Default.Number(raw) }

// NumberOK coerces raw using Default and reports whether coercion succeeded.
func NumberOK(raw any) (float64, bool) { return Default.NumberOK(raw) }

// Number returns the numeric value of raw, or 0 when raw is empty or cannot
// be parsed. It never returns NaN or an infinity.
func (n Normalizer) Number(raw any) float64 {
	v, _ := n.NumberOK(raw)
	return v
}

// NumberOK is Number plus a flag that is false only when raw carried content
// that could not be read as a number. Empty cells and placeholder dashes are
// reported as ok: absent is not invalid.
func (n Normalizer) NumberOK(raw any) (float64, bool) {
	switch t := raw.(type) {
	case nil:
		return 0, true
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return finite(f)
		}
		return n.parse(string(t))
	case string:
		return n.parse(t)
	case []byte:
		return n.parse(string(t))
	default:
		return n.parse(fmt.Sprint(t))
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isPlaceholder(s string) bool {
	switch s {
	case "-", "--", "–", "—", "n.d.", "s/d", "N/A", "n/a", "NA":
		return true
	}
	return false
}

// parse reads a numeral surrounded by optional symbols such as "S/ 1,500.00",
// "45 %" or "(1,200)". Symbols are only tolerated before and after the
// numeral; digits that reappear after a trailing symbol make the cell invalid.
func (n Normalizer) parse(s string) (float64, bool) {
	s = strings.TrimFunc(s, isSpace)
	if s == "" || isPlaceholder(s) {
		return 0, true
	}

	loc := n.Locale
	if loc.Decimal == 0 {
		loc = DefaultLocale
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	buf := make([]byte, 0, len(s))

	const (
		prefix = iota
		body
		exponent
		suffix
	)
	state := prefix
	sawDigit := false
	sawDecimal := false
	prevDigit := false
	// expStart is where the exponent marker sits in buf; a marker with no
	// digits after it is cut off and read as a suffix.
	expStart := 0
	expDigits := false

	for _, r := range s {
		isDigit := r >= '0' && r <= '9'
		switch state {
		case prefix:
			switch {
			case isDigit:
				state = body
				sawDigit = true
				buf = append(buf, byte(r))
			case r == '-' || r == '−':
				negative = !negative
			case r == loc.Decimal:
				state = body
				sawDecimal = true
				buf = append(buf, '.')
			}
		case body:
			switch {
			case isDigit:
				sawDigit = true
				buf = append(buf, byte(r))
			case r == loc.Decimal && !sawDecimal:
				sawDecimal = true
				buf = append(buf, '.')
			case (r == 'e' || r == 'E') && prevDigit:
				state = exponent
				expStart = len(buf)
				buf = append(buf, 'e')
			case r == loc.Group || r == '\'' || isSpace(r):
				// grouping
			default:
				state = suffix
			}
		case exponent:
			switch {
			case isDigit:
				expDigits = true
				buf = append(buf, byte(r))
			case (r == '+' || r == '-') && !expDigits && len(buf) == expStart+1:
				buf = append(buf, byte(r))
			default:
				if !expDigits {
					buf = buf[:expStart]
				}
				state = suffix
			}
		case suffix:
			if isDigit {
				return 0, false
			}
		}
		prevDigit = isDigit
	}
	if state == exponent && !expDigits {
		buf = buf[:expStart]
	}

	if !sawDigit {
		return 0, false
	}

	f, err := strconv.ParseFloat(string(buf), 64)
	if err != nil {
		return 0, false
	}
	if negative && f != 0 {
		f = -f
	}
	return finite(f)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}
