package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  any
		want float64
	}{
		{name: "thousands_and_decimal", raw: "12,345.67", want: 12345.67},
		{name: "empty_string", raw: "", want: 0},
		{name: "nil", raw: nil, want: 0},
		{name: "int", raw: 42, want: 42},
		{name: "float", raw: 3.5, want: 3.5},
		{name: "json_number", raw: json.Number("1500"), want: 1500},
		{name: "surrounding_space", raw: "  1,000  ", want: 1000},
		{name: "nbsp_grouping", raw: "1\u00a0234", want: 1234},
		{name: "currency_prefix", raw: "S/ 1,500.50", want: 1500.5},
		{name: "dollar", raw: "$2,000", want: 2000},
		{name: "percent_suffix", raw: "45 %", want: 45},
		{name: "unit_suffix", raw: "120.5 ha", want: 120.5},
		{name: "negative", raw: "-7.25", want: -7.25},
		{name: "accounting_negative", raw: "(1,200)", want: -1200},
		{name: "dash_placeholder", raw: "-", want: 0},
		{name: "garbage", raw: "abc", want: 0},
		{name: "digits_after_suffix", raw: "12 ha 3", want: 0},
		{name: "nan", raw: math.NaN(), want: 0},
		{name: "inf", raw: math.Inf(1), want: 0},
		{name: "negative_zero", raw: "-0", want: 0},
		{name: "exponent_upper", raw: "1.5E+06", want: 1.5e6},
		{name: "exponent_lower", raw: "2.5e-3", want: 2.5e-3},
		{name: "exponent_bare", raw: "1e5", want: 1e5},
		{name: "exponent_with_unit", raw: "1.2e3 ha", want: 1200},
		{name: "trailing_e_is_suffix", raw: "12 EUR", want: 12},
		{name: "exponent_without_digits", raw: "7e", want: 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Number(tc.raw)
			assert.Equal(t, tc.want, got)
			assert.False(t, math.Signbit(got) && got == 0, "negative zero")
		})
	}
}

func TestNumberOK_ReportsOnlyContentFailures(t *testing.T) {
	t.Parallel()

	for _, raw := range []any{nil, "", "  ", "—", "n.d.", "1,5", 7} {
		_, ok := NumberOK(raw)
		assert.True(t, ok, "raw=%v", raw)
	}
	for _, raw := range []any{"1.5E+06", "2.5E-3", "1e5"} {
		_, ok := NumberOK(raw)
		assert.True(t, ok, "raw=%v", raw)
	}
	for _, raw := range []any{"abc", "1.2.3", "1e5 2", math.NaN()} {
		_, ok := NumberOK(raw)
		assert.False(t, ok, "raw=%v", raw)
	}
}

func TestNumber_CommaDecimalLocale(t *testing.T) {
	t.Parallel()

	n := Normalizer{Locale: LocaleFor(",")}
	assert.Equal(t, 12345.67, n.Number("12.345,67"))
	assert.Equal(t, 0.5, n.Number(",5"))
	assert.Equal(t, 1234.0, n.Number("1 234"))
}

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  any
		want string
	}{
		{name: "nil", raw: nil, want: ""},
		{name: "trim", raw: "  LORETO \t", want: "LORETO"},
		{name: "footnote_marker", raw: "UCAYALI*", want: "UCAYALI"},
		{name: "marker_and_space", raw: " SAN MARTÍN ** ", want: "SAN MARTÍN"},
		{name: "number", raw: 12.5, want: "12.5"},
		{name: "json_number", raw: json.Number("7"), want: "7"},
		{name: "nfc", raw: "Juni\u0301n", want: "Jun\u00edn"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Text(tc.raw))
		})
	}
}

func TestText_ZeroNormalizerKeepsMarkers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "UCAYALI*", Normalizer{}.Text(" UCAYALI* "))
}

func TestGroupKey_CollapsesVariants(t *testing.T) {
	t.Parallel()

	want := GroupKey("Madre de Dios")
	for _, v := range []string{"MADRE DE DIOS", "madre  de dios*", " Madre de Dios "} {
		assert.Equal(t, want, GroupKey(v), "variant %q", v)
	}
	assert.NotEqual(t, GroupKey("LORETO"), GroupKey("UCAYALI"))
	assert.Equal(t, "", GroupKey(nil))
}

func TestHasEdgeSpace(t *testing.T) {
	t.Parallel()

	assert.False(t, HasEdgeSpace(""))
	assert.False(t, HasEdgeSpace("a b"))
	assert.True(t, HasEdgeSpace(" a"))
	assert.True(t, HasEdgeSpace("a\t"))
}
