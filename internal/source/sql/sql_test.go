package sql

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type decimal string

func (d decimal) Value() (driver.Value, error) { return string(d), nil }

func TestCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: nil},
		{name: "bytes", in: []byte("1,500"), want: "1,500"},
		{name: "int", in: int64(7), want: int64(7)},
		{name: "date", in: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), want: "2024-03-01"},
		{name: "timestamp", in: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), want: "2024-03-01T10:30:00Z"},
		{name: "valuer", in: decimal("1500.25"), want: "1500.25"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Cell(tc.in))
		})
	}
}
