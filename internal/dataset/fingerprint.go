package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"observatory/internal/record"
)

const (
	fieldSep = "\x1f"
	rowSep   = "\x1e"
)

// Fingerprint returns the hex SHA-256 of the canonical form of records:
// name=value pairs joined by the unit separator, rows joined by the record
// separator. Equal records in equal order always hash the same.
func Fingerprint(records []record.Record) string {
	var b strings.Builder
	var scratch [64]byte

	for i, r := range records {
		if i > 0 {
			b.WriteString(rowSep)
		}
		j := 0
		r.Fields(func(name string, v any) {
			if j > 0 {
				b.WriteString(fieldSep)
			}
			j++
			b.WriteString(name)
			b.WriteByte('=')
			appendCanonical(&b, v, &scratch)
		})
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func appendCanonical(b *strings.Builder, v any, scratch *[64]byte) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(strconv.Quote(t))
	case int64:
		b.Write(strconv.AppendInt(scratch[:0], t, 10))
	case float64:
		b.Write(strconv.AppendFloat(scratch[:0], t, 'g', -1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(t))
	default:
		fmt.Fprintf(b, "%v", t)
	}
}
