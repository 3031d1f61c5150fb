package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Text coerces raw using Default.
func Text(raw any) string { return Default.Text(raw) }

// GroupKey folds raw using Default.
func GroupKey(raw any) string { return Default.GroupKey(raw) }

// Text returns raw as trimmed, NFC-normalized text with marker characters
// removed from both ends. nil becomes "".
func (n Normalizer) Text(raw any) string {
	var s string
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		s = t
	case []byte:
		s = string(t)
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		s = fmt.Sprint(t)
	}

	cut := " \t\r\n\u00a0" + n.Markers
	s = strings.Trim(s, cut)
	if s == "" {
		return ""
	}
	return norm.NFC.String(s)
}

// GroupKey is the identity used when grouping records: Text, with inner
// whitespace runs collapsed and case folded. "Loreto *" and "LORETO" share a
// key.
func (n Normalizer) GroupKey(raw any) string {
	s := n.Text(raw)
	if s == "" {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	// Casers carry state; one per call keeps GroupKey safe for concurrent use.
	return cases.Fold().String(s)
}

// HasEdgeSpace reports whether s starts or ends with a space or tab. It is a
// cheap check that lets hot paths skip strings.TrimSpace.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[len(s)-1] == ' ' || s[0] == '\t' || s[len(s)-1] == '\t'
}
