package json

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"hermannm.dev/wrap"

	"observatory/internal/config"
	"observatory/internal/source"
)

func init() {
	source.Register("json", Read)
}

// Read reads the JSON file at cfg.Path.
func Read(ctx context.Context, cfg config.Source) (*source.Table, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, wrap.Error(err, "failed to open JSON file")
	}
	defer f.Close()

	return ReadFrom(ctx, f, cfg.Options)
}

// ReadFrom reads JSON records from r.
//
// Accepted shapes:
//   - A root array of objects; each object is one row.
//   - A root object holding an array of objects (an envelope). The array is
//     the one under records_key, or else the first array whose first
//     non-null element is an object.
//   - A root object with no array value is a single row.
//   - Any of the above followed by further objects (JSON Lines).
//
// The header is the union of object keys in first-seen order. Nested
// objects are flattened with dotted keys ("region.name"), arrays of strings
// are joined with array_join_separator (default ","). Numbers stay
// json.Number so the cell normalizer sees the exact literal.
//
// Options: records_key, array_join_separator, header_map, trim_space.
func ReadFrom(ctx context.Context, r io.Reader, opt config.Options) (*source.Table, error) {
	dec := newDecoder(r)

	sep := opt.String("array_join_separator", ",")
	if sep == "" {
		sep = ","
	}

	c := &collector{
		ctx:        ctx,
		dec:        dec,
		sep:        sep,
		recordsKey: opt.String("records_key", ""),
		index:      make(map[string]int),
	}
	if err := c.readAll(); err != nil {
		return nil, err
	}

	header := source.CleanHeader(c.keys, opt.Bool("trim_space", true), opt.StringMap("header_map"))
	table := source.NewTable(header)
	for i, obj := range c.rows {
		cells := make([]any, len(header))
		for j, k := range obj.keys {
			cells[c.index[k]] = obj.vals[j]
		}
		table.Append(cells, i+1)
	}
	return table, nil
}

type object struct {
	keys []string
	vals []any
}

func (o *object) set(k string, v any) {
	o.keys = append(o.keys, k)
	o.vals = append(o.vals, v)
}

type collector struct {
	ctx        context.Context
	dec        *json.Decoder
	sep        string
	recordsKey string

	keys  []string
	index map[string]int
	rows  []object
}

func (c *collector) emit(o object) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	for _, k := range o.keys {
		if _, ok := c.index[k]; !ok {
			c.index[k] = len(c.keys)
			c.keys = append(c.keys, k)
		}
	}
	c.rows = append(c.rows, o)
	return nil
}

func (c *collector) readAll() error {
	for {
		tok, err := c.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return wrap.Error(err, "failed to parse JSON")
		}

		d, ok := tok.(json.Delim)
		if !ok {
			return fmt.Errorf("unsupported JSON root %T (want object or array)", tok)
		}

		switch d {
		case '[':
			if err := c.readArrayOfObjects(); err != nil {
				return err
			}
		case '{':
			if err := c.readRootObject(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected JSON delimiter %q", d)
		}
	}
}

// readArrayOfObjects consumes array elements up to and including ']'. Null
// elements are skipped.
func (c *collector) readArrayOfObjects() error {
	for c.dec.More() {
		tok, err := c.dec.Token()
		if err != nil {
			return wrap.Errorf(err, "failed to parse JSON record %d", len(c.rows)+1)
		}
		if tok == nil {
			continue
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("JSON record %d is not an object (got %v)", len(c.rows)+1, tok)
		}
		var o object
		if err := c.readObject(&o, ""); err != nil {
			return wrap.Errorf(err, "failed to parse JSON record %d", len(c.rows)+1)
		}
		if err := c.emit(o); err != nil {
			return err
		}
	}
	return c.expect(json.Delim(']'))
}

// readRootObject handles the envelope and single-record shapes.
func (c *collector) readRootObject() error {
	var single object
	streamed := false

	for c.dec.More() {
		key, err := c.key()
		if err != nil {
			return err
		}
		tok, err := c.dec.Token()
		if err != nil {
			return wrap.Error(err, "failed to parse JSON")
		}

		if !streamed && tok == json.Delim('[') && (c.recordsKey == "" || c.recordsKey == key) {
			elems, err := c.readRawArray()
			if err != nil {
				return err
			}
			// Without records_key only an array of objects holds the records;
			// any other array is a cell of the single row.
			if c.recordsKey != "" || objectArray(elems) {
				if err := c.readRecords(elems); err != nil {
					return err
				}
				streamed = true
				continue
			}
			single.set(key, c.joinScalars(elems))
			continue
		}

		if streamed || c.recordsKey != "" {
			if err := skipValue(c.dec, tok); err != nil {
				return err
			}
			continue
		}
		if err := c.readValue(&single, key, tok); err != nil {
			return err
		}
	}

	if err := c.expect(json.Delim('}')); err != nil {
		return err
	}
	if !streamed && c.recordsKey == "" {
		return c.emit(single)
	}
	return nil
}

// readRawArray consumes array elements after '[' up to and including ']'.
func (c *collector) readRawArray() ([]json.RawMessage, error) {
	var elems []json.RawMessage
	for c.dec.More() {
		var raw json.RawMessage
		if err := c.dec.Decode(&raw); err != nil {
			return nil, wrap.Error(err, "failed to parse JSON array")
		}
		elems = append(elems, raw)
	}
	if err := c.expect(json.Delim(']')); err != nil {
		return nil, err
	}
	return elems, nil
}

// objectArray reports whether the first non-null element is an object. An
// empty array counts, so an envelope with no records yields no rows.
func objectArray(elems []json.RawMessage) bool {
	for _, raw := range elems {
		trimmed := bytes.TrimSpace(raw)
		if bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return len(trimmed) > 0 && trimmed[0] == '{'
	}
	return true
}

// readRecords emits one row per object element. Null elements are skipped.
func (c *collector) readRecords(elems []json.RawMessage) error {
	outer := c.dec
	defer func() { c.dec = outer }()

	for _, raw := range elems {
		c.dec = newDecoder(bytes.NewReader(raw))
		tok, err := c.dec.Token()
		if err != nil {
			return wrap.Errorf(err, "failed to parse JSON record %d", len(c.rows)+1)
		}
		if tok == nil {
			continue
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("JSON record %d is not an object (got %v)", len(c.rows)+1, tok)
		}
		var o object
		if err := c.readObject(&o, ""); err != nil {
			return wrap.Errorf(err, "failed to parse JSON record %d", len(c.rows)+1)
		}
		if err := c.emit(o); err != nil {
			return err
		}
	}
	return nil
}

// joinScalars joins the scalar elements of an array; nested containers and
// nulls are dropped.
func (c *collector) joinScalars(elems []json.RawMessage) string {
	var parts []string
	for _, raw := range elems {
		tok, err := newDecoder(bytes.NewReader(raw)).Token()
		if err != nil || tok == nil {
			continue
		}
		if _, ok := tok.(json.Delim); ok {
			continue
		}
		parts = append(parts, fmt.Sprint(tok))
	}
	return strings.Join(parts, c.sep)
}

func newDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// readObject reads members after '{' up to and including '}', flattening
// nested objects under prefix.
func (c *collector) readObject(o *object, prefix string) error {
	for c.dec.More() {
		key, err := c.key()
		if err != nil {
			return err
		}
		tok, err := c.dec.Token()
		if err != nil {
			return err
		}
		if err := c.readValue(o, prefix+key, tok); err != nil {
			return err
		}
	}
	return c.expect(json.Delim('}'))
}

func (c *collector) readValue(o *object, key string, tok json.Token) error {
	switch tok {
	case json.Delim('{'):
		return c.readObject(o, key+".")
	case json.Delim('['):
		v, err := c.readScalarArray()
		if err != nil {
			return err
		}
		o.set(key, v)
		return nil
	default:
		o.set(key, tok)
		return nil
	}
}

// readScalarArray joins an array of scalars into one string cell. Nested
// containers inside the array are skipped.
func (c *collector) readScalarArray() (string, error) {
	var parts []string
	for c.dec.More() {
		tok, err := c.dec.Token()
		if err != nil {
			return "", err
		}
		if d, ok := tok.(json.Delim); ok {
			if err := skipValue(c.dec, d); err != nil {
				return "", err
			}
			continue
		}
		if tok == nil {
			continue
		}
		parts = append(parts, fmt.Sprint(tok))
	}
	if err := c.expect(json.Delim(']')); err != nil {
		return "", err
	}
	return strings.Join(parts, c.sep), nil
}

func (c *collector) key() (string, error) {
	tok, err := c.dec.Token()
	if err != nil {
		return "", wrap.Error(err, "failed to read JSON object key")
	}
	k, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("JSON object key is not a string (got %T)", tok)
	}
	return k, nil
}

func (c *collector) expect(want json.Delim) error {
	tok, err := c.dec.Token()
	if err != nil {
		return wrap.Errorf(err, "failed to read JSON %q", want)
	}
	if tok != want {
		return fmt.Errorf("expected JSON %q, got %v", want, tok)
	}
	return nil
}

// skipValue discards the rest of a value whose first token is tok.
func skipValue(dec *json.Decoder, tok json.Token) error {
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	depth := 1
	if d != '{' && d != '[' {
		return fmt.Errorf("unexpected JSON delimiter %q", d)
	}
	for depth > 0 {
		t, err := dec.Token()
		if err != nil {
			return wrap.Error(err, "failed to skip JSON value")
		}
		if dd, ok := t.(json.Delim); ok {
			switch dd {
			case '{', '[':
				depth++
			default:
				depth--
			}
		}
	}
	return nil
}
