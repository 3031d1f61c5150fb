// Package record turns loosely typed source rows into typed records according
// to a declarative field mapping.
package record

import (
	"fmt"
	"strings"

	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"

	"observatory/internal/fault"
)

type FieldType int8

const (
	FieldNumber FieldType = iota + 1
	FieldInteger
	FieldString
)

const invalidFieldTypeName = "INVALID_FIELD_TYPE"

var fieldTypeNames = enumnames.NewMap(map[FieldType]string{
	FieldNumber:  "number",
	FieldInteger: "integer",
	FieldString:  "string",
})

func (t FieldType) IsValid() bool {
	return t.String() != invalidFieldTypeName
}

func (t FieldType) String() string {
	return fieldTypeNames.GetNameOrFallback(t, invalidFieldTypeName)
}

func (t FieldType) MarshalJSON() ([]byte, error) {
	return fieldTypeNames.MarshalToNameJSON(t)
}

func (t *FieldType) UnmarshalJSON(bytes []byte) error {
	return fieldTypeNames.UnmarshalFromNameJSON(bytes, t)
}

// Numeric reports whether values of this type are emitted as JSON numbers.
func (t FieldType) Numeric() bool {
	return t == FieldNumber || t == FieldInteger
}

// FieldSpec declares one target field of a record.
type FieldSpec struct {
	// Target is the field name in the output record.
	Target string `json:"target"`

	// Aliases are the accepted source column labels, tried in order with an
	// exact, case-sensitive match. When empty, Target itself is the alias.
	Aliases []string `json:"aliases,omitempty"`

	Type FieldType `json:"type"`

	// Required fields that are absent from a row are reported as missing.
	// The row is kept either way.
	Required bool `json:"required,omitempty"`

	// Default replaces an absent value. When nil the type's zero value
	// (0 or "") is used.
	Default any `json:"default,omitempty"`

	// Precision is the number of decimals written for this field by the
	// emitter. Nil means the emitter default.
	Precision *int `json:"precision,omitempty"`
}

// SourceAliases returns the labels searched for this field.
func (f FieldSpec) SourceAliases() []string {
	if len(f.Aliases) == 0 {
		return []string{f.Target}
	}
	return f.Aliases
}

// Spec is the ordered schema of one dataset's records.
type Spec []FieldSpec

// Validate checks that every field has a name and a valid type and that
// target names are unique.
func (s Spec) Validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(s))

	for i, f := range s {
		name := strings.TrimSpace(f.Target)
		if name == "" {
			errs = append(errs, fmt.Errorf("fields[%d]: target is empty", i))
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("fields[%d]: duplicate target %q", i, name))
		}
		seen[name] = struct{}{}

		if !f.Type.IsValid() {
			errs = append(errs, fmt.Errorf("field %q: invalid type", name))
		}
		if f.Precision != nil && (*f.Precision < 0 || *f.Precision > 10) {
			errs = append(errs, fmt.Errorf("field %q: precision must be within 0..10", name))
		}
		for _, a := range f.Aliases {
			if a == "" {
				errs = append(errs, fmt.Errorf("field %q: empty alias", name))
				break
			}
		}
	}

	if len(errs) > 0 {
		return fault.Config("record spec", wrap.Errors("invalid record spec", errs...))
	}
	return nil
}

// Names returns the target names in declared order.
func (s Spec) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Target
	}
	return out
}

// Field returns the spec of the named field.
func (s Spec) Field(name string) (FieldSpec, bool) {
	for _, f := range s {
		if f.Target == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
