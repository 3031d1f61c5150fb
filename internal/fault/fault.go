// Package fault defines the fatal error categories of a pipeline run.
//
// Row-level defects are never faults: they are absorbed into defaults and
// reported through dataset diagnostics. A fault aborts the dataset it occurs
// in and nothing is written for that dataset.
package fault

import (
	"errors"
	"fmt"

	"hermannm.dev/enumnames"
)

type Kind int8

const (
	// KindConfig covers invalid record or aggregate specs. Raised before any
	// row is processed.
	KindConfig Kind = iota + 1
	// KindSource covers unreadable, unparsable or empty-but-required sources.
	KindSource
	// KindDestination covers output directories that cannot be created and
	// failed writes.
	KindDestination
	// KindAggregate covers aggregates that would emit a non-finite number.
	KindAggregate
)

var kindNames = enumnames.NewMap(map[Kind]string{
	KindConfig:      "CONFIGURATION",
	KindSource:      "SOURCE",
	KindDestination: "DESTINATION",
	KindAggregate:   "AGGREGATE",
})

func (kind Kind) IsValid() bool {
	return kind.String() != invalidKindName
}

const invalidKindName = "INVALID_FAULT_KIND"

func (kind Kind) String() string {
	return kindNames.GetNameOrFallback(kind, invalidKindName)
}

func (kind Kind) MarshalJSON() ([]byte, error) {
	return kindNames.MarshalToNameJSON(kind)
}

func (kind *Kind) UnmarshalJSON(bytes []byte) error {
	return kindNames.UnmarshalFromNameJSON(bytes, kind)
}

// Error is a categorized fatal error. Subject names what failed: a spec name,
// a source path or a destination path.
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s error: %v", kindLabel(e.Kind), e.Err)
	}
	return fmt.Sprintf("%s error (%s): %v", kindLabel(e.Kind), e.Subject, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func kindLabel(k Kind) string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindSource:
		return "source"
	case KindDestination:
		return "destination"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

func Config(subject string, err error) error {
	return &Error{Kind: KindConfig, Subject: subject, Err: err}
}

func Configf(subject string, format string, args ...any) error {
	return &Error{Kind: KindConfig, Subject: subject, Err: fmt.Errorf(format, args...)}
}

func Source(path string, err error) error {
	return &Error{Kind: KindSource, Subject: path, Err: err}
}

func Destination(path string, err error) error {
	return &Error{Kind: KindDestination, Subject: path, Err: err}
}

func Aggregate(name string, err error) error {
	return &Error{Kind: KindAggregate, Subject: name, Err: err}
}

// IsKind reports whether err (or anything it wraps) is a fault of kind k.
func IsKind(err error, k Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == k
	}
	return false
}

// KindOf returns the kind of the first fault in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
