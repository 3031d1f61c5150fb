package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"hermannm.dev/enumnames"

	"observatory/internal/aggregate"
	"observatory/internal/record"
)

type Severity int8

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

const invalidSeverityName = "INVALID_SEVERITY"

var severityNames = enumnames.NewMap(map[Severity]string{
	SeverityError:   "error",
	SeverityWarning: "warning",
})

func (s Severity) String() string {
	return severityNames.GetNameOrFallback(s, invalidSeverityName)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return severityNames.MarshalToNameJSON(s)
}

// Issue is one finding of ValidatePipeline. Path points into the pipeline
// file, e.g. "datasets[1].aggregates".
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// SourceKinds lists the source kinds a pipeline may reference.
var SourceKinds = []string{"csv", "json", "xlsx", "html", "sql"}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline checks a pipeline without touching any source. Record and
// aggregate specs are checked the same way a dataset plan compiles them, so
// a pipeline that validates cleanly never fails with a configuration error
// at run time.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		add(SeverityWarning, "job", "job name is empty; metrics will use a default")
	}
	if p.Output.Dir == "" {
		add(SeverityWarning, "output.dir", "output dir is empty; outputs resolve against the working directory")
	}
	if p.Output.Precision != nil && (*p.Output.Precision < 0 || *p.Output.Precision > 15) {
		add(SeverityError, "output.precision", "must be between 0 and 15")
	}
	if p.Runtime.Workers < 0 {
		add(SeverityError, "runtime.workers", "must not be negative")
	}
	if p.Runtime.WatchDebounceMillis < 0 {
		add(SeverityError, "runtime.watch_debounce_ms", "must not be negative")
	}
	if len(p.Datasets) == 0 {
		add(SeverityError, "datasets", "at least one dataset is required")
	}

	names := make(map[string]int)
	outputs := make(map[string]int)

	for i, d := range p.Datasets {
		path := fmt.Sprintf("datasets[%d]", i)

		if strings.TrimSpace(d.Name) == "" {
			add(SeverityError, path+".name", "name is required")
		} else if j, dup := names[d.Name]; dup {
			add(SeverityError, path+".name", "duplicate dataset name %q (also datasets[%d])", d.Name, j)
		} else {
			names[d.Name] = i
		}

		if d.Title == "" {
			add(SeverityWarning, path+".title", "title is empty")
		}

		switch {
		case strings.TrimSpace(d.Output) == "":
			add(SeverityError, path+".output", "output path is required")
		case filepath.IsAbs(d.Output):
			add(SeverityError, path+".output", "output path must be relative to output.dir")
		case escapes(d.Output):
			add(SeverityError, path+".output", "output path must stay inside output.dir")
		default:
			clean := filepath.Clean(d.Output)
			if j, dup := outputs[clean]; dup {
				add(SeverityError, path+".output", "output %q is also written by datasets[%d]", d.Output, j)
			} else {
				outputs[clean] = i
			}
		}

		if d.Decimal != "" && d.Decimal != "." && d.Decimal != "," {
			add(SeverityError, path+".decimal", `must be "." or ","`)
		}
		for name, prec := range d.Precision {
			if prec < 0 || prec > 15 {
				add(SeverityError, path+".precision."+name, "must be between 0 and 15")
			}
		}

		issues = append(issues, validateSource(path+".source", d.Source)...)

		if len(d.Fields) == 0 {
			add(SeverityError, path+".fields", "at least one field is required")
			continue
		}
		if err := d.Fields.Validate(); err != nil {
			add(SeverityError, path+".fields", "%v", err)
			continue
		}
		for j, f := range d.Fields {
			if f.Precision != nil && (*f.Precision < 0 || *f.Precision > 15) {
				add(SeverityError, fmt.Sprintf("%s.fields[%d].precision", path, j), "must be between 0 and 15")
			}
		}
		if err := aggregate.Validate(record.SchemaOf(d.Fields), d.Aggregates); err != nil {
			add(SeverityError, path+".aggregates", "%v", err)
		}
	}

	return issues
}

func validateSource(path string, s Source) []Issue {
	var issues []Issue
	add := func(sev Severity, p, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: p, Message: fmt.Sprintf(format, args...)})
	}

	known := false
	for _, k := range SourceKinds {
		if s.Kind == k {
			known = true
			break
		}
	}
	if !known {
		add(SeverityError, path+".kind", "unknown source kind %q (want one of %s)", s.Kind, strings.Join(SourceKinds, ", "))
		return issues
	}

	if s.Kind == "sql" {
		if s.Driver == "" {
			add(SeverityError, path+".driver", "driver is required for sql sources")
		}
		if s.DSN == "" {
			add(SeverityError, path+".dsn", "dsn is required for sql sources")
		}
		if strings.TrimSpace(s.Query) == "" {
			add(SeverityError, path+".query", "query is required for sql sources")
		}
		return issues
	}

	if s.Path == "" {
		add(SeverityError, path+".path", "path is required for %s sources", s.Kind)
	}
	return issues
}

func escapes(rel string) bool {
	clean := filepath.Clean(rel)
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
