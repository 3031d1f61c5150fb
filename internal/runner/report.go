package runner

import (
	"fmt"
	"time"

	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"

	"observatory/internal/dataset"
)

type Status int8

const (
	StatusOK Status = iota + 1
	StatusFailed
	// StatusCanceled marks datasets not started because the run was
	// interrupted.
	StatusCanceled
)

const invalidStatusName = "INVALID_STATUS"

var statusNames = enumnames.NewMap(map[Status]string{
	StatusOK:       "ok",
	StatusFailed:   "failed",
	StatusCanceled: "canceled",
})

func (s Status) String() string {
	return statusNames.GetNameOrFallback(s, invalidStatusName)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return statusNames.MarshalToNameJSON(s)
}

// DatasetReport is the outcome of one dataset.
type DatasetReport struct {
	Name   string
	Output string
	Status Status
	// Stage is where a failed dataset stopped: read, build or emit.
	Stage       string
	Diagnostics dataset.Diagnostics
	Duration    time.Duration
	Err         error
}

// Report is the outcome of one run, in pipeline order.
type Report struct {
	Datasets []DatasetReport
	Duration time.Duration
}

// Failed returns the datasets that did not succeed.
func (r Report) Failed() []DatasetReport {
	var out []DatasetReport
	for _, d := range r.Datasets {
		if d.Status != StatusOK {
			out = append(out, d)
		}
	}
	return out
}

// Err is nil when every dataset succeeded.
func (r Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, d := range failed {
		err := d.Err
		if err == nil {
			err = fmt.Errorf("%s", d.Status)
		}
		errs = append(errs, wrap.Errorf(err, "dataset %s", d.Name))
	}
	return wrap.Errors(fmt.Sprintf("%d of %d datasets failed", len(failed), len(r.Datasets)), errs...)
}

// Summary is a one-line log summary.
func (r Report) Summary() string {
	return fmt.Sprintf("datasets=%d ok=%d failed=%d duration=%s",
		len(r.Datasets), len(r.Datasets)-len(r.Failed()), len(r.Failed()), r.Duration.Round(time.Millisecond))
}
