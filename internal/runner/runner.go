// Package runner drives a pipeline: every dataset is read, built and emitted
// independently, so one failing dataset never stops the others.
package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"hermannm.dev/wrap"

	"observatory/internal/config"
	"observatory/internal/dataset"
	"observatory/internal/emit"
	"observatory/internal/fault"
	"observatory/internal/metrics"
	"observatory/internal/source"
)

// Logger is the minimal logging seam used by the runner. *log.Logger
// satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Runner executes pipelines. The zero value reads sources through the source
// registry, stamps documents with time.Now and discards logs.
type Runner struct {
	Logger Logger

	// ReadSource opens a dataset source. Defaults to source.Read.
	ReadSource func(ctx context.Context, cfg config.Source) (*source.Table, error)

	// Now is the clock used for lastUpdated. Defaults to time.Now.
	Now func() time.Time

	// onWatchRun is called after every watch-triggered run.
	onWatchRun func(Report)
}

func (r *Runner) logger() Logger {
	if r.Logger == nil {
		return nopLogger{}
	}
	return r.Logger
}

func (r *Runner) readSource(ctx context.Context, cfg config.Source) (*source.Table, error) {
	if r.ReadSource != nil {
		return r.ReadSource(ctx, cfg)
	}
	return source.Read(ctx, cfg)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Validate checks p and logs its warnings.
//
// Errors:
//   - A configuration fault listing every error-level issue.
func (r *Runner) Validate(p config.Pipeline) error {
	issues := config.ValidatePipeline(p)

	var errs []error
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			r.logger().Printf("level=warn stage=validate %s: %s", iss.Path, iss.Message)
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %s", iss.Path, iss.Message))
	}
	if len(errs) > 0 {
		return fault.Config("pipeline", wrap.Errors("invalid pipeline", errs...))
	}
	return nil
}

// Run validates p, then builds the selected datasets (all when only is
// empty) with up to p.Runtime.Workers at a time.
//
// Errors:
//   - A configuration fault when p is invalid or only names an unknown
//     dataset. Nothing is read in that case.
//   - ctx.Err() when the run was interrupted; the report still lists what
//     finished.
//
// Dataset failures are not returned here; use Report.Err.
func (r *Runner) Run(ctx context.Context, p config.Pipeline, only ...string) (Report, error) {
	if err := r.Validate(p); err != nil {
		return Report{}, err
	}
	selected, err := selectDatasets(p.Datasets, only)
	if err != nil {
		return Report{}, err
	}

	start := time.Now()
	log := r.logger()
	log.Printf("stage=run job=%s datasets=%d workers=%d", p.Job, len(selected), workers(p))

	reports := make([]DatasetReport, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(p))
	for i, ds := range selected {
		if gctx.Err() != nil {
			reports[i] = DatasetReport{Name: ds.Name, Status: StatusCanceled, Err: gctx.Err()}
			continue
		}
		g.Go(func() error {
			reports[i] = r.runDataset(gctx, p, ds)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Datasets: reports, Duration: time.Since(start)}
	log.Printf("stage=run job=%s %s", p.Job, report.Summary())
	return report, ctx.Err()
}

func workers(p config.Pipeline) int {
	if p.Runtime.Workers <= 0 {
		return 1
	}
	return p.Runtime.Workers
}

func selectDatasets(all []config.Dataset, only []string) ([]config.Dataset, error) {
	if len(only) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}

	var out []config.Dataset
	for _, ds := range all {
		if want[ds.Name] {
			out = append(out, ds)
			delete(want, ds.Name)
		}
	}
	if len(want) > 0 {
		unknown := slices.Sorted(maps.Keys(want))
		return nil, fault.Configf("datasets", "unknown dataset names: %v", unknown)
	}
	return out, nil
}

// OutputPath is where the document of ds is written.
func OutputPath(p config.Pipeline, ds config.Dataset) string {
	return filepath.Join(p.Output.Dir, filepath.FromSlash(ds.Output))
}

func (r *Runner) runDataset(ctx context.Context, p config.Pipeline, ds config.Dataset) DatasetReport {
	log := r.logger()
	start := time.Now()
	rep := DatasetReport{Name: ds.Name, Output: OutputPath(p, ds)}

	fail := func(stage string, err error) DatasetReport {
		rep.Status = StatusFailed
		rep.Stage = stage
		rep.Err = err
		rep.Duration = time.Since(start)
		if errors.Is(err, context.Canceled) {
			rep.Status = StatusCanceled
		}
		log.Printf("level=error stage=%s dataset=%s failed: %v", stage, ds.Name, err)
		metrics.RecordDataset(err)
		return rep
	}

	t := time.Now()
	table, err := r.readSource(ctx, ds.Source)
	metrics.RecordStep("read", t, err)
	if err != nil {
		return fail("read", err)
	}

	t = time.Now()
	plan, err := dataset.Compile(ds.Fields, ds.Aggregates,
		dataset.WithNormalizer(ds.Normalizer()),
		dataset.WithDropIncomplete(ds.DropIncomplete),
		dataset.WithClock(r.now),
	)
	if err != nil {
		metrics.RecordStep("build", t, err)
		return fail("build", err)
	}
	doc, diag, err := plan.Build(table.Rows, dataset.Meta{Title: ds.Title, Source: attribution(ds)})
	metrics.RecordStep("build", t, err)
	rep.Diagnostics = diag
	if err != nil {
		return fail("build", err)
	}

	metrics.RecordRows("read", diag.RowsRead)
	metrics.RecordRows("kept", diag.RowsKept)
	metrics.RecordRows("dropped", diag.RowsDropped)
	metrics.RecordRows("incomplete", diag.IncompleteRows)
	if !diag.Clean() {
		log.Printf("level=warn stage=map dataset=%s %s", ds.Name, diag)
	}

	t = time.Now()
	err = emit.Emit(doc, rep.Output, emitOptions(p, ds, plan))
	metrics.RecordStep("emit", t, err)
	if err != nil {
		return fail("emit", err)
	}

	rep.Status = StatusOK
	rep.Duration = time.Since(start)
	metrics.RecordDataset(nil)
	log.Printf("stage=emit dataset=%s path=%s rows=%d checksum=%s duration=%s",
		ds.Name, rep.Output, doc.Metadata.RowCount, shortChecksum(doc.Metadata.Checksum), rep.Duration.Round(time.Millisecond))
	return rep
}

func attribution(ds config.Dataset) string {
	if ds.Attribution != "" {
		return ds.Attribution
	}
	return filepath.Base(ds.Source.Label())
}

// emitOptions merges precision settings. Aggregates inherit the precision of
// the field they read; dataset-level entries win over both and apply to the
// row field and the aggregate of that name.
func emitOptions(p config.Pipeline, ds config.Dataset, plan *dataset.Plan) emit.Options {
	fields := plan.Precision()
	aggs := plan.AggregatePrecision()
	schema := plan.Schema()
	names := make(map[string]bool, len(ds.Aggregates))
	for _, a := range ds.Aggregates {
		names[a.Name] = true
	}
	for name, prec := range ds.Precision {
		if schema.Has(name) {
			fields[name] = prec
		}
		if names[name] {
			aggs[name] = prec
		}
	}
	return emit.Options{Default: p.Output.Precision, Precision: fields, Aggregates: aggs}
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
