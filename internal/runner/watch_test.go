package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"observatory/internal/config"
)

func TestWatchedPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	shared := filepath.Join(dir, "shared.csv")

	a := lossDataset("a")
	a.Source.Path = shared
	b := lossDataset("b")
	b.Source.Path = shared
	remote := lossDataset("remote")
	remote.Source = config.Source{Kind: "html", Path: "https://example.org/table.html"}
	db := lossDataset("db")
	db.Source = config.Source{Kind: "sql", Driver: "sqlite", DSN: "x.db", Query: "select 1"}

	got := watchedPaths([]config.Dataset{a, b, remote, db})
	assert.Equal(t, map[string][]string{shared: {"a", "b"}}, got)
}

func TestWatch_RerunsChangedDataset(t *testing.T) {
	dir := t.TempDir()
	csvA := filepath.Join(dir, "a.csv")
	csvB := filepath.Join(dir, "b.csv")
	// Replace by rename so the watcher sees one complete change.
	write := func(path, body string) {
		tmp := path + ".tmp"
		require.NoError(t, os.WriteFile(tmp, []byte("REGIÓN,PÉRDIDA 2024 (ha)\n"+body), 0o644))
		require.NoError(t, os.Rename(tmp, path))
	}
	write(csvA, "LORETO,100\n")
	write(csvB, "UCAYALI,5\n")

	a := lossDataset("a")
	a.Source.Path = csvA
	b := lossDataset("b")
	b.Source.Path = csvB
	out := filepath.Join(dir, "out")
	p := config.Pipeline{
		Job:      "j",
		Output:   config.Output{Dir: out},
		Runtime:  config.RuntimeConfig{WatchDebounceMillis: 20},
		Datasets: []config.Dataset{a, b},
	}

	runs := make(chan Report, 4)
	r := &Runner{onWatchRun: func(rep Report) { runs <- rep }}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, p) }()

	require.Eventually(t, func() bool {
		_, errA := os.Stat(filepath.Join(out, "a.json"))
		_, errB := os.Stat(filepath.Join(out, "b.json"))
		return errA == nil && errB == nil
	}, 5*time.Second, 10*time.Millisecond)

	// The watcher is registered after the first run; give it a moment.
	time.Sleep(100 * time.Millisecond)
	write(csvA, "LORETO,250\n")

	select {
	case rep := <-runs:
		require.Len(t, rep.Datasets, 1)
		assert.Equal(t, "a", rep.Datasets[0].Name)
		assert.Equal(t, StatusOK, rep.Datasets[0].Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no run after source change")
	}

	doc := readDocument(t, filepath.Join(out, "a.json"))
	assert.Equal(t, 250.0, doc.KPI["totalLoss2024"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatch_ConfigErrorReturnsImmediately(t *testing.T) {
	t.Parallel()

	err := (&Runner{}).Watch(context.Background(), config.Pipeline{})
	require.Error(t, err)
}
