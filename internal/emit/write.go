package emit

import (
	"os"
	"path/filepath"

	"hermannm.dev/wrap"

	"observatory/internal/dataset"
	"observatory/internal/fault"
)

// Emit renders doc and writes it to path.
//
// Errors:
//   - A destination fault when the document cannot be encoded, the parent
//     directory cannot be created or the file cannot be written. A previous
//     file at path is left untouched on failure.
func Emit(doc dataset.Document, path string, opts Options) error {
	data, err := Render(doc, opts)
	if err != nil {
		return fault.Destination(path, wrap.Error(err, "render document"))
	}
	return WriteFile(path, data)
}

// WriteFile replaces path with data atomically: it writes a temp file in the
// same directory, syncs it and renames it over path. Parent directories are
// created.
func WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fault.Destination(path, wrap.Error(err, "create output directory"))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fault.Destination(path, wrap.Error(err, "create temp file"))
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fault.Destination(path, wrap.Error(err, "write temp file"))
	}
	if err = tmp.Sync(); err != nil {
		return fault.Destination(path, wrap.Error(err, "sync temp file"))
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fault.Destination(path, wrap.Error(err, "chmod temp file"))
	}
	if err = tmp.Close(); err != nil {
		return fault.Destination(path, wrap.Error(err, "close temp file"))
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fault.Destination(path, wrap.Error(err, "replace output file"))
	}
	return nil
}
