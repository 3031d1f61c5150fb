package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"hermannm.dev/wrap"

	"observatory/internal/fault"
)

// Load reads a pipeline file. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON. Relative paths inside the file (output dir,
// source paths) are resolved against the file's directory.
func Load(path string) (Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fault.Config(path, wrap.Error(err, "read pipeline file"))
	}

	var p Pipeline
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p, err = DecodeYAML(raw)
	default:
		p, err = DecodeJSON(raw)
	}
	if err != nil {
		return Pipeline{}, fault.Config(path, err)
	}

	p.resolvePaths(filepath.Dir(path))
	return p, nil
}

// DecodeJSON parses a JSON pipeline.
func DecodeJSON(raw []byte) (Pipeline, error) {
	var p Pipeline
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, wrap.Error(err, "decode pipeline JSON")
	}
	return p, nil
}

// DecodeYAML parses a YAML pipeline. The document is converted to JSON first
// so that the json tags and the enum unmarshalers drive both formats.
func DecodeYAML(raw []byte) (Pipeline, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Pipeline{}, wrap.Error(err, "decode pipeline YAML")
	}
	doc, err := jsonCompatible(doc)
	if err != nil {
		return Pipeline{}, wrap.Error(err, "decode pipeline YAML")
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return Pipeline{}, wrap.Error(err, "convert pipeline YAML")
	}
	return DecodeJSON(b)
}

// jsonCompatible rewrites map[any]any nodes, which yaml produces for
// non-string keys, into map[string]any.
func jsonCompatible(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, x := range t {
			c, err := jsonCompatible(x)
			if err != nil {
				return nil, err
			}
			t[k] = c
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			c, err := jsonCompatible(x)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = c
		}
		return out, nil
	case []any:
		for i, x := range t {
			c, err := jsonCompatible(x)
			if err != nil {
				return nil, err
			}
			t[i] = c
		}
		return t, nil
	default:
		return v, nil
	}
}

func (p *Pipeline) resolvePaths(base string) {
	if base == "" || base == "." {
		return
	}
	if p.Output.Dir != "" && !filepath.IsAbs(p.Output.Dir) {
		p.Output.Dir = filepath.Join(base, p.Output.Dir)
	}
	for i := range p.Datasets {
		src := &p.Datasets[i].Source
		if src.Path != "" && !filepath.IsAbs(src.Path) && !IsRemote(src.Path) {
			src.Path = filepath.Join(base, src.Path)
		}
	}
}

// IsRemote reports whether a source path is an http(s) URL.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
