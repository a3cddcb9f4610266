// Package document loads style descriptors from YAML, JSON and TOML files.
//
// Document is either a single descriptor or a list of them. TOML has no top
// level arrays, list there is written as array of tables named
// "descriptors". Numbers are always float64, maps are map[string]any.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"stylec/style"
)

// ErrUnsupported is returned for unknown file extensions.
var ErrUnsupported = errors.New("unsupported document format")

// Format of the document.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	TOML Format = "toml"
)

// FormatOf detects format by file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	case ".toml":
		return TOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(path))
}

// Load reads descriptors from file.
func Load(path string) ([]style.Descriptor, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read document: %w", err)
	}
	descs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return descs, nil
}

// Parse decodes document.
func Parse(data []byte, format Format) ([]style.Descriptor, error) {
	var (
		doc any
		err error
	)
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&doc)
	case TOML:
		var table map[string]any
		if _, err = toml.Decode(string(data), &table); err == nil {
			doc = table
			if list, ok := table["descriptors"]; ok && len(table) == 1 {
				doc = list
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, format)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", format, err)
	}

	normalized, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	return style.Normalize(normalized)
}

// normalize converts decoded values to map[string]any, []any and float64.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("%v: %w", k, err)
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []map[string]any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(val))
		for i, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, n)
		}
		return out, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", val, err)
		}
		return f, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case float32:
		return float64(val), nil
	}
	return v, nil
}
