// Package export serializes captured tables to disk and reads them back.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/ppglog/internal/capture"
)

// TableRenderer serializes a Table to bytes.
type TableRenderer interface {
	Render(t *capture.Table) ([]byte, error)
	// Ext returns the file extension, including the leading dot.
	Ext() string
}

// NewRenderer returns the renderer for format.
func NewRenderer(format string) (TableRenderer, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		return &CSVRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "yaml", "yml":
		return &YAMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: csv, json, yaml)", format)
	}
}

// CSVRenderer writes one row per line with fields joined by commas, header
// first. Fields are written verbatim: values containing commas are not quoted,
// matching the device protocol which has no quoting either.
type CSVRenderer struct{}

func (r *CSVRenderer) Render(t *capture.Table) ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range t.Records() {
		buf.WriteString(strings.Join(rec, ","))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (r *CSVRenderer) Ext() string { return ".csv" }

// JSONRenderer renders the table as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(t *capture.Table) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

func (r *JSONRenderer) Ext() string { return ".json" }

// YAMLRenderer renders the table as YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(t *capture.Table) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *YAMLRenderer) Ext() string { return ".yaml" }
