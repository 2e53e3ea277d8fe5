package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/ppglog/internal/capture"
)

// TableParser deserializes a saved table.
type TableParser interface {
	Parse(data []byte) (*capture.Table, error)
}

// ParserFor picks a parser from the file extension of path.
func ParserFor(path string) TableParser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return &JSONParser{}
	case ".yaml", ".yml":
		return &YAMLParser{}
	default:
		return &CSVParser{}
	}
}

// CSVParser reads the naive comma format written by CSVRenderer. CSV carries
// no header marker, so the first row is taken as the header when any of its
// fields is not a number.
type CSVParser struct{}

func (p *CSVParser) Parse(data []byte) (*capture.Table, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimRight(text, "\n")

	var records [][]string
	if text != "" {
		for _, line := range strings.Split(text, "\n") {
			records = append(records, strings.Split(line, ","))
		}
	}
	hasHeader := len(records) > 0 && !allNumeric(records[0])
	return capture.TableFromRecords(records, hasHeader), nil
}

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

func allNumeric(fields []string) bool {
	for _, f := range fields {
		if !numericRegex.MatchString(strings.TrimSpace(f)) {
			return false
		}
	}
	return true
}

// JSONParser parses a table written by JSONRenderer.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*capture.Table, error) {
	var t capture.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse JSON table: %w", err)
	}
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	return &t, nil
}

// YAMLParser parses a table written by YAMLRenderer.
type YAMLParser struct{}

func (p *YAMLParser) Parse(data []byte) (*capture.Table, error) {
	var t capture.Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse YAML table: %w", err)
	}
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	return &t, nil
}
