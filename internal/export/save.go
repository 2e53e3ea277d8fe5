package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fakeyudi/ppglog/internal/capture"
	"github.com/fakeyudi/ppglog/internal/fsutil"
)

// maxNameCollisions bounds the "_N" suffixes tried before Save gives up.
const maxNameCollisions = 1000

// FileName returns "<prefix>_YYYYMMDD_HHMMSS<ext>" for the given time.
func FileName(prefix string, at time.Time, ext string) string {
	if prefix == "" {
		prefix = "ppg"
	}
	return prefix + "_" + at.Format("20060102_150405") + ext
}

// withSuffix turns "ppg_20260314_150926.csv" into "ppg_20260314_150926_2.csv".
func withSuffix(name string, n int) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}

// Save renders t and writes it to dir/<FileName>. An existing table is never
// replaced: when the name is taken, "_1", "_2", ... is appended before the
// extension. It returns the path written.
func Save(dir, prefix string, at time.Time, r TableRenderer, t *capture.Table) (string, error) {
	data, err := r.Render(t)
	if err != nil {
		return "", fmt.Errorf("render table: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := FileName(prefix, at, r.Ext())
	for n := 0; n <= maxNameCollisions; n++ {
		candidate := name
		if n > 0 {
			candidate = withSuffix(name, n)
		}
		path := filepath.Join(dir, candidate)
		err := fsutil.WriteNewFile(path, data, 0o644)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("write output file: %w", err)
		}
	}
	return "", fmt.Errorf("write output file: %s and %d numbered variants already exist", name, maxNameCollisions)
}
