package tui

import (
	"math"
	"strconv"
	"strings"

	"github.com/fakeyudi/ppglog/internal/capture"
)

// ColumnStats summarizes the numeric content of one table column.
type ColumnStats struct {
	Name    string
	Numeric int // count of cells that parsed as numbers
	Min     float64
	Max     float64
	Mean    float64
}

// Stats computes per-column statistics. Columns are named from the header
// when there is one, otherwise "col1", "col2", ... Rows shorter than the
// widest row simply contribute nothing to the missing columns.
func Stats(t *capture.Table) []ColumnStats {
	n := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	if len(t.Rows) == 0 {
		return nil
	}

	stats := make([]ColumnStats, n)
	sums := make([]float64, n)
	for i := range stats {
		if i < len(t.Header) {
			stats[i].Name = t.Header[i]
		} else {
			stats[i].Name = "col" + strconv.Itoa(i+1)
		}
		stats[i].Min = math.Inf(1)
		stats[i].Max = math.Inf(-1)
	}
	for _, r := range t.Rows {
		for i, f := range r {
			v, ok := parseNumber(f)
			if !ok {
				continue
			}
			s := &stats[i]
			s.Numeric++
			sums[i] += v
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
		}
	}
	for i := range stats {
		if stats[i].Numeric == 0 {
			stats[i].Min, stats[i].Max = 0, 0
			continue
		}
		stats[i].Mean = sums[i] / float64(stats[i].Numeric)
	}
	return stats
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// columnValues returns the numeric cells of column col in row order.
func columnValues(t *capture.Table, col int) []float64 {
	var out []float64
	for _, r := range t.Rows {
		if col >= len(r) {
			continue
		}
		if v, ok := parseNumber(r[col]); ok {
			out = append(out, v)
		}
	}
	return out
}

// defaultTraceColumn picks the last numeric column, which for this device is
// the sensor reading rather than the timestamp.
func defaultTraceColumn(stats []ColumnStats) int {
	for i := len(stats) - 1; i >= 0; i-- {
		if stats[i].Numeric > 0 {
			return i
		}
	}
	return 0
}

func nextNumericColumn(stats []ColumnStats, cur int) int {
	for step := 1; step <= len(stats); step++ {
		i := (cur + step) % len(stats)
		if stats[i].Numeric > 0 {
			return i
		}
	}
	return cur
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a single line of at most width block
// characters. Longer inputs are averaged into width buckets.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	buckets := values
	if len(values) > width {
		buckets = make([]float64, width)
		for b := 0; b < width; b++ {
			lo := b * len(values) / width
			hi := (b + 1) * len(values) / width
			var sum float64
			for _, v := range values[lo:hi] {
				sum += v
			}
			buckets[b] = sum / float64(hi-lo)
		}
	}

	lo, hi := buckets[0], buckets[0]
	for _, v := range buckets {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	var sb strings.Builder
	for _, v := range buckets {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		sb.WriteRune(sparkLevels[idx])
	}
	return sb.String()
}
