package capture

// Table is the accumulated result of a capture: an optional header followed
// by data rows in arrival order.
type Table struct {
	Header []string   `json:"header,omitempty" yaml:"header,omitempty"`
	Rows   [][]string `json:"rows" yaml:"rows"`
}

// HasHeader reports whether a header row has been captured.
func (t *Table) HasHeader() bool {
	return t.Header != nil
}

// AppendHeader stores columns as the header unless one was already captured.
// It reports whether the header was accepted.
func (t *Table) AppendHeader(columns []string) bool {
	if t.HasHeader() {
		return false
	}
	t.Header = append([]string{}, columns...)
	return true
}

// AppendRow appends values as a new data row. No validation is done against
// the header width.
func (t *Table) AppendRow(values []string) {
	t.Rows = append(t.Rows, append([]string{}, values...))
}

// Records returns all rows with the header first, if present.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.Len())
	if t.HasHeader() {
		out = append(out, t.Header)
	}
	return append(out, t.Rows...)
}

// Len returns the total row count including the header.
func (t *Table) Len() int {
	n := len(t.Rows)
	if t.HasHeader() {
		n++
	}
	return n
}

// TableFromRecords rebuilds a Table from rows where the first row is the
// header when hasHeader is set.
func TableFromRecords(records [][]string, hasHeader bool) *Table {
	t := &Table{Rows: [][]string{}}
	for i, rec := range records {
		if i == 0 && hasHeader {
			t.AppendHeader(rec)
			continue
		}
		t.AppendRow(rec)
	}
	return t
}
