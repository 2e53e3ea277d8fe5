package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// fakeClock is advanced by scriptSource on every read.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

// scriptSource replays a fixed list of lines. Every ReadLine advances the
// clock by step. Once the script is exhausted it either times out forever or
// returns io.EOF, depending on eof.
type scriptSource struct {
	lines   []string
	clock   *fakeClock
	step    time.Duration
	eof     bool
	reads   int
	written bytes.Buffer
	writes  int

	// onRead, when set, runs before each read with the 1-based read count.
	onRead   func(n int)
	readErr  error // returned once the script is exhausted, if set
	writeErr error
}

func (s *scriptSource) ReadLine() (string, error) {
	s.reads++
	if s.onRead != nil {
		s.onRead(s.reads)
	}
	s.clock.t = s.clock.t.Add(s.step)
	if len(s.lines) == 0 {
		if s.readErr != nil {
			return "", s.readErr
		}
		if s.eof {
			return "", io.EOF
		}
		return "", nil
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptSource) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes++
	return s.written.Write(p)
}

func newScript(step time.Duration, lines ...string) (*scriptSource, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return &scriptSource{lines: lines, clock: clock, step: step}, clock
}

// recordingObserver keeps every notification for inspection.
type recordingObserver struct {
	phases  []Phase
	headers [][]string
	rows    int
}

func (o *recordingObserver) PhaseChanged(s State) { o.phases = append(o.phases, s.Phase) }
func (o *recordingObserver) HeaderCaptured(cols []string) { o.headers = append(o.headers, cols) }
func (o *recordingObserver) RowAppended(s State) { o.rows = s.Rows }

func TestRunEndToEnd(t *testing.T) {
	src, clock := newScript(500*time.Millisecond,
		"LABEL,t,ppg",
		"Ready.",
		"DATA,0,512",
		"DATA,1,515",
		"DATA,2,509",
	)
	obs := &recordingObserver{}
	c := New(src, 2*time.Second, WithClock(clock.Now), WithObserver(obs))

	table, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := [][]string{{"t", "ppg"}, {"0", "512"}, {"1", "515"}, {"2", "509"}}
	if got := table.Records(); !reflect.DeepEqual(got, want) {
		t.Errorf("Records() = %q, want %q", got, want)
	}
	if got := src.written.String(); got != "s\n" {
		t.Errorf("start command = %q, want %q", got, "s\n")
	}
	if src.writes != 1 {
		t.Errorf("writes = %d, want 1", src.writes)
	}

	st := c.State()
	if st.Phase != Done || st.Outcome != DeadlineReached {
		t.Errorf("final state = %s/%s, want done/deadline reached", st.Phase, st.Outcome)
	}
	if !st.HeaderCaptured {
		t.Error("HeaderCaptured = false, want true")
	}
	if st.Rows != 3 {
		t.Errorf("Rows = %d, want 3", st.Rows)
	}
	if !reflect.DeepEqual(obs.phases, []Phase{Collecting, Done}) {
		t.Errorf("observed phases = %v, want [collecting done]", obs.phases)
	}
	if len(obs.headers) != 1 || obs.rows != 3 {
		t.Errorf("observer saw %d headers and %d rows, want 1 and 3", len(obs.headers), obs.rows)
	}
}

func TestCollectToleratesMalformedLines(t *testing.T) {
	src, clock := newScript(10*time.Millisecond,
		"Ready.",
		"",
		"CLEARDATA",
		"garbage",
		"DATA,1,2",
	)
	c := New(src, time.Second, WithClock(clock.Now))

	table, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if table.HasHeader() {
		t.Errorf("unexpected header %q", table.Header)
	}
	if want := [][]string{{"1", "2"}}; !reflect.DeepEqual(table.Rows, want) {
		t.Errorf("Rows = %q, want %q", table.Rows, want)
	}
}

func TestDataBeforeReadyIsDropped(t *testing.T) {
	src, clock := newScript(10*time.Millisecond,
		"DATA,early,1",
		"LABEL,a,b",
		"DATA,early,2",
		"Ready.",
		"DATA,late,3",
	)
	c := New(src, time.Second, WithClock(clock.Now))

	table, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := [][]string{{"a", "b"}, {"late", "3"}}
	if got := table.Records(); !reflect.DeepEqual(got, want) {
		t.Errorf("Records() = %q, want %q", got, want)
	}
}

func TestLateHeaderAcceptedOnce(t *testing.T) {
	src, clock := newScript(10*time.Millisecond,
		"Ready.",
		"DATA,1,2",
		"LABEL,x,y",
		"DATA,3,4",
		"LABEL,z,w",
	)
	c := New(src, time.Second, WithClock(clock.Now))

	table, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := [][]string{{"x", "y"}, {"1", "2"}, {"3", "4"}}
	if got := table.Records(); !reflect.DeepEqual(got, want) {
		t.Errorf("Records() = %q, want %q", got, want)
	}
}

func TestRowsNotValidatedAgainstHeader(t *testing.T) {
	src, clock := newScript(10*time.Millisecond,
		"LABEL,t,ppg",
		"Ready.",
		"DATA,1",
		"DATA,1,2,3",
		"DATA,",
	)
	c := New(src, time.Second, WithClock(clock.Now))

	table, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := [][]string{{"1"}, {"1", "2", "3"}, {""}}
	if !reflect.DeepEqual(table.Rows, want) {
		t.Errorf("Rows = %q, want %q", table.Rows, want)
	}
}

// Feature: ppglog, Property 5: At most one header, equal to the first seen
func TestHeaderCaptureIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		first := fmt.Sprintf("LABEL,%s", rapid.StringMatching(`[a-z]{1,5}(,[a-z]{1,5}){0,3}`).Draw(t, "first"))
		second := fmt.Sprintf("LABEL,%s", rapid.StringMatching(`[A-Z]{1,5}(,[A-Z]{1,5}){0,3}`).Draw(t, "second"))

		// Place each header either before or after the ready signal.
		firstAfterReady := rapid.Bool().Draw(t, "first_after_ready")
		secondAfterReady := firstAfterReady || rapid.Bool().Draw(t, "second_after_ready")

		var lines []string
		if !firstAfterReady {
			lines = append(lines, first)
		}
		if !secondAfterReady {
			lines = append(lines, second)
		}
		lines = append(lines, "Ready.")
		if firstAfterReady {
			lines = append(lines, first)
		}
		if secondAfterReady {
			lines = append(lines, second)
		}

		src, clock := newScript(time.Millisecond, lines...)
		c := New(src, time.Second, WithClock(clock.Now))
		table, err := c.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		records := table.Records()
		if len(records) != 1 {
			t.Fatalf("got %d records, want exactly the header: %q", len(records), records)
		}
		want := splitTagged(first)
		if !reflect.DeepEqual(records[0], want) {
			t.Fatalf("header = %q, want %q", records[0], want)
		}
	})
}

// splitTagged splits a tagged line and drops the tag.
func splitTagged(line string) []string {
	return strings.Split(line, ",")[1:]
}

// Feature: ppglog, Property 6: Rows keep arrival order
func TestRowOrderPreserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "n")
		lines := []string{"Ready."}
		var want [][]string
		for i := 0; i < n; i++ {
			v := rapid.IntRange(0, 1023).Draw(t, "value")
			lines = append(lines, fmt.Sprintf("DATA,%d,%d", i, v))
			want = append(want, []string{fmt.Sprint(i), fmt.Sprint(v)})
			if rapid.Bool().Draw(t, "noise") {
				lines = append(lines, rapid.SampledFrom([]string{"", "CLEARDATA", "Ready.", "# note"}).Draw(t, "noise_line"))
			}
		}

		src, clock := newScript(time.Millisecond, lines...)
		src.eof = true
		c := New(src, time.Hour, WithClock(clock.Now))
		table, err := c.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(table.Rows) != n {
			t.Fatalf("got %d rows, want %d", len(table.Rows), n)
		}
		for i := range want {
			if !reflect.DeepEqual(table.Rows[i], want[i]) {
				t.Fatalf("row %d = %q, want %q", i, table.Rows[i], want[i])
			}
		}
	})
}

// Feature: ppglog, Property 7: Collection stops within one read of the deadline
func TestCollectStopsAtDeadline(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		duration := time.Duration(rapid.IntRange(1, 30).Draw(t, "duration_s")) * time.Second
		step := time.Duration(rapid.IntRange(10, 1000).Draw(t, "step_ms")) * time.Millisecond

		src, clock := newScript(step, "Ready.")
		src.onRead = func(n int) {
			if n == 1 {
				return
			}
			src.lines = append(src.lines, fmt.Sprintf("DATA,%d,1", n))
		}
		c := New(src, duration, WithClock(clock.Now))
		if _, err := c.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}

		st := c.State()
		if st.Outcome != DeadlineReached {
			t.Fatalf("outcome = %s, want deadline reached", st.Outcome)
		}
		end := clock.Now()
		if end.Before(st.Deadline) {
			t.Fatalf("stopped at %v, before deadline %v", end, st.Deadline)
		}
		if end.After(st.Deadline.Add(step)) {
			t.Fatalf("stopped at %v, more than one read (%v) past deadline %v", end, step, st.Deadline)
		}
	})
}

// Feature: ppglog, Property 8: Interrupting collection keeps exactly the rows so far
func TestInterruptDuringCollectKeepsRows(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(0, 30).Draw(t, "k")
		lines := []string{"LABEL,t,ppg", "Ready."}
		for i := 0; i < k+5; i++ {
			lines = append(lines, fmt.Sprintf("DATA,%d,500", i))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src, clock := newScript(time.Millisecond, lines...)
		// Reads 1 and 2 are the header and ready lines; the interrupt lands
		// while read k+3 is in flight.
		src.onRead = func(n int) {
			if n == k+3 {
				cancel()
			}
		}
		c := New(src, time.Hour, WithClock(clock.Now))

		table, err := c.Run(ctx)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if table == nil {
			t.Fatal("expected partial table, got nil")
		}
		if len(table.Rows) != k {
			t.Fatalf("got %d rows, want %d", len(table.Rows), k)
		}
		if !table.HasHeader() {
			t.Fatal("header lost on interrupt")
		}
		if st := c.State(); st.Phase != Done || st.Outcome != Interrupted {
			t.Fatalf("state = %s/%s, want done/interrupted", st.Phase, st.Outcome)
		}
	})
}

func TestInterruptDuringHandshakeAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, clock := newScript(time.Millisecond, "LABEL,t,ppg", "CLEARDATA")
	src.onRead = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	c := New(src, time.Second, WithClock(clock.Now))

	table, err := c.Run(ctx)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if table != nil {
		t.Errorf("expected no table, got %+v", table)
	}
	if src.writes != 0 {
		t.Errorf("start command sent %d times, want 0", src.writes)
	}
	if st := c.State(); st.Outcome != Interrupted {
		t.Errorf("outcome = %s, want interrupted", st.Outcome)
	}
}

func TestStreamEndDuringHandshake(t *testing.T) {
	src, clock := newScript(time.Millisecond, "LABEL,t,ppg")
	src.eof = true
	c := New(src, time.Second, WithClock(clock.Now))

	table, err := c.Run(context.Background())
	if !errors.Is(err, ErrNoReadySignal) {
		t.Fatalf("err = %v, want ErrNoReadySignal", err)
	}
	if table != nil {
		t.Errorf("expected no table, got %+v", table)
	}
}

func TestStreamEndDuringCollectKeepsRows(t *testing.T) {
	src, clock := newScript(time.Millisecond, "Ready.", "DATA,1", "DATA,2")
	src.eof = true
	c := New(src, time.Hour, WithClock(clock.Now))

	table, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(table.Rows))
	}
	if st := c.State(); st.Outcome != StreamEnded {
		t.Errorf("outcome = %s, want stream ended", st.Outcome)
	}
}

func TestReadErrorDuringCollectReturnsPartialTable(t *testing.T) {
	boom := errors.New("port unplugged")
	src, clock := newScript(time.Millisecond, "Ready.", "DATA,1")
	src.readErr = boom
	c := New(src, time.Hour, WithClock(clock.Now))

	table, err := c.Run(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("err = %v, want *DeviceError", err)
	}
	if devErr.Op != "read" || devErr.Phase != Collecting {
		t.Errorf("DeviceError = %+v, want read while collecting", devErr)
	}
	if !errors.Is(err, boom) {
		t.Errorf("DeviceError does not wrap cause: %v", err)
	}
	if table == nil || len(table.Rows) != 1 {
		t.Fatalf("expected partial table with 1 row, got %+v", table)
	}
}

func TestStartCommandWriteFailure(t *testing.T) {
	src, clock := newScript(time.Millisecond, "Ready.")
	src.writeErr = errors.New("write timeout")
	c := New(src, time.Second, WithClock(clock.Now))

	table, err := c.Run(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Op != "write" {
		t.Fatalf("err = %v, want write DeviceError", err)
	}
	if table != nil {
		t.Errorf("expected no table, got %+v", table)
	}
}

func TestPhaseGuards(t *testing.T) {
	src, clock := newScript(time.Millisecond)
	c := New(src, time.Second, WithClock(clock.Now))
	if err := c.Collect(context.Background()); err == nil {
		t.Error("Collect before handshake: expected error, got nil")
	}

	src, clock = newScript(time.Millisecond, "Ready.")
	c = New(src, time.Second, WithClock(clock.Now))
	if err := c.Handshake(context.Background()); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if err := c.Handshake(context.Background()); err == nil {
		t.Error("second Handshake: expected error, got nil")
	}
	if want := clock.Now().Add(time.Second); !c.State().Deadline.Equal(want) {
		t.Errorf("Deadline = %v, want %v", c.State().Deadline, want)
	}
}
