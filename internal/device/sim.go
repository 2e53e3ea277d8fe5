package device

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimConfig controls the simulated sensor.
type SimConfig struct {
	// Interval between samples once recording starts.
	Interval time.Duration
	// Samples to emit before the simulated device stops. Zero means it keeps
	// going until closed.
	Samples int
	// ReadyEvery is how often the ready banner repeats while waiting for the
	// start command.
	ReadyEvery time.Duration
	Seed       int64
}

// DefaultSimConfig mimics a 50 Hz pulse sensor.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Interval:   20 * time.Millisecond,
		ReadyEvery: 500 * time.Millisecond,
		Seed:       time.Now().UnixNano(),
	}
}

// Simulator behaves like the sensor firmware: it clears the sheet, announces
// its columns, repeats a ready banner until it receives the start command and
// then streams samples of a synthetic pulse waveform.
type Simulator struct {
	*LineReader
	cfg SimConfig
	pr  *io.PipeReader
	pw  *io.PipeWriter

	startOnce sync.Once
	start     chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

type simPort struct {
	io.Reader
	s *Simulator
}

func (p simPort) Write(b []byte) (int, error) {
	if bytes.Contains(b, []byte("s")) {
		p.s.startOnce.Do(func() { close(p.s.start) })
	}
	return len(b), nil
}

// NewSimulator starts the simulated device.
func NewSimulator(cfg SimConfig) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSimConfig().Interval
	}
	if cfg.ReadyEvery <= 0 {
		cfg.ReadyEvery = DefaultSimConfig().ReadyEvery
	}
	pr, pw := io.Pipe()
	s := &Simulator{
		cfg:   cfg,
		pr:    pr,
		pw:    pw,
		start: make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.LineReader = NewLineReader(simPort{Reader: pr, s: s}, false)
	go s.run()
	return s
}

func (s *Simulator) run() {
	defer s.pw.Close()

	if !s.emit("CLEARDATA", "LABEL,t,ppg", "# PPG sensor booting") {
		return
	}

	ticker := time.NewTicker(s.cfg.ReadyEvery)
	defer ticker.Stop()
	if !s.emit("Ready. Send 's' to start") {
		return
	}
wait:
	for {
		select {
		case <-s.done:
			return
		case <-s.start:
			break wait
		case <-ticker.C:
			if !s.emit("Ready. Send 's' to start") {
				return
			}
		}
	}

	if !s.emit("# START") {
		return
	}
	rng := rand.New(rand.NewSource(s.cfg.Seed))
	sampler := time.NewTicker(s.cfg.Interval)
	defer sampler.Stop()
	for i := 0; s.cfg.Samples == 0 || i < s.cfg.Samples; i++ {
		ms := int64(i) * s.cfg.Interval.Milliseconds()
		if !s.emit(fmt.Sprintf("DATA,%d,%d", ms, pulse(ms, rng))) {
			return
		}
		select {
		case <-s.done:
			return
		case <-sampler.C:
		}
	}
}

// pulse returns a 10-bit ADC reading of a ~72 bpm waveform with noise.
func pulse(ms int64, rng *rand.Rand) int {
	t := float64(ms) / 1000
	v := 512 + 120*math.Sin(2*math.Pi*1.2*t) + 30*math.Sin(2*math.Pi*2.4*t+0.6) + rng.NormFloat64()*4
	return int(math.Max(0, math.Min(1023, v)))
}

func (s *Simulator) emit(lines ...string) bool {
	for _, l := range lines {
		if _, err := io.WriteString(s.pw, l+"\r\n"); err != nil {
			return false
		}
	}
	return true
}

// Name identifies the source in logs and capture records.
func (s *Simulator) Name() string {
	return "simulator"
}

// Close stops the simulated device.
func (s *Simulator) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.pr.Close()
	})
	return nil
}
