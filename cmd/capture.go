package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/ppglog/internal/capture"
	"github.com/fakeyudi/ppglog/internal/config"
	"github.com/fakeyudi/ppglog/internal/device"
	"github.com/fakeyudi/ppglog/internal/export"
	"github.com/fakeyudi/ppglog/internal/session"
)

var (
	capturePort      string
	captureBaud      int
	captureDuration  string
	captureFormat    string
	captureOutputDir string
	capturePrefix    string
	captureReplay    string
	captureSimulate  bool
	captureWait      bool
	captureForce     bool
)

// lineDevice is a capture source together with its lifecycle.
type lineDevice interface {
	capture.LineSource
	Name() string
	Close() error
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Wait for the device, send the start command and record data rows",
	Long: `Opens the sensor, waits for its ready banner, sends the start command and
records DATA rows until the configured duration has elapsed. Ctrl-C during
recording stops early and still saves what was collected.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := captureConfig(cmd)
		if err != nil {
			return err
		}
		renderer, err := export.NewRenderer(c.Format)
		if err != nil {
			return err
		}

		store, err := session.NewStore()
		if err != nil {
			return err
		}
		rec := session.NewCapture(sourceName(c), c.OutputDir, os.Getpid(), time.Now())
		if err := store.Claim(rec, captureForce); err != nil {
			return err
		}
		defer func() {
			if err := store.Delete(); err != nil {
				slog.Warn("could not remove capture record", "error", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := newPrinter(cmd.OutOrStdout())

		if captureWait && captureReplay == "" && !captureSimulate {
			out.info("Waiting for %s to appear...", c.Port)
			if err := device.WaitForPort(ctx, c.Port); err != nil {
				if ctx.Err() != nil {
					out.warn("Interrupted while waiting for the device; nothing saved.")
					return nil
				}
				return err
			}
		}

		src, err := openDevice(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				out.warn("Interrupted while opening the device; nothing saved.")
				return nil
			}
			return err
		}
		defer src.Close()

		tracker := newProgress(out, store, rec)
		out.info("Waiting for %s to report ready...", src.Name())

		ctrl := capture.New(src, c.Duration.D(),
			capture.WithLogger(slog.Default().With("capture_id", rec.ID)),
			capture.WithObserver(tracker))
		table, runErr := ctrl.Run(ctx)
		if table == nil {
			if errors.Is(runErr, capture.ErrInterrupted) {
				out.warn("Interrupted before the device was ready; nothing saved.")
				return nil
			}
			return runErr
		}

		path, err := export.Save(c.OutputDir, c.FilePrefix, rec.StartTime, renderer, table)
		if err != nil {
			return err
		}

		st := ctrl.State()
		out.done("%d rows, %s", st.Rows, describeOutcome(st.Outcome))
		fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", path)

		// A device failure mid-collection still leaves a valid partial table,
		// which is now on disk. Report the failure after the path.
		return runErr
	},
}

// captureConfig applies command flags on top of the merged configuration.
func captureConfig(cmd *cobra.Command) (config.Config, error) {
	c := GetConfig()
	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Port = capturePort
	}
	if flags.Changed("baud") {
		c.Baud = captureBaud
	}
	if flags.Changed("duration") {
		d, err := config.ParseDuration(captureDuration)
		if err != nil {
			return c, err
		}
		c.Duration = d
	}
	if flags.Changed("format") {
		c.Format = captureFormat
	}
	if flags.Changed("output-dir") {
		c.OutputDir = captureOutputDir
	}
	if flags.Changed("prefix") {
		c.FilePrefix = capturePrefix
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// sourceName labels the capture record before the device is open.
func sourceName(c config.Config) string {
	switch {
	case captureReplay != "":
		return captureReplay
	case captureSimulate:
		return "simulator"
	default:
		return c.Port
	}
}

func openDevice(ctx context.Context, c config.Config) (lineDevice, error) {
	switch {
	case captureReplay != "":
		return device.OpenReplay(captureReplay)
	case captureSimulate:
		return device.NewSimulator(device.DefaultSimConfig()), nil
	default:
		return device.OpenSerial(ctx, device.SerialConfig{
			Port:        c.Port,
			Baud:        c.Baud,
			ReadTimeout: c.ReadTimeout.D(),
			SettleDelay: c.SettleDelay.D(),
		})
	}
}

func describeOutcome(o capture.Outcome) string {
	switch o {
	case capture.DeadlineReached:
		return "duration elapsed"
	case capture.Interrupted:
		return "stopped early"
	case capture.StreamEnded:
		return "device stream ended"
	case capture.DeviceFailed:
		return "device failed"
	}
	return o.String()
}

// progress persists the capture record as the controller advances and tells
// the operator about phase changes.
type progress struct {
	out      *printer
	store    session.Store
	rec      *session.Capture
	interval time.Duration
	lastSave time.Time
}

func newProgress(out *printer, store session.Store, rec *session.Capture) *progress {
	return &progress{out: out, store: store, rec: rec, interval: time.Second}
}

func (p *progress) PhaseChanged(s capture.State) {
	p.update(s)
	p.persist()
	if s.Phase == capture.Collecting {
		p.out.info("Device ready. Recording until %s (Ctrl-C to stop early).", s.Deadline.Format("15:04:05"))
	}
}

func (p *progress) HeaderCaptured(columns []string) {
	p.rec.HeaderCaptured = true
	p.persist()
	p.out.detail("Columns: %v", columns)
}

func (p *progress) RowAppended(s capture.State) {
	p.update(s)
	if time.Since(p.lastSave) >= p.interval {
		p.persist()
	}
}

func (p *progress) update(s capture.State) {
	p.rec.Phase = s.Phase.String()
	p.rec.HeaderCaptured = s.HeaderCaptured
	p.rec.Rows = s.Rows
	if !s.Deadline.IsZero() {
		d := s.Deadline
		p.rec.Deadline = &d
	}
}

func (p *progress) persist() {
	p.rec.UpdatedAt = time.Now()
	p.lastSave = p.rec.UpdatedAt
	if err := p.store.Save(p.rec); err != nil {
		slog.Warn("could not update capture record", "error", err)
	}
}

func init() {
	f := captureCmd.Flags()
	f.StringVarP(&capturePort, "port", "p", "", "serial device path (overrides config)")
	f.IntVarP(&captureBaud, "baud", "b", 0, "baud rate (overrides config)")
	f.StringVarP(&captureDuration, "duration", "d", "", `recording window, e.g. "65s" or "90" (overrides config)`)
	f.StringVarP(&captureFormat, "format", "f", "", "output format: csv, json or yaml (overrides config)")
	f.StringVarP(&captureOutputDir, "output-dir", "o", "", "directory for the saved table (overrides config)")
	f.StringVar(&capturePrefix, "prefix", "", "output file name prefix (overrides config)")
	f.StringVar(&captureReplay, "replay", "", "read a recorded device log instead of the serial port")
	f.BoolVar(&captureSimulate, "simulate", false, "use a simulated sensor instead of the serial port")
	f.BoolVarP(&captureWait, "wait", "w", false, "wait for the serial device to be plugged in")
	f.BoolVar(&captureForce, "force", false, "start even if another capture appears to be running")
	captureCmd.MarkFlagsMutuallyExclusive("replay", "simulate")
	rootCmd.AddCommand(captureCmd)
}
