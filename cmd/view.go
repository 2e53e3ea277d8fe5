package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/ppglog/internal/capture"
	"github.com/fakeyudi/ppglog/internal/export"
	"github.com/fakeyudi/ppglog/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "View a saved capture table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		t, err := export.ParserFor(path).Parse(data)
		if err != nil {
			return err
		}

		// The TUI needs a terminal on stdout; fall back to plain output otherwise.
		if plainOutput || !isTerminal(cmd.OutOrStdout()) {
			printTable(cmd.OutOrStdout(), t)
			return nil
		}
		return tui.Run(t, path)
	},
}

// printTable writes a plain-text summary followed by the rows.
func printTable(w io.Writer, t *capture.Table) {
	fmt.Fprintln(w, "## Summary")
	if t.HasHeader() {
		fmt.Fprintf(w, "  Columns:  %s\n", strings.Join(t.Header, ", "))
	} else {
		fmt.Fprintln(w, "  Columns:  (no header)")
	}
	fmt.Fprintf(w, "  Rows:     %d\n", len(t.Rows))
	for _, s := range tui.Stats(t) {
		if s.Numeric == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-9s min=%g max=%g mean=%.2f\n", s.Name+":", s.Min, s.Max, s.Mean)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Rows")
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, r := range t.Records() {
		fmt.Fprintf(w, "  %s\n", strings.Join(r, ","))
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
