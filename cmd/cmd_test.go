package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// isolate points every config and state location at a fresh temp dir, makes
// it the working directory and clears flag values left over from earlier
// commands.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_DATA_HOME", tmp)
	for _, name := range []string{
		"PPGLOG_PORT", "PPGLOG_BAUD", "PPGLOG_DURATION", "PPGLOG_READ_TIMEOUT",
		"PPGLOG_SETTLE_DELAY", "PPGLOG_OUTPUT_DIR", "PPGLOG_FILE_PREFIX",
		"PPGLOG_FORMAT", "PPGLOG_LOG_LEVEL", "PPGLOG_LOG_FORMAT",
	} {
		t.Setenv(name, "")
	}
	resetFlags(rootCmd)
	return tmp
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
