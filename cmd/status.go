package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/ppglog/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the capture currently in progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore()
		if err != nil {
			return err
		}

		c, err := store.Load()
		var stale *session.StaleError
		switch {
		case errors.Is(err, session.ErrNoCapture):
			cmd.Println("no active capture")
			return nil
		case errors.As(err, &stale):
			cmd.Printf("Stale capture record from pid %d (process no longer running)\n", c.PID)
		case err != nil:
			return err
		}

		cmd.Printf("Source: %s\n", c.Source)
		cmd.Printf("Phase: %s\n", c.Phase)
		cmd.Printf("Started: %s\n", c.StartTime.Format(time.RFC3339))
		cmd.Printf("Elapsed: %s\n", time.Since(c.StartTime).Round(time.Second).String())
		if c.Deadline != nil {
			remaining := time.Until(*c.Deadline).Round(time.Second)
			if remaining < 0 {
				remaining = 0
			}
			cmd.Printf("Deadline: %s (%s left)\n", c.Deadline.Format(time.RFC3339), remaining)
		}
		cmd.Printf("Header: %v\n", c.HeaderCaptured)
		cmd.Printf("Rows: %d\n", c.Rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
