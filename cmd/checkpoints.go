package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/social-harvester/internal/checkpoint"
)

// newCheckpointsCmd creates the command that prints the stored checkpoints.
func newCheckpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoints",
		Short: "List the per-stream checkpoints.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			checkpoints, err := appInstance.Checkpoints().List(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Stream", "Last Timestamp", "Last Run"})
			for _, cp := range checkpoints {
				t.AppendRow(table.Row{cp.Key, formatTimestamp(cp.LastTimestamp), formatOutcome(cp.LastSucceeded)})
			}
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}
}

func formatTimestamp(ts int64) string {
	if ts == checkpoint.NeverRun {
		return "never run"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func formatOutcome(succeeded bool) string {
	if succeeded {
		return "succeeded"
	}
	return "failed"
}
