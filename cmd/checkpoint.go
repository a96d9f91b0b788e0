package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or discard the saved progress of a paused run",
}

var checkpointStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the paused run, if any",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		out := cmd.OutOrStdout()
		info, err := env.Checkpoint.Stat(ctx)
		if errors.Is(err, checkpoint.ErrCorrupt) {
			_, _ = fmt.Fprintln(out, styleWarn.Render("Saved progress is unreadable; the next run will discard it."))
			return nil
		}
		if err != nil {
			return err
		}
		if info == nil {
			_, _ = fmt.Fprintln(out, "No paused run.")
			return nil
		}

		var rs pipeline.RunState
		if _, err := env.Checkpoint.Load(ctx, &rs); err != nil {
			return err
		}
		formatCheckpoint(out, info, &rs)
		return nil
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the paused run so the next run starts fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Checkpoint.Clear(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Saved progress cleared.")
		return nil
	},
}

func init() {
	checkpointCmd.AddCommand(checkpointStatusCmd, checkpointClearCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func formatCheckpoint(out io.Writer, info *checkpoint.Info, rs *pipeline.RunState) {
	_, _ = fmt.Fprintln(out, styleHeading.Render("Paused run "+rs.RunID))
	_, _ = fmt.Fprintf(out, "  progress: %d of %d leads\n", rs.Cursor, len(rs.ValidLeads))
	if rs.Skipped > 0 {
		_, _ = fmt.Fprintf(out, "  skipped:  %d rows\n", rs.Skipped)
	}
	_, _ = fmt.Fprintf(out, "  campaign: %s / %s\n", rs.Config.Campaign.ServiceType, rs.Config.Campaign.IndustryFocus)
	_, _ = fmt.Fprintf(out, "  started:  %s\n", rs.StartedAt.Local().Format("2006-01-02 15:04"))
	_, _ = fmt.Fprintf(out, "  saved:    %s\n", info.SavedAt.Local().Format("2006-01-02 15:04"))
}
