package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/leads"
	"github.com/sells-group/outreach-cli/internal/model"
)

var (
	validateCampaign string
	validateVerbose  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <leads-file>",
	Short: "Check a lead file and campaign without contacting any service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := cfg.LoadCampaign(validateCampaign)
		if err != nil {
			return err
		}
		if err := pc.Validate(); err != nil {
			return err
		}

		raw, err := leads.ReadFile(args[0])
		if err != nil {
			return err
		}
		return formatValidation(cmd.OutOrStdout(), raw, pc, validateVerbose)
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateCampaign, "campaign", "", "campaign file")
	_ = validateCmd.MarkFlagRequired("campaign")
	validateCmd.Flags().BoolVarP(&validateVerbose, "verbose", "v", false, "list every skipped row")
	rootCmd.AddCommand(validateCmd)
}

// formatValidation prints the valid/skipped summary. It returns an error
// when no lead is usable.
func formatValidation(out io.Writer, raw []model.Lead, pc model.PipelineConfig, verbose bool) error {
	filtered := leads.FilterValid(raw, pc)

	summary := fmt.Sprintf("%d of %d leads ready to process", len(filtered.Valid), len(raw))
	if filtered.Skipped() > 0 {
		summary += fmt.Sprintf(" (%d will be skipped due to missing data)", filtered.Skipped())
	}
	style := styleOK
	if filtered.Skipped() > 0 {
		style = styleWarn
	}
	_, _ = fmt.Fprintln(out, style.Render(summary))

	if verbose {
		formatRejections(out, filtered.Rejected)
	}

	lo, hi := pc.Pacing.Range()
	if lo == hi {
		_, _ = fmt.Fprintf(out, "Pacing: %s between leads\n", formatDuration(lo))
	} else {
		_, _ = fmt.Fprintf(out, "Pacing: %s to %s between leads\n", formatDuration(lo), formatDuration(hi))
	}

	if len(filtered.Valid) == 0 {
		return eris.Errorf("no valid leads found (%d rows skipped)", filtered.Skipped())
	}
	return nil
}
