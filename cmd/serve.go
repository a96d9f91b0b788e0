package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	servePort     int
	serveCampaign string
	serveOutput   string
)

var serveCmd = &cobra.Command{
	Use:   "serve [leads-file]",
	Short: "Run a batch behind the local control API",
	Long: `Runs or resumes a batch like "run" and serves a control API on localhost:

  GET  /health        liveness
  GET  /status        state and progress
  POST /pause         pause and save progress
  POST /resume        continue a paused run
  POST /stop          stop and discard saved progress
  GET  /results.csv   download the enriched sheet

The API stays up after the batch ends so results can be downloaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		opts := batchOptions{
			CampaignPath: serveCampaign,
			OutputDir:    serveOutput,
			ControlAddr:  fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
			KeepServing:  true,
		}
		if len(args) == 1 {
			opts.LeadsPath = args[0]
		}
		return runBatch(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveCampaign, "campaign", "", "campaign file (column mapping, service, industry, pacing)")
	serveCmd.Flags().StringVar(&serveOutput, "output", "", "export directory (default from config)")
	rootCmd.AddCommand(serveCmd)
}
