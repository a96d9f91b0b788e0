package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/control"
	"github.com/sells-group/outreach-cli/internal/leads"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var (
	runCampaign string
	runOutput   string
	runControl  bool
)

var runCmd = &cobra.Command{
	Use:   "run [leads-file]",
	Short: "Enrich a lead file, or resume a paused run",
	Long: `Enriches every valid lead in a CSV or XLSX file and writes the enriched sheet to the output directory.

If a paused run is saved, it resumes from where it stopped and the lead file is ignored.
Press Ctrl-C once to pause; progress is saved and the next run picks it up.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		opts := batchOptions{CampaignPath: runCampaign, OutputDir: runOutput}
		if len(args) == 1 {
			opts.LeadsPath = args[0]
		}
		if runControl {
			opts.ControlAddr = fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
		}
		return runBatch(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCampaign, "campaign", "", "campaign file (column mapping, service, industry, pacing)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "export directory (default from config)")
	runCmd.Flags().BoolVar(&runControl, "control", false, "expose the local control API while running")
	rootCmd.AddCommand(runCmd)
}

// batchOptions configures runBatch.
type batchOptions struct {
	LeadsPath    string
	CampaignPath string
	OutputDir    string
	// ControlAddr serves the control API when set.
	ControlAddr string
	// KeepServing leaves the control API up after the run ends, until
	// interrupted.
	KeepServing bool
}

// runBatch runs or resumes one batch under the run lock. The first
// interrupt pauses the run and saves its checkpoint.
func runBatch(ctx context.Context, out io.Writer, opts batchOptions) error {
	lock := flock.New(cfg.Store.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return eris.Wrap(err, "acquire run lock")
	}
	if !locked {
		return eris.Errorf("another run is in progress (lock %s)", cfg.Store.LockFile)
	}
	defer lock.Unlock() //nolint:errcheck

	env, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	raw, pc, err := loadBatch(ctx, out, env.Checkpoint, opts)
	if err != nil {
		return err
	}

	p, err := env.buildPipeline(ctx, &consoleProgress{out: out})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	srvCtx, cancelSrv := context.WithCancel(ctx)
	defer cancelSrv()
	runDone := make(chan struct{})

	var report *pipeline.Report
	var g errgroup.Group

	g.Go(func() error {
		defer close(runDone)
		r, err := p.Run(runCtx, raw, pc)
		report = r
		if err != nil && (r == nil || r.State != pipeline.StatePaused) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		defer cancelSrv()
		select {
		case <-sigCh:
			interrupt(ctx, p)
			cancelRun()
		case <-runDone:
			if opts.KeepServing && opts.ControlAddr != "" {
				select {
				case <-sigCh:
				case <-ctx.Done():
				}
			}
		case <-ctx.Done():
		}
		return nil
	})

	if opts.ControlAddr != "" {
		srv := control.NewServer(p, control.Options{AllowedOrigins: cfg.Server.AllowedOrigins})
		g.Go(func() error {
			return srv.ListenAndServe(srvCtx, opts.ControlAddr)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if report == nil {
		return eris.New("run ended without a report")
	}

	var exportPath string
	if report.State != pipeline.StatePaused && report.Results != nil && report.Results.Len() > 0 {
		dir := opts.OutputDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		exportPath, err = report.Results.WriteFile(dir, time.Now())
		if err != nil {
			return err
		}
	}
	formatReport(out, report, exportPath)
	return nil
}

// interrupt pauses a running pipeline so its checkpoint is written before
// the run context is cancelled.
func interrupt(ctx context.Context, p *pipeline.Pipeline) {
	if p.State() != pipeline.StateRunning {
		return
	}
	zap.L().Info("interrupt received, pausing")
	if err := p.Pause(context.WithoutCancel(ctx)); err != nil {
		zap.L().Warn("pause on interrupt failed", zap.Error(err))
	}
}

// loadBatch returns the leads and campaign for a fresh run. When a paused
// run is saved it returns nothing, since the pipeline resumes from the
// checkpoint.
func loadBatch(ctx context.Context, out io.Writer, cp *checkpoint.Store, opts batchOptions) ([]model.Lead, model.PipelineConfig, error) {
	info, err := cp.Stat(ctx)
	switch {
	case err == nil && info != nil:
		_, _ = fmt.Fprintf(out, "Resuming paused run saved %s\n", info.SavedAt.Local().Format("2006-01-02 15:04"))
		if opts.LeadsPath != "" {
			_, _ = fmt.Fprintf(out, "Ignoring %s; run `checkpoint clear` to start a new batch instead.\n", opts.LeadsPath)
		}
		return nil, model.PipelineConfig{}, nil
	case err != nil && !errors.Is(err, checkpoint.ErrCorrupt):
		return nil, model.PipelineConfig{}, err
	}

	if opts.LeadsPath == "" {
		return nil, model.PipelineConfig{}, eris.New("a leads file is required when no paused run is saved")
	}
	if opts.CampaignPath == "" {
		return nil, model.PipelineConfig{}, eris.New("--campaign is required for a new run")
	}

	raw, err := leads.ReadFile(opts.LeadsPath)
	if err != nil {
		return nil, model.PipelineConfig{}, err
	}
	pc, err := cfg.LoadCampaign(opts.CampaignPath)
	if err != nil {
		return nil, model.PipelineConfig{}, err
	}
	return raw, pc, nil
}
