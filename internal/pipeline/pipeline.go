// Package pipeline runs the lead enrichment loop: validate the batch, then
// for each lead fetch the profile and draft messages, one lead at a time
// with paced delays. A run can be paused, resumed and stopped, and a paused
// run survives a restart through its checkpoint.
package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/ai"
	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/generate"
	"github.com/sells-group/outreach-cli/internal/leads"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/profile"
	"github.com/sells-group/outreach-cli/internal/results"
	"github.com/sells-group/outreach-cli/internal/scrape"
)

// Fetcher loads a lead's profile text.
type Fetcher interface {
	Fetch(ctx context.Context, ref string, timeout time.Duration) profile.Outcome
}

// Generator drafts the three messages for a lead.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, req generate.Request) (model.Messages, error)
}

// Options holds the optional collaborators of a Pipeline.
type Options struct {
	// Session is checked once before the first lead. Nil skips the check.
	Session scrape.Session
	// Checkpoint persists the run on pause. Nil disables persistence.
	Checkpoint *checkpoint.Store
	Progress   ProgressSink
	// Tick is the step in which inter-lead delays are waited. Zero means one
	// second.
	Tick time.Duration
	// Delay picks a delay in [lo, hi). Nil samples uniformly.
	Delay func(lo, hi time.Duration) time.Duration
	Now   func() time.Time
}

// Pipeline is a single-use run controller. Run blocks; Pause, Resume and
// Stop may be called from other goroutines.
type Pipeline struct {
	fetcher Fetcher
	gen     Generator
	opts    Options

	mu    sync.Mutex
	state State
	stop  bool
	wake  chan struct{} // closed on resume or stop
	run   *RunState
	last  Progress
	done  bool // Run has returned

	// saveMu orders checkpoint writes and deletes.
	saveMu sync.Mutex
}

// New creates an idle Pipeline.
func New(fetcher Fetcher, gen Generator, opts Options) *Pipeline {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Delay == nil {
		opts.Delay = uniformDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{fetcher: fetcher, gen: gen, opts: opts}
}

func uniformDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Status returns a progress snapshot. ok is false before a run has state.
func (p *Pipeline) Status() (Progress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == nil {
		return Progress{State: p.state}, false
	}
	prog := p.progressLocked(p.last.Label, p.last.Status, time.Time{}, 0)
	prog.ETA = p.last.ETA
	return prog, true
}

// Results returns the run's result store, or nil before a run has state.
func (p *Pipeline) Results() *results.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == nil {
		return nil
	}
	return p.run.Results
}

// Run processes the batch until it completes, is stopped, or ctx ends. When
// a checkpoint exists the run resumes from it with its persisted config and
// raw and cfg are ignored.
func (p *Pipeline) Run(ctx context.Context, raw []model.Lead, cfg model.PipelineConfig) (*Report, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return nil, eris.Wrapf(ErrInvalidTransition, "run from %s", p.state)
	}
	p.mu.Unlock()

	report := &Report{}
	rs, err := p.prepare(ctx, raw, cfg, report)
	if err != nil {
		return nil, err
	}
	if err := p.preflight(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.state != StateIdle {
		// Stopped before the first lead.
		p.mu.Unlock()
		return nil, eris.Wrapf(ErrInvalidTransition, "run from %s", p.state)
	}
	p.run = rs
	p.state = StateRunning
	p.mu.Unlock()

	log := zap.L().With(zap.String("run_id", rs.RunID))
	log.Info("pipeline: run started",
		zap.Int("total", len(rs.ValidLeads)),
		zap.Int("cursor", rs.Cursor),
		zap.Int("skipped", rs.Skipped),
		zap.Bool("resumed", report.Resumed),
	)

	loopErr := p.loop(ctx, rs, log)
	return p.finish(ctx, rs, report, loopErr, log)
}

// prepare restores the checkpoint or builds a fresh RunState.
func (p *Pipeline) prepare(ctx context.Context, raw []model.Lead, cfg model.PipelineConfig, report *Report) (*RunState, error) {
	if p.opts.Checkpoint != nil {
		var rs RunState
		found, err := p.opts.Checkpoint.Load(ctx, &rs)
		if err == nil && found {
			err = rs.check()
		}
		switch {
		case err == nil && found:
			report.Resumed = true
			return &rs, nil
		case errors.Is(err, checkpoint.ErrCorrupt):
			zap.L().Warn("pipeline: discarding corrupt checkpoint", zap.Error(err))
			report.Warnings = append(report.Warnings, "saved progress was unreadable and has been discarded; starting fresh")
			if clearErr := p.opts.Checkpoint.Clear(ctx); clearErr != nil {
				return nil, eris.Wrap(clearErr, "pipeline: discard corrupt checkpoint")
			}
		case err != nil:
			return nil, eris.Wrap(err, "pipeline: load checkpoint")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(ErrValidation, "%v", err)
	}
	filtered := leads.FilterValid(raw, cfg)
	if len(filtered.Valid) == 0 {
		return nil, eris.Wrapf(ErrValidation, "no valid leads found (%d rows skipped)", filtered.Skipped())
	}
	for _, r := range filtered.Rejected {
		zap.L().Debug("pipeline: lead skipped",
			zap.Int("row", r.Index),
			zap.String("name", r.Name),
			zap.String("reason", r.Reason),
		)
	}
	return &RunState{
		RunID:      uuid.NewString(),
		ValidLeads: filtered.Valid,
		Results:    results.NewStore(),
		StartedAt:  p.opts.Now().UTC(),
		Skipped:    filtered.Skipped(),
		Config:     cfg,
	}, nil
}

// preflight checks the provider keys and the session before any lead.
func (p *Pipeline) preflight(ctx context.Context) error {
	if p.gen == nil || !p.gen.Configured() {
		return ai.ErrNoProviderKeys
	}
	if p.opts.Session == nil {
		return nil
	}
	ok, err := p.opts.Session.IsAuthenticated(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: check session")
	}
	if !ok {
		return ErrNotAuthenticated
	}
	return nil
}

func (p *Pipeline) loop(ctx context.Context, rs *RunState, log *zap.Logger) error {
	sessionStart := p.opts.Now()
	startCursor := rs.Cursor
	lo, hi := rs.Config.Pacing.Range()

	for i := rs.Cursor; i < len(rs.ValidLeads); i++ {
		if p.stopRequested() {
			return nil
		}
		if !p.waitWhilePaused(ctx) {
			return ctx.Err()
		}
		if i > 0 {
			if !p.sleep(ctx, p.opts.Delay(lo, hi)) {
				return ctx.Err()
			}
			// A pause in the final tick of the delay holds here.
			if !p.waitWhilePaused(ctx) {
				return ctx.Err()
			}
			if p.stopRequested() {
				return nil
			}
		}

		rec, ok := p.process(ctx, rs, i, log)
		if !ok {
			return ctx.Err()
		}

		p.mu.Lock()
		rs.Results.Append(rec)
		rs.Cursor = i + 1
		paused := p.state == StatePaused
		prog := p.progressLocked(rec.Lead.Get(rs.Config.NameField), rec.Status, sessionStart, rs.Cursor-startCursor)
		p.last = prog
		p.mu.Unlock()

		if paused {
			// Paused mid-lead: refresh the checkpoint to include this lead.
			p.saveCheckpoint(ctx)
		}
		p.emit(prog)
	}
	return nil
}

// process runs one lead. ok is false when ctx ended mid-lead, in which case
// the lead is not recorded.
func (p *Pipeline) process(ctx context.Context, rs *RunState, i int, log *zap.Logger) (model.EnrichedLead, bool) {
	vl := rs.ValidLeads[i]
	llog := log.With(zap.Int("cursor", i), zap.String("lead", vl.Name))

	out := p.fetcher.Fetch(ctx, vl.ProfileRef, rs.Config.PageTimeout())
	if ctx.Err() != nil {
		return model.EnrichedLead{}, false
	}
	switch out.Kind {
	case profile.NotFound:
		llog.Info("pipeline: profile not found", zap.String("reason", out.Reason))
		return model.Failure(vl.Lead, vl.Index, model.StatusNotFound, out.Reason, p.opts.Now()), true
	case profile.Error:
		llog.Warn("pipeline: profile fetch failed", zap.String("reason", out.Reason))
		return model.Failure(vl.Lead, vl.Index, model.StatusFailed, out.Reason, p.opts.Now()), true
	}

	msgs, err := p.gen.Generate(ctx, generate.Request{
		Name:        vl.Name,
		Company:     vl.Company,
		ProfileText: out.Text,
		Campaign:    rs.Config.Campaign,
	})
	if ctx.Err() != nil {
		return model.EnrichedLead{}, false
	}
	if err != nil {
		llog.Warn("pipeline: message generation failed", zap.Error(err))
		return model.Failure(vl.Lead, vl.Index, model.StatusFailed, "Message generation failed: "+err.Error(), p.opts.Now()), true
	}
	llog.Info("pipeline: lead completed", zap.Int("profile_chars", len(out.Text)))
	return model.Completed(vl.Lead, vl.Index, msgs, len(out.Text), p.opts.Now()), true
}

func (p *Pipeline) finish(ctx context.Context, rs *RunState, report *Report, loopErr error, log *zap.Logger) (*Report, error) {
	p.mu.Lock()
	switch {
	case p.stop:
		p.state = StateStopped
		loopErr = nil
	case loopErr != nil:
		// Interrupted runs are checkpointed below and resume on the next Run.
		p.state = StatePaused
	default:
		p.state = StateCompleted
	}
	p.done = true
	state := p.state
	final := p.progressLocked("", "", time.Time{}, 0)
	p.mu.Unlock()

	final.Final = true
	report.RunID = rs.RunID
	report.State = state
	report.Processed = final.Processed
	report.Total = final.Total
	report.Skipped = rs.Skipped
	report.Results = rs.Results

	if loopErr != nil {
		p.saveCheckpoint(context.WithoutCancel(ctx))
		p.emit(final)
		log.Warn("pipeline: run interrupted", zap.Int("processed", final.Processed), zap.Error(loopErr))
		return report, eris.Wrap(loopErr, "pipeline: interrupted")
	}

	p.clearCheckpoint(ctx)
	p.emit(final)
	log.Info("pipeline: run finished",
		zap.String("state", state.String()),
		zap.Int("processed", final.Processed),
		zap.Int("total", final.Total),
	)
	return report, nil
}

// Pause suspends the loop at the next check point and writes the
// checkpoint.
func (p *Pipeline) Pause(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateRunning {
		state := p.state
		p.mu.Unlock()
		return eris.Wrapf(ErrInvalidTransition, "pause from %s", state)
	}
	p.state = StatePaused
	p.wake = make(chan struct{})
	p.mu.Unlock()

	zap.L().Info("pipeline: paused")
	return p.saveCheckpointErr(ctx)
}

// Resume releases a paused loop. The checkpoint is left in place until the
// run stops or completes.
func (p *Pipeline) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePaused || p.done {
		return eris.Wrapf(ErrInvalidTransition, "resume from %s", p.state)
	}
	p.state = StateRunning
	close(p.wake)
	p.wake = nil
	zap.L().Info("pipeline: resumed")
	return nil
}

// Stop ends the run at the next lead boundary and deletes the checkpoint.
// Results gathered so far stay available.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateRunning, StatePaused, StateIdle:
	default:
		state := p.state
		p.mu.Unlock()
		return eris.Wrapf(ErrInvalidTransition, "stop from %s", state)
	}
	p.stop = true
	switch {
	case p.state == StateIdle || p.done:
		p.state = StateStopped
	case p.state == StatePaused:
		p.state = StateRunning
		close(p.wake)
		p.wake = nil
	}
	p.mu.Unlock()

	zap.L().Info("pipeline: stop requested")
	p.clearCheckpoint(ctx)
	return nil
}

func (p *Pipeline) stopRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop
}

// waitWhilePaused blocks while paused. It returns false when ctx ends.
func (p *Pipeline) waitWhilePaused(ctx context.Context) bool {
	for {
		p.mu.Lock()
		if p.stop || p.state != StatePaused {
			p.mu.Unlock()
			return true
		}
		wake := p.wake
		p.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return false
		}
	}
}

// sleep waits d in Tick steps, returning early on stop and holding while
// paused. It returns false when ctx ends.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	ticker := time.NewTicker(p.opts.Tick)
	defer ticker.Stop()

	for remaining := d; remaining > 0; remaining -= p.opts.Tick {
		if p.stopRequested() {
			return true
		}
		if !p.waitWhilePaused(ctx) {
			return false
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// progressLocked builds a Progress from the current run. Callers hold mu.
func (p *Pipeline) progressLocked(label string, status model.Status, sessionStart time.Time, doneThisSession int) Progress {
	rs := p.run
	prog := Progress{State: p.state, Label: label, Status: status}
	if rs == nil {
		return prog
	}
	prog.RunID = rs.RunID
	prog.Processed = rs.Cursor
	prog.Total = len(rs.ValidLeads)
	prog.Skipped = rs.Skipped
	now := p.opts.Now()
	if !rs.StartedAt.IsZero() {
		prog.Elapsed = now.Sub(rs.StartedAt)
	}
	if doneThisSession > 0 && !sessionStart.IsZero() {
		perLead := now.Sub(sessionStart) / time.Duration(doneThisSession)
		prog.ETA = perLead * time.Duration(prog.Total-prog.Processed)
	}
	return prog
}

func (p *Pipeline) emit(prog Progress) {
	if p.opts.Progress != nil {
		p.opts.Progress.OnProgress(prog)
	}
}

func (p *Pipeline) saveCheckpointErr(ctx context.Context) error {
	if p.opts.Checkpoint == nil {
		return nil
	}
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	if p.run == nil || p.stop || p.state.Terminal() {
		p.mu.Unlock()
		return nil
	}
	snap := p.run.snapshot()
	p.mu.Unlock()

	if err := p.opts.Checkpoint.Save(ctx, snap); err != nil {
		return eris.Wrap(err, "pipeline: save checkpoint")
	}
	zap.L().Debug("pipeline: checkpoint saved", zap.Int("cursor", snap.Cursor))
	return nil
}

func (p *Pipeline) saveCheckpoint(ctx context.Context) {
	if err := p.saveCheckpointErr(ctx); err != nil {
		zap.L().Error("pipeline: checkpoint not saved", zap.Error(err))
	}
}

func (p *Pipeline) clearCheckpoint(ctx context.Context) {
	if p.opts.Checkpoint == nil {
		return
	}
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	if err := p.opts.Checkpoint.Clear(ctx); err != nil {
		zap.L().Error("pipeline: checkpoint not cleared", zap.Error(err))
	}
}
