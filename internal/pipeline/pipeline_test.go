package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/ai"
	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/generate"
	"github.com/sells-group/outreach-cli/internal/kv"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/profile"
	"github.com/sells-group/outreach-cli/internal/scrape"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stubScraper returns a long profile for every URL unless overridden.
type stubScraper struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	calls map[string]int
}

func newStubScraper() *stubScraper {
	return &stubScraper{texts: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (s *stubScraper) Name() string           { return "stub" }
func (s *stubScraper) Supports(_ string) bool { return true }

func (s *stubScraper) Scrape(_ context.Context, url string) (*scrape.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[url]++
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	text, ok := s.texts[url]
	if !ok {
		text = strings.Repeat("X", 200)
	}
	return &scrape.Result{Text: text}, nil
}

func (s *stubScraper) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type stubGenerator struct {
	mu         sync.Mutex
	configured bool
	err        error
	names      []string
}

func (g *stubGenerator) Configured() bool { return g.configured }

func (g *stubGenerator) Generate(_ context.Context, req generate.Request) (model.Messages, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.names = append(g.names, req.Name)
	if g.err != nil {
		return model.Messages{}, g.err
	}
	return model.Messages{"m1 " + req.Name, "m2", "m3"}, nil
}

func (g *stubGenerator) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.names...)
}

func testConfig() model.PipelineConfig {
	return model.PipelineConfig{
		NameField:          "name",
		ProfileRefField:    "profile",
		Campaign:           model.Campaign{ServiceType: "bookkeeping", IndustryFocus: "SaaS"},
		Pacing:             model.Pacing{Mode: model.PacingFast},
		PageTimeoutSeconds: 1,
	}
}

func lead(name, ref string) model.Lead {
	return model.NewLead([]string{"name", "profile"}, []string{name, ref})
}

func batch(n int) []model.Lead {
	names := []string{"Ann", "Bob", "Cy", "Dee", "Eve", "Fay"}
	out := make([]model.Lead, n)
	for i := range out {
		out[i] = lead(names[i], "linkedin.com/in/"+strings.ToLower(names[i]))
	}
	return out
}

func newTestPipeline(sc *stubScraper, gen *stubGenerator, opts Options) *Pipeline {
	if opts.Delay == nil {
		opts.Delay = func(time.Duration, time.Duration) time.Duration { return 0 }
	}
	opts.Tick = time.Millisecond
	opts.Now = func() time.Time { return fixedNow }
	return New(profile.NewFetcher(sc), gen, opts)
}

func TestRun_AnnAndBob(t *testing.T) {
	sc := newStubScraper()
	gen := &stubGenerator{configured: true}
	p := newTestPipeline(sc, gen, Options{})

	raw := []model.Lead{lead("Ann", "linkedin.com/in/ann"), lead("", "linkedin.com/in/bob")}
	report, err := p.Run(context.Background(), raw, testConfig())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Skipped)
	recs := report.Results.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, model.StatusCompleted, recs[0].Status)
	assert.Equal(t, model.Messages{"m1 Ann", "m2", "m3"}, recs[0].Messages)
	assert.Equal(t, 200, recs[0].ProfileDataLength)
	assert.Equal(t, fixedNow, recs[0].EnrichedAt)
	assert.Equal(t, 0, recs[0].OriginalIndex)
}

func TestRun_ShortProfileSkipsGenerator(t *testing.T) {
	sc := newStubScraper()
	sc.texts["https://www.linkedin.com/in/ann"] = "short"
	gen := &stubGenerator{configured: true}

	report, err := newTestPipeline(sc, gen, Options{}).Run(context.Background(), batch(1), testConfig())
	require.NoError(t, err)

	recs := report.Results.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, model.StatusNotFound, recs[0].Status)
	assert.Contains(t, recs[0].ErrorMessage, "too short")
	assert.Equal(t, model.Messages{}, recs[0].Messages)
	assert.Empty(t, gen.calls())
}

func TestRun_PerLeadFailuresDoNotStopBatch(t *testing.T) {
	sc := newStubScraper()
	sc.errs["https://www.linkedin.com/in/ann"] = scrape.ErrNotFound
	sc.errs["https://www.linkedin.com/in/bob"] = errors.New("blocked (captcha)")
	gen := &stubGenerator{configured: true}

	report, err := newTestPipeline(sc, gen, Options{}).Run(context.Background(), batch(3), testConfig())
	require.NoError(t, err)

	recs := report.Results.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, model.StatusNotFound, recs[0].Status)
	assert.Equal(t, model.StatusFailed, recs[1].Status)
	assert.Contains(t, recs[1].ErrorMessage, "captcha")
	assert.Equal(t, model.StatusCompleted, recs[2].Status)
	assert.Equal(t, []string{"Cy"}, gen.calls())
	assert.Equal(t, map[model.Status]int{model.StatusNotFound: 1, model.StatusFailed: 1, model.StatusCompleted: 1}, report.Counts())
}

func TestRun_GenerationFailureHasEmptyMessages(t *testing.T) {
	gen := &stubGenerator{configured: true, err: errors.New("both providers failed")}
	report, err := newTestPipeline(newStubScraper(), gen, Options{}).Run(context.Background(), batch(1), testConfig())
	require.NoError(t, err)

	rec := report.Results.Records()[0]
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Equal(t, model.Messages{}, rec.Messages)
	assert.Contains(t, rec.ErrorMessage, "both providers failed")
	assert.Equal(t, fixedNow, rec.FailedAt)
}

func TestRun_ValidationErrors(t *testing.T) {
	gen := &stubGenerator{configured: true}

	bad := testConfig()
	bad.Pacing = model.Pacing{Mode: model.PacingCustom, CustomSeconds: 5}
	_, err := newTestPipeline(newStubScraper(), gen, Options{}).Run(context.Background(), batch(2), bad)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "got 5")

	missing := testConfig()
	missing.Campaign.ServiceType = ""
	_, err = newTestPipeline(newStubScraper(), gen, Options{}).Run(context.Background(), batch(2), missing)
	assert.True(t, errors.Is(err, ErrValidation))

	sc := newStubScraper()
	_, err = newTestPipeline(sc, gen, Options{}).Run(context.Background(), []model.Lead{lead("", "x")}, testConfig())
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "no valid leads")
	assert.Zero(t, sc.total())
}

func TestRun_PreflightFailures(t *testing.T) {
	sc := newStubScraper()
	_, err := newTestPipeline(sc, &stubGenerator{}, Options{}).Run(context.Background(), batch(2), testConfig())
	assert.True(t, errors.Is(err, ai.ErrNoProviderKeys))

	_, err = newTestPipeline(sc, &stubGenerator{configured: true}, Options{Session: scrape.StaticSession(false)}).
		Run(context.Background(), batch(2), testConfig())
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
	assert.Zero(t, sc.total())
}

func TestRun_PacingBetweenLeads(t *testing.T) {
	var mu sync.Mutex
	var ranges [][2]time.Duration
	opts := Options{Delay: func(lo, hi time.Duration) time.Duration {
		mu.Lock()
		ranges = append(ranges, [2]time.Duration{lo, hi})
		mu.Unlock()
		return 3 * time.Millisecond
	}}
	cfg := testConfig()
	cfg.Pacing = model.Pacing{Mode: model.PacingCustom, CustomSeconds: 15}

	report, err := newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, opts).
		Run(context.Background(), batch(3), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)

	// No delay before the first lead.
	require.Len(t, ranges, 2)
	assert.Equal(t, [2]time.Duration{15 * time.Second, 15 * time.Second}, ranges[0])
}

func TestRun_StopDuringDelayIsPrompt(t *testing.T) {
	var p *Pipeline
	opts := Options{
		Delay: func(time.Duration, time.Duration) time.Duration { return time.Hour },
		Progress: ProgressFunc(func(pr Progress) {
			if pr.Processed == 1 && !pr.Final {
				go func() {
					time.Sleep(5 * time.Millisecond)
					_ = p.Stop(context.Background())
				}()
			}
		}),
	}
	p = newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, opts)

	done := make(chan *Report, 1)
	go func() {
		r, err := p.Run(context.Background(), batch(3), testConfig())
		assert.NoError(t, err)
		done <- r
	}()

	select {
	case r := <-done:
		assert.Equal(t, StateStopped, r.State)
		assert.Equal(t, 1, r.Results.Len())
		assert.Equal(t, r.Processed, r.Results.Len())
	case <-time.After(5 * time.Second):
		t.Fatal("stop during delay did not take effect")
	}
}

func TestRun_StopClearsCheckpoint(t *testing.T) {
	store := kv.NewMemory()
	cp := checkpoint.New(store, "")
	var p *Pipeline
	opts := Options{
		Checkpoint: cp,
		Progress: ProgressFunc(func(pr Progress) {
			if pr.Processed == 2 && !pr.Final {
				require.NoError(t, p.Pause(context.Background()))
				require.NoError(t, p.Stop(context.Background()))
			}
		}),
	}
	p = newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, opts)

	report, err := p.Run(context.Background(), batch(4), testConfig())
	require.NoError(t, err)
	assert.Equal(t, StateStopped, report.State)
	assert.Equal(t, 2, report.Results.Len())

	info, err := cp.Stat(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.True(t, errors.Is(p.Resume(), ErrInvalidTransition))
}

func TestRun_PauseResumeInProcess(t *testing.T) {
	store := kv.NewMemory()
	cp := checkpoint.New(store, "")
	var p *Pipeline
	var pausedAt *checkpoint.Info
	opts := Options{
		Checkpoint: cp,
		Progress: ProgressFunc(func(pr Progress) {
			if pr.Processed != 1 || pr.Final {
				return
			}
			require.NoError(t, p.Pause(context.Background()))
			assert.Equal(t, StatePaused, p.State())
			info, err := cp.Stat(context.Background())
			require.NoError(t, err)
			pausedAt = info
			go func() {
				time.Sleep(10 * time.Millisecond)
				assert.NoError(t, p.Resume())
			}()
		}),
	}
	sc := newStubScraper()
	p = newTestPipeline(sc, &stubGenerator{configured: true}, opts)

	report, err := p.Run(context.Background(), batch(3), testConfig())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 3, report.Results.Len())
	assert.Equal(t, 3, sc.total())
	require.NotNil(t, pausedAt)

	// Natural completion clears the checkpoint.
	info, err := cp.Stat(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

// stateScraper records the pipeline state seen by each fetch.
type stateScraper struct {
	*stubScraper
	p      **Pipeline
	mu     sync.Mutex
	states []State
}

func (s *stateScraper) Scrape(ctx context.Context, url string) (*scrape.Result, error) {
	s.mu.Lock()
	s.states = append(s.states, (*s.p).State())
	s.mu.Unlock()
	return s.stubScraper.Scrape(ctx, url)
}

func TestRun_PauseInFinalDelayTickHolds(t *testing.T) {
	const tick = 50 * time.Millisecond
	var p *Pipeline
	sc := &stateScraper{stubScraper: newStubScraper(), p: &p}
	var resumedAt time.Time
	var resumeMu sync.Mutex
	opts := Options{
		Delay: func(time.Duration, time.Duration) time.Duration { return tick },
		Progress: ProgressFunc(func(pr Progress) {
			if pr.Processed != 1 || pr.Final {
				return
			}
			go func() {
				time.Sleep(tick / 2)
				assert.NoError(t, p.Pause(context.Background()))
				time.Sleep(2 * tick)
				resumeMu.Lock()
				resumedAt = time.Now()
				resumeMu.Unlock()
				assert.NoError(t, p.Resume())
			}()
		}),
	}
	p = New(profile.NewFetcher(sc), &stubGenerator{configured: true}, opts)
	p.opts.Tick = tick
	p.opts.Now = func() time.Time { return fixedNow }

	report, err := p.Run(context.Background(), batch(2), testConfig())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 2, report.Results.Len())

	sc.mu.Lock()
	defer sc.mu.Unlock()
	assert.Equal(t, []State{StateRunning, StateRunning}, sc.states)
	resumeMu.Lock()
	defer resumeMu.Unlock()
	assert.False(t, resumedAt.IsZero(), "second lead fetched before resume")
}

func TestSaveCheckpoint_SkippedAfterCompletion(t *testing.T) {
	cp := checkpoint.New(kv.NewMemory(), "")
	p := newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, Options{Checkpoint: cp})

	report, err := p.Run(context.Background(), batch(2), testConfig())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, report.State)

	// A late pause save racing the finish must not leave a checkpoint behind.
	require.NoError(t, p.saveCheckpointErr(context.Background()))
	info, err := cp.Stat(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRun_PauseRestartResumeMatchesUninterrupted(t *testing.T) {
	const n = 5

	uninterrupted, err := newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, Options{}).
		Run(context.Background(), batch(n), testConfig())
	require.NoError(t, err)

	store := kv.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var first *Pipeline
	firstScraper := newStubScraper()
	first = newTestPipeline(firstScraper, &stubGenerator{configured: true}, Options{
		Checkpoint: checkpoint.New(store, ""),
		Progress: ProgressFunc(func(pr Progress) {
			if pr.Processed == 2 && !pr.Final {
				require.NoError(t, first.Pause(context.Background()))
				cancel()
			}
		}),
	})
	report, err := first.Run(ctx, batch(n), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StatePaused, report.State)
	assert.Equal(t, 2, report.Results.Len())
	assert.Equal(t, 2, firstScraper.total())

	// A new process resumes from the checkpoint; the batch and config passed
	// here are ignored.
	secondScraper := newStubScraper()
	secondGen := &stubGenerator{configured: true}
	second := newTestPipeline(secondScraper, secondGen, Options{Checkpoint: checkpoint.New(store, "")})
	resumed, err := second.Run(context.Background(), nil, model.PipelineConfig{})
	require.NoError(t, err)

	assert.True(t, resumed.Resumed)
	assert.Equal(t, StateCompleted, resumed.State)
	assert.Equal(t, []string{"Cy", "Dee", "Eve"}, secondGen.calls())
	assert.Equal(t, uninterrupted.Results.Records(), resumed.Results.Records())
	assert.Equal(t, uninterrupted.RunID != "", resumed.RunID != "")
}

func TestRun_CorruptCheckpointStartsFresh(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(context.Background(), map[string][]byte{checkpoint.DefaultKey: []byte("{not json")}))

	p := newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, Options{Checkpoint: checkpoint.New(store, "")})
	report, err := p.Run(context.Background(), batch(2), testConfig())
	require.NoError(t, err)

	assert.False(t, report.Resumed)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "discarded")
	assert.Equal(t, 2, report.Results.Len())
}

func TestRun_InconsistentCheckpointIsCorrupt(t *testing.T) {
	store := kv.NewMemory()
	cp := checkpoint.New(store, "")
	require.NoError(t, cp.Save(context.Background(), RunState{
		RunID:      "r1",
		ValidLeads: []model.ValidLead{{Lead: lead("Ann", "ann-lee"), Name: "Ann", ProfileRef: "ann-lee"}},
		Cursor:     1,
	}))

	report, err := newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, Options{Checkpoint: cp}).
		Run(context.Background(), batch(1), testConfig())
	require.NoError(t, err)
	assert.False(t, report.Resumed)
	assert.Len(t, report.Warnings, 1)
}

func TestProgress(t *testing.T) {
	var got []Progress
	opts := Options{Progress: ProgressFunc(func(pr Progress) { got = append(got, pr) })}

	report, err := newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, opts).
		Run(context.Background(), batch(3), testConfig())
	require.NoError(t, err)

	require.Len(t, got, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, i+1, got[i].Processed)
		assert.Equal(t, 3, got[i].Total)
		assert.Equal(t, model.StatusCompleted, got[i].Status)
		assert.False(t, got[i].Final)
		assert.Equal(t, report.RunID, got[i].RunID)
	}
	assert.Equal(t, "Ann", got[0].Label)
	assert.True(t, got[3].Final)
	assert.Equal(t, StateCompleted, got[3].State)
}

func TestControlTransitions(t *testing.T) {
	p := newTestPipeline(newStubScraper(), &stubGenerator{configured: true}, Options{})
	assert.Equal(t, StateIdle, p.State())
	assert.True(t, errors.Is(p.Pause(context.Background()), ErrInvalidTransition))
	assert.True(t, errors.Is(p.Resume(), ErrInvalidTransition))

	_, ok := p.Status()
	assert.False(t, ok)
	assert.Nil(t, p.Results())

	_, err := p.Run(context.Background(), batch(1), testConfig())
	require.NoError(t, err)
	_, err = p.Run(context.Background(), batch(1), testConfig())
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, errors.Is(p.Stop(context.Background()), ErrInvalidTransition))

	status, ok := p.Status()
	require.True(t, ok)
	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 1, status.Processed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "paused", StatePaused.String())
	assert.True(t, StateStopped.Terminal())
	assert.False(t, StatePaused.Terminal())
	b, err := StateRunning.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "running", string(b))
}
