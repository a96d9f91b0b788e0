package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/ai"
	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/generate"
	"github.com/sells-group/outreach-cli/internal/kv"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/profile"
	"github.com/sells-group/outreach-cli/internal/scrape"
	"github.com/sells-group/outreach-cli/internal/secrets"
	"github.com/sells-group/outreach-cli/pkg/jina"
)

// storeEnv holds the durable store and the helpers built on it. Every
// command that touches saved state opens one.
type storeEnv struct {
	Store      kv.Store
	Vault      *secrets.Vault
	Checkpoint *checkpoint.Store
}

// Close releases the store.
func (e *storeEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// openStore opens the configured kv backend. Callers should defer
// env.Close().
func openStore(ctx context.Context) (*storeEnv, error) {
	st, err := kv.Open(ctx, cfg.Store.Config)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return &storeEnv{
		Store:      st,
		Vault:      secrets.NewVault(st),
		Checkpoint: checkpoint.New(st, cfg.Store.CheckpointKey),
	}, nil
}

// buildPipeline resolves credentials and wires the scraper, the completion
// chain and the generator into a Pipeline.
func (e *storeEnv) buildPipeline(ctx context.Context, sink pipeline.ProgressSink) (*pipeline.Pipeline, error) {
	aiCfg := cfg.AI
	if err := e.Vault.ApplyAI(ctx, &aiCfg); err != nil {
		return nil, err
	}
	chain, err := ai.Build(ctx, aiCfg)
	if err != nil {
		return nil, err
	}
	zap.L().Info("completion providers", zap.Strings("configured", chain.Providers()))

	cookie, err := e.Vault.Resolve(ctx, secrets.LinkedInCookie, cfg.Scrape.Cookie)
	if err != nil {
		return nil, err
	}

	var session scrape.Session
	if cfg.Scrape.RequireSession {
		session = scrape.NewCookieSession(cookie, cfg.Scrape.SessionProbeURL)
	}

	return pipeline.New(
		profile.NewFetcher(buildScraper(cfg.Scrape, cfg.Jina, cookie)),
		generate.New(chain),
		pipeline.Options{
			Session:    session,
			Checkpoint: e.Checkpoint,
			Progress:   sink,
			Tick:       cfg.Pipeline.Tick,
		},
	), nil
}

// buildScraper returns the page source for backend. The chain tries the
// direct fetch first and falls back to the reader.
func buildScraper(sc config.ScrapeConfig, jc config.JinaConfig, cookie string) scrape.Scraper {
	local := scrape.NewLocalScraper(scrape.LocalOptions{
		Cookie:            cookie,
		UserAgent:         sc.UserAgent,
		RequestsPerSecond: sc.RequestsPerSecond,
	})
	if sc.Backend == config.BackendLocal {
		return local
	}

	reader := scrape.NewJinaAdapter(
		jina.NewClient(jc.Key, jina.WithBaseURL(jc.BaseURL)),
		cookie,
	)
	if sc.Backend == config.BackendJina {
		return reader
	}
	return scrape.NewChain(local, reader)
}
