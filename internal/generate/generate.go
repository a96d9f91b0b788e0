// Package generate drafts three outreach messages per lead through a
// persona, problems and pitches prompt chain. Every stage has a
// deterministic fallback, so a configured generator always returns three
// messages.
package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/ai"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Request carries one lead's inputs.
type Request struct {
	Name        string
	Company     string
	ProfileText string
	Campaign    model.Campaign
}

// configurable is implemented by completers that can report missing keys
// before any call is made.
type configurable interface {
	Configured() bool
}

// Generator runs the prompt chain against a completer.
type Generator struct {
	completer ai.Completer
}

// New creates a Generator.
func New(completer ai.Completer) *Generator {
	return &Generator{completer: completer}
}

// Configured reports whether a completion provider is available.
func (g *Generator) Configured() bool {
	if g.completer == nil {
		return false
	}
	if c, ok := g.completer.(configurable); ok {
		return c.Configured()
	}
	return true
}

// Generate returns exactly three messages. It fails only when no provider is
// configured or ctx ends.
func (g *Generator) Generate(ctx context.Context, req Request) (model.Messages, error) {
	if !g.Configured() {
		return model.Messages{}, ai.ErrNoProviderKeys
	}
	log := zap.L().With(zap.String("lead", req.Name))

	persona, err := g.stage(ctx, "persona", fmt.Sprintf(personaPrompt,
		req.ProfileText, companyInfo(req.Company), req.Name))
	if err != nil {
		if stop := abort(ctx, err); stop != nil {
			return model.Messages{}, stop
		}
		log.Warn("generate: persona failed, using fallback", zap.Error(err))
		persona = fallbackPersona(req)
	}

	svc, industry := req.Campaign.ServiceType, req.Campaign.IndustryFocus
	var problems [3]string
	text, err := g.stage(ctx, "problems", fmt.Sprintf(problemPrompt,
		industry, svc, persona, svc, industry, req.Name, svc, svc))
	if err != nil {
		if stop := abort(ctx, err); stop != nil {
			return model.Messages{}, stop
		}
		log.Warn("generate: problems failed, using fallback", zap.Error(err))
		problems = fallbackProblems(req.Campaign)
	} else {
		problems = ParseProblems(text, fallbackProblems(req.Campaign))
	}

	text, err = g.stage(ctx, "pitches", fmt.Sprintf(pitchPrompt,
		req.Name, svc, persona, formatProblems(problems), svc, industry,
		req.Name, customInstructions(req.Campaign.CustomInstructions), req.Name))
	if err != nil {
		if stop := abort(ctx, err); stop != nil {
			return model.Messages{}, stop
		}
		log.Warn("generate: pitches failed, using fallback", zap.Error(err))
		return fill(nil, req), nil
	}
	return fill(ParsePitches(text), req), nil
}

func (g *Generator) stage(ctx context.Context, name, prompt string) (string, error) {
	text, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return "", eris.Wrapf(err, "generate: %s", name)
	}
	return text, nil
}

// abort returns the error that should end generation instead of falling
// back: a missing provider or a finished context.
func abort(ctx context.Context, err error) error {
	if errors.Is(err, ai.ErrNoProviderKeys) {
		return err
	}
	if ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "generate: cancelled")
	}
	return nil
}

var (
	problemLineRe = regexp.MustCompile(`(?im)^[\s*#\-]*Problem\s*\d+\s*\**\s*[:.)]\s*\**\s*(.+?)\s*$`)
	pitchHeaderRe = regexp.MustCompile(`\*{0,2}Pitch\s*\d+\s*\*{0,2}\s*:\s*\*{0,2}`)
	pitchPrefixRe = regexp.MustCompile(`(?i)^\W*pitch\s*\d+\s*\**\s*:\s*\**\s*`)
)

// ParseProblems extracts "Problem N:" lines. Slots the response does not
// cover are taken from fallback.
func ParseProblems(text string, fallback [3]string) [3]string {
	out := fallback
	n := 0
	for _, m := range problemLineRe.FindAllStringSubmatch(text, -1) {
		if n == len(out) {
			break
		}
		if p := strings.TrimSpace(m[1]); p != "" {
			out[n] = p
			n++
		}
	}
	return out
}

// ParsePitches extracts up to three messages. "Pitch N:" blocks are used
// when there are at least three; otherwise lines that mention a pitch or
// read like prose (over 50 characters, no colon) are tried. When neither
// finds three, whatever blocks were found are returned.
func ParsePitches(text string) []string {
	blocks := pitchBlocks(text)
	if len(blocks) >= 3 {
		return blocks[:3]
	}
	if lines := pitchLines(text); len(lines) >= 3 {
		return lines[:3]
	}
	return blocks
}

func pitchBlocks(text string) []string {
	idx := pitchHeaderRe.FindAllStringIndex(text, -1)
	var out []string
	for i, loc := range idx {
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		if body := cleanPitch(text[loc[1]:end]); body != "" {
			out = append(out, body)
		}
	}
	return out
}

func pitchLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "pitch") || (len(line) > 50 && !strings.Contains(line, ":")) {
			if body := cleanPitch(pitchPrefixRe.ReplaceAllString(line, "")); body != "" {
				out = append(out, body)
			}
		}
	}
	return out
}

func cleanPitch(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "---")
	return strings.TrimSpace(strings.Trim(s, "*"))
}

func fill(parsed []string, req Request) model.Messages {
	var msgs model.Messages
	for i := range msgs {
		if i < len(parsed) {
			msgs[i] = parsed[i]
			continue
		}
		msgs[i] = FallbackPitch(req.Name, req.Company, req.Campaign, i+1)
	}
	return msgs
}

func formatProblems(p [3]string) string {
	return fmt.Sprintf("Problem 1: %s\nProblem 2: %s\nProblem 3: %s", p[0], p[1], p[2])
}

func customInstructions(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "\n**ADDITIONAL INSTRUCTIONS:**\n" + s + "\n"
}

func companyInfo(company string) string {
	if company == "" {
		return "Company information not available"
	}
	url := CompanyURL(company)
	if url == "" {
		url = "Not available"
	}
	return fmt.Sprintf("Company: %s\nCompany URL: %s", company, url)
}

var (
	nonSlugRe    = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CompanyURL guesses a LinkedIn company page from a company name.
func CompanyURL(company string) string {
	slug := nonSlugRe.ReplaceAllString(strings.ToLower(company), "")
	slug = strings.Trim(whitespaceRe.ReplaceAllString(strings.TrimSpace(slug), "-"), "-")
	if slug == "" {
		return ""
	}
	return "https://www.linkedin.com/company/" + slug
}
