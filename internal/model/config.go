package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidConfig marks every PipelineConfig validation failure.
var ErrInvalidConfig = eris.New("invalid pipeline config")

// PacingMode selects the inter-lead delay distribution.
type PacingMode string

const (
	PacingFast   PacingMode = "fast"
	PacingMedium PacingMode = "medium"
	PacingSlow   PacingMode = "slow"
	PacingCustom PacingMode = "custom"
)

// Custom pacing bounds, in seconds. Values outside are rejected, not clamped.
const (
	MinCustomDelaySeconds = 10
	MaxCustomDelaySeconds = 300
)

// Pacing governs the spacing between successive leads.
type Pacing struct {
	Mode          PacingMode `json:"mode" yaml:"mode" mapstructure:"mode"`
	CustomSeconds int        `json:"custom_seconds,omitempty" yaml:"custom_seconds" mapstructure:"custom_seconds"`
}

// Range returns the delay interval [lo, hi). For custom pacing lo == hi.
// An empty mode behaves as medium.
func (p Pacing) Range() (lo, hi time.Duration) {
	switch p.Mode {
	case PacingFast:
		return 30 * time.Second, 60 * time.Second
	case PacingSlow:
		return 120 * time.Second, 180 * time.Second
	case PacingCustom:
		d := time.Duration(p.CustomSeconds) * time.Second
		return d, d
	default:
		return 60 * time.Second, 90 * time.Second
	}
}

// Validate rejects unknown modes and out-of-range custom delays.
func (p Pacing) Validate() error {
	switch p.Mode {
	case "", PacingFast, PacingMedium, PacingSlow:
		return nil
	case PacingCustom:
		if p.CustomSeconds < MinCustomDelaySeconds || p.CustomSeconds > MaxCustomDelaySeconds {
			return eris.Wrapf(ErrInvalidConfig, "custom delay must be between %d and %d seconds, got %d",
				MinCustomDelaySeconds, MaxCustomDelaySeconds, p.CustomSeconds)
		}
		return nil
	default:
		return eris.Wrapf(ErrInvalidConfig, "unknown pacing mode %q", p.Mode)
	}
}

// Campaign parameterises message generation.
type Campaign struct {
	ServiceType        string `json:"service_type" yaml:"service_type"`
	IndustryFocus      string `json:"industry_focus" yaml:"industry_focus"`
	CustomInstructions string `json:"custom_instructions,omitempty" yaml:"custom_instructions"`
}

// DefaultPageTimeoutSeconds applies when PipelineConfig.PageTimeoutSeconds is zero.
const DefaultPageTimeoutSeconds = 10

// PipelineConfig is read once when a run starts and is immutable afterwards.
type PipelineConfig struct {
	NameField                string   `json:"name_field" yaml:"name_field"`
	ProfileRefField          string   `json:"profile_ref_field" yaml:"profile_ref_field"`
	AlternateProfileRefField string   `json:"alternate_profile_ref_field,omitempty" yaml:"alternate_profile_ref_field"`
	UseAlternateRef          bool     `json:"use_alternate_ref" yaml:"use_alternate_ref"`
	CompanyField             string   `json:"company_field,omitempty" yaml:"company_field"`
	Campaign                 Campaign `json:"campaign" yaml:"campaign"`
	Pacing                   Pacing   `json:"pacing" yaml:"pacing"`
	PageTimeoutSeconds       int      `json:"page_timeout_seconds" yaml:"page_timeout_seconds"`
}

// PageTimeout returns the per-fetch timeout.
func (c PipelineConfig) PageTimeout() time.Duration {
	secs := c.PageTimeoutSeconds
	if secs <= 0 {
		secs = DefaultPageTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// Validate checks the required column mapping, campaign fields and pacing.
func (c PipelineConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.NameField) == "" {
		missing = append(missing, "name field")
	}
	if strings.TrimSpace(c.ProfileRefField) == "" {
		missing = append(missing, "profile field")
	}
	if c.UseAlternateRef && strings.TrimSpace(c.AlternateProfileRefField) == "" {
		missing = append(missing, "alternate profile field")
	}
	if strings.TrimSpace(c.Campaign.ServiceType) == "" {
		missing = append(missing, "service type")
	}
	if strings.TrimSpace(c.Campaign.IndustryFocus) == "" {
		missing = append(missing, "industry focus")
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrInvalidConfig, "missing %s", strings.Join(missing, ", "))
	}
	if c.PageTimeoutSeconds < 0 {
		return eris.Wrapf(ErrInvalidConfig, "page timeout must be positive, got %d", c.PageTimeoutSeconds)
	}
	return c.Pacing.Validate()
}

// ValidLead is a lead that passed validation, with its source row index and
// the profile reference the pipeline will fetch.
type ValidLead struct {
	Lead       Lead   `json:"lead"`
	Index      int    `json:"index"`
	Name       string `json:"name"`
	ProfileRef string `json:"profile_ref"`
	Company    string `json:"company,omitempty"`
}
