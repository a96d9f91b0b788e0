package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() PipelineConfig {
	return PipelineConfig{
		NameField:       "name",
		ProfileRefField: "profile",
		Campaign: Campaign{
			ServiceType:   "Fractional CFO",
			IndustryFocus: "SaaS",
		},
		Pacing: Pacing{Mode: PacingFast},
	}
}

func TestNewLead(t *testing.T) {
	l := NewLead([]string{"name", "profile", "name", "company"}, []string{" Ann ", "linkedin.com/in/ann", "dup"})

	assert.Equal(t, []string{"name", "profile", "company"}, l.Columns)
	assert.Equal(t, "Ann", l.Get("name"))
	assert.Equal(t, " Ann ", l.Values["name"])
	assert.Equal(t, "", l.Get("company"))
	assert.Equal(t, "", l.Get("missing"))
	assert.Equal(t, "", l.Get(""))
}

func TestEnrichedLead_Fields_Completed(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lead := NewLead([]string{"name"}, []string{"Ann"})
	e := Completed(lead, 4, Messages{"m1", "m2", "m3"}, 200, at)

	var names []string
	values := map[string]string{}
	for _, f := range e.Fields() {
		names = append(names, f.Name)
		values[f.Name] = f.Value
	}

	assert.Equal(t, []string{
		"name", FieldPitch1, FieldPitch2, FieldPitch3, FieldStatus,
		FieldEnrichedDate, FieldProfileDataLength, FieldOriginalIndex,
	}, names)
	assert.Equal(t, "completed", values[FieldStatus])
	assert.Equal(t, "200", values[FieldProfileDataLength])
	assert.Equal(t, "2026-03-01T12:00:00Z", values[FieldEnrichedDate])
	assert.Equal(t, "4", values[FieldOriginalIndex])
}

func TestEnrichedLead_Fields_Failure(t *testing.T) {
	lead := NewLead([]string{"name"}, []string{"Bob"})
	e := Failure(lead, 1, StatusNotFound, "profile data too short", time.Now())

	assert.Equal(t, Messages{}, e.Messages)

	values := map[string]string{}
	for _, f := range e.Fields() {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "not_found", values[FieldStatus])
	assert.Equal(t, "profile data too short", values[FieldErrorMessage])
	assert.NotEmpty(t, values[FieldFailedDate])
	assert.Empty(t, values[FieldPitch1])
	_, ok := values[FieldEnrichedDate]
	assert.False(t, ok)
}

func TestPacing_Range(t *testing.T) {
	tests := []struct {
		mode   PacingMode
		custom int
		lo, hi time.Duration
	}{
		{PacingFast, 0, 30 * time.Second, 60 * time.Second},
		{PacingMedium, 0, 60 * time.Second, 90 * time.Second},
		{"", 0, 60 * time.Second, 90 * time.Second},
		{PacingSlow, 0, 120 * time.Second, 180 * time.Second},
		{PacingCustom, 45, 45 * time.Second, 45 * time.Second},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			lo, hi := Pacing{Mode: tt.mode, CustomSeconds: tt.custom}.Range()
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestPacing_Validate(t *testing.T) {
	assert.NoError(t, Pacing{Mode: PacingCustom, CustomSeconds: 10}.Validate())
	assert.NoError(t, Pacing{Mode: PacingCustom, CustomSeconds: 300}.Validate())

	err := Pacing{Mode: PacingCustom, CustomSeconds: 5}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "got 5")

	assert.Error(t, Pacing{Mode: PacingCustom, CustomSeconds: 301}.Validate())
	assert.Error(t, Pacing{Mode: "warp"}.Validate())
}

func TestPipelineConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Campaign.ServiceType = " "
	cfg.NameField = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "name field")
	assert.Contains(t, err.Error(), "service type")

	cfg = validConfig()
	cfg.UseAlternateRef = true
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Pacing = Pacing{Mode: PacingCustom, CustomSeconds: 5}
	assert.Error(t, cfg.Validate())
}

func TestPipelineConfig_PageTimeout(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 10*time.Second, cfg.PageTimeout())

	cfg.PageTimeoutSeconds = 3
	assert.Equal(t, 3*time.Second, cfg.PageTimeout())
}
