// Package leads reads lead spreadsheets and filters them down to the rows the
// enrichment pipeline can process.
package leads

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/outreach-cli/internal/model"
)

// profileHost is the substring that marks a full profile URL.
const profileHost = "linkedin.com"

var bareIdentifier = regexp.MustCompile(`^[A-Za-z0-9\-._]+$`)

// Rejection records a row that failed validation.
type Rejection struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	ProfileRef string `json:"profile_ref"`
	Reason     string `json:"reason"`
}

// Filtered is the result of FilterValid.
type Filtered struct {
	Valid    []model.ValidLead
	Rejected []Rejection
}

// Skipped returns the number of rejected rows.
func (f Filtered) Skipped() int { return len(f.Rejected) }

// FilterValid keeps the leads that carry a usable name and profile reference,
// in their original order. It is a pure function of its inputs.
func FilterValid(raw []model.Lead, cfg model.PipelineConfig) Filtered {
	var out Filtered
	for i, lead := range raw {
		name := lead.Get(cfg.NameField)
		ref := ProfileRef(lead, cfg)

		reason := ""
		switch {
		case !validName(name):
			reason = "missing or invalid name"
		case !validProfileRef(ref):
			reason = "missing or invalid profile reference"
		}
		if reason != "" {
			out.Rejected = append(out.Rejected, Rejection{Index: i, Name: name, ProfileRef: ref, Reason: reason})
			continue
		}

		out.Valid = append(out.Valid, model.ValidLead{
			Lead:       lead,
			Index:      i,
			Name:       name,
			ProfileRef: ref,
			Company:    lead.Get(cfg.CompanyField),
		})
	}
	return out
}

// ProfileRef resolves the profile reference for a lead. The alternate column
// wins when UseAlternateRef is set and the column is populated.
func ProfileRef(lead model.Lead, cfg model.PipelineConfig) string {
	if cfg.UseAlternateRef && cfg.AlternateProfileRefField != "" {
		if alt := lead.Get(cfg.AlternateProfileRefField); alt != "" {
			return alt
		}
	}
	return lead.Get(cfg.ProfileRefField)
}

func validName(name string) bool {
	return utf8.RuneCountInString(name) > 1 && !placeholder(name)
}

func validProfileRef(ref string) bool {
	if utf8.RuneCountInString(ref) <= 3 || placeholder(ref) {
		return false
	}
	return strings.Contains(ref, profileHost) || bareIdentifier.MatchString(ref)
}

func placeholder(s string) bool {
	return s == "null" || s == "undefined"
}
