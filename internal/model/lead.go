// Package model defines the lead, outcome and run configuration types shared by
// the enrichment pipeline.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Lead is one spreadsheet row. Columns keeps the header order of the source so
// exports can reproduce it; Values maps column name to raw cell text.
type Lead struct {
	Columns []string          `json:"columns"`
	Values  map[string]string `json:"values"`
}

// NewLead builds a Lead from a header row and the matching cells. Missing
// trailing cells become empty strings; surplus cells are ignored.
func NewLead(header, cells []string) Lead {
	l := Lead{
		Columns: make([]string, 0, len(header)),
		Values:  make(map[string]string, len(header)),
	}
	for i, col := range header {
		if _, dup := l.Values[col]; dup {
			continue
		}
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		l.Columns = append(l.Columns, col)
		l.Values[col] = v
	}
	return l
}

// Get returns the trimmed value of field, or "" when the column is absent.
func (l Lead) Get(field string) string {
	if field == "" {
		return ""
	}
	return strings.TrimSpace(l.Values[field])
}

// Status is the terminal enrichment outcome of a single lead.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusNotFound  Status = "not_found"
	StatusSkipped   Status = "skipped"
)

// Messages holds the three drafted outreach messages for a lead.
type Messages [3]string

// EnrichedLead is the outcome record produced for every processed lead.
type EnrichedLead struct {
	Lead              Lead      `json:"lead"`
	Status            Status    `json:"status"`
	Messages          Messages  `json:"messages"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	EnrichedAt        time.Time `json:"enriched_at,omitempty"`
	FailedAt          time.Time `json:"failed_at,omitempty"`
	ProfileDataLength int       `json:"profile_data_length,omitempty"`
	OriginalIndex     int       `json:"original_index"`
}

// Field is a named export value.
type Field struct {
	Name  string
	Value string
	// Internal fields are bookkeeping and never exported.
	Internal bool
}

// Export column names appended after the lead's own columns.
const (
	FieldPitch1            = "pitch_1"
	FieldPitch2            = "pitch_2"
	FieldPitch3            = "pitch_3"
	FieldStatus            = "enrichment_status"
	FieldErrorMessage      = "error_message"
	FieldEnrichedDate      = "enriched_date"
	FieldFailedDate        = "failed_date"
	FieldProfileDataLength = "profile_data_length"
	FieldOriginalIndex     = "_original_index"
)

// Fields renders the record as ordered name/value pairs. Completed leads carry
// enriched_date and profile_data_length; every other status carries
// error_message and failed_date. The original index is marked Internal.
func (e EnrichedLead) Fields() []Field {
	out := make([]Field, 0, len(e.Lead.Columns)+8)
	for _, col := range e.Lead.Columns {
		out = append(out, Field{Name: col, Value: e.Lead.Values[col]})
	}
	out = append(out,
		Field{Name: FieldPitch1, Value: e.Messages[0]},
		Field{Name: FieldPitch2, Value: e.Messages[1]},
		Field{Name: FieldPitch3, Value: e.Messages[2]},
		Field{Name: FieldStatus, Value: string(e.Status)},
	)
	if e.Status == StatusCompleted {
		out = append(out,
			Field{Name: FieldEnrichedDate, Value: formatTime(e.EnrichedAt)},
			Field{Name: FieldProfileDataLength, Value: strconv.Itoa(e.ProfileDataLength)},
		)
	} else {
		out = append(out,
			Field{Name: FieldErrorMessage, Value: e.ErrorMessage},
			Field{Name: FieldFailedDate, Value: formatTime(e.FailedAt)},
		)
	}
	out = append(out, Field{Name: FieldOriginalIndex, Value: strconv.Itoa(e.OriginalIndex), Internal: true})
	return out
}

// Completed builds a successful record.
func Completed(lead Lead, idx int, msgs Messages, textLen int, at time.Time) EnrichedLead {
	return EnrichedLead{
		Lead:              lead,
		Status:            StatusCompleted,
		Messages:          msgs,
		EnrichedAt:        at.UTC(),
		ProfileDataLength: textLen,
		OriginalIndex:     idx,
	}
}

// Failure builds a record for any non-completed status. Messages stay empty.
func Failure(lead Lead, idx int, status Status, reason string, at time.Time) EnrichedLead {
	return EnrichedLead{
		Lead:          lead,
		Status:        status,
		ErrorMessage:  reason,
		FailedAt:      at.UTC(),
		OriginalIndex: idx,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
