// Package results accumulates per-lead outcomes and exports them as CSV.
package results

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Store is an append-only, goroutine-safe list of EnrichedLead records.
type Store struct {
	mu      sync.RWMutex
	records []model.EnrichedLead
}

// NewStore returns a store seeded with records.
func NewStore(records ...model.EnrichedLead) *Store {
	s := &Store{}
	s.records = append(s.records, records...)
	return s
}

// Append adds one record.
func (s *Store) Append(rec model.EnrichedLead) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of the records in append order.
func (s *Store) Records() []model.EnrichedLead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.EnrichedLead, len(s.records))
	copy(out, s.records)
	return out
}

// Counts tallies records by status.
func (s *Store) Counts() map[model.Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Status]int)
	for _, r := range s.records {
		out[r.Status]++
	}
	return out
}

// MarshalJSON encodes the records as a JSON array.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Records())
}

// UnmarshalJSON replaces the records with a decoded JSON array.
func (s *Store) UnmarshalJSON(data []byte) error {
	var recs []model.EnrichedLead
	if err := json.Unmarshal(data, &recs); err != nil {
		return eris.Wrap(err, "results: decode records")
	}
	s.mu.Lock()
	s.records = recs
	s.mu.Unlock()
	return nil
}

// Export writes every record as a delimited table. The header is the union of
// field names in first-seen order, minus internal fields.
// Missing fields render empty.
func (s *Store) Export(w io.Writer) error {
	recs := s.Records()

	var columns []string
	seen := make(map[string]bool)
	rows := make([]map[string]string, len(recs))
	for i, r := range recs {
		row := make(map[string]string)
		for _, f := range r.Fields() {
			if f.Internal {
				continue
			}
			if !seen[f.Name] {
				seen[f.Name] = true
				columns = append(columns, f.Name)
			}
			row[f.Name] = f.Value
		}
		rows[i] = row
	}

	bw := bufio.NewWriter(w)
	writeLine(bw, columns)
	vals := make([]string, len(columns))
	for _, row := range rows {
		for j, c := range columns {
			vals[j] = row[c]
		}
		writeLine(bw, vals)
	}
	return eris.Wrap(bw.Flush(), "results: flush export")
}

func writeLine(w *bufio.Writer, vals []string) {
	for i, v := range vals {
		if i > 0 {
			w.WriteByte(',') //nolint:errcheck
		}
		w.WriteString(escape(v)) //nolint:errcheck
	}
	w.WriteByte('\n') //nolint:errcheck
}

func escape(v string) string {
	if !strings.ContainsAny(v, ",\"\r\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// FileName returns the export file name for now, e.g.
// enriched_leads_2026-03-01T12-00-00.csv.
func FileName(now time.Time) string {
	return "enriched_leads_" + now.UTC().Format("2006-01-02T15-04-05") + ".csv"
}

// WriteFile exports into dir under FileName(now) and returns the full path.
func (s *Store) WriteFile(dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "results: create output dir")
	}

	path := filepath.Join(dir, FileName(now))
	tmp, err := os.CreateTemp(dir, ".enriched_leads_*.csv")
	if err != nil {
		return "", eris.Wrap(err, "results: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := s.Export(tmp); err != nil {
		tmp.Close() //nolint:errcheck
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "results: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", eris.Wrap(err, "results: rename export")
	}
	return path, nil
}
