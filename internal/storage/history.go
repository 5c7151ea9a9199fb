package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// CurrentRecordVersion is written into every RunRecord.
const CurrentRecordVersion = "1"

// RunRecord is the persisted summary of one render run.
type RunRecord struct {
	Version    string    `json:"version"`
	Key        string    `json:"key"`
	Demo       string    `json:"demo"`
	Output     string    `json:"output"`
	StartTick  int       `json:"start_tick"`
	EndTick    int       `json:"end_tick"`
	Profile    string    `json:"profile,omitempty"`
	Outcome    string    `json:"outcome"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
	Markers    int       `json:"markers"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r RunRecord) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// History stores RunRecords as <Dir>/<key>.run.json.
type History struct {
	Dir string
}

// Save writes rec, replacing any record with the same key.
func (h History) Save(rec *RunRecord) error {
	if !IsRunKey(rec.Key) {
		return fmt.Errorf("invalid run key %q", rec.Key)
	}
	if rec.Version == "" {
		rec.Version = CurrentRecordVersion
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := AtomicWriteFile(filepath.Join(h.Dir, historyFileName(rec.Key)), data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// List returns every readable record, newest first. Unparseable files are
// ignored.
func (h History) List() ([]RunRecord, error) {
	entries, err := os.ReadDir(h.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory %q: %w", h.Dir, err)
	}

	var out []RunRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".run.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(h.Dir, e.Name()))
		if err != nil {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.Key == "" {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Retention bounds the history. Zero fields disable the respective limit.
type Retention struct {
	MaxCount   int
	MaxAgeDays int
}

// Prune deletes records beyond the retention policy and returns their keys.
func (h History) Prune(r Retention, now time.Time) ([]string, error) {
	records, err := h.List()
	if err != nil {
		return nil, err
	}

	toRemove := make(map[string]bool)
	if r.MaxAgeDays > 0 {
		cutoff := now.Add(-time.Duration(r.MaxAgeDays) * 24 * time.Hour)
		for _, rec := range records {
			if rec.StartedAt.Before(cutoff) {
				toRemove[rec.Key] = true
			}
		}
	}
	// records is newest first, so everything past MaxCount is oldest.
	if r.MaxCount > 0 && len(records) > r.MaxCount {
		for _, rec := range records[r.MaxCount:] {
			toRemove[rec.Key] = true
		}
	}

	var removed []string
	for _, rec := range records {
		if !toRemove[rec.Key] {
			continue
		}
		if err := os.Remove(filepath.Join(h.Dir, historyFileName(rec.Key))); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove run record %s: %w", rec.Key, err)
		}
		removed = append(removed, rec.Key)
	}
	return removed, nil
}
