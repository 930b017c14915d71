package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"go.uber.org/zap"
)

// ErrIndexMissing is returned when the filing index file does not exist.
var ErrIndexMissing = errors.New("filing index not found")

// FilingRef points at one filing document and the period it reports on.
type FilingRef struct {
	Period   time.Time
	URL      string
	FormType string
}

// indexFile mirrors the filing index export: {"filings": [{...}, ...]}.
type indexFile struct {
	Filings []indexEntry `json:"filings"`
}

type indexEntry struct {
	PeriodOfReport string `json:"periodOfReport"`
	LinkToTxt      string `json:"linkToTxt"`
	LinkToHTML     string `json:"linkToHtml,omitempty"`
	FormType       string `json:"formType"`
	FiledAt        string `json:"filedAt,omitempty"`
}

// LoadIndex reads a filing index file and returns the references of the given
// form type that carry a text document link, ordered by period.
//
// Hand-edited index files with trailing commas or comments are repaired before
// giving up.
func LoadIndex(path string, formType string) ([]FilingRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrIndexMissing)
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return ParseIndex(data, formType)
}

// ParseIndex parses filing index JSON. See LoadIndex.
func ParseIndex(data []byte, formType string) ([]FilingRef, error) {
	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		repaired, repairErr := jsonrepair.RepairJSON(string(data))
		if repairErr != nil {
			return nil, fmt.Errorf("failed to parse index: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &idx); err != nil {
			return nil, fmt.Errorf("failed to parse repaired index: %w", err)
		}
		zap.L().Named("ingest").Warn("filing index was malformed and has been repaired")
	}

	log := zap.L().Named("ingest")
	refs := make([]FilingRef, 0, len(idx.Filings))
	for _, entry := range idx.Filings {
		if entry.LinkToTxt == "" || entry.FormType != formType {
			continue
		}
		period, err := ParsePeriod(entry.PeriodOfReport)
		if err != nil {
			log.Warn("skipping index entry", zap.String("url", entry.LinkToTxt), zap.Error(err))
			continue
		}
		refs = append(refs, FilingRef{Period: period, URL: entry.LinkToTxt, FormType: entry.FormType})
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Period.Before(refs[j].Period) })
	return refs, nil
}

// WriteIndex stores references in the index file format read by LoadIndex.
func WriteIndex(path string, refs []FilingRef) error {
	idx := indexFile{Filings: make([]indexEntry, 0, len(refs))}
	for _, ref := range refs {
		idx.Filings = append(idx.Filings, indexEntry{
			PeriodOfReport: ref.Period.Format("2006-01-02"),
			LinkToTxt:      ref.URL,
			FormType:       ref.FormType,
		})
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// ParsePeriod accepts the date forms found in filing indexes: a plain date or a
// full timestamp.
func ParsePeriod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid period %q", s)
}
