// Package lookup holds the reference tables joined onto extracted holdings:
// CUSIP to registrant code (CIK) and CUSIP to display symbol (ticker).
//
// Tables are loaded once per run and are read-only afterwards.
package lookup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filing_holdings/pkg/core/cusip"
)

// ErrTableMissing is returned when a lookup file does not exist.
var ErrTableMissing = errors.New("lookup table not found")

// RegistrantMapping is one manual CUSIP -> registrant entry, used to fill gaps in
// the published mapping.
type RegistrantMapping struct {
	Code    string `yaml:"cik"`
	Issuer  string `yaml:"cusip6"`
	Cusip8  string `yaml:"cusip8"`
	Comment string `yaml:"comment,omitempty"`
}

// Registrants maps normalized identifiers to raw registrant codes. Codes stay
// text here; the reconciler parses them so a bad code fails one row, not the run.
type Registrants struct {
	byCode   map[string]string
	byIssuer map[string]string
	fallback bool
}

// NewRegistrants builds a table from mappings. Later entries override earlier
// ones, so manual mappings appended after the published table win. With
// issuerFallback, identifiers missing from the table are retried by their
// 6-character issuer prefix.
func NewRegistrants(mappings []RegistrantMapping, issuerFallback bool) *Registrants {
	r := &Registrants{
		byCode:   make(map[string]string, len(mappings)),
		byIssuer: make(map[string]string, len(mappings)),
		fallback: issuerFallback,
	}
	r.add(mappings)
	return r
}

func (r *Registrants) add(mappings []RegistrantMapping) {
	for _, m := range mappings {
		code := strings.TrimSpace(m.Code)
		if code == "" {
			continue
		}
		if key := strings.TrimSpace(m.Cusip8); key != "" {
			r.byCode[key] = code
		}
		issuer := strings.TrimSpace(m.Issuer)
		if issuer == "" && m.Cusip8 != "" {
			issuer = cusip.Issuer(strings.TrimSpace(m.Cusip8))
		}
		if issuer != "" {
			r.byIssuer[issuer] = code
		}
	}
}

// Lookup returns the raw registrant code for a normalized identifier.
func (r *Registrants) Lookup(identifier string) (string, bool) {
	if code, ok := r.byCode[identifier]; ok {
		return code, true
	}
	if r.fallback {
		code, ok := r.byIssuer[cusip.Issuer(identifier)]
		return code, ok
	}
	return "", false
}

// Len returns the number of identifiers in the table.
func (r *Registrants) Len() int {
	return len(r.byCode)
}

// LoadRegistrants reads a CUSIP mapping CSV with a "cik,cusip6,cusip8" header and
// appends the manual extra mappings. Without a recognizable header the columns
// are taken positionally in that order.
func LoadRegistrants(path string, extra []RegistrantMapping, issuerFallback bool) (*Registrants, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	codeCol, issuerCol, cusipCol := 0, 1, 2
	if len(records) > 0 {
		header := indexHeader(records[0])
		if c, ok := header["cik"]; ok {
			codeCol = c
			issuerCol = lookupOr(header, "cusip6", -1)
			cusipCol = lookupOr(header, "cusip8", cusipCol)
			records = records[1:]
		}
	}

	mappings := make([]RegistrantMapping, 0, len(records)+len(extra))
	for _, rec := range records {
		if len(rec) <= codeCol || len(rec) <= cusipCol {
			continue
		}
		m := RegistrantMapping{Code: rec[codeCol], Cusip8: rec[cusipCol]}
		if issuerCol >= 0 && issuerCol < len(rec) {
			m.Issuer = rec[issuerCol]
		}
		mappings = append(mappings, m)
	}
	mappings = append(mappings, extra...)

	return NewRegistrants(mappings, issuerFallback), nil
}

// Symbols maps normalized identifiers to display symbols, with a secondary map
// from registrant code for identifiers the primary table does not know.
type Symbols struct {
	byIdentifier map[string]string
	byRegistrant map[string]string
}

// NewSymbols builds a symbol table. byRegistrant keys are registrant codes
// without leading zeros.
func NewSymbols(byIdentifier map[string]string, byRegistrant map[string]string) *Symbols {
	s := &Symbols{
		byIdentifier: make(map[string]string, len(byIdentifier)),
		byRegistrant: make(map[string]string, len(byRegistrant)),
	}
	for k, v := range byIdentifier {
		s.byIdentifier[k] = v
	}
	for k, v := range byRegistrant {
		s.byRegistrant[TrimCode(k)] = v
	}
	return s
}

// Lookup returns the symbol of a normalized identifier.
func (s *Symbols) Lookup(identifier string) (string, bool) {
	sym, ok := s.byIdentifier[identifier]
	return sym, ok && sym != ""
}

// ByRegistrant returns the manually mapped symbol of a registrant code.
func (s *Symbols) ByRegistrant(code string) (string, bool) {
	sym, ok := s.byRegistrant[TrimCode(code)]
	return sym, ok && sym != ""
}

// Len returns the number of identifiers in the table.
func (s *Symbols) Len() int {
	return len(s.byIdentifier)
}

// LoadSymbols reads a headerless CSV whose first column is the identifier and
// second the symbol. The first row for an identifier wins.
func LoadSymbols(path string, byRegistrant map[string]string) (*Symbols, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	byIdentifier := make(map[string]string, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		key := strings.TrimSpace(rec[0])
		if _, exists := byIdentifier[key]; exists || key == "" {
			continue
		}
		byIdentifier[key] = strings.TrimSpace(rec[1])
	}
	return NewSymbols(byIdentifier, byRegistrant), nil
}

// TrimCode strips blanks and leading zeros from a registrant code.
func TrimCode(code string) string {
	return strings.TrimLeft(strings.TrimSpace(code), "0")
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrTableMissing)
		}
		return nil, fmt.Errorf("failed to open lookup table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func indexHeader(row []string) map[string]int {
	header := make(map[string]int, len(row))
	for i, name := range row {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return header
}

func lookupOr(header map[string]int, name string, def int) int {
	if i, ok := header[name]; ok {
		return i
	}
	return def
}
