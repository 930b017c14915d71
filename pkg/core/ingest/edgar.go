// Package ingest provides SEC EDGAR access for 13F holdings filings: the filing
// index, the submissions API and document retrieval.
// API Documentation: https://www.sec.gov/developer
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// SEC EDGAR API endpoints
	SECSubmissionsURL = "https://data.sec.gov/submissions/CIK%s.json"
	SECArchiveURL     = "https://www.sec.gov/Archives/edgar/data/%s/%s/%s"

	// DefaultUserAgent is sent when no contact is configured. SEC asks for a
	// "Company Name contact@domain" style value.
	DefaultUserAgent = "FilingHoldings/1.0 (contact@example.com)"

	// FormHoldingsReport is the quarterly institutional holdings report.
	FormHoldingsReport = "13F-HR"

	// SEC fair access allows 10 requests per second.
	DefaultRequestsPerSecond = 8
)

// =============================================================================
// SEC EDGAR DATA TYPES
// =============================================================================

// SECCompanyInfo represents the top-level company submission response.
type SECCompanyInfo struct {
	CIK     string     `json:"cik"`
	Name    string     `json:"name"`
	Tickers []string   `json:"tickers"`
	Filings SECFilings `json:"filings"`
}

// SECFilings contains recent filing lists.
type SECFilings struct {
	Recent SECRecentFilings `json:"recent"`
}

// SECRecentFilings holds arrays of filing attributes (parallel arrays).
type SECRecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"` // e.g., "0000950129-01-500158"
	FilingDate      []string `json:"filingDate"`      // e.g., "2001-05-15"
	ReportDate      []string `json:"reportDate"`      // period of report
	Form            []string `json:"form"`            // "13F-HR", "13F-HR/A", ...
	PrimaryDocument []string `json:"primaryDocument"`
}

// Filing represents a single SEC filing (denormalized from parallel arrays).
type Filing struct {
	AccessionNumber string    `json:"accession_number"`
	FilingDate      time.Time `json:"filing_date"`
	ReportDate      time.Time `json:"report_date"`
	FormType        string    `json:"form_type"`
	TextURL         string    `json:"text_url"` // complete submission text file
}

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// ClientOptions configures an EDGARClient.
type ClientOptions struct {
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
	// SubmissionsURL overrides SECSubmissionsURL (tests).
	SubmissionsURL string
}

// EDGARClient handles SEC EDGAR requests. All requests share one rate limiter.
type EDGARClient struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	userAgent      string
	submissionsURL string
}

// NewEDGARClient creates a new SEC EDGAR API client.
func NewEDGARClient(opts ClientOptions) *EDGARClient {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.SubmissionsURL == "" {
		opts.SubmissionsURL = SECSubmissionsURL
	}
	return &EDGARClient{
		httpClient:     &http.Client{Timeout: opts.Timeout},
		limiter:        rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		userAgent:      opts.UserAgent,
		submissionsURL: opts.SubmissionsURL,
	}
}

// do sends a rate-limited GET with the headers SEC requires.
func (c *EDGARClient) do(ctx context.Context, url string, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SEC request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("SEC returned status %d for %s", resp.StatusCode, url)
	}
	return resp, nil
}

// FetchCompanyInfo retrieves company submission data from SEC EDGAR.
//
// CIK is zero-padded to 10 digits automatically.
func (c *EDGARClient) FetchCompanyInfo(ctx context.Context, cik string) (*SECCompanyInfo, error) {
	url := fmt.Sprintf(c.submissionsURL, PadCIK(cik))

	resp, err := c.do(ctx, url, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var info SECCompanyInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse SEC response: %w", err)
	}
	if info.CIK == "" {
		info.CIK = strings.TrimLeft(PadCIK(cik), "0")
	}
	return &info, nil
}

// Filings extracts filings filtered by form type.
//
// formTypes: "13F-HR", "13F-HR/A", etc. Pass nil for all types.
// limit: Maximum number of filings to return (0 = no limit).
func (c *EDGARClient) Filings(info *SECCompanyInfo, formTypes []string, limit int) []Filing {
	recent := info.Filings.Recent
	filings := make([]Filing, 0)

	formTypeSet := make(map[string]bool)
	for _, ft := range formTypes {
		formTypeSet[ft] = true
	}

	cik := strings.TrimLeft(info.CIK, "0")
	for i := range recent.AccessionNumber {
		if i >= len(recent.Form) || i >= len(recent.ReportDate) || i >= len(recent.FilingDate) {
			break
		}
		if len(formTypes) > 0 && !formTypeSet[recent.Form[i]] {
			continue
		}

		filingDate, _ := time.Parse("2006-01-02", recent.FilingDate[i])
		reportDate, _ := time.Parse("2006-01-02", recent.ReportDate[i])

		// Format: https://www.sec.gov/Archives/edgar/data/{cik}/{accession-no-dashes}/{accession}.txt
		accession := recent.AccessionNumber[i]
		textURL := fmt.Sprintf(SECArchiveURL, cik, strings.ReplaceAll(accession, "-", ""), accession+".txt")

		filings = append(filings, Filing{
			AccessionNumber: accession,
			FilingDate:      filingDate,
			ReportDate:      reportDate,
			FormType:        recent.Form[i],
			TextURL:         textURL,
		})

		if limit > 0 && len(filings) >= limit {
			break
		}
	}

	return filings
}

// BuildIndex fetches the submissions of a filer and returns one FilingRef per
// holdings report with a known report period.
func (c *EDGARClient) BuildIndex(ctx context.Context, cik string) ([]FilingRef, error) {
	info, err := c.FetchCompanyInfo(ctx, cik)
	if err != nil {
		return nil, err
	}

	refs := make([]FilingRef, 0)
	for _, f := range c.Filings(info, []string{FormHoldingsReport}, 0) {
		if f.ReportDate.IsZero() {
			continue
		}
		refs = append(refs, FilingRef{Period: f.ReportDate, URL: f.TextURL, FormType: f.FormType})
	}
	return refs, nil
}

// PadCIK zero-pads a CIK to the 10 digits the submissions API expects.
func PadCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

func readBody(resp *http.Response) ([]byte, error) {
	reader, err := decodedBody(resp)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
