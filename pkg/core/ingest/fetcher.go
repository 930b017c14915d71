package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DocumentFetcher resolves a filing reference to its full text.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, ref FilingRef) (string, error)
}

// SECDocumentFetcher downloads filing documents from SEC EDGAR, keeping a copy in
// an optional local cache directory. References may point at the complete
// submission text file or at the filing's "-index.htm" page; index pages are
// resolved to their text document first.
type SECDocumentFetcher struct {
	client   *EDGARClient
	cacheDir string // Optional local cache directory
}

// NewSECDocumentFetcher creates a fetcher. If cacheDir is empty nothing is cached.
func NewSECDocumentFetcher(client *EDGARClient, cacheDir string) *SECDocumentFetcher {
	return &SECDocumentFetcher{client: client, cacheDir: cacheDir}
}

// FetchDocument implements DocumentFetcher.
func (f *SECDocumentFetcher) FetchDocument(ctx context.Context, ref FilingRef) (string, error) {
	log := zap.L().Named("fetcher")

	// 1. Check cache first
	if cachePath := f.cachePath(ref.URL); cachePath != "" {
		if content, err := os.ReadFile(cachePath); err == nil && len(content) > 0 {
			log.Debug("cache hit", zap.String("url", ref.URL))
			return string(content), nil
		}
	}

	// 2. Resolve index pages to the text document
	docURL := ref.URL
	if isIndexPage(docURL) {
		page, err := f.fetch(ctx, docURL, "text/html")
		if err != nil {
			return "", fmt.Errorf("failed to fetch filing index page: %w", err)
		}
		resolved, err := ResolveTextDocument(page, docURL)
		if err != nil {
			return "", err
		}
		docURL = resolved
	}

	// 3. Download
	content, err := f.fetch(ctx, docURL, "text/plain")
	if err != nil {
		return "", err
	}

	// 4. Cache the result
	if cachePath := f.cachePath(ref.URL); cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err == nil {
			if err := os.WriteFile(cachePath, []byte(content), 0644); err != nil {
				log.Warn("failed to cache document", zap.String("path", cachePath), zap.Error(err))
			}
		}
	}

	return content, nil
}

func (f *SECDocumentFetcher) fetch(ctx context.Context, docURL string, accept string) (string, error) {
	resp, err := f.client.do(ctx, docURL, accept)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", docURL, err)
	}
	return DecodeText(body), nil
}

// cachePath maps a document URL to a stable file name inside the cache dir.
func (f *SECDocumentFetcher) cachePath(docURL string) string {
	if f.cacheDir == "" {
		return ""
	}
	sum := sha1.Sum([]byte(docURL))
	name := hex.EncodeToString(sum[:8])
	if u, err := url.Parse(docURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = name + "_" + strings.TrimSuffix(base, path.Ext(base))
		}
	}
	return filepath.Join(f.cacheDir, "filings", name+".txt")
}

func isIndexPage(docURL string) bool {
	lower := strings.ToLower(docURL)
	return strings.HasSuffix(lower, "-index.htm") || strings.HasSuffix(lower, "-index.html")
}

// FileFetcher reads filing documents from the local file system. The reference
// URL is a path, optionally relative to Root.
type FileFetcher struct {
	Root string
}

// FetchDocument implements DocumentFetcher.
func (f FileFetcher) FetchDocument(ctx context.Context, ref FilingRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := strings.TrimPrefix(ref.URL, "file://")
	if f.Root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(f.Root, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read filing: %w", err)
	}
	return DecodeText(data), nil
}
