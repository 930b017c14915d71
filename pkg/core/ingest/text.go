package ingest

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodedBody unwraps a gzip response body. The transport only does this itself
// when it added the Accept-Encoding header, and we set it explicitly.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return resp.Body, nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{zr, resp.Body}, nil
}

// DecodeText returns the document as UTF-8. Pre-2001 filings are frequently
// Windows-1252 (curly quotes, section signs) which would otherwise become U+FFFD
// and shift column offsets.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "?")
	}
	return string(decoded)
}
