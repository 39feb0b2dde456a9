package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/starford/quill/internal/apperr"
)

// Fetcher downloads remote assets.
type Fetcher struct {
	// AllowHost, when set, overrides the loopback and metadata host check.
	AllowHost func(host string) bool
	Timeout   time.Duration
}

// Fetch resolves a data URI or http(s) URL into bytes and the extension
// implied by its MIME type.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return DecodeDataURI(rawURL)
	}
	return f.fetchHTTP(ctx, rawURL)
}

// DecodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("assets: invalid data URI: missing comma separator: %w", apperr.ErrInvalid)
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("assets: only base64 data URIs are supported: %w", apperr.ErrInvalid)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("assets: invalid base64 data: %w", apperr.ErrInvalid)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := ExtForMIME(mime)
	if ext == "" {
		return nil, "", fmt.Errorf("assets: unsupported MIME type in data URI: %s: %w", mime, apperr.ErrInvalid)
	}
	return data, ext, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("assets: invalid URL: %w", apperr.ErrInvalid)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("assets: unsupported scheme %q (only http/https): %w", parsed.Scheme, apperr.ErrInvalid)
	}
	if err := f.checkHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	timeout := f.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return f.checkHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("assets: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("assets: download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("assets: download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("assets: read body: %w", err)
	}
	if len(data) > MaxSize {
		return nil, "", fmt.Errorf("assets: file too large: exceeds %d bytes: %w", MaxSize, apperr.ErrInvalid)
	}
	return data, ExtForMIME(resp.Header.Get("Content-Type")), nil
}

// checkHost rejects loopback and cloud metadata addresses.
func (f *Fetcher) checkHost(host string) error {
	if f.AllowHost != nil && f.AllowHost(host) {
		return nil
	}
	if host == "metadata.google.internal" {
		return fmt.Errorf("assets: blocked host %s: %w", host, apperr.ErrForbidden)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("assets: blocked host: loopback address %s: %w", host, apperr.ErrForbidden)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("assets: blocked host: cloud metadata address %s: %w", host, apperr.ErrForbidden)
	}
	return nil
}

// NameFromURL returns the file name in rawURL's path, or "" when it has none.
func NameFromURL(rawURL string) string {
	if strings.HasPrefix(rawURL, "data:") {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "" || base == "." || base == "/" || !strings.Contains(base, ".") {
		return ""
	}
	return base
}
