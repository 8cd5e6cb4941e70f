package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"spriteforge/internal/services"
)

const maxRemoteBytes = 64 << 20

// LocalResolver maps store URLs back to files on disk.
type LocalResolver interface {
	PathFromURL(raw string) (string, bool)
}

// Fetcher turns image URLs into decoded images.
type Fetcher struct {
	resolver   LocalResolver
	httpClient *http.Client
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient overrides the client used for http(s) URLs.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// NewFetcher constructs a Fetcher. resolver may be nil when no local store is in play.
func NewFetcher(resolver LocalResolver, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		resolver:   resolver,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch resolves raw and decodes the image behind it.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (image.Image, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, services.Wrap(services.ErrValidation, "imaging", "fetch", "empty image url", nil)
	}
	if f.resolver != nil {
		if path, ok := f.resolver.PathFromURL(raw); ok {
			return f.load(path)
		}
	}
	switch {
	case strings.HasPrefix(raw, "data:"):
		return decodeDataURL(raw)
	case strings.HasPrefix(raw, "file://"):
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "imaging", "fetch", "parse file url", err)
		}
		return f.load(parsed.Path)
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return f.fetchRemote(ctx, raw)
	case filepath.IsAbs(raw):
		return f.load(raw)
	default:
		return nil, services.Wrap(services.ErrValidation, "imaging", "fetch", fmt.Sprintf("unsupported image url %q", truncate(raw)), nil)
	}
}

func (f *Fetcher) load(path string) (image.Image, error) {
	img, err := Load(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "imaging", "load", path, err)
	}
	return img, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, raw string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "imaging", "fetch", "build request", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "imaging", "fetch", truncate(raw), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrExternalTool, "imaging", "fetch", fmt.Sprintf("%s returned status %d", truncate(raw), resp.StatusCode), nil)
	}
	img, _, err := Decode(io.LimitReader(resp.Body, maxRemoteBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "imaging", "fetch", truncate(raw), err)
	}
	return img, nil
}

func decodeDataURL(raw string) (image.Image, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "imaging", "decode data url", "missing payload", nil)
	}
	var data []byte
	if strings.HasSuffix(header, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "imaging", "decode data url", "base64", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "imaging", "decode data url", "unescape", err)
		}
		data = []byte(unescaped)
	}
	img, _, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "imaging", "decode data url", "", err)
	}
	return img, nil
}

func truncate(raw string) string {
	if len(raw) <= 96 {
		return raw
	}
	return raw[:96] + "..."
}
