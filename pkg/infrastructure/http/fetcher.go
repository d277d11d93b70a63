package http

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/andybalholm/brotli"
)

// Fetcher performs plain HTTP GETs and returns the raw payload
type Fetcher struct {
	client          *http.Client
	maxResponseSize int64
}

// Config holds HTTP fetcher configuration
type Config struct {
	Timeout         time.Duration
	MaxResponseSize int64
	MaxRedirects    int
}

// NewFetcher creates a new HTTP fetcher
func NewFetcher(config Config) *Fetcher {
	maxRedirects := config.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		maxResponseSize: config.MaxResponseSize,
	}
}

// Fetch issues a GET with the given headers. Redirects are followed and the
// final URL is reported in the payload. The body is decoded according to
// Content-Encoding.
func (f *Fetcher) Fetch(ctx context.Context, url string, header http.Header) (*entity.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := ReadLimited(resp.Body, f.maxResponseSize)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	body, err := Decompress(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", resp.Header.Get("Content-Encoding"), err)
	}
	if f.maxResponseSize > 0 && int64(len(body)) > f.maxResponseSize {
		return nil, fmt.Errorf("decoded body: %w", ErrTooLarge)
	}

	return &entity.Payload{
		RequestedURL: url,
		FinalURL:     resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		Body:         body,
	}, nil
}

// ErrTooLarge reports a body over the size cap. A cut body could still pass
// as an image, so it is refused instead.
var ErrTooLarge = errors.New("response body exceeds size limit")

// ReadLimited reads r fully, failing with ErrTooLarge past limit bytes;
// limit <= 0 means no cap
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", ErrTooLarge, limit)
	}
	return body, nil
}

// Decompress decodes a body per its Content-Encoding header. Unknown or
// empty encodings return the body unchanged; magic bytes are never guessed
// since binary images can look like compressed streams.
func Decompress(body []byte, contentEncoding string) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}

	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(bytes.NewReader(body))
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		return body, nil
	}

	return io.ReadAll(reader)
}
