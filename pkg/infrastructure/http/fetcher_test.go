package http

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write(data)
		w.Close()
	case "deflate":
		w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		w.Write(data)
		w.Close()
	case "br":
		w := brotli.NewWriter(&buf)
		w.Write(data)
		w.Close()
	default:
		return data
	}
	return buf.Bytes()
}

func TestFetcher_Encodings(t *testing.T) {
	for _, encoding := range []string{"", "gzip", "deflate", "br"} {
		t.Run("encoding="+encoding, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if encoding != "" {
					w.Header().Set("Content-Encoding", encoding)
				}
				w.Header().Set("Content-Type", "image/png")
				w.Write(compress(t, encoding, pngMagic))
			}))
			defer server.Close()

			fetcher := NewFetcher(Config{Timeout: 5 * time.Second, MaxResponseSize: 1 << 20})
			header := http.Header{}
			header.Set("Accept-Encoding", "gzip, deflate, br")

			payload, err := fetcher.Fetch(context.Background(), server.URL+"/logo.png", header)
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if !bytes.Equal(payload.Body, pngMagic) {
				t.Errorf("Body = % x, want % x", payload.Body, pngMagic)
			}
			if payload.ContentType != "image/png" {
				t.Errorf("ContentType = %s", payload.ContentType)
			}
		})
	}
}

func TestFetcher_ReportsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewFetcher(Config{Timeout: 5 * time.Second})
	payload, err := fetcher.Fetch(context.Background(), server.URL+"/old", nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if payload.RequestedURL != server.URL+"/old" || payload.FinalURL != server.URL+"/new" {
		t.Errorf("RequestedURL = %s, FinalURL = %s", payload.RequestedURL, payload.FinalURL)
	}
}

func TestFetcher_SendsHeadersAndRejectsOversizedBody(t *testing.T) {
	var gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "image/png")
		w.Write(bytes.Repeat([]byte("a"), 100))
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("Referer", "https://example.com/")

	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{"over the cap", 10, true},
		{"exactly the cap", 100, false},
		{"no cap", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := NewFetcher(Config{Timeout: 5 * time.Second, MaxResponseSize: tt.limit})
			payload, err := fetcher.Fetch(context.Background(), server.URL, header)
			if gotReferer != "https://example.com/" {
				t.Errorf("Referer = %q", gotReferer)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrTooLarge) {
					t.Fatalf("Fetch() error = %v, want ErrTooLarge", err)
				}
				if payload != nil {
					t.Error("a cut body must not be returned")
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if len(payload.Body) != 100 {
				t.Errorf("len(Body) = %d, want 100", len(payload.Body))
			}
		})
	}
}

func TestDecompress_PassThrough(t *testing.T) {
	body, err := Decompress(pngMagic, "identity")
	if err != nil || !bytes.Equal(body, pngMagic) {
		t.Errorf("Decompress(identity) = % x, %v", body, err)
	}
	if _, err := Decompress([]byte("not gzip"), "gzip"); err == nil {
		t.Error("Decompress(gzip) of plain text should fail")
	}
}

func TestUserAgent_Random(t *testing.T) {
	ua := NewUserAgent()
	for i := 0; i < 10; i++ {
		if ua.Random() == "" {
			t.Fatal("Random() returned empty agent")
		}
	}
}
