package classifier

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

func pngOfSize(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestClassifier_Classify(t *testing.T) {
	c := New()
	pngBody := pngOfSize(t, 4, 4)

	tests := []struct {
		name         string
		requestedURL string
		finalURL     string
		contentType  string
		body         []byte
		verdict      entity.Verdict
		extension    string
	}{
		{
			name:         "png by content type",
			requestedURL: "https://example.com/logo",
			contentType:  "image/png",
			body:         pngBody,
			verdict:      entity.VerdictImage,
			extension:    ".png",
		},
		{
			name:         "content type with parameters",
			requestedURL: "https://example.com/logo",
			contentType:  "image/svg+xml; charset=utf-8",
			body:         []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`),
			verdict:      entity.VerdictImage,
			extension:    ".svg",
		},
		{
			name:         "extension without content type",
			requestedURL: "https://example.com/logo.JPEG",
			contentType:  "application/octet-stream",
			body:         []byte{0xff, 0xd8, 0xff, 0xe0},
			verdict:      entity.VerdictImage,
			extension:    ".jpg",
		},
		{
			name:         "unknown image subtype falls back",
			requestedURL: "https://example.com/logo",
			contentType:  "image/x-portable-pixmap",
			body:         []byte("P6 1 1 255 abc"),
			verdict:      entity.VerdictImage,
			extension:    ".img",
		},
		{
			name:         "redirect with image body",
			requestedURL: "https://example.com/logo.png",
			finalURL:     "https://example.com/login",
			contentType:  "image/png",
			body:         pngBody,
			verdict:      entity.VerdictRedirected,
		},
		{
			name:         "equivalent final url",
			requestedURL: "https://Example.com:443",
			finalURL:     "https://example.com/",
			contentType:  "image/png",
			body:         pngBody,
			verdict:      entity.VerdictImage,
			extension:    ".png",
		},
		{
			name:         "html served as image",
			requestedURL: "https://example.com/logo.png",
			contentType:  "image/png",
			body:         []byte("<!DOCTYPE html><html><head><title>Just a moment...</title></head></html>"),
			verdict:      entity.VerdictNotImage,
		},
		{
			name:         "svg doctype is not html",
			requestedURL: "https://example.com/logo.svg",
			contentType:  "image/svg+xml",
			body:         []byte(`<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN"><svg></svg>`),
			verdict:      entity.VerdictImage,
			extension:    ".svg",
		},
		{
			name:         "html marker after sniff window",
			requestedURL: "https://example.com/logo.png",
			contentType:  "image/png",
			body:         append(bytes.Repeat([]byte{0}, sniffLength), []byte("<html>")...),
			verdict:      entity.VerdictImage,
			extension:    ".png",
		},
		{
			name:         "empty body",
			requestedURL: "https://example.com/logo.png",
			contentType:  "image/png",
			verdict:      entity.VerdictNotImage,
		},
		{
			name:         "json",
			requestedURL: "https://example.com/api",
			contentType:  "application/json",
			body:         []byte(`{"error":"not found"}`),
			verdict:      entity.VerdictNotImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.requestedURL, tt.finalURL, tt.contentType, tt.body)
			if result.Verdict != tt.verdict {
				t.Fatalf("Verdict = %s (%s), want %s", result.Verdict, result.Reason, tt.verdict)
			}
			if result.Extension != tt.extension {
				t.Errorf("Extension = %q, want %q", result.Extension, tt.extension)
			}
		})
	}
}

func TestSameURL(t *testing.T) {
	tests := []struct {
		a, b     string
		expected bool
	}{
		{"https://example.com", "https://example.com/", true},
		{"HTTPS://EXAMPLE.com/a", "https://example.com/a", true},
		{"http://example.com:80/a", "http://example.com/a", true},
		{"https://example.com/a", "https://example.com/b", false},
		{"https://example.com/a", "http://example.com/a", false},
		{"https://example.com/a?x=1", "https://example.com/a?x=2", false},
	}

	for _, tt := range tests {
		if got := SameURL(tt.a, tt.b); got != tt.expected {
			t.Errorf("SameURL(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestClassifier_CheckDimensions(t *testing.T) {
	c := New()

	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantErr     bool
		degenerate  bool
	}{
		{"tracking pixel", "image/png", pngOfSize(t, 1, 1), true, true},
		{"thin line", "image/png", pngOfSize(t, 64, 1), true, true},
		{"real logo", "image/png", pngOfSize(t, 128, 128), false, false},
		{"svg", "image/svg+xml", []byte(`<?xml version="1.0"?><svg width="10"></svg>`), false, false},
		{"svg without root", "image/svg+xml", []byte(`<?xml version="1.0"?><g/>`), true, true},
		{"garbage", "image/png", []byte("not an image at all"), true, false},
		{"empty", "image/png", nil, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.CheckDimensions(tt.contentType, tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckDimensions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrDegenerateImage) != tt.degenerate {
				t.Errorf("errors.Is(err, ErrDegenerateImage) = %v, want %v", !tt.degenerate, tt.degenerate)
			}
		})
	}
}

func TestDescribeChallenge(t *testing.T) {
	body := []byte(`<!DOCTYPE html><html><head>
<title>
  Just a moment...
</title>
<meta http-equiv="refresh" content="5;url=/">
</head><body><form id="challenge-form"></form>
<script src="/cdn-cgi/challenge-platform/h/b/orchestrate"></script></body></html>`)

	challenge := DescribeChallenge(body)

	if challenge.Title != "Just a moment..." {
		t.Errorf("Title = %q", challenge.Title)
	}
	if challenge.MetaRefresh != "5;url=/" {
		t.Errorf("MetaRefresh = %q", challenge.MetaRefresh)
	}
	if !challenge.IsChallenged {
		t.Error("expected challenge")
	}
	rendered := challenge.String()
	for _, want := range []string{"cloudflare-challenge-form", "cloudflare-interstitial", "meta-refresh"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("String() = %q, missing %s", rendered, want)
		}
	}
}

func TestDescribeChallenge_PlainPage(t *testing.T) {
	challenge := DescribeChallenge([]byte(`<html><head><title>Home</title></head><body>Welcome</body></html>`))
	if challenge.IsChallenged {
		t.Errorf("unexpected indicators %v", challenge.Indicators)
	}
	if challenge.String() != "title=Home" {
		t.Errorf("String() = %q", challenge.String())
	}
}
