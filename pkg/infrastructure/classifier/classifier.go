package classifier

import (
	"bytes"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

// sniffLength is how much of the body is inspected for HTML markers
const sniffLength = 512

// FallbackExtension is used for images whose format cannot be named
const FallbackExtension = ".img"

// ImageExtensions are URL path extensions accepted as images
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".svg":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// mimeExtensions is explicit so file names do not depend on the host's mime.types
var mimeExtensions = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/jpg":                ".jpg",
	"image/pjpeg":              ".jpg",
	"image/gif":                ".gif",
	"image/svg+xml":            ".svg",
	"image/webp":               ".webp",
	"image/bmp":                ".bmp",
	"image/x-ms-bmp":           ".bmp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
	"image/avif":               ".avif",
	"image/tiff":               ".tiff",
}

var htmlMarkers = [][]byte{
	[]byte("<html"),
	[]byte("<!doctype html"),
}

// Classifier implements service.Classifier
type Classifier struct{}

// New creates a response classifier
func New() *Classifier {
	return &Classifier{}
}

// Classify decides whether a fetched response is a genuine image
func (c *Classifier) Classify(requestedURL, finalURL, contentType string, body []byte) entity.Classification {
	if finalURL != "" && !SameURL(requestedURL, finalURL) {
		return entity.Classification{
			Verdict: entity.VerdictRedirected,
			Reason:  "redirected to " + finalURL,
		}
	}

	if len(body) == 0 {
		return entity.Classification{Verdict: entity.VerdictNotImage, Reason: "empty body"}
	}

	if LooksLikeHTML(body) {
		return entity.Classification{Verdict: entity.VerdictNotImage, Reason: "html document"}
	}

	mediaType := MediaType(contentType)
	sourceURL := requestedURL
	if finalURL != "" {
		sourceURL = finalURL
	}
	urlExt := urlExtension(sourceURL)

	if strings.HasPrefix(mediaType, "image/") || ImageExtensions[urlExt] {
		return entity.Classification{
			Verdict:   entity.VerdictImage,
			Extension: Extension(mediaType, sourceURL),
		}
	}

	return entity.Classification{
		Verdict: entity.VerdictNotImage,
		Reason:  "unexpected content type " + quoteEmpty(mediaType),
	}
}

// LooksLikeHTML reports whether the head of the body is an HTML document
func LooksLikeHTML(body []byte) bool {
	head := body
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	head = bytes.ToLower(head)
	for _, marker := range htmlMarkers {
		if bytes.Contains(head, marker) {
			return true
		}
	}
	return false
}

// MediaType strips parameters from a Content-Type header
func MediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return strings.ToLower(mediaType)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// Extension picks the file extension for an image: MIME table first, then
// the URL path, then FallbackExtension
func Extension(mediaType, rawURL string) string {
	if ext, ok := mimeExtensions[MediaType(mediaType)]; ok {
		return ext
	}
	if ext := urlExtension(rawURL); ImageExtensions[ext] {
		if ext == ".jpeg" {
			return ".jpg"
		}
		return ext
	}
	return FallbackExtension
}

// SameURL compares two URLs ignoring scheme/host case, default ports and an
// empty path
func SameURL(a, b string) bool {
	if a == b {
		return true
	}
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return canonical(ua) == canonical(ub)
}

func canonical(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	out := scheme + "://" + host + p
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

func urlExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

func quoteEmpty(s string) string {
	if s == "" {
		return `""`
	}
	return s
}
