package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MinDimension is the exclusive lower bound for width and height
const MinDimension = 1

// ErrDegenerateImage is returned for placeholder images such as 1x1 pixels
var ErrDegenerateImage = errors.New("degenerate image")

// CheckDimensions rejects bodies that are not decodable images larger than
// MinDimension in both directions. SVG documents pass when they carry an
// <svg> root.
func (c *Classifier) CheckDimensions(contentType string, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", ErrDegenerateImage)
	}

	if MediaType(contentType) == "image/svg+xml" || looksLikeSVG(body) {
		if bytes.Contains(bytes.ToLower(body), []byte("<svg")) {
			return nil
		}
		return fmt.Errorf("%w: svg without root element", ErrDegenerateImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width <= MinDimension || cfg.Height <= MinDimension {
		return fmt.Errorf("%w: %s %dx%d", ErrDegenerateImage, format, cfg.Width, cfg.Height)
	}
	return nil
}

func looksLikeSVG(body []byte) bool {
	head := body
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	trimmed := strings.TrimSpace(strings.ToLower(string(head)))
	return strings.HasPrefix(trimmed, "<?xml") || strings.HasPrefix(trimmed, "<svg")
}
