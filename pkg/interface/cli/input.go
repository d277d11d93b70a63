package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

// NoLogoFound is the sentinel reference written by the extractor when a
// page had no logo candidate
const NoLogoFound = "NO_LOGO_FOUND"

// Input formats
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatText  = "text"
)

// LoadTargets reads targets from a file, or from stdin when path is "-"
func LoadTargets(path string) ([]entity.Target, error) {
	if path == "-" {
		return ParseTargets(os.Stdin, "")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseTargets(file, formatOf(path))
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".txt", ".lst":
		return FormatText
	}
	return ""
}

// ParseTargets decodes targets in the given format. An empty format is
// sniffed from the first non-blank byte.
func ParseTargets(r io.Reader, format string) ([]entity.Target, error) {
	br := bufio.NewReader(r)
	if format == "" {
		format = sniff(br)
	}

	var (
		targets []entity.Target
		err     error
	)
	switch format {
	case FormatJSON:
		targets, err = parseJSON(br)
	case FormatJSONL:
		targets, err = parseJSONL(br)
	default:
		targets, err = parseText(br)
	}
	if err != nil {
		return nil, err
	}

	for i := range targets {
		targets[i].Domain = strings.TrimSpace(targets[i].Domain)
		targets[i].Reference = cleanReference(targets[i].Reference)
	}
	return targets, nil
}

// cleanReference maps the not-found sentinel and blanks to no reference
func cleanReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.EqualFold(ref, NoLogoFound) {
		return ""
	}
	return ref
}

func sniff(br *bufio.Reader) string {
	for n := 64; ; n *= 2 {
		peek, err := br.Peek(n)
		trimmed := bytes.TrimLeft(peek, " \t\r\n\ufeff")
		if len(trimmed) > 0 {
			switch trimmed[0] {
			case '[':
				return FormatJSON
			case '{':
				return FormatJSONL
			}
			return FormatText
		}
		if err != nil {
			return FormatText
		}
	}
}

func parseJSON(r io.Reader) ([]entity.Target, error) {
	var targets []entity.Target
	if err := json.NewDecoder(r).Decode(&targets); err != nil {
		return nil, fmt.Errorf("failed to decode JSON targets: %w", err)
	}
	return targets, nil
}

func parseJSONL(r io.Reader) ([]entity.Target, error) {
	var targets []entity.Target
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var target entity.Target
		if err := json.Unmarshal([]byte(text), &target); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		targets = append(targets, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

// parseText reads "domain [reference]" lines; '#' starts a comment line
func parseText(r io.Reader) ([]entity.Target, error) {
	var targets []entity.Target
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		target := entity.Target{Domain: fields[0]}
		if len(fields) > 1 {
			target.Reference = fields[1]
		}
		targets = append(targets, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}
