package feeds

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// File names written by the fetch step.
const (
	CVEFile     = "cve_feed.jsonl"
	RedditFile  = "reddit_feed.jsonl"
	DarkWebFile = "darkweb_feed.jsonl"
)

// FileFor returns the JSONL file name used for a source.
func FileFor(source string) string {
	switch source {
	case SourceReddit:
		return RedditFile
	case SourceDarkWeb:
		return DarkWebFile
	default:
		return CVEFile
	}
}

// WriteJSONL writes one wire-form record per line.
func WriteJSONL(w io.Writer, items []models.ThreatIntel) error {
	enc := json.NewEncoder(w)
	for i, item := range items {
		wire, err := models.ToWire(item)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if err := enc.Encode(wire); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// EncodeJSONL is WriteJSONL into a byte slice.
func EncodeJSONL(items []models.ThreatIntel) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadJSONL parses records written by WriteJSONL. Blank lines are ignored.
func ReadJSONL(r io.Reader) ([]models.ThreatIntel, error) {
	var out []models.ThreatIntel
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var wire map[string]any
		if err := json.Unmarshal(text, &wire); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		item, err := models.FromWire[models.ThreatIntel](wire)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
