package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedOutput means a model answer did not contain the expected JSON.
var ErrMalformedOutput = errors.New("malformed model output")

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n?```")

// ParseStructured decodes the JSON object embedded in a model answer into v.
// A ```json fenced block wins; otherwise the text between the first '{' and
// the last '}' is used.
func ParseStructured(text string, v any) error {
	var lastErr error
	for _, candidate := range jsonCandidates(text) {
		if err := json.Unmarshal([]byte(candidate), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		return fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}
	return fmt.Errorf("%w: %v", ErrMalformedOutput, lastErr)
}

func jsonCandidates(text string) []string {
	var candidates []string
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		candidates = append(candidates, text[start:end+1])
	}
	return candidates
}

// uniqueNonEmpty trims items, drops blanks and duplicates, and keeps at most
// limit of them. A non-positive limit keeps everything.
func uniqueNonEmpty(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
