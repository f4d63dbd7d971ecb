package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON recovers a JSON document from raw model output. Models wrap
// JSON in markdown fences or prose despite instructions, so this strips
// ```json fences first and, failing a direct parse, falls back to the
// outermost {...} or [...] span.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	if json.Valid([]byte(s)) {
		return s, nil
	}

	for _, pair := range [2][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start >= 0 && end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("llm: no valid JSON found in response")
}

// InvokeJSON calls the client and unmarshals the extracted JSON into out.
func InvokeJSON(ctx context.Context, c Client, system, user string, out any) error {
	raw, err := c.Invoke(ctx, system, user)
	if err != nil {
		return err
	}
	doc, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("llm: unmarshal structured response: %w", err)
	}
	return nil
}
