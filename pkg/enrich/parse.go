package enrich

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Documented defaults for fields absent from the response.
const (
	DefaultTitle  = "Untitled"
	DefaultStatus = "Unknown"
)

func defaultMetadata() ContractMetadata {
	return ContractMetadata{
		Title:   DefaultTitle,
		Status:  DefaultStatus,
		Parties: []string{},
		Terms:   []Term{},
	}
}

var metadataKnownKeys = []string{
	"title", "parties", "effective_date", "expiration_date",
	"terms", "status", "platform",
}

// parseMetadata attempts a strict decode of the model output. Models wrap
// JSON in markdown fences or prose more often than not, so the outermost
// object is carved out first.
func parseMetadata(raw string) (ContractMetadata, error) {
	body, err := carveJSONObject(raw)
	if err != nil {
		return ContractMetadata{}, err
	}

	var md ContractMetadata
	if err := json.Unmarshal([]byte(body), &md); err != nil {
		return ContractMetadata{}, fmt.Errorf("decoding response object: %w", err)
	}

	// Unknown fields ride along for forward compatibility.
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err == nil {
		for _, k := range metadataKnownKeys {
			delete(m, k)
		}
		if len(m) > 0 {
			md.Extra = m
		}
	}

	if md.Title == "" {
		md.Title = DefaultTitle
	}
	md.Status = normalizeStatus(md.Status)
	if md.Parties == nil {
		md.Parties = []string{}
	}
	if md.Terms == nil {
		md.Terms = []Term{}
	}
	return md, nil
}

// carveJSONObject extracts the outermost JSON object from free-form text.
func carveJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Strip a markdown code fence if present.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return "Active"
	case "draft":
		return "Draft"
	case "expired":
		return "Expired"
	default:
		return DefaultStatus
	}
}
