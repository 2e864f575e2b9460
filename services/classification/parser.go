package classification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/upb/llm-router/models"
)

// ErrNoJSONObject is returned when the model output contains no balanced object
var ErrNoJSONObject = errors.New("no JSON object in model output")

const fallbackRationale = "classification failed, using fallback"

// FallbackResult is the classification used when the fast model cannot
// produce one
func FallbackResult() models.ClassificationResult {
	return models.ClassificationResult{
		Tier:       models.TierMedium,
		Confidence: 0.5,
		Rationale:  fallbackRationale,
		Indicators: []string{"fallback"},
	}
}

// rawClassification is the record the fast model is asked to emit
type rawClassification struct {
	Tier       string   `json:"tier"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Rationale  string   `json:"rationale"`
	Indicators []string `json:"indicators"`
}

// ParseClassification extracts and validates the first JSON object in raw
func ParseClassification(raw string) (models.ClassificationResult, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	var rc rawClassification
	if err := json.Unmarshal([]byte(obj), &rc); err != nil {
		return models.ClassificationResult{}, fmt.Errorf("decode classification: %w", err)
	}

	result := models.ClassificationResult{
		Tier:       models.Tier(strings.ToLower(strings.TrimSpace(rc.Tier))),
		Confidence: 0.5,
		Rationale:  rc.Reasoning,
		Indicators: rc.Indicators,
	}
	if !result.Tier.Valid() {
		result.Tier = models.TierMedium
	}
	if rc.Confidence != nil && *rc.Confidence >= 0 && *rc.Confidence <= 1 {
		result.Confidence = *rc.Confidence
	}
	if result.Rationale == "" {
		result.Rationale = rc.Rationale
	}

	return result, nil
}

// extractObject returns the first balanced {...} substring of s. Braces
// inside JSON string literals do not count.
func extractObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", ErrNoJSONObject
}
