package convert

import (
	"encoding/json"
	"errors"
	"strings"

	"reactify-service/internal/entity"
)

// ParseResult validates the raw model output against the expected
// schema. Models occasionally wrap JSON in markdown fences despite
// instructions, so fences are stripped before decoding.
func ParseResult(raw string) (*entity.ConversionResult, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil, entity.NewPipelineError(entity.StageConvert, entity.ErrInvalidResponse,
			errors.New("no JSON object in response"))
	}

	var result entity.ConversionResult
	dec := json.NewDecoder(strings.NewReader(cleaned[start : end+1]))
	if err := dec.Decode(&result); err != nil {
		return nil, entity.NewPipelineError(entity.StageConvert, entity.ErrInvalidResponse, err)
	}

	if len(result.Components) == 0 {
		return nil, entity.NewPipelineError(entity.StageConvert, entity.ErrInvalidResponse,
			errors.New("response has no components"))
	}
	for name, c := range result.Components {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(c.TSX) == "" {
			return nil, entity.NewPipelineError(entity.StageConvert, entity.ErrInvalidResponse,
				errors.New("component missing name or source"))
		}
	}
	return &result, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
