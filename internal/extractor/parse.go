package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qri-io/jsonschema"

	"care-ats/internal/logger"
	"care-ats/internal/types"
)

// ErrNoJSON means the model output did not contain a JSON object.
var ErrNoJSON = errors.New("no JSON object in model output")

// ValidationError lists every schema violation in a model response.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "analysis does not match schema: " + strings.Join(e.Problems, "; ")
}

// Parser turns raw model output into a validated Analysis.
type Parser struct {
	schema *jsonschema.Schema
	log    *logger.Logger
}

// NewParser compiles the analysis schema.
func NewParser(log *logger.Logger) (*Parser, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(analysisSchema), rs); err != nil {
		return nil, fmt.Errorf("compile analysis schema: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Parser{schema: rs, log: log.Component("extractor.parse")}, nil
}

// Parse locates the JSON object in raw, resolves earliest_start_date
// against ref, validates the result and decodes it. Nothing is repaired
// beyond the date: any schema violation is returned as *ValidationError.
func (p *Parser) Parse(ctx context.Context, raw string, ref time.Time) (*types.Analysis, error) {
	span := extractJSON(raw)
	if span == "" {
		return nil, ErrNoJSON
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return nil, fmt.Errorf("decode model JSON: %w", err)
	}

	p.normalizeStartDate(doc, ref)

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encode model JSON: %w", err)
	}

	verrs, err := p.schema.ValidateBytes(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("schema validate error: %w", err)
	}
	if len(verrs) > 0 {
		problems := make([]string, 0, len(verrs))
		for _, v := range verrs {
			if v.PropertyPath != "" {
				problems = append(problems, v.PropertyPath+": "+v.Message)
			} else {
				problems = append(problems, v.Message)
			}
		}
		return nil, &ValidationError{Problems: problems}
	}

	var a types.Analysis
	if err := json.Unmarshal(normalized, &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	a.Roles = cleanList(a.Roles)
	a.Qualifications = cleanList(a.Qualifications)
	return &a, nil
}

// normalizeStartDate rewrites a relative or free-form start date to
// YYYY-MM-DD, or null when it cannot be resolved.
func (p *Parser) normalizeStartDate(doc map[string]any, ref time.Time) {
	v, ok := doc["earliest_start_date"].(string)
	if !ok {
		return
	}
	if !types.Known(v) {
		doc["earliest_start_date"] = nil
		return
	}
	resolved, ok := ResolveDate(v, ref)
	if !ok {
		p.log.WithField("earliest_start_date", v).Warn("unresolvable start date dropped")
		doc["earliest_start_date"] = nil
		return
	}
	doc["earliest_start_date"] = resolved
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if !types.Known(s) || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// extractJSON returns the first balanced JSON object in s, skipping
// markdown fences and braces inside string literals.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	s = strings.Join(kept, "\n")

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
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
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}

	return ""
}
