// Package structured repairs JSON-shaped model output. Every entry point
// returns a value; a response that cannot be repaired yields the call site's
// fallback instead of an error.
package structured

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/markdave123-py/Contexta/internal/models"
)

// Container is the JSON shape a call site expects.
type Container int

const (
	Object Container = iota
	Array
)

func (c Container) brackets() (byte, byte) {
	if c == Array {
		return '[', ']'
	}
	return '{', '}'
}

// Stage records which step of the pipeline produced a Result.
type Stage int

const (
	StageStrict Stage = iota
	StageExtracted
	StageFallback
)

func (s Stage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageExtracted:
		return "extracted"
	default:
		return "fallback"
	}
}

type Result[T any] struct {
	Value T
	Stage Stage
}

// Parse runs the three-stage pipeline: strict parse of raw; strict parse of
// the span from the first opening to the last closing bracket of c; fallback.
// valid rejects decoded values the call site cannot use, such as JSON null.
func Parse[T any](raw string, c Container, valid func(T) bool, fallback func(raw string) T) Result[T] {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err == nil && valid(v) {
		return Result[T]{Value: v, Stage: StageStrict}
	}

	open, closing := c.brackets()
	start := strings.IndexByte(raw, open)
	end := strings.LastIndexByte(raw, closing)
	if start >= 0 && end > start {
		var inner T
		if err := json.Unmarshal([]byte(raw[start:end+1]), &inner); err == nil && valid(inner) {
			return Result[T]{Value: inner, Stage: StageExtracted}
		}
	}

	return Result[T]{Value: fallback(raw), Stage: StageFallback}
}

const (
	metadataExcerpt   = 800
	evaluationExcerpt = 600
)

// DefaultQuestions is returned when the model's suggestions are unusable.
var DefaultQuestions = []string{
	"What are the key terms of this document?",
	"Who are the parties involved?",
	"What are the important deadlines?",
	"Are there any risk clauses?",
	"What are the main obligations?",
}

// Metadata parses a document-metadata extraction response.
func Metadata(raw string) Result[map[string]any] {
	return Parse(raw, Object,
		func(m map[string]any) bool { return m != nil },
		func(raw string) map[string]any {
			return map[string]any{
				"error":      "invalid JSON from model",
				"raw_output": Truncate(raw, metadataExcerpt),
			}
		})
}

// Evaluation parses an answer-scoring response.
func Evaluation(raw string) Result[models.Evaluation] {
	r := Parse(raw, Object,
		func(m map[string]any) bool { return m != nil },
		func(string) map[string]any { return nil })

	if r.Stage == StageFallback {
		return Result[models.Evaluation]{
			Value: models.Evaluation{
				Reasoning: "evaluation returned invalid JSON",
				RawOutput: Truncate(raw, evaluationExcerpt),
			},
			Stage: StageFallback,
		}
	}

	m := r.Value
	ev := models.Evaluation{
		Helpfulness:  score(m["helpfulness"]),
		Completeness: score(m["completeness"]),
		Relevance:    score(m["relevance"]),
	}
	if s, ok := m["reasoning"].(string); ok {
		ev.Reasoning = s
	}
	return Result[models.Evaluation]{Value: ev, Stage: r.Stage}
}

// Questions parses a suggested-questions response, keeping at most limit
// entries. An empty list falls back to DefaultQuestions.
func Questions(raw string, limit int) Result[[]string] {
	r := Parse(raw, Array,
		func(v []any) bool { return len(v) > 0 },
		func(string) []any { return nil })

	fallback := func() Result[[]string] {
		out := make([]string, len(DefaultQuestions))
		copy(out, DefaultQuestions)
		return Result[[]string]{Value: out, Stage: StageFallback}
	}
	if r.Stage == StageFallback {
		return fallback()
	}

	out := make([]string, 0, limit)
	for _, q := range r.Value {
		if len(out) == limit {
			break
		}
		var s string
		switch v := q.(type) {
		case string:
			s = v
		case nil:
			continue
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback()
	}
	return Result[[]string]{Value: out, Stage: r.Stage}
}

// score reads a 1-5 score the model may have written as a number or a string.
func score(v any) *int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	n := int(math.Round(f))
	if n < 1 || n > 5 {
		return nil
	}
	return &n
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
