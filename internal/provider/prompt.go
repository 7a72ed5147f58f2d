package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// DefaultSystemPrompt is used when the config does not override the system
// message for LLM-backed providers.
const DefaultSystemPrompt = "You are a disciplined on-chain risk analyst for a trading bot. " +
	"Score the token 0-100 where 100 is safest. Output STRICT JSON only."

// DefaultSchema is the compact response contract the models are asked for.
const DefaultSchema = `{"score":<int 0-100>,"confidence":<float 0-1>,"rationale":"<short text>"}`

// BuildUserPrompt serializes the subject state for an LLM-backed provider.
func BuildUserPrompt(schema string, subject types.Subject) string {
	if schema == "" {
		schema = DefaultSchema
	}
	state := map[string]any{
		"kind":          subject.Kind,
		"token_address": subject.TokenAddress,
		"pair_address":  subject.PairAddress,
		"snapshot":      subject.Snapshot,
		"context":       subject.Context,
	}
	stateB, _ := json.Marshal(state)
	return fmt.Sprintf("Schema:%s\nState:%s\n\nRespond ONLY with compact JSON matching the schema.", schema, string(stateB))
}

// ParseAnalysis extracts the JSON analysis object from model output, which
// may be wrapped in prose or code fences. Unparseable output is
// ErrMalformed; out-of-range values are clamped only when trivially
// normalizable, otherwise rejected by the orchestrator's range check.
func ParseAnalysis(text string) (types.Analysis, error) {
	t := strings.TrimSpace(text)

	if a, ok := tryDecode(t); ok {
		return a, nil
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		if a, ok := tryDecode(t[start : end+1]); ok {
			return a, nil
		}
	}

	return types.Analysis{}, fmt.Errorf("no analysis JSON in model output: %w", ErrMalformed)
}

func tryDecode(s string) (types.Analysis, bool) {
	if !strings.HasPrefix(s, "{") {
		return types.Analysis{}, false
	}
	var a types.Analysis
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return types.Analysis{}, false
	}
	if a.Rationale == "" && a.Score == 0 && a.Confidence == 0 {
		// Decoded an unrelated object.
		return types.Analysis{}, false
	}
	return a, true
}
