package locallarge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0Papitchu/GBPBot-sub001/internal/api"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider"
	"github.com/0Papitchu/GBPBot-sub001/internal/trace"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// defaultEndpoint is a local OpenAI-compatible inference server (Ollama,
// llama.cpp server and the like).
const defaultEndpoint = "http://localhost:11434/v1"

// Analyzer runs the large local model. Slower than the fast classifier but
// free of remote quota and spend, so it sits between LOCAL_FAST and the
// remote providers in the auto fallback order.
type Analyzer struct {
	desc   provider.Descriptor
	system string
	schema string
	client *api.Client
}

func New(desc provider.Descriptor, system, schema string) *Analyzer {
	endpoint := desc.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Analyzer{
		desc:   desc,
		system: system,
		schema: schema,
		client: api.NewClient(
			api.WithBaseURL(endpoint),
			api.WithTimeout(desc.MaxLatencyBudget),
		),
	}
}

func (a *Analyzer) Analyze(ctx context.Context, subject types.Subject) (types.Analysis, error) {
	ctx, span := trace.StartSpan(ctx, "local-model-call")
	defer span.End()

	system := a.system
	if system == "" {
		system = provider.DefaultSystemPrompt
	}
	body := map[string]any{
		"model": a.desc.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": provider.BuildUserPrompt(a.schema, subject)},
		},
		"temperature": a.desc.Temperature,
		"stream":      false,
	}
	if a.desc.MaxTokens > 0 {
		body["max_tokens"] = a.desc.MaxTokens
	}

	resp, err := a.client.PostJSON(ctx, "/chat/completions", body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.Analysis{}, fmt.Errorf("%w: %v", provider.ErrTimeout, err)
		}
		return types.Analysis{}, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	if cerr := provider.ClassifyStatus(resp.StatusCode); cerr != nil {
		return types.Analysis{}, cerr
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := resp.DecodeJSON(&r); err != nil {
		return types.Analysis{}, fmt.Errorf("%w: %v", provider.ErrMalformed, err)
	}
	if len(r.Choices) == 0 {
		return types.Analysis{}, fmt.Errorf("no choices: %w", provider.ErrMalformed)
	}

	return provider.ParseAnalysis(strings.TrimSpace(r.Choices[0].Message.Content))
}
