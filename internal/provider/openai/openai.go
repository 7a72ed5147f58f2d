package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/0Papitchu/GBPBot-sub001/internal/api"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider"
	"github.com/0Papitchu/GBPBot-sub001/internal/trace"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

const defaultEndpoint = "https://api.openai.com/v1"

// Analyzer scores subjects through the OpenAI chat completions API.
type Analyzer struct {
	desc    provider.Descriptor
	system  string
	schema  string
	client  *api.Client
	limiter *rate.Limiter
}

// New builds the adapter for one REMOTE descriptor. The client-side limiter
// keeps the bot inside the account's request quota; when it is dry the call
// fails fast as rate limited instead of blocking the trading path.
func New(desc provider.Descriptor, system, schema string) *Analyzer {
	endpoint := desc.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	var limiter *rate.Limiter
	if desc.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(desc.RPS), desc.Burst)
	}
	return &Analyzer{
		desc:   desc,
		system: system,
		schema: schema,
		client: api.NewClient(
			api.WithBaseURL(endpoint),
			api.WithTimeout(desc.MaxLatencyBudget),
			api.WithHeader("Authorization", "Bearer "+os.Getenv("OPENAI_API_KEY")),
		),
		limiter: limiter,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, subject types.Subject) (types.Analysis, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	if os.Getenv("OPENAI_API_KEY") == "" {
		return types.Analysis{}, fmt.Errorf("OPENAI_API_KEY missing: %w", provider.ErrAuth)
	}

	if a.limiter != nil && !a.limiter.Allow() {
		return types.Analysis{}, fmt.Errorf("client quota spent: %w", provider.ErrRateLimited)
	}

	system := a.system
	if system == "" {
		system = provider.DefaultSystemPrompt
	}
	temperature := a.desc.Temperature
	body := map[string]any{
		"model": a.desc.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": provider.BuildUserPrompt(a.schema, subject)},
		},
		"temperature": temperature,
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
