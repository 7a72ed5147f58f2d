package claude

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

// default messages endpoint (public Anthropic); proxies override via config
// endpoint or CLAUDE_API_ENDPOINT.
const defaultEndpoint = "https://api.anthropic.com"

// Analyzer scores subjects through the Anthropic Messages API.
type Analyzer struct {
	desc    provider.Descriptor
	system  string
	schema  string
	client  *api.Client
	limiter *rate.Limiter
}

func New(desc provider.Descriptor, system, schema string) *Analyzer {
	endpoint := desc.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		endpoint = ep
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
			api.WithHeader("x-api-key", os.Getenv("CLAUDE_API_KEY")),
			api.WithHeader("anthropic-version", "2023-06-01"),
		),
		limiter: limiter,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, subject types.Subject) (types.Analysis, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	if os.Getenv("CLAUDE_API_KEY") == "" {
		return types.Analysis{}, fmt.Errorf("CLAUDE_API_KEY missing: %w", provider.ErrAuth)
	}

	if a.limiter != nil && !a.limiter.Allow() {
		return types.Analysis{}, fmt.Errorf("client quota spent: %w", provider.ErrRateLimited)
	}

	system := a.system
	if system == "" {
		system = provider.DefaultSystemPrompt
	}
	maxTokens := a.desc.MaxTokens
	if maxTokens == 0 {
		maxTokens = 512
	}
	body := map[string]any{
		"model":  a.desc.Model,
		"system": system,
		"messages": []map[string]string{
			{"role": "user", "content": provider.BuildUserPrompt(a.schema, subject)},
		},
		"max_tokens": maxTokens,
	}

	resp, err := a.client.PostJSON(ctx, "/v1/messages", body)
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
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := resp.DecodeJSON(&r); err != nil {
		return types.Analysis{}, fmt.Errorf("%w: %v", provider.ErrMalformed, err)
	}

	var text string
	for _, block := range r.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return types.Analysis{}, fmt.Errorf("empty message content: %w", provider.ErrMalformed)
	}

	return provider.ParseAnalysis(text)
}
