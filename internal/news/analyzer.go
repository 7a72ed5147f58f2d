package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/trace"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// SentimentAnalyzer scores token coverage with a crypto-tuned keyword
// lexicon. The LLM providers see the aggregated sentiment as subject context;
// running a second model call per article here would double spend and
// latency for marginal signal.
type SentimentAnalyzer struct {
	positive map[string]float64
	negative map[string]float64
}

// NewSentimentAnalyzer creates a new keyword-based analyzer
func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{
		positive: map[string]float64{
			"partnership": 0.6, "listing": 0.7, "listed": 0.7, "audit": 0.5,
			"audited": 0.5, "bullish": 0.6, "surge": 0.5, "rally": 0.5,
			"adoption": 0.5, "upgrade": 0.4, "launch": 0.3, "growth": 0.4,
			"milestone": 0.4, "integration": 0.4, "backed": 0.3,
		},
		negative: map[string]float64{
			"rug": -1.0, "rugpull": -1.0, "scam": -1.0, "honeypot": -1.0,
			"exploit": -0.9, "hack": -0.9, "hacked": -0.9, "drained": -0.9,
			"lawsuit": -0.6, "investigation": -0.6, "delist": -0.8,
			"delisted": -0.8, "dump": -0.5, "crash": -0.6, "bearish": -0.5,
			"fraud": -0.9, "phishing": -0.7, "warning": -0.4,
		},
	}
}

// AnalyzeArticle scores a single article in the range -1.0 .. 1.0
func (a *SentimentAnalyzer) AnalyzeArticle(article types.NewsArticle) float64 {
	text := strings.ToLower(article.Title + " " + article.Content)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	var score float64
	var hits int
	for _, w := range words {
		if v, ok := a.positive[w]; ok {
			score += v
			hits++
		} else if v, ok := a.negative[w]; ok {
			score += v
			hits++
		}
	}
	if hits == 0 {
		return 0
	}

	score /= float64(hits)
	// Title hits on the hard-negative terms dominate: a headline saying
	// "rug" is not averaged away by body fluff.
	title := strings.ToLower(article.Title)
	for w, v := range a.negative {
		if v <= -0.9 && strings.Contains(title, w) {
			return v
		}
	}
	return score
}

// AnalyzeMultipleArticles aggregates coverage into one token sentiment
func (a *SentimentAnalyzer) AnalyzeMultipleArticles(ctx context.Context, token string, articles []types.NewsArticle) (types.TokenSentiment, error) {
	ctx, span := trace.StartSpan(ctx, "analyze-token-sentiment")
	defer span.End()

	logger.Info(ctx, "Analyzing sentiment", "token", token, "count", len(articles))

	if len(articles) == 0 {
		return types.TokenSentiment{
			Token:            token,
			OverallSentiment: "NEUTRAL",
			Summary:          "No articles found for analysis",
			Timestamp:        time.Now().Unix(),
		}, nil
	}

	var total float64
	for _, article := range articles {
		total += a.AnalyzeArticle(article)
	}
	avg := total / float64(len(articles))

	sentiment := "NEUTRAL"
	switch {
	case avg >= 0.2:
		sentiment = "POSITIVE"
	case avg <= -0.2:
		sentiment = "NEGATIVE"
	}

	// Confidence rises with coverage volume, capped well below certainty.
	confidence := 0.3 + 0.05*float64(len(articles))
	if confidence > 0.8 {
		confidence = 0.8
	}

	return types.TokenSentiment{
		Token:            token,
		OverallSentiment: sentiment,
		OverallScore:     avg,
		ArticleCount:     len(articles),
		Summary:          fmt.Sprintf("%d articles, average sentiment %.2f", len(articles), avg),
		Confidence:       confidence,
		Timestamp:        time.Now().Unix(),
	}, nil
}
