package news

import (
	"context"
	"sync"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// Service provides token news sentiment with caching. It implements the
// enricher contract consumed by the decision orchestrator.
type Service struct {
	scraper  *Scraper
	analyzer *SentimentAnalyzer
	cache    *sentimentCache
	cfg      *ServiceConfig
}

// ServiceConfig configures the news sentiment service
type ServiceConfig struct {
	MaxArticles    int           // Maximum articles to scrape per token
	CacheDuration  time.Duration // How long to cache sentiment data
	ScraperTimeout time.Duration // Timeout for scraping operations
	Enabled        bool          // Whether sentiment enrichment is enabled
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxArticles:    15,
		CacheDuration:  1 * time.Hour,
		ScraperTimeout: 30 * time.Second,
		Enabled:        true,
	}
}

// sentimentCache stores sentiment results temporarily
type sentimentCache struct {
	mu   sync.RWMutex
	data map[string]*cacheEntry
	ttl  time.Duration
}

type cacheEntry struct {
	sentiment types.TokenSentiment
	timestamp time.Time
}

func newSentimentCache(ttl time.Duration) *sentimentCache {
	return &sentimentCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
	}
}

func (c *sentimentCache) get(token string) (types.TokenSentiment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[token]
	if !exists {
		return types.TokenSentiment{}, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return types.TokenSentiment{}, false
	}
	return entry.sentiment, true
}

func (c *sentimentCache) set(token string, sentiment types.TokenSentiment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[token] = &cacheEntry{sentiment: sentiment, timestamp: time.Now()}
}

// NewService creates a new token news sentiment service
func NewService(cfg *ServiceConfig) *Service {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	return &Service{
		scraper:  NewScraper(cfg.ScraperTimeout),
		analyzer: NewSentimentAnalyzer(),
		cache:    newSentimentCache(cfg.CacheDuration),
		cfg:      cfg,
	}
}

// Enrich returns sentiment context for the subject's token. Failures degrade
// to an empty map so a broken news source never blocks a decision.
func (s *Service) Enrich(ctx context.Context, subject types.Subject) (map[string]any, error) {
	if !s.cfg.Enabled || subject.TokenAddress == "" {
		return nil, nil
	}

	sentiment, err := s.GetSentiment(ctx, subject.TokenAddress)
	if err != nil {
		return nil, err
	}
	if sentiment.ArticleCount == 0 {
		return nil, nil
	}
	return map[string]any{
		"news_sentiment":     sentiment.OverallSentiment,
		"news_score":         sentiment.OverallScore,
		"news_article_count": sentiment.ArticleCount,
		"news_confidence":    sentiment.Confidence,
		"news_summary":       sentiment.Summary,
	}, nil
}

// GetSentiment retrieves news sentiment for a token (cached or fresh)
func (s *Service) GetSentiment(ctx context.Context, token string) (types.TokenSentiment, error) {
	if cached, ok := s.cache.get(token); ok {
		logger.Debug(ctx, "Using cached sentiment", "token", token, "age_minutes",
			time.Since(time.Unix(cached.Timestamp, 0)).Minutes())
		return cached, nil
	}

	logger.Info(ctx, "Fetching fresh news sentiment", "token", token)
	sentiment, err := s.fetchFreshSentiment(ctx, token)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch sentiment", err, "token", token)
		// Neutral rather than failing; enrichment is best effort.
		return types.TokenSentiment{
			Token:            token,
			OverallSentiment: "NEUTRAL",
			Summary:          "Failed to fetch sentiment: " + err.Error(),
			Timestamp:        time.Now().Unix(),
		}, nil
	}

	s.cache.set(token, sentiment)
	return sentiment, nil
}

func (s *Service) fetchFreshSentiment(ctx context.Context, token string) (types.TokenSentiment, error) {
	articles, err := s.scraper.ScrapeNews(ctx, token, s.cfg.MaxArticles)
	if err != nil {
		return types.TokenSentiment{}, err
	}
	return s.analyzer.AnalyzeMultipleArticles(ctx, token, articles)
}

// RefreshSentiment forces a refresh of sentiment data (bypasses cache)
func (s *Service) RefreshSentiment(ctx context.Context, token string) (types.TokenSentiment, error) {
	sentiment, err := s.fetchFreshSentiment(ctx, token)
	if err != nil {
		return types.TokenSentiment{}, err
	}
	s.cache.set(token, sentiment)
	return sentiment, nil
}

// CachedTokens returns the tokens with cached sentiment
func (s *Service) CachedTokens() []string {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	tokens := make([]string, 0, len(s.cache.data))
	for token := range s.cache.data {
		tokens = append(tokens, token)
	}
	return tokens
}
