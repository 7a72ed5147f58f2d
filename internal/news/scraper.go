package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// Scraper handles scraping token coverage from multiple crypto news sources
type Scraper struct {
	sources []NewsSource
	timeout time.Duration
}

// NewsSource defines a news source configuration
type NewsSource struct {
	Name       string
	BaseURL    string
	SearchPath string // "{token}" is replaced with the token symbol
	Selectors  ArticleSelectors
	RateLimit  time.Duration
}

// ArticleSelectors defines CSS selectors for extracting article data
type ArticleSelectors struct {
	ArticleContainer string
	Title            string
	URL              string
	Content          string
	PublishedAt      string
}

// NewScraper creates a new scraper with the default crypto news sources
func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		sources: getDefaultSources(),
		timeout: timeout,
	}
}

func getDefaultSources() []NewsSource {
	return []NewsSource{
		{
			Name:       "CoinDesk",
			BaseURL:    "https://www.coindesk.com",
			SearchPath: "/search?s={token}",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.article-card",
				Title:            "a.card-title",
				URL:              "a.card-title",
				Content:          "p.content-text",
				PublishedAt:      "span.typography__StyledTypography",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "CoinTelegraph",
			BaseURL:    "https://cointelegraph.com",
			SearchPath: "/search?query={token}",
			Selectors: ArticleSelectors{
				ArticleContainer: "article.post-card-inline",
				Title:            "span.post-card-inline__title",
				URL:              "a.post-card-inline__title-link",
				Content:          "p.post-card-inline__text",
				PublishedAt:      "time",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "CryptoNews",
			BaseURL:    "https://cryptonews.com",
			SearchPath: "/search/?q={token}",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.article__item",
				Title:            "a.article__title",
				URL:              "a.article__title",
				Content:          "p",
				PublishedAt:      "time",
			},
			RateLimit: 2 * time.Second,
		},
	}
}

// ScrapeNews fetches articles mentioning the token from all sources
func (s *Scraper) ScrapeNews(ctx context.Context, token string, maxArticles int) ([]types.NewsArticle, error) {
	logger.Info(ctx, "Starting news scraping", "token", token, "sources", len(s.sources))

	allArticles := []types.NewsArticle{}
	articlesPerSource := maxArticles / len(s.sources)
	if articlesPerSource < 1 {
		articlesPerSource = 1
	}

	for _, source := range s.sources {
		if err := ctx.Err(); err != nil {
			return allArticles, err
		}
		articles, err := s.scrapeSource(ctx, source, token, articlesPerSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name, "token", token)
			continue
		}
		allArticles = append(allArticles, articles...)

		// Rate limiting between sources
		time.Sleep(source.RateLimit)
	}

	logger.Info(ctx, "News scraping completed", "token", token, "articles", len(allArticles))
	return allArticles, nil
}

// scrapeSource scrapes articles from a single news source
func (s *Scraper) scrapeSource(ctx context.Context, source NewsSource, token string, maxArticles int) ([]types.NewsArticle, error) {
	articles := []types.NewsArticle{}

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(source.BaseURL)),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)

	// Set user agent to avoid being blocked
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnHTML(source.Selectors.ArticleContainer, func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}

		title := strings.TrimSpace(e.ChildText(source.Selectors.Title))
		if title == "" {
			return
		}

		articleURL := e.ChildAttr(source.Selectors.URL, "href")
		if articleURL == "" {
			return
		}
		if !strings.HasPrefix(articleURL, "http") {
			articleURL = source.BaseURL + articleURL
		}

		articles = append(articles, types.NewsArticle{
			Title:       title,
			URL:         articleURL,
			Content:     strings.TrimSpace(e.ChildText(source.Selectors.Content)),
			Source:      source.Name,
			PublishedAt: strings.TrimSpace(e.ChildText(source.Selectors.PublishedAt)),
			Token:       token,
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Scraping error", err, "source", source.Name, "url", r.Request.URL.String())
	})

	searchURL := source.BaseURL + strings.ReplaceAll(source.SearchPath, "{token}", url.QueryEscape(strings.ToLower(token)))
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}
	c.Wait()

	return s.enrichArticles(ctx, articles), nil
}

// enrichArticles fetches the full page for articles whose listing snippet was
// too short to score.
func (s *Scraper) enrichArticles(ctx context.Context, articles []types.NewsArticle) []types.NewsArticle {
	enriched := make([]types.NewsArticle, len(articles))
	copy(enriched, articles)

	for i := range enriched {
		if len(enriched[i].Content) >= 100 {
			continue
		}
		if full := s.fetchArticleContent(ctx, enriched[i].URL); full != "" {
			enriched[i].Content = full
		}
	}
	return enriched
}

// fetchArticleContent pulls the article body paragraphs out of the page
func (s *Scraper) fetchArticleContent(ctx context.Context, articleURL string) string {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, articleURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	var b strings.Builder
	doc.Find("article p, div.article-content p, main p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
		return b.Len() < 4000
	})
	return strings.TrimSpace(b.String())
}

func getDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}
