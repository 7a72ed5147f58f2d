package types

// NewsArticle is one scraped article about a token or project
type NewsArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Token       string `json:"token"`
}

// TokenSentiment aggregates the scraped coverage of a token.
type TokenSentiment struct {
	Token            string  `json:"token"`
	OverallSentiment string  `json:"overall_sentiment"` // POSITIVE, NEGATIVE, NEUTRAL
	OverallScore     float64 `json:"overall_score"`     // -1.0 .. 1.0
	ArticleCount     int     `json:"article_count"`
	Summary          string  `json:"summary"`
	Confidence       float64 `json:"confidence"`
	Timestamp        int64   `json:"timestamp"`
}
