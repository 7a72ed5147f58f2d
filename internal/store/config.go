package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one configured analysis backend. Descriptors are
// built from this at startup and never removed during the process lifetime.
type ProviderConfig struct {
	ID               string        `yaml:"id"`
	Kind             string        `yaml:"kind"` // LOCAL_FAST, LOCAL_LARGE, REMOTE
	Backend          string        `yaml:"backend,omitempty"` // OPENAI, CLAUDE for REMOTE
	Model            string        `yaml:"model,omitempty"`
	Endpoint         string        `yaml:"endpoint,omitempty"`
	MaxLatencyBudget time.Duration `yaml:"max_latency_budget"`
	Priority         int           `yaml:"priority"`
	Enabled          bool          `yaml:"enabled"`
	RPS              float64       `yaml:"rps,omitempty"`
	Burst            int           `yaml:"burst,omitempty"`
	MaxTokens        int           `yaml:"max_tokens,omitempty"`
	Temperature      float32       `yaml:"temperature,omitempty"`
}

type Config struct {
	Mode      string   `yaml:"mode"` // DRY_RUN or LIVE
	Chain     string   `yaml:"chain"`
	Watchlist []string `yaml:"watchlist"`

	PollSeconds  int              `yaml:"poll_seconds"`
	DecideBudget time.Duration    `yaml:"decide_budget"`
	Providers    []ProviderConfig `yaml:"providers"`

	Breaker struct {
		FailureThreshold int           `yaml:"failure_threshold"`
		OpenTimeout      time.Duration `yaml:"open_timeout"`
	} `yaml:"breaker"`

	Cache struct {
		Capacity  int           `yaml:"capacity"`
		TTLLow    time.Duration `yaml:"ttl_low"`
		TTLNormal time.Duration `yaml:"ttl_normal"`
		TTLHigh   time.Duration `yaml:"ttl_high"`
	} `yaml:"cache"`

	Gate struct {
		AdmitScore          int           `yaml:"admit_score"`
		ReviewScore         int           `yaml:"review_score"`
		BaseSlippageBps     float64       `yaml:"base_slippage_bps"`
		ReviewSlippageBps   float64       `yaml:"review_slippage_bps"`
		BaseTimeout         time.Duration `yaml:"base_timeout"`
		HighVolSlippageMult float64       `yaml:"high_vol_slippage_mult"`
		HighVolTimeoutMult  float64       `yaml:"high_vol_timeout_mult"`
	} `yaml:"gate"`

	Notify struct {
		MaxPerHour      int            `yaml:"max_per_hour"`
		PerChannel      map[string]int `yaml:"per_channel"`
		SummaryInterval time.Duration  `yaml:"summary_interval"`
	} `yaml:"notify"`

	News struct {
		Enabled        bool          `yaml:"enabled"`
		MaxArticles    int           `yaml:"max_articles"`
		CacheDuration  time.Duration `yaml:"cache_duration"`
		ScraperTimeout time.Duration `yaml:"scraper_timeout"`
	} `yaml:"news"`

	LLM struct {
		System string `yaml:"system"`
		Schema string `yaml:"schema"`
	} `yaml:"llm"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Providers) == 0 {
		return errors.New("providers cannot be empty")
	}
	seen := map[string]bool{}
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[%d]: id cannot be empty", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("providers[%d]: duplicate id '%s'", i, p.ID)
		}
		seen[p.ID] = true
		switch p.Kind {
		case "LOCAL_FAST", "LOCAL_LARGE", "REMOTE":
		default:
			return fmt.Errorf("providers[%d]: kind must be 'LOCAL_FAST', 'LOCAL_LARGE' or 'REMOTE', got '%s'", i, p.Kind)
		}
		if p.MaxLatencyBudget <= 0 {
			return fmt.Errorf("providers[%d]: max_latency_budget must be positive", i)
		}
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be positive, got %d", c.Breaker.FailureThreshold)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Gate.ReviewScore > c.Gate.AdmitScore {
		return fmt.Errorf("gate.review_score (%d) cannot exceed gate.admit_score (%d)", c.Gate.ReviewScore, c.Gate.AdmitScore)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.PollSeconds == 0 {
		c.PollSeconds = 15
	}
	if c.DecideBudget == 0 {
		c.DecideBudget = 5 * time.Second
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 3
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 1024
	}
	if c.Cache.TTLLow == 0 {
		c.Cache.TTLLow = 5 * time.Minute
	}
	if c.Cache.TTLNormal == 0 {
		c.Cache.TTLNormal = 2 * time.Minute
	}
	if c.Cache.TTLHigh == 0 {
		c.Cache.TTLHigh = 20 * time.Second
	}
	if c.Gate.AdmitScore == 0 {
		c.Gate.AdmitScore = 80
	}
	if c.Gate.ReviewScore == 0 {
		c.Gate.ReviewScore = 50
	}
	if c.Gate.BaseSlippageBps == 0 {
		c.Gate.BaseSlippageBps = 50
	}
	if c.Gate.ReviewSlippageBps == 0 {
		c.Gate.ReviewSlippageBps = 150
	}
	if c.Gate.BaseTimeout == 0 {
		c.Gate.BaseTimeout = 10 * time.Second
	}
	if c.Gate.HighVolSlippageMult == 0 {
		c.Gate.HighVolSlippageMult = 2.0
	}
	if c.Gate.HighVolTimeoutMult == 0 {
		c.Gate.HighVolTimeoutMult = 0.5
	}
	if c.Notify.MaxPerHour == 0 {
		c.Notify.MaxPerHour = 20
	}
	if c.Notify.SummaryInterval == 0 {
		c.Notify.SummaryInterval = 6 * time.Hour
	}
	if c.News.MaxArticles == 0 {
		c.News.MaxArticles = 15
	}
	if c.News.CacheDuration == 0 {
		c.News.CacheDuration = 1 * time.Hour
	}
	if c.News.ScraperTimeout == 0 {
		c.News.ScraperTimeout = 30 * time.Second
	}
	for i := range c.Providers {
		if c.Providers[i].Burst == 0 && c.Providers[i].RPS > 0 {
			c.Providers[i].Burst = 1
		}
	}
}
