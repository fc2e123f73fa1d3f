package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ConfigStruct struct {
	Options Options
	Jamendo JamendoConfig
	Batch   BatchConfig
	Spotify SpotifyConfig
	Sentry  SentryConfig
	NGrok   NGrokConfig
}

type Options struct {
	Port          string
	LogLevel      string
	MatchStrategy string
}

type JamendoConfig struct {
	ClientID    string
	APIURL      string
	SearchLimit int
	Timeout     time.Duration
	RateLimit   float64 // requests per second across all callers
	MaxRetries  int
}

type BatchConfig struct {
	Concurrency int
	MaxItems    int
	ItemTimeout time.Duration
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	Enabled      bool
}

type NGrokConfig struct {
	Enabled bool
	Domain  string
}

type SentryConfig struct {
	DSN     string
	Release string
}

const (
	MatchContainment = "containment"
	MatchNormalized  = "normalized"
	MatchSimilarity  = "similarity"

	defaultJamendoURL = "https://api.jamendo.com/v3.0"
)

func (s *SpotifyConfig) IsEnabled() bool {
	return s.Enabled && s.ClientID != "" && s.ClientSecret != ""
}

// IsEnabled also requires an auth token, which the ngrok agent reads from
// NGROK_AUTHTOKEN itself.
func (n *NGrokConfig) IsEnabled() bool {
	return n.Enabled && os.Getenv("NGROK_AUTHTOKEN") != ""
}

var Config *ConfigStruct

func NewConfig() {
	config := &ConfigStruct{
		Options: Options{
			Port:          getPort(),
			LogLevel:      getLogLevel(),
			MatchStrategy: getMatchStrategy(),
		},
		Jamendo: JamendoConfig{
			ClientID:    os.Getenv("JAMENDO_CLIENT_ID"),
			APIURL:      getJamendoURL(),
			SearchLimit: getIntInRange("SEARCH_LIMIT", 5, 1, 50),
			Timeout:     time.Duration(getIntInRange("CATALOG_TIMEOUT_SECONDS", 10, 1, 60)) * time.Second,
			RateLimit:   float64(getIntInRange("CATALOG_RATE_LIMIT", 10, 1, 100)),
			MaxRetries:  getMaxRetries(),
		},
		Batch: BatchConfig{
			Concurrency: getIntInRange("BATCH_CONCURRENCY", 8, 1, 32),
			MaxItems:    getIntInRange("BATCH_MAX_ITEMS", 50, 1, 200),
			ItemTimeout: time.Duration(getIntInRange("BATCH_ITEM_TIMEOUT_SECONDS", 15, 1, 120)) * time.Second,
		},
		Spotify: SpotifyConfig{
			ClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
			ClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
			Enabled:      os.Getenv("SPOTIFY_ENABLED") == "true",
		},
		Sentry: SentryConfig{
			DSN:     os.Getenv("SENTRY_DSN"),
			Release: os.Getenv("RELEASE"),
		},
		NGrok: NGrokConfig{
			Enabled: os.Getenv("NGROK_ENABLED") == "true",
			Domain:  os.Getenv("NGROK_DOMAIN"),
		},
	}

	Config = config
}

func getPort() string {
	port := os.Getenv("PORT")
	if port == "" {
		return "8080"
	}
	return port
}

func getLogLevel() string {
	level := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if level == "" {
		return "info"
	}
	return level
}

func getMatchStrategy() string {
	strategy := strings.ToLower(strings.TrimSpace(os.Getenv("MATCH_STRATEGY")))
	switch strategy {
	case MatchNormalized, MatchSimilarity:
		return strategy
	default:
		return MatchContainment
	}
}

func getJamendoURL() string {
	u := strings.TrimRight(os.Getenv("JAMENDO_API_URL"), "/")
	if u == "" {
		return defaultJamendoURL
	}
	return u
}

// getMaxRetries allows zero, unlike the other knobs.
func getMaxRetries() int {
	retriesStr := os.Getenv("CATALOG_MAX_RETRIES")
	if retriesStr == "" {
		return 2
	}
	retries, err := strconv.Atoi(retriesStr)
	if err != nil || retries < 0 {
		return 2
	}
	if retries > 5 {
		return 5
	}
	return retries
}

// getIntInRange falls back to def for missing, invalid or non-positive
// values and caps at max. Values below min are raised to min.
func getIntInRange(key string, def, min, max int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return def
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return def
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
