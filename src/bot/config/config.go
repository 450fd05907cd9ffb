package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/zeroy-labs/govbot/src/data"
	"gorm.io/gorm"
)

type Config struct {
	DiscordToken     string
	TallyAPIKey      string
	TallyAPIURL      string
	MySQLDSN         string
	RedisURL         string
	Port             string
	PollInterval     time.Duration
	DirectoryTTL     time.Duration
	RetryAttempts    int
	RetryDelay       time.Duration
	MaxSubscriptions int
	TrackedProposals int
}

func Load(db *gorm.DB) Config {
	// Load settings from database
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	// Get values from database with env fallbacks
	discordToken := data.GetSetting("discord_token")
	if discordToken == "" {
		discordToken = os.Getenv("DISCORD_TOKEN")
	}

	tallyAPIKey := data.GetSetting("tally_api_key")
	if tallyAPIKey == "" {
		tallyAPIKey = os.Getenv("TALLY_API_KEY")
	}

	return Config{
		DiscordToken:     discordToken,
		TallyAPIKey:      tallyAPIKey,
		TallyAPIURL:      getenv("TALLY_API_URL", "https://api.tally.xyz/query"),
		MySQLDSN:         getenv("MYSQL_DSN", "govbot:govbot@tcp(127.0.0.1:3306)/govbot"),
		RedisURL:         getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		Port:             getenv("PORT", "8080"),
		PollInterval:     getenvDuration("POLL_INTERVAL", 10*time.Second),
		DirectoryTTL:     getenvDuration("DIRECTORY_TTL", 240*time.Hour),
		RetryAttempts:    getenvInt("TALLY_RETRY_ATTEMPTS", 3),
		RetryDelay:       getenvDuration("TALLY_RETRY_DELAY", 5*time.Second),
		MaxSubscriptions: getenvInt("MAX_SUBSCRIPTIONS", 10),
		TrackedProposals: getenvInt("TRACKED_PROPOSALS_PER_DAO", 20),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: invalid %s=%q, using default %d", key, v, def)
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("config: invalid %s=%q, using default %s", key, v, def)
	}
	return def
}
