package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (optional; empty URL disables the queue)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// ClickUp task source
	ClickUpToken          string
	ClickUpLeadsListID    string
	ClickUpEventsListID   string
	ClickUpExpensesListID string

	// Instagram insights (optional)
	InsightsBaseURL     string
	InsightsAccessToken string

	// Worker
	RefreshInterval time.Duration

	// Breakdown side-documents
	WithBreakdowns bool
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/madad.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "madad"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "snapshot_refresh"),

		ClickUpToken:          getEnv("CLICKUP_API_TOKEN", ""),
		ClickUpLeadsListID:    getEnv("CLICKUP_LEADS_LIST_ID", ""),
		ClickUpEventsListID:   getEnv("CLICKUP_EVENTS_LIST_ID", ""),
		ClickUpExpensesListID: getEnv("CLICKUP_EXPENSES_LIST_ID", ""),

		InsightsBaseURL:     getEnv("INSIGHTS_BASE_URL", ""),
		InsightsAccessToken: getEnv("INSIGHTS_ACCESS_TOKEN", ""),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 6*time.Hour),
		WithBreakdowns:  getEnvBool("WITH_BREAKDOWNS", true),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate ClickUp configuration
	if c.ClickUpToken == "" {
		errors = append(errors, "CLICKUP_API_TOKEN is required")
	}
	if c.ClickUpLeadsListID == "" {
		errors = append(errors, "CLICKUP_LEADS_LIST_ID is required")
	}
	if c.ClickUpEventsListID == "" {
		errors = append(errors, "CLICKUP_EVENTS_LIST_ID is required")
	}
	if c.ClickUpExpensesListID == "" {
		errors = append(errors, "CLICKUP_EXPENSES_LIST_ID is required")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Insights is optional, but a token without a base URL is a misconfiguration
	if c.InsightsAccessToken != "" && c.InsightsBaseURL == "" {
		errors = append(errors, "INSIGHTS_BASE_URL is required when INSIGHTS_ACCESS_TOKEN is provided")
	}

	// Validate worker configuration
	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 7 days", c.RefreshInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// InsightsEnabled reports whether the optional insights source is configured.
func (c *Config) InsightsEnabled() bool {
	return c.InsightsBaseURL != "" && c.InsightsAccessToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
