package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 30 * time.Second

type Config struct {
	SlackBotToken   string `yaml:"slack_bot_token"`
	SlackAppToken   string `yaml:"slack_app_token"`
	ReportChannelID string `yaml:"report_channel_id"`

	DataDir     string `yaml:"data_dir"`
	MappingPath string `yaml:"mapping_path"`
	DBPath      string `yaml:"db_path"`

	RateThreshold float64 `yaml:"rate_threshold"`
	WindowDays    int     `yaml:"window_days"`

	PortalURL     string `yaml:"portal_url"` // {date} placeholder, upload-date ISO
	PortalToken   string `yaml:"portal_token"`
	StationCode   string `yaml:"station_code"`
	FetchSchedule string `yaml:"fetch_schedule"` // 5-field cron, empty disables the scheduler

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.DataDir, "DATA_DIR")
	envOverride(&cfg.MappingPath, "MAPPING_PATH")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverrideFloat(&cfg.RateThreshold, "RATE_THRESHOLD")
	envOverrideInt(&cfg.WindowDays, "WINDOW_DAYS")
	envOverride(&cfg.PortalURL, "PORTAL_URL")
	envOverride(&cfg.PortalToken, "PORTAL_TOKEN")
	envOverride(&cfg.StationCode, "STATION_CODE")
	envOverride(&cfg.FetchSchedule, "FETCH_SCHEDULE")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.Timezone, "TIMEZONE")

	// Defaults
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.MappingPath == "" {
		cfg.MappingPath = "./driver_mapping.csv"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./ccwatch.db"
	}
	if cfg.RateThreshold == 0 {
		cfg.RateThreshold = defaultRateThreshold
	}
	if cfg.WindowDays == 0 {
		cfg.WindowDays = 7
	}
	if cfg.StationCode == "" {
		cfg.StationCode = "DEJ3"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate required fields
	required := map[string]string{
		"slack_bot_token":   cfg.SlackBotToken,
		"slack_app_token":   cfg.SlackAppToken,
		"report_channel_id": cfg.ReportChannelID,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}
	if cfg.RateThreshold <= 0 || cfg.RateThreshold > 1 {
		log.Fatalf("invalid rate_threshold '%f': must be in (0, 1]", cfg.RateThreshold)
	}
	if cfg.WindowDays < 1 {
		log.Fatalf("invalid window_days '%d': must be >= 1", cfg.WindowDays)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 1 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 1", cfg.ExternalHTTPTimeoutSeconds)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

// LLMConfigured reports whether comment generation is available.
func (c Config) LLMConfigured() bool {
	return c.AnthropicAPIKey != ""
}

// PortalConfigured reports whether snapshot fetching is available.
func (c Config) PortalConfigured() bool {
	return c.PortalURL != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
