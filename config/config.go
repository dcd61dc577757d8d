package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Service struct {
		Port              string        `env:"PORT" envDefault:"8081"`
		PublicHost        string        `env:"PUBLIC_HOST"`
		MediaStreamPath   string        `env:"MEDIA_STREAM_PATH" envDefault:"/media-stream"`
		LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
		LogFormat         string        `env:"LOG_FORMAT" envDefault:"json"`
		KeepaliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"15s"`
		ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	}
	OpenAI struct {
		APIKey       string  `env:"OPENAI_API_KEY,unset"`
		BaseURL      string  `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
		RealtimeURL  string  `env:"OPENAI_REALTIME_URL" envDefault:"wss://api.openai.com/v1/realtime"`
		Model        string  `env:"OPENAI_REALTIME_MODEL" envDefault:"gpt-4o-realtime-preview-2024-12-17"`
		Voice        string  `env:"OPENAI_VOICE" envDefault:"alloy"`
		VADThreshold float64 `env:"OPENAI_VAD_THRESHOLD" envDefault:"0.5"`
	}
	Twilio struct {
		AccountSID     string `env:"TWILIO_ACCOUNT_SID"`
		AuthToken      string `env:"TWILIO_AUTH_TOKEN,unset"`
		FromNumber     string `env:"TWILIO_FROM_NUMBER"`
		FallbackNumber string `env:"FALLBACK_NUMBER"`
	}
	Firebase struct {
		Enabled         bool   `env:"FIRESTORE_ENABLED" envDefault:"false"`
		CredentialsJSON string `env:"FIREBASE_CREDENTIALS_JSON,unset"`
		CredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
		Collection      string `env:"FIRESTORE_CALLS_COLLECTION" envDefault:"calls"`
	}
	Tools struct {
		Timeout       time.Duration `env:"TOOL_TIMEOUT" envDefault:"10s"`
		FilterOptions bool          `env:"FILTER_APPOINTMENT_OPTIONS" envDefault:"false"`
		ClinicName    string        `env:"CLINIC_NAME" envDefault:"Bright Smile Dental"`
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Service.MediaStreamPath, "/") {
		return fmt.Errorf("MEDIA_STREAM_PATH must start with /, got %q", c.Service.MediaStreamPath)
	}
	if c.Service.KeepaliveInterval <= 0 {
		return fmt.Errorf("KEEPALIVE_INTERVAL must be positive")
	}
	if c.Tools.Timeout <= 0 {
		return fmt.Errorf("TOOL_TIMEOUT must be positive")
	}
	if c.OpenAI.VADThreshold < 0 || c.OpenAI.VADThreshold > 1 {
		return fmt.Errorf("OPENAI_VAD_THRESHOLD must be between 0 and 1, got %v", c.OpenAI.VADThreshold)
	}
	return nil
}

// BridgeEnabled reports whether calls can be bridged to the model at all.
// Without an API key the incoming call webhook falls back to a human.
func (c *Config) BridgeEnabled() bool {
	return strings.TrimSpace(c.OpenAI.APIKey) != ""
}

// SMSEnabled reports whether outbound SMS credentials are complete
func (c *Config) SMSEnabled() bool {
	return c.Twilio.AccountSID != "" && c.Twilio.AuthToken != "" && c.Twilio.FromNumber != ""
}
