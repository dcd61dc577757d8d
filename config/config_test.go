package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.MediaStreamPath != "/media-stream" {
		t.Fatalf("MediaStreamPath=%q, want /media-stream", cfg.Service.MediaStreamPath)
	}
	if cfg.Service.KeepaliveInterval != 15*time.Second {
		t.Fatalf("KeepaliveInterval=%v, want 15s", cfg.Service.KeepaliveInterval)
	}
	if cfg.Tools.Timeout != 10*time.Second {
		t.Fatalf("Tools.Timeout=%v, want 10s", cfg.Tools.Timeout)
	}
	if cfg.Tools.FilterOptions {
		t.Fatalf("option filtering should default to off")
	}
	if !cfg.BridgeEnabled() {
		t.Fatalf("expected bridge enabled with api key set")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MEDIA_STREAM_PATH", "/stream")
	t.Setenv("KEEPALIVE_INTERVAL", "5s")
	t.Setenv("FILTER_APPOINTMENT_OPTIONS", "true")
	t.Setenv("OPENAI_VAD_THRESHOLD", "0.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.MediaStreamPath != "/stream" {
		t.Fatalf("MediaStreamPath=%q", cfg.Service.MediaStreamPath)
	}
	if cfg.Service.KeepaliveInterval != 5*time.Second {
		t.Fatalf("KeepaliveInterval=%v", cfg.Service.KeepaliveInterval)
	}
	if !cfg.Tools.FilterOptions {
		t.Fatalf("expected option filtering enabled")
	}
	if cfg.OpenAI.VADThreshold != 0.7 {
		t.Fatalf("VADThreshold=%v", cfg.OpenAI.VADThreshold)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"relative path", func(c *Config) { c.Service.MediaStreamPath = "media" }},
		{"zero keepalive", func(c *Config) { c.Service.KeepaliveInterval = 0 }},
		{"zero tool timeout", func(c *Config) { c.Tools.Timeout = 0 }},
		{"threshold above one", func(c *Config) { c.OpenAI.VADThreshold = 1.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mut(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSMSEnabled_RequiresAllCredentials(t *testing.T) {
	cfg := validConfig()
	if cfg.SMSEnabled() {
		t.Fatalf("empty twilio config should not enable sms")
	}
	cfg.Twilio.AccountSID = "AC123"
	cfg.Twilio.AuthToken = "token"
	if cfg.SMSEnabled() {
		t.Fatalf("missing from number should not enable sms")
	}
	cfg.Twilio.FromNumber = "+15550000000"
	if !cfg.SMSEnabled() {
		t.Fatalf("expected sms enabled")
	}
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Service.MediaStreamPath = "/media-stream"
	cfg.Service.KeepaliveInterval = 15 * time.Second
	cfg.Tools.Timeout = 10 * time.Second
	cfg.OpenAI.VADThreshold = 0.5
	return cfg
}
