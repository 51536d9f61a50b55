package config

import "time"

// Reply policy names.
const (
	PolicyUnconditional = "unconditional"
	PolicyCooldown      = "cooldown"
	PolicyContent       = "content"
)

// Config is the top-level structure. It is read from an optional YAML file
// and then overlaid with environment variables.
type Config struct {
	Server   ServerConf   `yaml:"server"`
	WhatsApp WhatsAppConf `yaml:"whatsapp"`
	Reply    ReplyConf    `yaml:"reply"`
	Webhook  WebhookConf  `yaml:"webhook"`
	Relay    RelayConf    `yaml:"relay"`
	Log      LogConf      `yaml:"log"`
}

type ServerConf struct {
	Port          int    `yaml:"port" env:"PORT"`
	HealthMessage string `yaml:"health_message" env:"HEALTH_MESSAGE"`
}

// WhatsAppConf holds credentials and endpoint settings for the Cloud API.
type WhatsAppConf struct {
	VerifyToken   string  `yaml:"verify_token" env:"WHATSAPP_VERIFY_TOKEN"`
	AccessToken   string  `yaml:"access_token" env:"WHATSAPP_ACCESS_TOKEN"`
	PhoneNumberID string  `yaml:"phone_number_id" env:"WHATSAPP_PHONE_NUMBER_ID"`
	APIVersion    string  `yaml:"api_version" env:"WHATSAPP_API_VERSION"`
	BaseURL       string  `yaml:"base_url" env:"WHATSAPP_BASE_URL"`
	TimeoutMs     int     `yaml:"timeout_ms" env:"WHATSAPP_TIMEOUT_MS"`
	RatePerSec    float64 `yaml:"rate_per_sec" env:"WHATSAPP_RATE_PER_SEC"` // 0 = unlimited
	Burst         int     `yaml:"burst" env:"WHATSAPP_BURST"`
}

// ReplyConf selects how the relay answers an inbound message.
type ReplyConf struct {
	Policy           string        `yaml:"policy" env:"REPLY_POLICY"`
	TemplateName     string        `yaml:"template_name" env:"REPLY_TEMPLATE_NAME"`
	TemplateLanguage string        `yaml:"template_language" env:"REPLY_TEMPLATE_LANGUAGE"`
	HelpText         string        `yaml:"help_text" env:"REPLY_HELP_TEXT"`
	Cooldown         time.Duration `yaml:"cooldown" env:"REPLY_COOLDOWN"`
	MaxTracked       int           `yaml:"max_tracked" env:"REPLY_MAX_TRACKED"`
}

type WebhookConf struct {
	// FailureStatus is answered when the outbound reply fails: 200 or 500.
	FailureStatus int   `yaml:"failure_status" env:"WEBHOOK_FAILURE_STATUS"`
	MaxBodyBytes  int64 `yaml:"max_body_bytes" env:"WEBHOOK_MAX_BODY_BYTES"`
}

// RelayConf holds tunable concurrency settings for outbound sends.
type RelayConf struct {
	SendWorkers   int `yaml:"send_workers" env:"RELAY_SEND_WORKERS"`
	QueueDepth    int `yaml:"queue_depth" env:"RELAY_QUEUE_DEPTH"`
	SendTimeoutMs int `yaml:"send_timeout_ms" env:"RELAY_SEND_TIMEOUT_MS"`
}

type LogConf struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // text | json
}

// DefaultHelpText is the content-policy reply.
const DefaultHelpText = `Hi! 😼 Thanks for your message.
Here is what I can help with:
1. Offers – reply OFFER to see today's deals
2. Support – reply HELP to reach a person
3. Stop – reply STOP to opt out`
