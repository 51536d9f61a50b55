package config

import (
	"fmt"
	"net/url"
	"strings"
)

var knownPolicies = map[string]struct{}{
	PolicyUnconditional: {},
	PolicyCooldown:      {},
	PolicyContent:       {},
}

// Validate checks the config for:
//   - a known reply policy and the settings it needs
//   - a supported webhook failure status
//   - sane ports, timeouts and pool sizes
//
// Missing credentials are not errors here; see Warnings.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", cfg.Server.Port))
	}

	policy := strings.ToLower(strings.TrimSpace(cfg.Reply.Policy))
	if _, ok := knownPolicies[policy]; !ok {
		errs = append(errs, fmt.Sprintf("reply.policy %q unknown (want unconditional, cooldown or content)", cfg.Reply.Policy))
	}
	switch policy {
	case PolicyUnconditional, PolicyCooldown:
		if cfg.Reply.TemplateName == "" {
			errs = append(errs, fmt.Sprintf("reply.template_name is required for policy %s", policy))
		}
		if cfg.Reply.TemplateLanguage == "" {
			errs = append(errs, fmt.Sprintf("reply.template_language is required for policy %s", policy))
		}
	case PolicyContent:
		if strings.TrimSpace(cfg.Reply.HelpText) == "" {
			errs = append(errs, "reply.help_text is required for policy content")
		}
	}
	if cfg.Reply.Cooldown < 0 {
		errs = append(errs, "reply.cooldown must not be negative")
	}
	if cfg.Reply.MaxTracked < 0 {
		errs = append(errs, "reply.max_tracked must not be negative")
	}

	if cfg.Webhook.FailureStatus != 200 && cfg.Webhook.FailureStatus != 500 {
		errs = append(errs, fmt.Sprintf("webhook.failure_status must be 200 or 500, got %d", cfg.Webhook.FailureStatus))
	}
	if cfg.Webhook.MaxBodyBytes < 0 {
		errs = append(errs, "webhook.max_body_bytes must not be negative")
	}

	if u, err := url.Parse(cfg.WhatsApp.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("whatsapp.base_url %q is not an absolute URL", cfg.WhatsApp.BaseURL))
	}
	if cfg.WhatsApp.TimeoutMs <= 0 {
		errs = append(errs, "whatsapp.timeout_ms must be positive")
	}
	if cfg.WhatsApp.RatePerSec < 0 {
		errs = append(errs, "whatsapp.rate_per_sec must not be negative")
	}

	if cfg.Relay.SendWorkers <= 0 {
		errs = append(errs, "relay.send_workers must be positive")
	}
	if cfg.Relay.QueueDepth <= 0 {
		errs = append(errs, "relay.queue_depth must be positive")
	}
	if cfg.Relay.SendTimeoutMs <= 0 {
		errs = append(errs, "relay.send_timeout_ms must be positive")
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q unknown (want text or json)", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Warnings lists settings whose absence only shows up at request time.
func Warnings(cfg *Config) []string {
	var out []string
	if cfg.WhatsApp.VerifyToken == "" {
		out = append(out, "WHATSAPP_VERIFY_TOKEN is empty: webhook verification will always be rejected")
	}
	if cfg.WhatsApp.AccessToken == "" {
		out = append(out, "WHATSAPP_ACCESS_TOKEN is empty: outbound replies will fail")
	}
	if cfg.WhatsApp.PhoneNumberID == "" {
		out = append(out, "WHATSAPP_PHONE_NUMBER_ID is empty: outbound replies will fail")
	}
	return out
}
