package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "HEALTH_MESSAGE",
	"WHATSAPP_VERIFY_TOKEN", "WHATSAPP_ACCESS_TOKEN", "WHATSAPP_PHONE_NUMBER_ID",
	"WHATSAPP_API_VERSION", "WHATSAPP_BASE_URL", "WHATSAPP_TIMEOUT_MS",
	"WHATSAPP_RATE_PER_SEC", "WHATSAPP_BURST",
	"REPLY_POLICY", "REPLY_TEMPLATE_NAME", "REPLY_TEMPLATE_LANGUAGE", "REPLY_HELP_TEXT",
	"REPLY_COOLDOWN", "REPLY_MAX_TRACKED",
	"WEBHOOK_FAILURE_STATUS", "WEBHOOK_MAX_BODY_BYTES",
	"RELAY_SEND_WORKERS", "RELAY_QUEUE_DEPTH", "RELAY_SEND_TIMEOUT_MS",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every variable the loader reads; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "hookrelay.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoader_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	l, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()
	if cfg.Server.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Reply.Policy != PolicyCooldown {
		t.Errorf("Policy = %q, want cooldown", cfg.Reply.Policy)
	}
	if cfg.Reply.Cooldown != 24*time.Hour {
		t.Errorf("Cooldown = %v, want 24h", cfg.Reply.Cooldown)
	}
	if cfg.Reply.TemplateName != "whatsapp_bot1" || cfg.Reply.TemplateLanguage != "en" {
		t.Errorf("template = %s/%s", cfg.Reply.TemplateName, cfg.Reply.TemplateLanguage)
	}
	if cfg.Webhook.FailureStatus != 200 {
		t.Errorf("FailureStatus = %d, want 200", cfg.Webhook.FailureStatus)
	}
	if cfg.WhatsApp.TimeoutMs != 10000 {
		t.Errorf("TimeoutMs = %d, want 10000", cfg.WhatsApp.TimeoutMs)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoader_EmptyPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "106540352242922")
	l, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	if l.Config().WhatsApp.PhoneNumberID != "106540352242922" {
		t.Errorf("PhoneNumberID = %q", l.Config().WhatsApp.PhoneNumberID)
	}
	if _, err := l.Watch(); err == nil {
		t.Error("Watch with no file should fail")
	}
}

func TestLoader_FileThenEnvOverlay(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, t.TempDir(), `
server:
  port: 8081
whatsapp:
  verify_token: from-file
  phone_number_id: "111"
reply:
  policy: unconditional
  cooldown: 2h
webhook:
  failure_status: 500
`)
	t.Setenv("WHATSAPP_VERIFY_TOKEN", "from-env")
	t.Setenv("REPLY_COOLDOWN", "30m")

	l, err := NewLoader(p)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()
	if cfg.Server.Port != 8081 {
		t.Errorf("Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.WhatsApp.VerifyToken != "from-env" {
		t.Errorf("VerifyToken = %q, want from-env", cfg.WhatsApp.VerifyToken)
	}
	if cfg.WhatsApp.PhoneNumberID != "111" {
		t.Errorf("PhoneNumberID = %q, want 111", cfg.WhatsApp.PhoneNumberID)
	}
	if cfg.Reply.Policy != PolicyUnconditional {
		t.Errorf("Policy = %q", cfg.Reply.Policy)
	}
	if cfg.Reply.Cooldown != 30*time.Minute {
		t.Errorf("Cooldown = %v, want 30m", cfg.Reply.Cooldown)
	}
	if cfg.Webhook.FailureStatus != 500 {
		t.Errorf("FailureStatus = %d, want 500", cfg.Webhook.FailureStatus)
	}
}

func TestLoader_InvalidYAML(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, t.TempDir(), "server: [unterminated")
	if _, err := NewLoader(p); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoader_ReloadNotifies(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "reply:\n  policy: cooldown\n")
	l, err := NewLoader(p)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	var seen atomic.Value
	l.OnChange(func(c *Config) { seen.Store(c.Reply.Policy) })

	writeFile(t, dir, "reply:\n  policy: content\n")
	cfg, err := l.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cfg.Reply.Policy != PolicyContent || l.Config().Reply.Policy != PolicyContent {
		t.Errorf("Reload policy = %q", cfg.Reply.Policy)
	}
	if seen.Load() != PolicyContent {
		t.Errorf("callback saw %v, want content", seen.Load())
	}
}

func TestLoader_ReloadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "webhook:\n  failure_status: 500\n")
	l, err := NewLoader(p)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	var calls atomic.Int32
	l.OnChange(func(*Config) { calls.Add(1) })

	writeFile(t, dir, "webhook:\n  failure_status: 404\n  max_body_bytes: -1\n")
	if _, err := l.Reload(); err == nil || !strings.Contains(err.Error(), "max_body_bytes") {
		t.Fatalf("Reload err = %v, want validation error", err)
	}
	cfg := l.Config()
	if cfg.Webhook.FailureStatus != 500 || cfg.Webhook.MaxBodyBytes != 1<<20 {
		t.Errorf("current webhook conf = %+v, want the previous one", cfg.Webhook)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("OnChange called %d times for a rejected config", n)
	}
}

func TestLoader_WatchReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "reply:\n  policy: cooldown\n")
	l, err := NewLoader(p)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	changed := make(chan string, 4)
	l.OnChange(func(c *Config) {
		select {
		case changed <- c.Reply.Policy:
		default:
		}
	})
	stop, err := l.Watch()
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer stop()

	writeFile(t, dir, "reply:\n  policy: unconditional\n")
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-changed:
			if got == PolicyUnconditional {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		ApplyDefaults(c)
		return c
	}
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults ok", func(*Config) {}, ""},
		{"content ok", func(c *Config) { c.Reply.Policy = "content" }, ""},
		{"mixed case policy ok", func(c *Config) { c.Reply.Policy = " Unconditional " }, ""},
		{"unknown policy", func(c *Config) { c.Reply.Policy = "sometimes" }, "reply.policy"},
		{"bad failure status", func(c *Config) { c.Webhook.FailureStatus = 202 }, "failure_status"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"relative base url", func(c *Config) { c.WhatsApp.BaseURL = "graph.facebook.com" }, "base_url"},
		{"empty help text", func(c *Config) { c.Reply.Policy = "content"; c.Reply.HelpText = "  " }, "help_text"},
		{"missing template", func(c *Config) { c.Reply.TemplateName = "" }, "template_name"},
		{"negative cooldown", func(c *Config) { c.Reply.Cooldown = -time.Second }, "cooldown"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero workers", func(c *Config) { c.Relay.SendWorkers = -1 }, "send_workers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := Validate(c)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	c := &Config{}
	ApplyDefaults(c)
	c.Reply.Policy = "nope"
	c.Webhook.FailureStatus = 418
	err := Validate(c)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "reply.policy") || !strings.Contains(err.Error(), "failure_status") {
		t.Errorf("expected both problems, got %v", err)
	}
}

func TestWarnings(t *testing.T) {
	c := &Config{}
	ApplyDefaults(c)
	if got := len(Warnings(c)); got != 3 {
		t.Errorf("Warnings = %d, want 3", got)
	}
	c.WhatsApp = WhatsAppConf{VerifyToken: "v", AccessToken: "a", PhoneNumberID: "p"}
	if got := Warnings(c); len(got) != 0 {
		t.Errorf("Warnings = %v, want none", got)
	}
}
