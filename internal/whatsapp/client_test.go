package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	return New(Options{
		BaseURL:       baseURL,
		APIVersion:    "v21.0",
		PhoneNumberID: "106540352242922",
		AccessToken:   "test-token",
	})
}

func TestClient_SendTemplate(t *testing.T) {
	var (
		gotPath, gotAuth, gotCT string
		got                     OutboundMessage
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messaging_product":"whatsapp","contacts":[{"input":"917000000001","wa_id":"917000000001"}],"messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res, err := c.Send(context.Background(), NewTemplateMessage("917000000001", "whatsapp_bot1", "en"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v21.0/106540352242922/messages" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("unexpected Authorization: %q", gotAuth)
	}
	if gotCT != "application/json" {
		t.Errorf("unexpected Content-Type: %q", gotCT)
	}
	if got.MessagingProduct != "whatsapp" || got.To != "917000000001" || got.Type != "template" {
		t.Errorf("unexpected body: %+v", got)
	}
	if got.Template == nil || got.Template.Name != "whatsapp_bot1" || got.Template.Language.Code != "en" {
		t.Errorf("unexpected template: %+v", got.Template)
	}
	if got.Text != nil {
		t.Errorf("text should be omitted for template messages")
	}
	if res.MessageID != "wamid.ABC" || res.WAID != "917000000001" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestClient_SendText(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	res, err := newTestClient(server.URL).Send(context.Background(), NewTextMessage("1", "line one\nline two"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MessageID != "" {
		t.Errorf("expected empty message id, got %q", res.MessageID)
	}
	if raw["type"] != "text" {
		t.Errorf("type = %v, want text", raw["type"])
	}
	if _, ok := raw["template"]; ok {
		t.Error("template should be omitted for text messages")
	}
	text, _ := raw["text"].(map[string]any)
	if text["body"] != "line one\nline two" {
		t.Errorf("text.body = %v", text["body"])
	}
}

func TestClient_SendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Template name does not exist in the translation","type":"OAuthException","code":132001,"fbtrace_id":"AbCd"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Send(context.Background(), NewTemplateMessage("1", "missing", "en"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != 132001 || apiErr.TraceID != "AbCd" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "Template name does not exist") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestClient_SendServerErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Send(context.Background(), NewTextMessage("1", "x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
}

func TestClient_SendNetworkError(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	if _, err := c.Send(context.Background(), NewTextMessage("1", "x")); err == nil {
		t.Fatal("expected error for network failure")
	}
}

func TestClient_NotConfigured(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	for _, opts := range []Options{
		{BaseURL: server.URL, PhoneNumberID: "1"},
		{BaseURL: server.URL, AccessToken: "t"},
	} {
		_, err := New(opts).Send(context.Background(), NewTextMessage("1", "x"))
		if !errors.Is(err, ErrNotConfigured) {
			t.Errorf("Send(%+v) = %v, want ErrNotConfigured", opts, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests, got %d", calls.Load())
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, PhoneNumberID: "1", AccessToken: "t", Timeout: 20 * time.Millisecond})
	if _, err := c.Send(context.Background(), NewTextMessage("1", "x")); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, PhoneNumberID: "1", AccessToken: "t", RatePerSec: 0.001, Burst: 1})
	if _, err := c.Send(context.Background(), NewTextMessage("1", "x")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Send(ctx, NewTextMessage("1", "x")); err == nil {
		t.Fatal("expected rate limit wait to fail")
	}
}

func TestClient_Defaults(t *testing.T) {
	c := New(Options{PhoneNumberID: "42"})
	if c.Endpoint() != "https://graph.facebook.com/v21.0/42/messages" {
		t.Errorf("unexpected endpoint: %s", c.Endpoint())
	}
}
