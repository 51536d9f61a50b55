package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v21.0"
	DefaultTimeout    = 10 * time.Second

	maxBody = 64 << 10
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
	// RatePerSec caps outbound calls per second; 0 disables the cap.
	RatePerSec float64
	Burst      int
}

// Client sends messages through the Cloud API messages endpoint.
type Client struct {
	baseURL       string
	version       string
	phoneNumberID string
	token         string
	client        *http.Client
	limiter       *rate.Limiter
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		version:       strings.Trim(opts.APIVersion, "/"),
		phoneNumberID: opts.PhoneNumberID,
		token:         opts.AccessToken,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.version == "" {
		c.version = DefaultAPIVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.client = &http.Client{Timeout: timeout}
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	return c
}

// Endpoint returns the messages URL for the configured phone number.
func (c *Client) Endpoint() string {
	return fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, c.phoneNumberID)
}

// Send posts msg and returns the provider-assigned identifiers.
func (c *Client) Send(ctx context.Context, msg OutboundMessage) (SendResult, error) {
	if c.token == "" || c.phoneNumberID == "" {
		return SendResult{}, ErrNotConfigured
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return SendResult{}, fmt.Errorf("whatsapp rate limit: %w", err)
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&eb) == nil {
			apiErr.Code = eb.Error.Code
			apiErr.Type = eb.Error.Type
			apiErr.Message = eb.Error.Message
			apiErr.TraceID = eb.Error.FBTraceID
		}
		return SendResult{}, apiErr
	}

	// The message was accepted; identifiers are best effort.
	var sr sendResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&sr)
	var res SendResult
	if len(sr.Messages) > 0 {
		res.MessageID = sr.Messages[0].ID
	}
	if len(sr.Contacts) > 0 {
		res.WAID = sr.Contacts[0].WAID
	}
	return res, nil
}
