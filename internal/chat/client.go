package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chriscow/voicechat/pkg/version"
)

// DefaultURL is the hosted chat endpoint.
const DefaultURL = "https://api.corrodedlabs.com/chat"

// ErrChatRequest is returned for network failures, non-2xx responses and
// bodies that cannot be decoded.
var ErrChatRequest = errors.New("chat request failed")

// Request is the payload sent to the chat endpoint.
type Request struct {
	UserMessage string `json:"user_message"`
}

// Response is the payload returned by the chat endpoint.
type Response struct {
	BotResponse string `json:"bot_response"`
}

// Asker sends one user message and returns the bot's reply.
type Asker interface {
	Ask(ctx context.Context, text string) (string, error)
}

// Client talks to a remote chat endpoint over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a chat client. A nil httpClient gets a 30s timeout.
func NewClient(url string, httpClient *http.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, httpClient: httpClient}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Ask posts text as {"user_message"} and returns the "bot_response" field.
func (c *Client) Ask(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(Request{UserMessage: text})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %w", ErrChatRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %w", ErrChatRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChatRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrChatRequest, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", ErrChatRequest, err)
	}
	return out.BotResponse, nil
}
