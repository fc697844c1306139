// Package client provides a Go SDK for the postcraft HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ankittk/postcraft/pkg/models"
)

// Client calls the postcraft HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string
	APIKey     string       // sent as X-API-Key when set
	HTTPClient *http.Client // nil uses http.DefaultClient
}

// New returns a client for a server such as "http://localhost:8080".
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Method, Path string
	StatusCode   int
	Message      string // the server's {"error": ...} text, if any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the server, such as an unknown thread.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// call sends in (if non-nil) as JSON and decodes the response into out (if non-nil).
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		ae := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			ae.Message = e.Error
		}
		return ae
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Health reports whether the server answers /health with ok.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.call(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Help returns the chat command reference.
func (c *Client) Help(ctx context.Context) (string, error) {
	var out struct {
		Help string `json:"help"`
	}
	err := c.call(ctx, http.MethodGet, "/help", nil, &out)
	return out.Help, err
}

// Chat runs one turn on a thread. An empty threadID lets the server assign one; it is returned in the response.
func (c *Client) Chat(ctx context.Context, threadID, message string) (*models.ChatResponse, error) {
	var out models.ChatResponse
	err := c.call(ctx, http.MethodPost, "/chat", models.ChatRequest{ThreadID: threadID, Message: message}, &out)
	return &out, err
}

// Posts lists approved posts, optionally filtered by channel (empty = all).
func (c *Client) Posts(ctx context.Context, channel string) ([]models.Post, error) {
	var out []models.Post
	err := c.call(ctx, http.MethodGet, withChannel("/posts", channel), nil, &out)
	return out, err
}

// Queue lists scheduled entries sorted by date, optionally filtered by channel.
func (c *Client) Queue(ctx context.Context, channel string) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	err := c.call(ctx, http.MethodGet, withChannel("/queue", channel), nil, &out)
	return out, err
}

// Thread returns the checkpointed context of a conversation.
func (c *Client) Thread(ctx context.Context, threadID string) (*models.Thread, error) {
	var out models.Thread
	err := c.call(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID), nil, &out)
	return &out, err
}

func withChannel(path, channel string) string {
	if channel == "" {
		return path
	}
	return path + "?channel=" + url.QueryEscape(channel)
}
