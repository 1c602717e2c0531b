// Package gemini calls the Gemini generative API for JSON article lists.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// ArticleListSchema constrains responses to an array of article objects.
var ArticleListSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":   {Type: genai.TypeString},
			"summary": {Type: genai.TypeString},
			"url":     {Type: genai.TypeString},
			"source":  {Type: genai.TypeString},
		},
		Required: []string{"title", "summary", "url", "source"},
	},
}

// Config configures a Client.
type Config struct {
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint. Empty means the public endpoint.
	BaseURL string
}

// Client is a Gemini API client. The API key is supplied per call because the
// user can replace it at any time; one SDK client is kept per key.
type Client struct {
	model   string
	timeout time.Duration
	baseURL string

	mu      sync.Mutex
	key     string
	client  *genai.Client
	newFunc func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error)
}

func New(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		model:   model,
		timeout: timeout,
		baseURL: cfg.BaseURL,
		newFunc: genai.NewClient,
	}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// GenerateJSON sends prompt and returns the raw JSON text of the first
// candidate, constrained by ArticleListSchema.
func (c *Client) GenerateJSON(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == "" {
		return "", errors.New("gemini: empty API key")
	}

	client, err := c.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ArticleListSchema,
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func (c *Client) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.key == apiKey {
		return c.client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	client, err := c.newFunc(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.key = apiKey
	c.client = client
	return client, nil
}
