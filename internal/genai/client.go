// Package genai turns a free-text project goal into an ordered set of task
// candidates via an external generation service. Transport failures (non-2xx),
// empty results, and unparsable output are distinct errors, so callers can
// tell them apart.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeneratedTask is one candidate task as declared by the output schema.
type GeneratedTask struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
	Step     int    `json:"step"`
}

// Generator is the seam the tracker service calls; Mock implements it for
// tests and offline runs.
type Generator interface {
	GenerateTasks(ctx context.Context, goal string) ([]GeneratedTask, error)
}

var (
	// ErrNoCandidates: the service answered 2xx but returned no candidates,
	// typically a safety filter.
	ErrNoCandidates = errors.New("generation returned no candidates")
	// ErrBadFormat: the candidate text did not parse as the declared array
	// shape.
	ErrBadFormat = errors.New("generation returned an invalid format")
)

// StatusError is a transport-level failure: the service answered outside 2xx.
// The response body is surfaced to the caller.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation request failed with status %d: %s", e.Code, e.Body)
}

// Client calls a Gemini-style generateContent endpoint.
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:    strings.TrimSpace(url),
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type schema struct {
	Type       string            `json:"type"`
	Items      *schema           `json:"items,omitempty"`
	Properties map[string]schema `json:"properties,omitempty"`
	Enum       []string          `json:"enum,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func taskListSchema() schema {
	return schema{
		Type: "ARRAY",
		Items: &schema{
			Type: "OBJECT",
			Properties: map[string]schema{
				"name":     {Type: "STRING"},
				"priority": {Type: "STRING", Enum: []string{"High", "Medium", "Low"}},
				"step":     {Type: "NUMBER"},
			},
			Required: []string{"name", "priority", "step"},
		},
	}
}

func buildPrompt(goal string) string {
	return fmt.Sprintf("Based on the project goal %q, generate a list of tasks. "+
		"For each task, provide a descriptive name, a priority level ('High', 'Medium', or 'Low'), "+
		"and a 'step' number representing the logical order to complete them.", goal)
}

func (c *Client) GenerateTasks(ctx context.Context, goal string) ([]GeneratedTask, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: buildPrompt(goal)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   taskListSchema(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.url
	if c.apiKey != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "key=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed generateResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, ErrNoCandidates
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	var tasks []GeneratedTask
	if err := json.Unmarshal([]byte(text), &tasks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return tasks, nil
}
