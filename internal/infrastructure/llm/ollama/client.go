package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

// WithExecutor routes every generate call through the executor's breaker.
func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VisionClassifier sends the extracted text and known fields to the model
// and asks for the document type, a short summary and the key fields.
type VisionClassifier struct {
	client *Client
}

func NewVisionClassifier(client *Client) *VisionClassifier {
	return &VisionClassifier{client: client}
}

type visionResponse struct {
	Type         string         `json:"type"`
	DocumentType string         `json:"document_type"`
	Confidence   any            `json:"confidence"`
	Summary      string         `json:"summary"`
	KeyFields    map[string]any `json:"key_fields"`
	Fields       map[string]any `json:"extracted_fields"`
}

func (v *VisionClassifier) ClassifyVision(ctx context.Context, req domain.VisionRequest) (domain.VisionResult, error) {
	prompt, err := buildVisionPrompt(req)
	if err != nil {
		return domain.VisionResult{}, err
	}

	respText, err := v.client.generateJSON(ctx, prompt)
	if err != nil {
		return domain.VisionResult{}, err
	}

	var parsed visionResponse
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return domain.VisionResult{}, fmt.Errorf("parse vision json: %w", err)
	}

	result := domain.VisionResult{
		Type:       parsed.Type,
		Confidence: parseConfidence(parsed.Confidence),
		Summary:    strings.TrimSpace(parsed.Summary),
		KeyFields:  parsed.KeyFields,
	}
	if result.Type == "" {
		result.Type = parsed.DocumentType
	}
	if result.KeyFields == nil {
		result.KeyFields = parsed.Fields
	}
	return result, nil
}

// parseConfidence accepts numbers, numeric strings and percentages. Values
// of 2 to 100 are read as a percent scale; anything else is clamped to [0, 1].
func parseConfidence(raw any) float64 {
	var v float64
	switch val := raw.(type) {
	case float64:
		v = val
	case string:
		s := strings.TrimSpace(val)
		percent := strings.HasSuffix(s, "%")
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0
		}
		v = parsed
		if percent {
			v /= 100
		}
	default:
		return 0
	}
	if v >= 2 && v <= 100 {
		v /= 100
	}
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(v, 1))
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
