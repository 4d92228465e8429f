package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rasike-dev/chronosops/internal/telemetry"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// ClientConfig configures the Anthropic-backed reasoner.
type ClientConfig struct {
	APIKey         string
	Model          string        // defaults to DefaultModel
	MaxRetries     int           // defaults to 3
	InitialBackoff time.Duration // defaults to 1s, doubles per attempt
	MaxBackoff     time.Duration // defaults to 30s
	Timeout        time.Duration // per-attempt timeout, defaults to 60s
}

// Client calls the Anthropic Messages API and parses the model's JSON
// output into a validated Response.
type Client struct {
	client   anthropic.Client
	model    string
	cfg      ClientConfig
	logger   *slog.Logger
	duration metric.Float64Histogram
}

// NewClient builds an Anthropic reasoner. The API key is required.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("reason: anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	duration, err := telemetry.Meter("chronosops/reason").Float64Histogram(
		"chronosops.reason.duration",
		metric.WithDescription("Wall time of one reasoning call in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("reason: create duration histogram: %w", err)
	}

	return &Client{
		client:   anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:    cfg.Model,
		cfg:      cfg,
		logger:   logger,
		duration: duration,
	}, nil
}

// Reason sends the curated request, retries transient failures with
// exponential backoff, and hard-rejects responses that fail validation.
func (c *Client) Reason(ctx context.Context, req Request) (*Response, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("reason: build prompt: %w", err)
	}

	var message *anthropic.Message
	backoff := c.cfg.InitialBackoff
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		start := time.Now()
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		cancel()
		c.duration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("error", apiErr != nil)))
		if apiErr == nil {
			message = resp
			break
		}
		if attempt >= c.cfg.MaxRetries || ctx.Err() != nil {
			return nil, fmt.Errorf("reason: anthropic call failed after %d attempts: %w", attempt+1, apiErr)
		}
		c.logger.Warn("reasoning call failed, retrying",
			"attempt", attempt+1,
			"backoff", backoff,
			"error", apiErr)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("reason: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	resp, err := ParseResponse(text.String())
	if err != nil {
		return nil, fmt.Errorf("reason: %w", err)
	}
	if err := Validate(resp, req.CandidateIDs); err != nil {
		return nil, err
	}
	return resp, nil
}

// BuildPrompt renders the reasoning prompt. The request context is embedded
// as JSON so the serialization is stable and hashable.
func BuildPrompt(req Request) (string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`You are an SRE incident investigator. Given the incident context and
collected evidence below, rank the most likely root-cause hypotheses.

Investigation context (JSON):
%s

RULES:
1. Every hypothesis id MUST come from candidate_ids. Never invent ids.
2. Confidence values are in [0.0, 1.0]. Be calibrated: missing evidence
   means lower confidence.
3. Reference evidence by artifact_id in evidence_refs.
4. If evidence is insufficient, propose evidence_requests naming the kind
   you need (METRICS, LOGS, TRACES, DEPLOYS, CONFIG), a priority
   (P0/P1/P2), and a short reason.

Respond with ONLY a raw JSON object, no markdown fences:
{
  "hypotheses": [
    {"id": "candidate id", "title": "short title", "confidence": 0.7,
     "rationale": "why", "evidence_refs": ["artifact id"]}
  ],
  "explainability": {
    "primary_signal": "LATENCY|ERRORS|UNKNOWN",
    "latency_factor": 0.0,
    "error_factor": 0.0,
    "rationale": "how the evidence points at the leading hypothesis"
  },
  "overall_confidence": 0.7,
  "evidence_requests": [
    {"need": "LOGS", "priority": "P0", "reason": "why this is needed"}
  ]
}`, payload), nil
}

// ParseResponse extracts the JSON object from model output, tolerating
// markdown fences and surrounding prose.
func ParseResponse(text string) (*Response, error) {
	cleaned := strings.TrimSpace(text)

	// Strip markdown code fences if present.
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	// Fall back to the outermost object when the model added prose.
	if !strings.HasPrefix(cleaned, "{") {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object found in model output")
		}
		cleaned = cleaned[start : end+1]
	}

	var resp Response
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		snippet := cleaned
		if len(snippet) > 300 {
			snippet = snippet[:300] + "..."
		}
		return nil, fmt.Errorf("parse model output: %w (output: %s)", err, snippet)
	}
	return &resp, nil
}
