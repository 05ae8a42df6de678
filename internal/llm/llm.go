// Package llm implements the LLM Client (C3): synchronous and batched
// calls against the Anthropic API, phase-specific system prompt
// assembly, rate-limit retry with exponential backoff, and usage
// routing to C1.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/usage"
)

// Phase keys model selection, token limits, and system-prompt assembly.
type Phase string

const (
	PhasePlanner    Phase = "planner"
	PhaseBuilder    Phase = "builder"
	PhaseFixer      Phase = "fixer"
	PhaseReflector  Phase = "reflector"
	PhaseMemory     Phase = "memory"
	PhaseSummarizer Phase = "summarizer"
)

// ToolSpec is a provider-neutral tool declaration offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Request is one provider-neutral completion request.
type Request struct {
	Phase     Phase
	Model     string
	System    string
	Messages  []convo.Message
	Tools     []ToolSpec
	MaxTokens int
}

// Response is the provider-neutral shape from spec.md §4.3: content
// blocks plus usage, independent of which SDK produced them.
type Response struct {
	Content    []convo.Block
	Usage      usage.Usage
	Model      string
	StopReason string
}

// Config bundles the retry/backoff knobs from spec.md §6's `api` and
// `batch` sections.
type Config struct {
	MaxRetries       int
	InitialRetryWait time.Duration
	MaxRetryWait     time.Duration

	PollInterval    time.Duration
	MaxPollInterval time.Duration
	PollBackoff     float64
}

// DefaultConfig matches spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       5,
		InitialRetryWait: time.Second,
		MaxRetryWait:     30 * time.Second,
		PollInterval:     2 * time.Second,
		MaxPollInterval:  60 * time.Second,
		PollBackoff:      1.5,
	}
}

// Client is C3's entry point. One Client is shared across a whole cycle
// so usage always routes to the same Tracker.
type Client struct {
	sdk     anthropic.Client
	cfg     Config
	tracker *usage.Tracker
}

// NewClient builds a Client around the Anthropic SDK using apiKey, with
// usage routed to tracker.
func NewClient(apiKey string, tracker *usage.Tracker, cfg Config) *Client {
	if cfg.MaxRetries == 0 && cfg.InitialRetryWait == 0 {
		cfg = DefaultConfig()
	}
	return &Client{
		sdk:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		cfg:     cfg,
		tracker: tracker,
	}
}

// Call is the single-request path: build params, retry on rate limits
// only, record usage on success.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	params, err := buildParams(req)
	if err != nil {
		return Response{}, fmt.Errorf("llm: build params: %w", err)
	}

	var msg *anthropic.Message
	delay := c.cfg.InitialRetryWait
	for attempt := 0; ; attempt++ {
		msg, err = c.sdk.Messages.New(ctx, params)
		if err == nil {
			break
		}
		if !isRateLimit(err) || attempt >= c.cfg.MaxRetries {
			return Response{}, fmt.Errorf("llm: messages.create (%s): %w", req.Phase, err)
		}
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(delay):
		}
		delay = nextDelay(delay, 2, c.cfg.MaxRetryWait)
	}

	resp := toResponse(msg)
	if c.tracker != nil {
		c.tracker.Record(string(req.Phase), string(resp.Model), resp.Usage, false)
	}
	return resp, nil
}

// BatchItem pairs a Request with the CustomID used to match its
// response, since the batch provider gives no order guarantee.
type BatchItem struct {
	ID      string
	Request Request
}

// CallBatch submits N independent requests as one provider batch call,
// polls until terminal, and returns results matched by CustomID in the
// SAME ORDER as items (spec.md §4.3's "results returned in the
// submission order").
func (c *Client) CallBatch(ctx context.Context, items []BatchItem) ([]Response, error) {
	if len(items) == 0 {
		return nil, nil
	}

	reqs := make([]anthropic.MessageBatchNewParamsRequest, 0, len(items))
	for _, it := range items {
		params, err := buildParams(it.Request)
		if err != nil {
			return nil, fmt.Errorf("llm: build batch params for %s: %w", it.ID, err)
		}
		reqs = append(reqs, anthropic.MessageBatchNewParamsRequest{
			CustomID: it.ID,
			Params:   params,
		})
	}

	batch, err := c.sdk.Messages.Batches.New(ctx, anthropic.MessageBatchNewParams{Requests: reqs})
	if err != nil {
		return nil, fmt.Errorf("llm: batches.create: %w", err)
	}

	if err := c.pollUntilTerminal(ctx, batch.ID); err != nil {
		return nil, err
	}

	byID, err := c.collectResults(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	out := make([]Response, len(items))
	for i, it := range items {
		r, ok := byID[it.ID]
		if !ok {
			return nil, fmt.Errorf("llm: batch %s: no result for custom_id %s", batch.ID, it.ID)
		}
		out[i] = r
	}
	return out, nil
}

func (c *Client) pollUntilTerminal(ctx context.Context, batchID string) error {
	delay := c.cfg.PollInterval
	for {
		b, err := c.sdk.Messages.Batches.Get(ctx, batchID)
		if err != nil {
			return fmt.Errorf("llm: batches.retrieve %s: %w", batchID, err)
		}
		if string(b.ProcessingStatus) == "ended" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = nextDelay(delay, c.cfg.PollBackoff, c.cfg.MaxPollInterval)
	}
}

func (c *Client) collectResults(ctx context.Context, batchID string) (map[string]Response, error) {
	out := make(map[string]Response)
	iter := c.sdk.Messages.Batches.ResultsStreaming(ctx, batchID)
	for iter.Next() {
		entry := iter.Current()
		switch entry.Result.Type {
		case "succeeded":
			resp := toResponse(&entry.Result.Message)
			out[entry.CustomID] = resp
			if c.tracker != nil {
				c.tracker.Record("batch", string(resp.Model), resp.Usage, true)
			}
		case "errored":
			return nil, fmt.Errorf("llm: batch item %s errored: %v", entry.CustomID, entry.Result.Error)
		default:
			return nil, fmt.Errorf("llm: batch item %s had unexpected result type %q", entry.CustomID, entry.Result.Type)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("llm: batches.results %s: %w", batchID, err)
	}
	return out, nil
}

func nextDelay(cur time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(cur) * factor)
	if next > max {
		return max
	}
	if next <= 0 {
		return max
	}
	return next
}

func isRateLimit(err error) bool {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return apiErr.StatusCode == 429
	}
	return false
}

// asAnthropicError is a thin errors.As wrapper kept in its own function
// so Call's retry branch reads as one condition rather than an inline
// type assertion chain.
func asAnthropicError(err error, target **anthropic.Error) bool {
	for err != nil {
		if e, ok := err.(*anthropic.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
