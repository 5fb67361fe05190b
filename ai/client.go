package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DegradedReason is the block reason recorded when the AI service stays
// unreachable through all retry attempts and the gate fails closed.
const DegradedReason = "Error while AI text proceeds"

// blockThreshold is the ordinal probability tier at which a safety rating
// blocks content (NEGLIGIBLE=0 LOW=1 MEDIUM=2 HIGH=3).
const blockThreshold = 2

// Verdict is the outcome of a moderation check. Degraded marks a fail-closed
// verdict caused by service unavailability rather than a genuine classification.
type Verdict struct {
	Blocked  bool
	Reason   string
	Degraded bool
}

// Moderator screens a piece of text for abusive language.
type Moderator interface {
	Moderate(ctx context.Context, text string) Verdict
}

// ReplyGenerator drafts a contextual reply to a comment on a post.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, postContent, commentContent string) (string, error)
}

// Config collects the knobs for a generative-AI client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Client talks to a Gemini-style generateContent endpoint over plain HTTP.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
	log         *zap.SugaredLogger
}

// NewClient creates a Client. The logger must not be nil.
func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		log:         log,
	}
}

var probabilityTiers = map[string]int{
	"NEGLIGIBLE": 0,
	"LOW":        1,
	"MEDIUM":     2,
	"HIGH":       3,
}

var knownCategories = map[string]bool{
	"HARM_CATEGORY_HARASSMENT":        true,
	"HARM_CATEGORY_HATE_SPEECH":       true,
	"HARM_CATEGORY_SEXUALLY_EXPLICIT": true,
	"HARM_CATEGORY_DANGEROUS_CONTENT": true,
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type safetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

type generateCandidate struct {
	Content       generateContent `json:"content"`
	SafetyRatings []safetyRating  `json:"safetyRatings"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []generateCandidate `json:"candidates"`
}

// Moderate checks text for obscene or insulting language. Transport failures
// are retried with a delay; when the service stays down the gate fails closed
// with a degraded verdict instead of surfacing an error.
func (c *Client) Moderate(ctx context.Context, text string) Verdict {
	prompt := fmt.Sprintf(`Please check the following text for obscene language and insults: "%s"`, text)

	var resp *generateResponse
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		r, err := c.generate(ctx, prompt)
		if err == nil {
			resp = r
			break
		}
		c.log.Warnf("moderation attempt %d/%d failed: %v", attempt, c.maxAttempts, err)
		if attempt < c.maxAttempts {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				attempt = c.maxAttempts
			}
		}
	}

	if resp == nil {
		c.log.Warn("content blocked because AI moderation is not available")
		return Verdict{Blocked: true, Reason: DegradedReason, Degraded: true}
	}

	for _, candidate := range resp.Candidates {
		for _, rating := range candidate.SafetyRatings {
			if probabilityTiers[rating.Probability] >= blockThreshold {
				reason := rating.Category
				if !knownCategories[reason] {
					reason = "UNKNOWN_CATEGORY"
				}
				return Verdict{Blocked: true, Reason: reason}
			}
		}
	}
	return Verdict{}
}

// GenerateReply asks the model for a response to commentContent in the
// context of postContent and returns the first candidate's text.
func (c *Client) GenerateReply(ctx context.Context, postContent, commentContent string) (string, error) {
	prompt := fmt.Sprintf("Generate a relevant response to this comment: '%s' based on the post: '%s'", commentContent, postContent)

	resp, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("ai: empty response for reply generation")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (*generateResponse, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("ai: unexpected status %d: %s", res.StatusCode, snippet)
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ai: decode response: %w", err)
	}
	return &out, nil
}
