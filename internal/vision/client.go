// Package vision calls an external OpenAI-compatible vision model to
// decide whether a submitted photo matches a collectible sticker.
//
// Transport and parsing failures never propagate raw to callers: every
// method folds them into a structured, not-approved result carrying an
// error string, so the unlock flow can revert to pending and allow
// resubmission.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"sticker-album-backend/internal/config"
	"sticker-album-backend/internal/metrics"
)

// A match is accepted only at or above this confidence.
const ApprovalThreshold = 0.6

// Image is a photo passed to the model, either by URL or as inline bytes.
type Image struct {
	URL  string
	Data []byte
}

// IsZero reports whether no image was provided.
func (img Image) IsZero() bool {
	return img.URL == "" && len(img.Data) == 0
}

func (img Image) payloadURL() string {
	if img.URL != "" {
		return img.URL
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Candidate is one sticker of the catalog offered to the model.
type Candidate struct {
	ID          string
	Name        string
	Description string
}

// Decision is the structured outcome of matching a photo against an
// album's sticker catalog. Missing fields are defaulted, never absent.
type Decision struct {
	Recognized bool    `json:"recognized"`
	Make       string  `json:"make"`
	Model      string  `json:"model"`
	Generation string  `json:"generation"`
	YearRange  string  `json:"year_range"`
	Confidence float64 `json:"confidence"`
	StickerID  string  `json:"sticker_id"`
	Reason     string  `json:"reason"`
	FunFact    string  `json:"fun_fact"`
	Err        string  `json:"error,omitempty"`
}

// Outcome is the structured result of validating a single submission
// against a sticker's reference image.
type Outcome struct {
	Approved   bool    `json:"approved"`
	IsMatch    bool    `json:"is_match"`
	MatchScore float64 `json:"match_score"`
	Reason     string  `json:"reason"`
	Err        string  `json:"error,omitempty"`
}

// Client talks to the vision model. When disabled (no API key) it
// auto-approves submissions and declines photo matches, matching the
// development-mode behavior of the validation pipeline.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	enabled    bool
}

// NewClient creates a vision client from configuration.
func NewClient(cfg config.VisionConfig) *Client {
	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		limiter:    rate.NewLimiter(perSecond, cfg.RequestsPerMinute),
		enabled:    cfg.Enabled && cfg.APIKey != "",
	}
}

// Enabled reports whether real model calls are configured.
func (c *Client) Enabled() bool { return c.enabled }

const matchSystemPrompt = `You are a car expert. You receive ONE photo and a text-only list of stickers from an album. Identify the car using only the photo and your knowledge, then decide whether one of the stickers matches.

Always answer with a single valid JSON object with this exact schema:
{
  "recognized": boolean,
  "make": string|null,
  "model": string|null,
  "generation": string|null,
  "year_range": string|null,
  "confidence": number,
  "sticker_id": string|null,
  "reason": string,
  "fun_fact": string
}
"confidence" is in [0,1] and rates the match with ONE sticker from the album. "sticker_id" is an ID from the list, or null when no sticker fits this car. If the photo is not clearly an identifiable car, use recognized=false, null make/model/generation/year_range, sticker_id=null, confidence=0, and put a playful message in fun_fact.`

// MatchPhoto asks the model to identify the photographed subject and pick
// the best-matching candidate from the catalog.
func (c *Client) MatchPhoto(ctx context.Context, img Image, candidates []Candidate) Decision {
	if !c.enabled {
		return Decision{Err: "vision validation disabled"}
	}

	var catalog strings.Builder
	for _, cand := range candidates {
		fmt.Fprintf(&catalog, "- ID %s: %s: %s\n", cand.ID, cand.Name, cand.Description)
	}
	if catalog.Len() == 0 {
		catalog.WriteString("The album has no stickers.\n")
	}

	userText := "Stickers available in the album:\n" + catalog.String() +
		"\nAnalyze the photo and return ONLY the JSON, no extra text."

	messages := []chatMessage{
		{Role: "system", Content: matchSystemPrompt},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: userText},
			{Type: "image_url", ImageURL: &imageRef{URL: img.payloadURL()}},
		}},
	}

	raw, err := c.complete(ctx, messages, 400)
	if err != nil {
		log.Error().Err(err).Msg("Vision match request failed")
		return Decision{Err: err.Error()}
	}
	if !gjson.Valid(raw) {
		log.Error().Str("raw", truncate(raw, 200)).Msg("Vision match returned invalid JSON")
		return Decision{Err: "invalid JSON response"}
	}

	return Decision{
		Recognized: gjson.Get(raw, "recognized").Bool(),
		Make:       gjson.Get(raw, "make").String(),
		Model:      gjson.Get(raw, "model").String(),
		Generation: gjson.Get(raw, "generation").String(),
		YearRange:  gjson.Get(raw, "year_range").String(),
		Confidence: gjson.Get(raw, "confidence").Float(),
		StickerID:  gjson.Get(raw, "sticker_id").String(),
		Reason:     gjson.Get(raw, "reason").String(),
		FunFact:    gjson.Get(raw, "fun_fact").String(),
	}
}

// ValidateSubmission asks the model whether the user's photo shows the
// same subject as the sticker's reference image. Approval requires a
// positive match at or above the confidence threshold.
func (c *Client) ValidateSubmission(ctx context.Context, photo Image, reference *Image, stickerName, albumTitle, description string) Outcome {
	if photo.IsZero() {
		return Outcome{Reason: "No image provided"}
	}
	if !c.enabled {
		return Outcome{
			Approved: true,
			Reason:   "vision validation disabled - auto-approved (development mode)",
		}
	}

	var prompt strings.Builder
	prompt.WriteString("Decide whether the user's photo shows the same car as the reference sticker. ")
	fmt.Fprintf(&prompt, "Sticker: %s. ", stickerName)
	if albumTitle != "" {
		fmt.Fprintf(&prompt, "Album: %s. ", albumTitle)
	}
	if description != "" {
		fmt.Fprintf(&prompt, "Description: %s. ", description)
	}
	prompt.WriteString(`Answer ONLY with JSON shaped as: {"match_score": 0-1, "is_match": true|false, "reason": "short text"}`)

	parts := []contentPart{{Type: "text", Text: prompt.String()}}
	if reference != nil && !reference.IsZero() {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageRef{URL: reference.payloadURL()}})
	}
	parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageRef{URL: photo.payloadURL()}})

	messages := []chatMessage{{Role: "user", Content: parts}}

	raw, err := c.complete(ctx, messages, 200)
	if err != nil {
		log.Error().Err(err).Str("sticker", stickerName).Msg("Vision validation request failed")
		return Outcome{Err: err.Error()}
	}
	if !gjson.Valid(raw) {
		log.Error().Str("raw", truncate(raw, 200)).Msg("Vision validation returned invalid JSON")
		return Outcome{Err: "invalid JSON response"}
	}

	score := gjson.Get(raw, "match_score").Float()
	isMatch := gjson.Get(raw, "is_match").Bool()
	return Outcome{
		Approved:   isMatch && score >= ApprovalThreshold,
		IsMatch:    isMatch,
		MatchScore: score,
		Reason:     gjson.Get(raw, "reason").String(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// complete runs one chat completion and returns the raw message content.
func (c *Client) complete(ctx context.Context, messages []chatMessage, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		MaxTokens:      maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.VisionRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("vision status %d: %s", resp.StatusCode, truncate(string(snippet), 200))
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("vision response has no choices")
	}
	return strings.TrimSpace(payload.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
