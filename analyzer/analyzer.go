// Package analyzer provides an EntityDetector backed by a remote
// Presidio-analyzer-compatible HTTP service. It lets the mapping engine use
// NLP-grade detection (persons, locations, organizations) while staying
// fully decoupled from model loading and inference.
//
// The client performs no internal retries: detection failures surface to
// the caller unchanged, and retry policy stays with the caller. Calls are
// context-bounded and rate limited.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Xaisr/redactor"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10 // requests per second
	maxResponseBytes = 10 << 20
)

// Client calls a remote analyzer service implementing the Presidio
// /analyze API and adapts its results to redactor.RawMatch values.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLanguage sets the analysis language (default "en").
func WithLanguage(lang string) ClientOption {
	return func(cl *Client) { cl.language = lang }
}

// WithRateLimit overrides the request rate limit (requests per second).
func WithRateLimit(rps float64) ClientOption {
	return func(cl *Client) { cl.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// New creates a client for the analyzer service at baseURL
// (e.g. "http://localhost:5002").
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		language:   "en",
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// analyzeRequest mirrors the Presidio analyzer request schema. Pattern and
// deny-list recognizers are forwarded as ad-hoc recognizers so the remote
// service applies the same custom entities as the built-in detector would.
type analyzeRequest struct {
	Text             string            `json:"text"`
	Language         string            `json:"language"`
	AdHocRecognizers []adHocRecognizer `json:"ad_hoc_recognizers,omitempty"`
}

type adHocRecognizer struct {
	Name            string         `json:"name"`
	SupportedEntity string         `json:"supported_entity"`
	Patterns        []adHocPattern `json:"patterns,omitempty"`
	DenyList        []string       `json:"deny_list,omitempty"`
	Context         []string       `json:"context,omitempty"`
}

type adHocPattern struct {
	Name  string  `json:"name"`
	Regex string  `json:"regex"`
	Score float64 `json:"score"`
}

// analyzeResult is one detection in the Presidio analyzer response.
// Offsets are unicode character positions, not bytes.
type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Detect implements redactor.EntityDetector.
func (c *Client) Detect(ctx context.Context, text string, recognizers []redactor.Recognizer) ([]redactor.RawMatch, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := analyzeRequest{
		Text:     text,
		Language: c.language,
	}
	for _, rec := range recognizers {
		adHoc := adHocRecognizer{
			Name:            rec.Name(),
			SupportedEntity: rec.EntityType(),
			DenyList:        rec.DenyList(),
			Context:         rec.ContextWords(),
		}
		for _, p := range rec.Patterns() {
			adHoc.Patterns = append(adHoc.Patterns, adHocPattern{
				Name: p.Name, Regex: p.Regex, Score: p.Score,
			})
		}
		reqBody.AdHocRecognizers = append(reqBody.AdHocRecognizers, adHoc)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer unavailable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading analyzer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var results []analyzeResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parsing analyzer response: %w", err)
	}

	log.Debug().
		Int("detections", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("remote analyze completed")

	return toRawMatches(text, results), nil
}

// toRawMatches converts character-offset results to byte-offset RawMatches.
func toRawMatches(text string, results []analyzeResult) []redactor.RawMatch {
	byteOffsets := runeToByteOffsets(text)
	matches := make([]redactor.RawMatch, 0, len(results))
	for _, r := range results {
		if r.Start < 0 || r.End <= r.Start || r.End >= len(byteOffsets) {
			continue
		}
		start, end := byteOffsets[r.Start], byteOffsets[r.End]
		matches = append(matches, redactor.RawMatch{
			EntityType: r.EntityType,
			Start:      start,
			End:        end,
			Text:       text[start:end],
			Score:      r.Score,
		})
	}
	return matches
}

// runeToByteOffsets returns a table mapping rune index to byte offset, with
// one trailing entry for len(text).
func runeToByteOffsets(text string) []int {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))
	return offsets
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
