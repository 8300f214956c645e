// Package generation calls the content generation service.
package generation

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

	"golang.org/x/time/rate"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/credential"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
)

const assessmentContentPath = "/ai/assessment-content"

var (
	ErrAuth      = errors.New("authentication required")
	ErrNetwork   = errors.New("generation request failed")
	ErrNoContent = errors.New("no content generated")
)

// StatusError is a non-2xx reply. 401 and 403 match ErrAuth, everything else
// matches ErrNetwork.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation service returned %d: %s", e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return target == ErrAuth
	}
	return target == ErrNetwork
}

type Request struct {
	GenerationType string `json:"generation_type"`
	Material       string `json:"material"`
	QAQFLevel      string `json:"qaqf_level"`
	Subject        string `json:"subject"`
	UserQuery      string `json:"userquery"`
	CourseID       string `json:"courseid"`
}

type response struct {
	GeneratedContent string `json:"generated_content"`
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RPS         float64
	Credentials credential.Source
	Logger      *logger.Logger
}

type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials credential.Source
	Limiter     *rate.Limiter
	log         *logger.Logger
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient:  &http.Client{Timeout: timeout},
		Credentials: cfg.Credentials,
		log:         logger.OrNop(cfg.Logger),
	}
	if cfg.RPS > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return c
}

// Generate returns the generated content for req. The credential is checked
// before any network I/O.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	token, err := credential.Resolve(ctx, c.Credentials)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+assessmentContentPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	started := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		c.log.Warn("generation request failed", "type", req.GenerationType, "error", err)
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("generation service error", "type", req.GenerationType, "status", resp.StatusCode)
		return "", &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrNetwork, err)
	}
	if strings.TrimSpace(out.GeneratedContent) == "" {
		return "", ErrNoContent
	}
	c.log.Debug("content generated", "type", req.GenerationType, "duration_ms", time.Since(started).Milliseconds())
	return out.GeneratedContent, nil
}
