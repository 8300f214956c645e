// Package lesson persists document content to the lessons service.
package lesson

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
	"time"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/credential"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
)

var ErrPersist = errors.New("lesson update failed")

// Update is one PUT /lessons/{id}. Fields carries the page-owned values sent
// alongside description; a "description" key in Fields is ignored.
type Update struct {
	ID          string
	Description string
	Fields      map[string]any
}

type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials credential.Source
	log         *logger.Logger
}

func New(baseURL string, creds credential.Source, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{Timeout: timeout},
		Credentials: creds,
		log:         logger.OrNop(log),
	}
}

func (c *Client) Update(ctx context.Context, u Update) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("%w: missing lesson id", ErrPersist)
	}
	token, err := credential.Resolve(ctx, c.Credentials)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	payload := make(map[string]any, len(u.Fields)+1)
	for k, v := range u.Fields {
		payload[k] = v
	}
	payload["description"] = u.Description
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode lesson update: %w", err)
	}

	endpoint := c.BaseURL + "/lessons/" + url.PathEscape(u.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.log.Warn("lesson update failed", "lesson_id", u.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		c.log.Warn("lesson update rejected", "lesson_id", u.ID, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d: %s", ErrPersist, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	c.log.Info("lesson saved", "lesson_id", u.ID, "chars", len(u.Description))
	return nil
}
