// Package permit обращается к внешнему сервису политик через внутренний
// прокси /api/permit.
package permit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ButyrinIA/socials/internal/models"
)

// PolicyClient - точка принятия решений. Ошибка означает, что решение неизвестно.
type PolicyClient interface {
	Check(ctx context.Context, userID string, action models.Action, resource string) (bool, error)
	SyncUser(ctx context.Context, user models.Identity, role models.Role) (bool, error)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	UserID   string        `json:"userId"`
	Action   models.Action `json:"action"`
	Resource string        `json:"resource"`
}

type checkResponse struct {
	Permitted *bool `json:"permitted"`
}

type syncRequest struct {
	User models.Identity `json:"user"`
	Role models.Role     `json:"role"`
}

type syncResponse struct {
	Success *bool `json:"success"`
}

func (c *Client) Check(ctx context.Context, userID string, action models.Action, resource string) (bool, error) {
	var resp checkResponse
	if err := c.post(ctx, "/api/permit/check", checkRequest{UserID: userID, Action: action, Resource: resource}, &resp); err != nil {
		return false, err
	}
	if resp.Permitted == nil {
		return false, fmt.Errorf("permit check: response without permitted field")
	}
	return *resp.Permitted, nil
}

func (c *Client) SyncUser(ctx context.Context, user models.Identity, role models.Role) (bool, error) {
	var resp syncResponse
	if err := c.post(ctx, "/api/permit/sync-user", syncRequest{User: user, Role: role}, &resp); err != nil {
		return false, err
	}
	if resp.Success == nil {
		return false, fmt.Errorf("permit sync: response without success field")
	}
	return *resp.Success, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("permit %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return fmt.Errorf("permit %s: unexpected status %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("permit %s: decode response: %w", path, err)
	}
	return nil
}
