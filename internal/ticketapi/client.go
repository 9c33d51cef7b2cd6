// Package ticketapi is the command gateway to the upstream ticket REST API.
// It issues the five supported operations and converts any transport or
// status failure into an explicit upstream error; it never retries and never
// touches session state itself.
package ticketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spec-kit/support-console/internal/config"
	"github.com/spec-kit/support-console/internal/domain"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

// Client talks to the ticket REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient configures a client from settings.
func NewClient(cfg config.TicketAPIConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout()},
	}
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type changeStatusRequest struct {
	ID     string              `json:"id"`
	Status domain.TicketStatus `json:"status"`
}

// List fetches all ticket summaries visible to the admin session.
func (c *Client) List(ctx context.Context) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets", nil, &tickets); err != nil {
		return nil, apperrors.NewUpstreamError("list", err)
	}
	return tickets, nil
}

// Detail fetches one ticket including its full message log. The endpoint
// does not return the tenant reference; the reconciler merges it back in
// from the list store.
func (c *Client) Detail(ctx context.Context, id string) (domain.Ticket, error) {
	var ticket domain.Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets/"+url.PathEscape(id), nil, &ticket); err != nil {
		return domain.Ticket{}, apperrors.NewUpstreamError("detail", err)
	}
	return ticket, nil
}

// SendMessage posts a staff reply and returns the server-created message,
// the single source of truth for its id and timestamp.
func (c *Client) SendMessage(ctx context.Context, id, body string) (domain.Message, error) {
	var message domain.Message
	path := "/tickets/" + url.PathEscape(id) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, sendMessageRequest{Message: body}, &message); err != nil {
		return domain.Message{}, apperrors.NewUpstreamError("send-message", err)
	}
	return message, nil
}

// ChangeStatus patches a ticket's status.
func (c *Client) ChangeStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	if err := c.do(ctx, http.MethodPatch, "/tickets", changeStatusRequest{ID: id, Status: status}, nil); err != nil {
		return apperrors.NewUpstreamError("change-status", err)
	}
	return nil
}

// Delete removes a ticket permanently.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/tickets/"+url.PathEscape(id), nil, nil); err != nil {
		return apperrors.NewUpstreamError("delete", err)
	}
	return nil
}

// Ping verifies the upstream API is reachable, used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	var tickets []domain.Ticket
	return c.do(ctx, http.MethodGet, "/tickets", nil, &tickets)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
