// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cloudflare is the upstream CDN REST client: four bearer-token
// authorized HTTPS calls against a Cloudflare-like filters/firewall-rules
// API. Every call is independent; the underlying HTTP connection pool is
// managed by net/http itself.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
)

var tracer = otel.Tracer("github.com/crypto-pepe/firewall-executor/internal/cloudflare")

// Config describes how to reach one zone of the upstream CDN.
type Config struct {
	BaseURL             string
	AccountID           string
	ZoneID              string
	Token               string
	InvalidationTimeout time.Duration
}

// Client issues the four REST operations the executor and invalidator need.
type Client struct {
	hc     *http.Client
	cfg    Config
	baseURL string
}

// New builds a Client. cfg.InvalidationTimeout bounds every request issued
// by hc; the upstream client does not retry internally, matching the
// single-attempt-per-call contract described for the control plane.
func New(cfg Config) *Client {
	timeout := cfg.InvalidationTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type apiResponse struct {
	Success bool     `json:"success"`
	Errors  []apiMsg `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiMsg struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type filterResult struct {
	ID string `json:"id"`
}

type ruleResult struct {
	ID string `json:"id"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	ctx, span := tracer.Start(ctx, "cloudflare."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
	defer span.End()

	resp, err := c.doTraced(ctx, method, path, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (c *Client) doTraced(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, flerrors.Wrap(err, flerrors.KindClientError, "marshal upstream request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindClientError, "build upstream request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindClientError, "upstream request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindClientError, "read upstream response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, flerrors.Errorf(flerrors.KindClientError, "upstream returned HTTP status %d: %s", resp.StatusCode, string(raw))
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindClientError, "decode upstream response")
	}
	if !out.Success {
		return nil, flerrors.New(flerrors.KindUpstream, joinMessages(out.Errors))
	}
	return &out, nil
}

func joinMessages(msgs []apiMsg) string {
	if len(msgs) == 0 {
		return "upstream reported failure with no error detail"
	}
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = fmt.Sprintf("[%d] %s", m.Code, m.Message)
	}
	return strings.Join(parts, "; ")
}

// CreateFilter creates a new filter with the given expression and returns
// its upstream-assigned id.
func (c *Client) CreateFilter(ctx context.Context, expression, description string) (string, error) {
	body := []map[string]any{{
		"expression":  expression,
		"description": description,
	}}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/filters", c.cfg.ZoneID), body)
	if err != nil {
		return "", err
	}

	var results []filterResult
	if err := json.Unmarshal(resp.Result, &results); err != nil {
		return "", flerrors.Wrap(err, flerrors.KindClientError, "decode create_filter result")
	}
	if len(results) != 1 {
		return "", flerrors.Errorf(flerrors.KindClientError, "create_filter returned %d filters, want 1", len(results))
	}
	return results[0].ID, nil
}

// UpdateFilter replaces the expression of an existing filter.
func (c *Client) UpdateFilter(ctx context.Context, filterID, expression string) error {
	body := map[string]any{
		"id":         filterID,
		"expression": expression,
	}
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/zones/%s/filters/%s", c.cfg.ZoneID, filterID), body)
	return err
}

// CreateRule attaches a firewall rule to filterID with the given action
// (the lowercase restriction kind, e.g. "block").
func (c *Client) CreateRule(ctx context.Context, filterID, action string) (string, error) {
	body := []map[string]any{{
		"action": action,
		"filter": map[string]string{"id": filterID},
	}}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/firewall/rules", c.cfg.ZoneID), body)
	if err != nil {
		return "", err
	}

	var results []ruleResult
	if err := json.Unmarshal(resp.Result, &results); err != nil {
		return "", flerrors.Wrap(err, flerrors.KindClientError, "decode create_rule result")
	}
	if len(results) != 1 {
		return "", flerrors.Errorf(flerrors.KindClientError, "create_rule returned %d rules, want 1", len(results))
	}
	return results[0].ID, nil
}

// DeleteRule deletes ruleID. The upstream API deletes the referenced filter
// too, as long as delete_filter_if_unused=true and no other rule uses it.
func (c *Client) DeleteRule(ctx context.Context, ruleID string) error {
	path := fmt.Sprintf("/zones/%s/firewall/rules/%s?delete_filter_if_unused=true", c.cfg.ZoneID, ruleID)
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}
