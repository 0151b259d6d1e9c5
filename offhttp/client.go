// Package offhttp implements the remote-client boundary of the sync
// engine over plain REST endpoints with JWT bearer authentication.
//
// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mobiletoly/go-offsync/internal/auth"
	"github.com/mobiletoly/go-offsync/offsync"
)

// TokenFunc supplies the bearer token for a request, typically a JWT.
type TokenFunc func(ctx context.Context) (string, error)

// Client talks to one entity kind's REST resource. Any transport or
// server problem is returned as *offsync.RemoteError, which the engine
// treats as retryable.
type Client[T offsync.Record] struct {
	BaseURL   string
	Resource  string // e.g. "bookmarks"
	HTTP      *http.Client
	Token     TokenFunc
	SourceID  string // device attribution; a context value overrides it
	Logger    *slog.Logger
	NewRecord func() T
}

// NewClient creates a REST remote client for one resource.
func NewClient[T offsync.Record](baseURL, resource string, newRecord func() T, token TokenFunc) *Client[T] {
	return &Client[T]{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Resource:  resource,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Token:     token,
		Logger:    slog.Default(),
		NewRecord: newRecord,
	}
}

// Create POSTs the record and returns the server-canonical copy,
// including the server-assigned identity.
func (c *Client[T]) Create(ctx context.Context, rec T) (T, error) {
	return c.send(ctx, http.MethodPost, c.url(""), rec)
}

// Update PUTs the record and returns the canonical field values, which
// may differ from the sent copy due to server-side normalization.
func (c *Client[T]) Update(ctx context.Context, rec T) (T, error) {
	return c.send(ctx, http.MethodPut, c.url(rec.RecordID()), rec)
}

// Delete removes the record remotely. A 404 counts as success: the
// engine replays jobs at-least-once and the entity may already be gone.
func (c *Client[T]) Delete(ctx context.Context, id string) error {
	op := http.MethodDelete + " /" + c.Resource
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url(id), nil)
	if err != nil {
		return &offsync.RemoteError{Op: op, Err: err}
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &offsync.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	return nil
}

// Get fetches a single record.
func (c *Client[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	op := http.MethodGet + " /" + c.Resource
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(id), nil)
	if err != nil {
		return zero, &offsync.RemoteError{Op: op, Err: err}
	}
	if err := c.authorize(ctx, req); err != nil {
		return zero, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return zero, &offsync.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, statusError(op, resp)
	}
	out := c.NewRecord()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return zero, &offsync.RemoteError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return out, nil
}

// List fetches the records under parentID.
func (c *Client[T]) List(ctx context.Context, parentID string) ([]T, error) {
	op := http.MethodGet + " /" + c.Resource
	u := c.url("") + "?parent_id=" + url.QueryEscape(parentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &offsync.RemoteError{Op: op, Err: err}
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &offsync.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(op, resp)
	}

	var raws []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, &offsync.RemoteError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	records := make([]T, 0, len(raws))
	for _, raw := range raws {
		rec := c.NewRecord()
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, &offsync.RemoteError{Op: op, Err: fmt.Errorf("failed to decode record: %w", err)}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client[T]) send(ctx context.Context, method, u string, rec T) (T, error) {
	var zero T
	op := method + " /" + c.Resource

	body, err := json.Marshal(rec)
	if err != nil {
		return zero, &offsync.RemoteError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return zero, &offsync.RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return zero, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return zero, &offsync.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, statusError(op, resp)
	}
	out := c.NewRecord()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return zero, &offsync.RemoteError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return out, nil
}

func (c *Client[T]) authorize(ctx context.Context, req *http.Request) error {
	if c.Token != nil {
		token, err := c.Token(ctx)
		if err != nil {
			return &offsync.RemoteError{Op: "authorize", Err: fmt.Errorf("failed to get token: %w", err)}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	sourceID := c.SourceID
	if ctxID, ok := auth.DeviceID(ctx); ok {
		sourceID = ctxID
	}
	if sourceID != "" {
		req.Header.Set("X-Source-ID", sourceID)
	}
	return nil
}

func (c *Client[T]) url(id string) string {
	u := c.BaseURL + "/" + c.Resource
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func statusError(op string, resp *http.Response) *offsync.RemoteError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &offsync.RemoteError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
	}
}
