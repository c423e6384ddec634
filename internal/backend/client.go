/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the poem library API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new library client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// FetchToken requests a bearer token from the server.
func (c *Client) FetchToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	req := map[string]any{"subject": subject, "ttl_seconds": int64(ttl.Seconds())}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ListPoems returns the library contents (read-only, no sources).
func (c *Client) ListPoems(ctx context.Context) ([]LibraryPoem, error) {
	var list []LibraryPoem
	if err := c.doJSON(ctx, http.MethodGet, "/api/poems", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetPoem fetches one poem including its serialized source block.
func (c *Client) GetPoem(ctx context.Context, id int64) (*LibraryPoem, error) {
	var p LibraryPoem
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/poems/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PublishResult is the server acknowledgement for a publish.
type PublishResult struct {
	ID       int64  `json:"id"`
	StableID string `json:"stable_id"`
	Version  int64  `json:"version"`
}

// Publish uploads a serialized diwan block. An empty stableID lets the
// server mint one; republishing with the same stableID bumps the version.
func (c *Client) Publish(ctx context.Context, stableID, source string) (*PublishResult, error) {
	var res PublishResult
	req := map[string]any{"stable_id": stableID, "source": source}
	if err := c.doJSON(ctx, http.MethodPost, "/api/poems", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Search runs a server-side full-text search over the library.
func (c *Client) Search(ctx context.Context, text, poet string, limit, offset int) ([]LibraryPoem, error) {
	q := url.Values{}
	if text != "" {
		q.Set("q", text)
	}
	if poet != "" {
		q.Set("poet", poet)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", offset))
	}
	path := "/api/search"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var list []LibraryPoem
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
