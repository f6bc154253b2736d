package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/zhengjr9/vibes/internal/project"
)

// Projects manages saved projects through the service API.
type Projects struct {
	client *Client
}

// Projects returns the project API helper.
func (c *Client) Projects() *Projects { return &Projects{client: c} }

func (p *Projects) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.client.url(path), rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func projectPath(id string) string { return "/api/projects/" + url.PathEscape(id) }

// List returns saved projects, most recently updated first.
func (p *Projects) List(ctx context.Context) ([]*project.Project, error) {
	var out []*project.Project
	err := p.do(ctx, http.MethodGet, "/api/projects", nil, &out)
	return out, err
}

// Get fetches one project.
func (p *Projects) Get(ctx context.Context, id string) (*project.Project, error) {
	var out project.Project
	if err := p.do(ctx, http.MethodGet, projectPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Save creates a project, or updates existingID when it still exists.
func (p *Projects) Save(ctx context.Context, prompt, code, existingID string) (*project.Project, error) {
	var out project.Project
	body := map[string]string{"prompt": prompt, "code": code}
	if existingID != "" {
		body["id"] = existingID
	}
	if err := p.do(ctx, http.MethodPost, "/api/projects", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rename changes a project's title.
func (p *Projects) Rename(ctx context.Context, id, title string) (*project.Project, error) {
	var out project.Project
	if err := p.do(ctx, http.MethodPatch, projectPath(id), map[string]string{"title": title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a project.
func (p *Projects) Delete(ctx context.Context, id string) error {
	return p.do(ctx, http.MethodDelete, projectPath(id), nil, nil)
}
