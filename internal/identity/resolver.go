// Package identity resolves external nation identities for the command
// layer. The market core never imports this package.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotFound = errors.New("nation not found")

type NationRecord struct {
	ID      string `json:"id"`
	Name    string `json:"nation_name"`
	Discord string `json:"discord"`
}

type Resolver interface {
	Resolve(ctx context.Context, nationID string) (NationRecord, error)
}

// Client resolves nations against the game API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (c *Client) Resolve(ctx context.Context, nationID string) (NationRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/nations/"+url.PathEscape(nationID), nil)
	if err != nil {
		return NationRecord{}, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NationRecord{}, fmt.Errorf("resolve nation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return NationRecord{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return NationRecord{}, fmt.Errorf("nation api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rec NationRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return NationRecord{}, fmt.Errorf("decode nation: %w", err)
	}
	if rec.ID == "" {
		rec.ID = nationID
	}
	return rec, nil
}
