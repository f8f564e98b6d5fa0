package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL    string
	AdminToken string
	HTTP       *http.Client
}

func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: adminToken,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) ListCompanies(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/companies", nil, &out, false)
	return out, err
}

func (c *Client) Company(ctx context.Context, name string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/companies/"+url.PathEscape(name), nil, &out, false)
	return out, err
}

func (c *Client) PriceHistory(ctx context.Context, name, period string) (map[string]any, error) {
	var out map[string]any
	path := "/v1/companies/" + url.PathEscape(name) + "/history?period=" + url.QueryEscape(period)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, false)
	return out, err
}

func (c *Client) Balance(ctx context.Context, userID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/balance", nil, &out, false)
	return out, err
}

func (c *Client) Holding(ctx context.Context, userID, company string) (map[string]any, error) {
	var out map[string]any
	path := "/v1/users/" + url.PathEscape(userID) + "/holdings/" + url.PathEscape(company)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, false)
	return out, err
}

func (c *Client) Buy(ctx context.Context, userID, company string, shares int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/orders/buy", map[string]any{
		"user_id": userID,
		"company": company,
		"shares":  shares,
	}, &out, false)
	return out, err
}

func (c *Client) Sell(ctx context.Context, userID, company string, shares int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/orders/sell", map[string]any{
		"user_id": userID,
		"company": company,
		"shares":  shares,
	}, &out, false)
	return out, err
}

func (c *Client) ListTrades(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/trades", nil, &out, false)
	return out, err
}

func (c *Client) PostTrade(ctx context.Context, sellerID, company string, shares int64, price, restrictedTo string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/trades", map[string]any{
		"seller_id":     sellerID,
		"company":       company,
		"shares":        shares,
		"price":         price,
		"restricted_to": restrictedTo,
	}, &out, false)
	return out, err
}

func (c *Client) FillTrade(ctx context.Context, tradeID int64, buyerID string, shares int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/trades/%d/fill", tradeID), map[string]any{
		"buyer_id": buyerID,
		"shares":   shares,
	}, &out, false)
	return out, err
}

func (c *Client) CancelTrade(ctx context.Context, tradeID int64, requesterID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/trades/%d/cancel", tradeID), map[string]any{
		"requester_id": requesterID,
	}, &out, false)
	return out, err
}

func (c *Client) EnsureUser(ctx context.Context, userID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID), nil, &out, false)
	return out, err
}

func (c *Client) Verify(ctx context.Context, userID, nationID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/verify", map[string]any{
		"nation_id": nationID,
	}, &out, false)
	return out, err
}

func (c *Client) RegisterCompany(ctx context.Context, name, ownerID, price string, totalShares int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/companies", map[string]any{
		"name":         name,
		"owner_id":     ownerID,
		"price":        price,
		"total_shares": totalShares,
	}, &out, true)
	return out, err
}

func (c *Client) EditCompany(ctx context.Context, name, price string, availableShares int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPut, "/v1/companies/"+url.PathEscape(name), map[string]any{
		"price":            price,
		"available_shares": availableShares,
	}, &out, true)
	return out, err
}

func (c *Client) RemoveCompany(ctx context.Context, name string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodDelete, "/v1/companies/"+url.PathEscape(name), nil, &out, true)
	return out, err
}

func (c *Client) GrantCredits(ctx context.Context, userID, amount string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/credits", map[string]any{
		"amount": amount,
	}, &out, true)
	return out, err
}

func (c *Client) Transactions(ctx context.Context, limit int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/transactions?limit=%d", limit), nil, &out, true)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, admin bool) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		if strings.TrimSpace(c.AdminToken) == "" {
			return fmt.Errorf("admin token required: set COINPULSE_ADMIN_TOKEN")
		}
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
