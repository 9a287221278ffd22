// Package airtable implements recordstore.Store against the Airtable REST API.
package airtable

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

	"github.com/pkg/errors"

	"github.com/birchwood-sourdough/orders/recordstore"
)

const DefaultBaseURL = "https://api.airtable.com"

// Config holds Airtable credentials.
type Config struct {
	APIKey  string
	BaseID  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to one Airtable base.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

// ValidateConfig checks that the credentials needed for every call are present.
func (c *Client) ValidateConfig() error {
	if c.config.APIKey == "" {
		return fmt.Errorf("AIRTABLE_API_KEY is not set")
	}
	if c.config.BaseID == "" {
		return fmt.Errorf("AIRTABLE_BASE_ID is not set")
	}
	return nil
}

type listResponse struct {
	Records []recordstore.Record `json:"records"`
	Offset  string               `json:"offset"`
}

type writeRequest struct {
	Fields   recordstore.Fields `json:"fields"`
	Typecast bool               `json:"typecast"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Query lists a table, following pagination. A non-nil filter is sent as filterByFormula.
func (c *Client) Query(ctx context.Context, table string, filter recordstore.Filter) ([]recordstore.Record, error) {
	var out []recordstore.Record
	offset := ""
	for {
		q := url.Values{}
		q.Set("pageSize", "100")
		if filter != nil {
			q.Set("filterByFormula", filter.Formula())
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

func (c *Client) Find(ctx context.Context, table, id string) (recordstore.Record, error) {
	var r recordstore.Record
	err := c.do(ctx, http.MethodGet, c.recordURL(table, id), nil, &r)
	return r, err
}

func (c *Client) Create(ctx context.Context, table string, fields recordstore.Fields) (recordstore.Record, error) {
	var r recordstore.Record
	err := c.do(ctx, http.MethodPost, c.tableURL(table), writeRequest{Fields: fields, Typecast: true}, &r)
	return r, err
}

func (c *Client) Update(ctx context.Context, table, id string, fields recordstore.Fields) (recordstore.Record, error) {
	var r recordstore.Record
	err := c.do(ctx, http.MethodPatch, c.recordURL(table, id), writeRequest{Fields: fields, Typecast: true}, &r)
	return r, err
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	return c.do(ctx, http.MethodDelete, c.recordURL(table, id), nil, nil)
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/v0/%s/%s", strings.TrimRight(c.config.BaseURL, "/"),
		url.PathEscape(c.config.BaseID), url.PathEscape(table))
}

func (c *Client) recordURL(table, id string) string {
	return c.tableURL(table) + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal airtable request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "build airtable request")
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(recordstore.ErrUnavailable, "airtable %s: %v", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(recordstore.ErrUnavailable, "read airtable response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(err, "decode airtable response")
	}
	return nil
}

func statusError(code int, raw []byte) error {
	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	msg := ae.Error.Message
	if msg == "" {
		msg = ae.Error.Type
	}

	switch {
	case code == http.StatusNotFound:
		return recordstore.ErrNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden,
		code == http.StatusTooManyRequests, code >= 500:
		return errors.Wrapf(recordstore.ErrUnavailable, "airtable status %d: %s", code, msg)
	default:
		return errors.Errorf("airtable status %d (%s): %s", code, ae.Error.Type, msg)
	}
}
