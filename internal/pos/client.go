// Package pos talks to the resale marketplace ("POS") and keeps its
// listings in agreement with the locally active seat packs.
package pos

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the marketplace surface the core depends on.
type Client interface {
	CreateInventory(ctx context.Context, req InventoryRequest) (Inventory, error)
	Split(ctx context.Context, inventoryID string, retainTicketIDs []string) (SplitResult, error)
	Delete(ctx context.Context, inventoryID string) error
}

// HTTPDoer is the subset of *http.Client the marketplace client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// InventoryRequest is the body of POST /inventory/.
type InventoryRequest struct {
	ExternalRef   string   `json:"external_ref"` // seat pack internal id
	PerformanceID string   `json:"performance_id"`
	Section       string   `json:"section"`
	Row           string   `json:"row"`
	Seats         []string `json:"seats"`
	UnitCostCents int64    `json:"unit_cost_cents"`
	TicketCount   int      `json:"ticket_count"`
}

// Inventory is the marketplace's answer to a create.
type Inventory struct {
	ID        string   `json:"id"`
	Broadcast bool     `json:"broadcast"`
	TicketIDs []string `json:"ticket_ids"`
}

// SplitResult lists the inventory ids produced by a split.  The retained
// tickets live under the first id.
type SplitResult struct {
	NewInventoryIDs []string `json:"new_inventory_ids"`
}

// Retained returns the id now holding the retained tickets.
func (r SplitResult) Retained() (string, bool) {
	if len(r.NewInventoryIDs) == 0 || r.NewInventoryIDs[0] == "" {
		return "", false
	}
	return r.NewInventoryIDs[0], true
}

// Options configures HTTPClient.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration // per call; zero means 10s
	RPS     float64       // zero disables pacing
	Burst   int
	Doer    HTTPDoer // nil means http.DefaultClient
	Logger  *zap.Logger
}

// HTTPClient is the REST/JSON implementation of Client.
type HTTPClient struct {
	baseURL string
	token   string
	timeout time.Duration
	limiter *rate.Limiter
	doer    HTTPDoer
	log     *zap.Logger
}

// NewHTTPClient builds a client from opts.
func NewHTTPClient(opts Options) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		token:   strings.TrimSpace(opts.Token),
		timeout: opts.Timeout,
		doer:    opts.Doer,
		log:     opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if c.doer == nil {
		c.doer = http.DefaultClient
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c
}

// CreateInventory creates a listing.  The broadcast flag is logged and does
// not affect success.
func (c *HTTPClient) CreateInventory(ctx context.Context, in InventoryRequest) (Inventory, error) {
	var out Inventory
	status, err := c.call(ctx, "create", http.MethodPost, "/inventory/", in, &out, http.StatusOK, http.StatusCreated)
	if err != nil {
		return Inventory{}, err
	}
	if out.ID == "" {
		return Inventory{}, &APIError{Op: "create", StatusCode: status, Body: "response carried no inventory id"}
	}
	c.log.Info("pos inventory created",
		zap.String("pos_inventory_id", out.ID),
		zap.String("external_ref", in.ExternalRef),
		zap.Bool("broadcast", out.Broadcast),
	)
	return out, nil
}

// Split asks the marketplace to keep only retainTicketIDs under a new
// inventory id.
func (c *HTTPClient) Split(ctx context.Context, inventoryID string, retainTicketIDs []string) (SplitResult, error) {
	var out SplitResult
	body := struct {
		RetainTicketIDs []string `json:"retain_ticket_ids"`
	}{RetainTicketIDs: retainTicketIDs}
	path := "/inventory/" + url.PathEscape(inventoryID) + "/split"
	status, err := c.call(ctx, "split", http.MethodPost, path, body, &out, http.StatusOK, http.StatusCreated)
	if err != nil {
		return SplitResult{}, err
	}
	if _, ok := out.Retained(); !ok {
		return SplitResult{}, &APIError{Op: "split", StatusCode: status, Body: "response carried no inventory id"}
	}
	return out, nil
}

// Delete delists an inventory record.  A 404 counts as success.
func (c *HTTPClient) Delete(ctx context.Context, inventoryID string) error {
	path := "/inventory/" + url.PathEscape(inventoryID)
	_, err := c.call(ctx, "delete", http.MethodDelete, path, nil, nil, http.StatusNoContent)
	if errors.Is(err, ErrNotFound) {
		c.log.Info("pos inventory already gone", zap.String("pos_inventory_id", inventoryID))
		return nil
	}
	return err
}

func (c *HTTPClient) call(ctx context.Context, op, method, path string, in, out any, ok ...int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("pos %s: wait for rate limiter: %w", op, err)
		}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("pos %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("pos %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pos %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("pos %s: read response: %w", op, err)
	}
	if !accepted(resp.StatusCode, ok) {
		return resp.StatusCode, &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("pos %s: decode response: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}

func accepted(code int, ok []int) bool {
	for _, c := range ok {
		if code == c {
			return true
		}
	}
	return false
}
