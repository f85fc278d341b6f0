package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/patrickwarner/openbidder/internal/models"
)

// HTTPHost drives a bidder over its HTTP API.
type HTTPHost struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPHost returns a host for the bidder at baseURL with sane client
// limits.
func NewHTTPHost(baseURL string) *HTTPHost {
	return &HTTPHost{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (h *HTTPHost) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("post %s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (h *HTTPHost) HandleCatalog(c models.CatalogSnapshot) error {
	return h.post(context.Background(), "/catalog", c, nil)
}

func (h *HTTPHost) HandleCapacity(c models.CapacityInfo) error {
	return h.post(context.Background(), "/capacity", c, nil)
}

func (h *HTTPHost) HandleAuctionReport(r models.AuctionReport) error {
	return h.post(context.Background(), "/reports/auction", r, nil)
}

func (h *HTTPHost) HandleResultReport(r models.ResultReport) error {
	return h.post(context.Background(), "/reports/result", r, nil)
}

func (h *HTTPHost) Tick(ctx context.Context) (models.BidSubmission, error) {
	var sub models.BidSubmission
	err := h.post(ctx, "/tick", nil, &sub)
	return sub, err
}

// Finish ends the bidder's current run.
func (h *HTTPHost) Finish(ctx context.Context) error {
	return h.post(ctx, "/finish", nil, nil)
}
