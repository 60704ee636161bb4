// Package hub is the HTTP client for hub coordination servers.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
)

const (
	eventsPath     = "/api/orders/events"
	signaturesPath = "/api/orders/signatures"

	maxResponseBytes = 10 * 1024 * 1024
)

// RequestSigner adds authentication headers to an outbound request.
type RequestSigner interface {
	Sign(req *http.Request) error
}

// Client performs signed GET requests against a hub. The hub base URL is
// passed per call so the same client serves primary and fallback hubs.
type Client struct {
	httpClient *http.Client
	signer     RequestSigner
	logger     zerolog.Logger
}

// NewClient creates a hub client. Per request deadlines come from the caller's
// context; the client timeout only bounds requests made without one.
func NewClient(signer RequestSigner, logger zerolog.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second, Transport: transport},
		signer:     signer,
		logger:     logger.With().Str("component", "hub_client").Logger(),
	}
}

// FetchEvents returns up to limit events recorded after cursor.
func (c *Client) FetchEvents(ctx context.Context, baseURL string, after int64, limit int) (*EventsPage, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatInt(after, 10))
	q.Set("limit", strconv.Itoa(limit))

	var page EventsPage
	if err := c.get(ctx, baseURL, eventsPath, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchSignatures returns the signature batches the hub currently holds.
func (c *Client) FetchSignatures(ctx context.Context, baseURL string) (*SignaturesPage, error) {
	var page SignaturesPage
	if err := c.get(ctx, baseURL, signaturesPath, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) get(ctx context.Context, baseURL, path string, query url.Values, out any) error {
	target := strings.TrimRight(baseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.signer != nil {
		if err := c.signer.Sign(req); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return oerrors.New(oerrors.ErrCodeTimeout, "hub", "hub request aborted", err)
		}
		return oerrors.NewNetworkError("hub", "hub request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return oerrors.NewNetworkError("hub", "failed to read hub response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug().Str("url", target).Int("status", resp.StatusCode).Msg("hub responded with error status")
		return oerrors.NewNetworkError("hub", fmt.Sprintf("hub returned status %d", resp.StatusCode), nil).
			WithContext("url", target)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return oerrors.NewDataIntegrityError("hub", "malformed hub response", err)
	}
	return nil
}
