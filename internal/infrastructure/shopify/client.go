package shopify

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

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// DefaultAPIVersion is the pinned Shopify Admin REST version.
const DefaultAPIVersion = "2023-10"

// DefaultPageSize is Shopify's maximum page size for list endpoints.
const DefaultPageSize = 250

type client struct {
	apiVersion string
	httpClient *http.Client
	pacer      *Pacer
	logger     zerolog.Logger

	// baseURL overrides the https://{shop} scheme/host, used by tests to
	// point at a local server. Empty in production.
	baseURL string
}

// Option configures the client.
type Option func(*client)

// WithBaseURL routes all requests to a fixed base URL instead of the shop
// domain. Intended for tests.
func WithBaseURL(base string) Option {
	return func(c *client) { c.baseURL = strings.TrimSuffix(base, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// NewClient creates a CommerceAPI adapter over the Shopify Admin REST API.
// Every page fetch acquires the pacer for the connection's shop domain
// before issuing the request.
func NewClient(apiVersion string, pacer *Pacer, logger zerolog.Logger, opts ...Option) ports.CommerceAPI {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	c := &client{
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pacer:      pacer,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listEnvelope map[string]json.RawMessage

func (c *client) FetchPage(ctx context.Context, conn ports.Connection, entity domain.EntityType, cursor string, opts ports.FetchOptions) (*ports.Page, error) {
	if err := c.pacer.Acquire(ctx, conn.ShopDomain); err != nil {
		return nil, err
	}

	page, retryAfter, err := c.fetchOnce(ctx, conn, entity, cursor, opts)
	if retryAfter > 0 {
		// Throttled. Honor Retry-After through the pacer and retry the same
		// page once; a second throttle is terminal for the sequence.
		c.logger.Warn().
			Str("shop", conn.ShopDomain).
			Str("entity", entity.String()).
			Dur("retry_after", retryAfter).
			Msg("Upstream throttled page fetch, retrying after delay")
		if err := c.pacer.AcquireAfter(ctx, conn.ShopDomain, retryAfter); err != nil {
			return nil, err
		}
		page, retryAfter, err = c.fetchOnce(ctx, conn, entity, cursor, opts)
		if retryAfter > 0 {
			return nil, fmt.Errorf("fetch %s page: throttled twice by upstream", entity)
		}
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// fetchOnce issues a single page request. A 429 is reported through the
// returned retry-after duration rather than as a hard error so the caller
// can pace and retry.
func (c *client) fetchOnce(ctx context.Context, conn ports.Connection, entity domain.EntityType, cursor string, opts ports.FetchOptions) (*ports.Page, time.Duration, error) {
	req, err := c.newListRequest(ctx, conn, entity, cursor, opts)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s page: %w", entity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("fetch %s page: status %d: %s", entity, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, 0, fmt.Errorf("fetch %s page: decode body: %w", entity, err)
	}
	rawList, ok := envelope[entity.String()]
	if !ok {
		return nil, 0, fmt.Errorf("fetch %s page: response missing %q collection", entity, entity)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(rawList, &records); err != nil {
		return nil, 0, fmt.Errorf("fetch %s page: decode records: %w", entity, err)
	}

	return &ports.Page{
		Records:    records,
		NextCursor: nextPageInfo(resp.Header.Get("Link")),
	}, 0, nil
}

func (c *client) newListRequest(ctx context.Context, conn ports.Connection, entity domain.EntityType, cursor string, opts ports.FetchOptions) (*http.Request, error) {
	base := c.baseURL
	if base == "" {
		base = "https://" + conn.ShopDomain
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/%s.json", base, c.apiVersion, entity)

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		// Shopify rejects filter parameters on cursor-paged requests; the
		// original filters stay encoded in the page_info token.
		params.Set("page_info", cursor)
	} else {
		if entity == domain.EntityOrders {
			params.Set("status", "any")
			if !opts.CreatedAtMin.IsZero() {
				params.Set("created_at_min", opts.CreatedAtMin.UTC().Format(time.RFC3339))
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page: build request: %w", entity, err)
	}
	req.Header.Set("X-Shopify-Access-Token", conn.AccessToken)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *client) VerifyCredentials(ctx context.Context, conn ports.Connection) error {
	sc, err := goshopify.NewClient(goshopify.App{}, conn.ShopDomain, conn.AccessToken)
	if err != nil {
		return fmt.Errorf("verify credentials: create client: %w", err)
	}
	if _, err := sc.Shop.Get(ctx, nil); err != nil {
		return fmt.Errorf("verify credentials for %s: %w", conn.ShopDomain, err)
	}
	return nil
}

// nextPageInfo extracts the next-page cursor from a Shopify Link header, e.g.
//
//	<https://x.myshopify.com/admin/api/2023-10/products.json?limit=250&page_info=abc>; rel="next"
//
// Returns "" when no rel="next" segment is present, which signals the final
// page.
func nextPageInfo(linkHeader string) string {
	for _, part := range strings.Split(linkHeader, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end < 0 || end <= start {
			continue
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			continue
		}
		return u.Query().Get("page_info")
	}
	return ""
}

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || seconds <= 0 {
		return DefaultCallSpacing
	}
	return time.Duration(seconds * float64(time.Second))
}
