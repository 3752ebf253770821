package woocommerce

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalog/internal/logger"

	"golang.org/x/time/rate"
)

const (
	MaxPerPage     = 100
	DefaultPerPage = 50

	totalPagesHeader = "X-WP-TotalPages"
	maxErrorBody     = 2048
)

var (
	ErrNotConfigured    = errors.New("woocommerce base URL is not configured")
	ErrMalformedPayload = errors.New("malformed woocommerce payload")
)

// APIError is a non-2xx answer from the store.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %s returned %d - %s", e.Endpoint, e.StatusCode, e.Body)
}

type AuthMode string

const (
	AuthBasic AuthMode = "basic"
	AuthQuery AuthMode = "query"
)

type Options struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Auth           AuthMode
	PerPage        int
	Timeout        time.Duration
	VerifyTLS      bool
	Retry          RetryConfig
	// RateLimit is the maximum number of requests per second, 0 for none.
	RateLimit  float64
	UserAgent  string
	HTTPClient *http.Client
}

type Client struct {
	baseURL    *url.URL
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	retrier    *retrier
	logger     *logger.Logger
}

func NewClient(opts Options, logger *logger.Logger) (*Client, error) {
	normalized := NormalizeBaseURL(opts.BaseURL)
	if normalized == "" {
		return nil, ErrNotConfigured
	}
	baseURL, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid woocommerce base URL: %w", err)
	}

	if opts.Auth == "" {
		opts.Auth = AuthBasic
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "WooCommerceImporter"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !opts.VerifyTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Client{
		baseURL:    baseURL,
		opts:       opts,
		httpClient: httpClient,
		limiter:    limiter,
		retrier:    newRetrier(opts.Retry),
		logger:     logger,
	}, nil
}

// NormalizeBaseURL trims the store URL and points it at the v3 REST API
// unless it already names a /wp-json path. The result ends with a slash.
func NormalizeBaseURL(raw string) string {
	normalized := strings.TrimRight(strings.TrimSpace(raw), "/")
	if normalized == "" {
		return ""
	}
	if !strings.Contains(normalized, "/wp-json") {
		normalized += "/wp-json/wc/v3"
	}
	return normalized + "/"
}

// ClampPerPage keeps a page size inside what the REST API accepts.
func ClampPerPage(perPage int) int {
	if perPage < 1 {
		return 1
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

func (c *Client) DefaultPerPage() int {
	return ClampPerPage(c.opts.PerPage)
}

// Query holds the list filters shared by the list endpoints.
type Query struct {
	PerPage       int
	Statuses      []string
	ModifiedAfter *time.Time
	Include       []int64
}

func (q Query) values(defaultPerPage int) url.Values {
	v := url.Values{}
	perPage := q.PerPage
	if perPage == 0 {
		perPage = defaultPerPage
	}
	v.Set("per_page", strconv.Itoa(ClampPerPage(perPage)))
	v.Set("orderby", "id")
	v.Set("order", "asc")

	var statuses []string
	for _, s := range q.Statuses {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, s)
		}
	}
	if len(statuses) > 0 {
		v.Set("status", strings.Join(statuses, ","))
	}
	if q.ModifiedAfter != nil {
		v.Set("modified_after", q.ModifiedAfter.UTC().Format(time.RFC3339))
	}
	if len(q.Include) > 0 {
		ids := make([]string, 0, len(q.Include))
		for _, id := range q.Include {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		v.Set("include", strings.Join(ids, ","))
	}
	return v
}

// ListProducts pages through GET /products.
func (c *Client) ListProducts(q Query) *Pager[Product] {
	return newPager(func(ctx context.Context, page int) ([]record[Product], int, error) {
		return fetchPage[Product](ctx, c, "products", q.values(c.DefaultPerPage()), page)
	})
}

// ListCategories pages through GET /products/categories.
func (c *Client) ListCategories(q Query) *Pager[Category] {
	if q.PerPage == 0 {
		q.PerPage = MaxPerPage
	}
	values := q.values(MaxPerPage)
	values.Del("status")
	values.Del("modified_after")
	values.Set("orderby", "id")
	return newPager(func(ctx context.Context, page int) ([]record[Category], int, error) {
		return fetchPage[Category](ctx, c, "products/categories", values, page)
	})
}

// ListVariations pages through GET /products/{id}/variations.
func (c *Client) ListVariations(productID int64, q Query) *Pager[Variation] {
	if q.PerPage == 0 {
		q.PerPage = MaxPerPage
	}
	endpoint := fmt.Sprintf("products/%d/variations", productID)
	values := q.values(MaxPerPage)
	values.Del("status")
	return newPager(func(ctx context.Context, page int) ([]record[Variation], int, error) {
		return fetchPage[Variation](ctx, c, endpoint, values, page)
	})
}

// GetProduct fetches a single product by its remote id.
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	endpoint := fmt.Sprintf("products/%d", id)
	body, _, err := c.get(ctx, endpoint, url.Values{})
	if err != nil {
		return nil, err
	}

	var product Product
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, endpoint, err)
	}
	if product.ID == 0 {
		return nil, fmt.Errorf("%w: %s: record has no id", ErrMalformedPayload, endpoint)
	}
	return &product, nil
}

// RecordError is a list element that could not be decoded. The other
// records on its page are still returned.
type RecordError struct {
	Endpoint string
	Page     int
	// RemoteID is 0 when the element has no readable id either.
	RemoteID int64
	Err      error
}

func (e *RecordError) Error() string {
	if e.RemoteID > 0 {
		return fmt.Sprintf("%v: %s page %d: record %d: %v", ErrMalformedPayload, e.Endpoint, e.Page, e.RemoteID, e.Err)
	}
	return fmt.Sprintf("%v: %s page %d: %v", ErrMalformedPayload, e.Endpoint, e.Page, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedPayload, e.Err}
}

func fetchPage[T any](ctx context.Context, c *Client, endpoint string, query url.Values, page int) ([]record[T], int, error) {
	values := url.Values{}
	for k, v := range query {
		values[k] = v
	}
	values.Set("page", strconv.Itoa(page))

	body, header, err := c.get(ctx, endpoint, values)
	if err != nil {
		return nil, 0, err
	}

	records, err := decodeRecords[T](body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s page %d: expected a JSON array: %v", ErrMalformedPayload, endpoint, page, err)
	}
	for i := range records {
		if records[i].err != nil {
			records[i].err.Endpoint = endpoint
			records[i].err.Page = page
			c.logger.Warn("Skipping malformed record on %s page %d: %v", endpoint, page, records[i].err.Err)
		}
	}

	totalPages, _ := strconv.Atoi(header.Get(totalPagesHeader))
	return records, totalPages, nil
}

// decodeRecords decodes a JSON array element by element. Only a body that is
// not an array fails as a whole.
func decodeRecords[T any](body []byte) ([]record[T], error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	records := make([]record[T], len(raw))
	for i, element := range raw {
		if err := json.Unmarshal(element, &records[i].item); err != nil {
			var ref struct {
				ID FlexInt `json:"id"`
			}
			_ = json.Unmarshal(element, &ref)
			records[i] = record[T]{err: &RecordError{RemoteID: ref.ID.Value, Err: err}}
		}
	}
	return records, nil
}

// get performs a GET against endpoint with retries and returns the raw body.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, http.Header, error) {
	target := c.baseURL.ResolveReference(&url.URL{Path: endpoint})
	if c.opts.Auth == AuthQuery && c.opts.ConsumerKey != "" {
		query.Set("consumer_key", c.opts.ConsumerKey)
		query.Set("consumer_secret", c.opts.ConsumerSecret)
	}
	target.RawQuery = query.Encode()

	var (
		body   []byte
		header http.Header
	)
	_, err := c.retrier.do(ctx, func(ctx context.Context) (int, time.Duration, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return statusNotSent, 0, fmt.Errorf("rate limiter: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return statusNotSent, 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.opts.UserAgent)
		if c.opts.Auth == AuthBasic && c.opts.ConsumerKey != "" {
			req.SetBasicAuth(c.opts.ConsumerKey, c.opts.ConsumerSecret)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("Request to %s failed: %v", endpoint, err)
			return 0, 0, fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet := string(data)
			if len(snippet) > maxErrorBody {
				snippet = snippet[:maxErrorBody]
			}
			c.logger.Debug("Request to %s returned %d", endpoint, resp.StatusCode)
			return resp.StatusCode, parseRetryAfter(resp), &APIError{
				StatusCode: resp.StatusCode,
				Endpoint:   endpoint,
				Body:       snippet,
			}
		}

		body, header = data, resp.Header
		return resp.StatusCode, 0, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return body, header, nil
}
