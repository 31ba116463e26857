package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"
)

const defaultClientTimeout = 60 * time.Second

// Client calls a running sleeves API server.
type Client struct {
	target     *url.URL
	httpClient *http.Client
}

// NewClient returns a client for the API at apiTarget.
func NewClient(apiTarget string, timeout time.Duration) (*Client, error) {
	target, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme and host are required", apiTarget)
	}
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		target:     target,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SearchVector calls POST /api/search.
func (c *Client) SearchVector(ctx context.Context, req VectorRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	var out Response
	if err := c.do(ctx, http.MethodPost, "/api/search", nil, "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchText calls GET /api/search-by-text.
func (c *Client) SearchText(ctx context.Context, space, text string, k int, filter FilterParams) (*Response, error) {
	q := searchValues(space, k, filter)
	q.Set(ParamQuery, text)

	var out Response
	if err := c.do(ctx, http.MethodGet, "/api/search-by-text", q, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchImage uploads an encoded image to POST /api/search-by-image.
func (c *Client) SearchImage(ctx context.Context, space, filename, contentType string, image []byte, k int, filter FilterParams) (*Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormFile, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating multipart body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("writing multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	var out Response
	if err := c.do(ctx, http.MethodPost, "/api/search-by-image", searchValues(space, k, filter), w.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Genres calls GET /api/genres.
func (c *Client) Genres(ctx context.Context, space string) (*GenresResponse, error) {
	var out GenresResponse
	if err := c.do(ctx, http.MethodGet, "/api/genres", spaceValues(space), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// YearRange calls GET /api/year-range.
func (c *Client) YearRange(ctx context.Context, space string) (*YearRangeResponse, error) {
	var out YearRangeResponse
	if err := c.do(ctx, http.MethodGet, "/api/year-range", spaceValues(space), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats calls GET /api/stats.
func (c *Client) Stats(ctx context.Context, space string) (*StatsResponse, error) {
	var out StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/stats", spaceValues(space), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls GET /health. A degraded server answers 503 with a report,
// which is returned along with the error.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, "", nil, &out)
	var se *StatusError
	if err != nil && !(errors.As(err, &se) && se.Code == http.StatusServiceUnavailable && out.Status != "") {
		return nil, err
	}
	return &out, err
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed (HTTP %d): %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out any) error {
	u := *c.target
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to sleeves API at %s: %w", c.target.String(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		var er ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		// Health reports come back with 503 when degraded.
		_ = json.Unmarshal(data, out)
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func searchValues(space string, k int, filter FilterParams) url.Values {
	q := spaceValues(space)
	if q == nil {
		q = url.Values{}
	}
	if k > 0 {
		q.Set(ParamK, strconv.Itoa(k))
	}
	for key, v := range filter.Values() {
		q.Set(key, v)
	}
	return q
}

func spaceValues(space string) url.Values {
	if space == "" {
		return nil
	}
	return url.Values{ParamSpace: []string{space}}
}
