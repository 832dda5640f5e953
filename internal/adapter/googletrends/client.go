// internal/adapter/googletrends/client.go

package googletrends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"trendscope/internal/domain/trend"
	"trendscope/internal/retry"
)

const (
	explorePath   = "/trends/api/explore"
	multilinePath = "/trends/api/widgetdata/multiline"
)

// ErrRateLimited is returned when the provider answers 429
var ErrRateLimited = errors.New("rate limited by provider")

// StatusError reports an unexpected HTTP status from the provider
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status code %d", e.Endpoint, e.Code)
}

// Config contains configuration for the Google Trends client
type Config struct {
	BaseURL        string
	HostLanguage   string
	TZ             int
	Timeout        time.Duration
	ConnectTimeout time.Duration
	HTTPRetries    int
	UserAgent      string
}

// Client fetches interest over time from Google Trends
type Client struct {
	http   *retryablehttp.Client
	config Config
	logger *slog.Logger

	primeMu sync.Mutex
	primed  bool
}

// NewClient creates a new Google Trends client
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://trends.google.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.HostLanguage == "" {
		config.HostLanguage = "en-US"
	}
	if config.UserAgent == "" {
		config.UserAgent = "trendscope/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	std := &http.Client{
		Timeout: config.Timeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: config.ConnectTimeout,
			}).DialContext,
			TLSHandshakeTimeout: config.ConnectTimeout,
		},
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = std
	rc.RetryMax = config.HTTPRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:   rc,
		config: config,
		logger: logger,
	}, nil
}

// checkRetry retries transport errors, 429 and 5xx responses
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp == nil {
		return false, nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	default:
		return false, nil
	}
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Time    string `json:"time"`
	Geo     string `json:"geo"`
}

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

// InterestOverTime returns the popularity samples of keyword for the query
func (c *Client) InterestOverTime(ctx context.Context, keyword string, q trend.Query) (trend.Series, error) {
	series := trend.Series{Keyword: keyword}

	c.primeCookies(ctx)

	token, request, err := c.timeseriesWidget(ctx, keyword, q)
	if err != nil {
		return series, err
	}

	params := c.baseParams()
	params.Set("req", request)
	params.Set("token", token)

	body, err := c.get(ctx, multilinePath, params)
	if err != nil {
		return series, err
	}

	points, err := parseTimeline(body)
	if err != nil {
		return series, err
	}
	if len(points) == 0 {
		return series, trend.ErrNoData
	}

	series.Points = points
	return series, nil
}

// timeseriesWidget runs the explore call and returns the token and request
// of the interest over time widget
func (c *Client) timeseriesWidget(ctx context.Context, keyword string, q trend.Query) (string, string, error) {
	req := exploreRequest{
		ComparisonItem: []comparisonItem{{Keyword: keyword, Time: q.Timeframe, Geo: q.Geo}},
		Category:       0,
		Property:       "",
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return "", "", fmt.Errorf("error marshaling explore request: %w", err)
	}

	params := c.baseParams()
	params.Set("req", string(reqJSON))

	body, err := c.get(ctx, explorePath, params)
	if err != nil {
		return "", "", err
	}

	return parseExplore(body)
}

func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("hl", c.config.HostLanguage)
	params.Set("tz", strconv.Itoa(c.config.TZ))
	return params
}

// primeCookies loads the session cookies the API expects. Failures are only
// logged; the following calls report the real error.
func (c *Client) primeCookies(ctx context.Context) {
	c.primeMu.Lock()
	defer c.primeMu.Unlock()

	if c.primed {
		return
	}

	geo := c.config.HostLanguage
	if len(geo) >= 2 {
		geo = geo[len(geo)-2:]
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/?geo="+url.QueryEscape(strings.ToUpper(geo)), nil)
	if err != nil {
		c.logger.Warn("failed to build cookie request", "error", err)
		return
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("failed to load provider cookies", "error", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	c.primed = true
}

func (c *Client) setHeaders(req *retryablehttp.Request) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept-Language", c.config.HostLanguage)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.config.BaseURL + path + "?" + params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	c.setHeaders(req)

	c.logger.Debug("provider request", "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, &StatusError{Endpoint: path, Code: resp.StatusCode})
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, retry.Permanent(&StatusError{Endpoint: path, Code: resp.StatusCode})
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Endpoint: path, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	return stripPrefix(body)
}

// stripPrefix removes the anti-XSSI guard the API prepends to JSON bodies
func stripPrefix(body []byte) ([]byte, error) {
	i := bytes.IndexByte(body, '{')
	if i < 0 {
		return nil, fmt.Errorf("unexpected response format from provider")
	}
	return body[i:], nil
}

func parseExplore(body []byte) (string, string, error) {
	if !gjson.ValidBytes(body) {
		return "", "", fmt.Errorf("failed to decode explore response")
	}

	widget := gjson.GetBytes(body, `widgets.#(id=="TIMESERIES")`)
	if !widget.Exists() {
		return "", "", fmt.Errorf("explore response has no TIMESERIES widget")
	}

	token := widget.Get("token").String()
	request := widget.Get("request")
	if token == "" || !request.Exists() {
		return "", "", fmt.Errorf("TIMESERIES widget is missing token or request")
	}

	return token, request.Raw, nil
}

func parseTimeline(body []byte) ([]trend.Point, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to decode timeline response")
	}

	var points []trend.Point
	for _, item := range gjson.GetBytes(body, "default.timelineData").Array() {
		ts := item.Get("time")
		if !ts.Exists() {
			continue
		}
		points = append(points, trend.Point{
			Time:    time.Unix(ts.Int(), 0).UTC(),
			Value:   item.Get("value.0").Float(),
			Partial: item.Get("isPartial").Bool(),
		})
	}

	return points, nil
}
