// Package pinterest is a small client for the Pinterest v5 REST API covering
// the two reads the sync needs: top pins analytics and the pin inventory.
package pinterest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.pinterest.com"
	apiPrefix      = "/v5"
	maxErrorBody   = 2048
)

// Config holds client settings
type Config struct {
	BaseURL     string
	AccessToken string
	RateLimit   float64 // requests per second
	Timeout     time.Duration
}

// Client wraps the Pinterest API with bearer auth and rate limiting
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      logrus.FieldLogger
}

// NewClient creates a new Pinterest client
func NewClient(cfg Config, logger logrus.FieldLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.AccessToken,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:      logger.WithField("component", "pinterest"),
	}
}

// TopPin is one row of the top pins analytics report
type TopPin struct {
	PinID          string
	Title          string
	OutboundClicks float64
	Impressions    float64
	PinClicks      float64
	Saves          float64
}

// Pin is the inventory view of a pin
type Pin struct {
	ID          string
	Title       string
	Description string
	ImageURL    string
}

// Page is one page of the pin inventory. An empty Bookmark means last page.
type Page struct {
	Items    []Pin
	Bookmark string
}

// TopPins fetches the account's best pins by outbound click between start and end
func (c *Client) TopPins(ctx context.Context, start, end time.Time, limit int) ([]TopPin, error) {
	params := url.Values{}
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("sort_by", "OUTBOUND_CLICK")
	params.Set("metric_types", "OUTBOUND_CLICK,IMPRESSION,PIN_CLICK,SAVE")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/user_account/analytics/top_pins", params)
	if err != nil {
		return nil, err
	}

	var pins []TopPin
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		pins = append(pins, TopPin{
			PinID:          item.Get("pin_id").String(),
			Title:          item.Get("title").String(),
			OutboundClicks: item.Get("metrics.OUTBOUND_CLICK").Float(),
			Impressions:    item.Get("metrics.IMPRESSION").Float(),
			PinClicks:      item.Get("metrics.PIN_CLICK").Float(),
			Saves:          item.Get("metrics.SAVE").Float(),
		})
		return true
	})
	return pins, nil
}

// ListPins fetches one page of the pin inventory, continuing from bookmark
func (c *Client) ListPins(ctx context.Context, pageSize int, bookmark string) (*Page, error) {
	params := url.Values{}
	params.Set("page_size", strconv.Itoa(pageSize))
	if bookmark != "" {
		params.Set("bookmark", bookmark)
	}

	body, err := c.get(ctx, "/pins", params)
	if err != nil {
		return nil, err
	}

	page := &Page{Bookmark: gjson.GetBytes(body, "bookmark").String()}
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		image := item.Get("media.images.600x.url").String()
		if image == "" {
			image = item.Get("media.images.originals.url").String()
		}
		page.Items = append(page.Items, Pin{
			ID:          item.Get("id").String(),
			Title:       item.Get("title").String(),
			Description: item.Get("description").String(),
			ImageURL:    image,
		})
		return true
	})
	return page, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.token == "" {
		return nil, errors.ConfigError("missing PINTEREST_ACCESS_TOKEN")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.ExternalError(err, "rate limiter")
	}

	u := c.baseURL + apiPrefix + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	c.logger.WithField("endpoint", endpoint).Debug("pinterest request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.InternalErrorf("build pinterest request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.ExternalError(err, "pinterest request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ExternalError(err, "read pinterest response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(body)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, errors.ExternalErrorf("pinterest API error (%d): %s", resp.StatusCode, text).
			WithContext("status", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.ExternalErrorf("pinterest API returned invalid JSON from %s", endpoint)
	}
	return body, nil
}

// String identifies the client in logs without leaking the token
func (c *Client) String() string {
	return fmt.Sprintf("pinterest(%s)", c.baseURL)
}
