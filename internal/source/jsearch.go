package source

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/posting"
)

const (
	jsearchURL      = "https://jsearch.p.rapidapi.com"
	jsearchHost     = "jsearch.p.rapidapi.com"
	searchPath      = "/search"
	userAgent       = "spigell/jobmatch"
	contentEncoding = "gzip"
	defaultMaxPages = 1
)

// JSearch fetches postings from the JSearch API on RapidAPI.
type JSearch struct {
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
	UserAgent  string
	MaxPages   int
}

var _ Source = (*JSearch)(nil)

func NewJSearch(apiKey string, logger *zap.Logger) *JSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSearch{
		apiKey: apiKey,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		APIURL:    jsearchURL,
		UserAgent: userAgent,
		MaxPages:  defaultMaxPages,
	}
}

type searchResponse struct {
	Status string `json:"status"`
	Data   []any  `json:"data"`
}

// Fetch requests pages one by one until a page comes back empty or MaxPages is reached.
func (c *JSearch) Fetch(ctx context.Context, q Query) ([]posting.Posting, error) {
	params := buildParams(q)

	items := make([]any, 0)
	for page := 1; page <= max(c.MaxPages, 1); page++ {
		params.Set("page", strconv.Itoa(page))

		response, err := c.getPage(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("search page %d: %w", page, err)
		}

		c.logger.Debug("got response from jsearch",
			zap.Int("page", page),
			zap.Int("items", len(response.Data)),
		)

		if len(response.Data) == 0 {
			break
		}
		items = append(items, response.Data...)
	}

	return Decode(items, "jsearch", c.logger), nil
}

func buildParams(q Query) url.Values {
	params := url.Values{}
	params.Set("query", strings.Join(q.Keywords, " "))
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	params.Set("date_posted", datePosted(q.PostedWithinDays))
	params.Set("num_pages", "1")
	return params
}

// datePosted maps a day window onto the coarse buckets the API accepts.
func datePosted(days int) string {
	switch {
	case days <= 0:
		return "all"
	case days <= 1:
		return "today"
	case days <= 3:
		return "3days"
	case days <= 7:
		return "week"
	case days <= 30:
		return "month"
	default:
		return "all"
	}
}

func (c *JSearch) getPage(ctx context.Context, params url.Values) (*searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+searchPath, nil)
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.URL.RawQuery = params.Encode()

	c.logger.Debug("make request", zap.String("url", req.URL.Redacted()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	var response searchResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &response, nil
}

func (c *JSearch) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", jsearchHost)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
