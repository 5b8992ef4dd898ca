package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-desk/internal/domain"
	"github.com/samvad-hq/samvad-news-desk/internal/logger"
	"github.com/samvad-hq/samvad-news-desk/pkg/httpclient"
)

const (
	topHeadlinesPath = "/top-headlines"
	everythingPath   = "/everything"

	statusOK    = "ok"
	statusError = "error"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	APIKey    string
	Country   string
	Timeout   time.Duration
	UserAgent string
	// HTTP overrides the default resty transport.
	HTTP httpclient.Client
	Log  logger.Logger
}

// Client queries a NewsAPI-compatible service. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	apiKey  string
	country string
	http    httpclient.Client
	log     logger.Logger
}

type envelope struct {
	Status       string        `json:"status"`
	Code         string        `json:"code"`
	Message      string        `json:"message"`
	TotalResults int           `json:"totalResults"`
	Articles     *[]rawArticle `json:"articles"`
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("news api key must not be empty")
	}
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("news api base url %q is not absolute", opts.BaseURL)
	}
	country := strings.ToLower(strings.TrimSpace(opts.Country))
	if country == "" {
		country = "us"
	}

	client := opts.HTTP
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = httpclient.NewRestyClient(httpclient.Options{Timeout: timeout, UserAgent: opts.UserAgent})
	}

	return &Client{
		base:    base,
		apiKey:  key,
		country: country,
		http:    client,
		log:     logger.OrNop(opts.Log),
	}, nil
}

// RequestURL returns the endpoint for query: search when non-empty, headlines otherwise.
func (c *Client) RequestURL(query string) string {
	u := *c.base
	params := url.Values{}
	if query == "" {
		u.Path = c.base.Path + topHeadlinesPath
		params.Set("country", c.country)
	} else {
		u.Path = c.base.Path + everythingPath
		params.Set("q", query)
	}
	params.Set("apiKey", c.apiKey)
	u.RawQuery = params.Encode()
	return u.String()
}

// Fetch retrieves the result set for query.
func (c *Client) Fetch(ctx context.Context, query string) ([]domain.Article, error) {
	query = strings.TrimSpace(query)

	resp, err := c.http.Get(ctx, c.RequestURL(query), map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	body := resp.Body()
	status := resp.StatusCode()
	if status < 200 || status > 299 {
		terr := &TransportError{StatusCode: status}
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Status == statusError {
			terr.Code, terr.Message = env.Code, env.Message
		} else {
			terr.Message = responseSnippet(body)
		}
		return nil, terr
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{Snippet: responseSnippet(body), Err: fmt.Errorf("decode body: %w", err)}
	}
	if env.Status == statusError {
		return nil, &TransportError{StatusCode: status, Code: env.Code, Message: env.Message}
	}
	if env.Status != "" && env.Status != statusOK {
		return nil, &ParseError{Snippet: responseSnippet(body), Err: fmt.Errorf("unexpected status %q", env.Status)}
	}
	if env.Articles == nil {
		return nil, &ParseError{Snippet: responseSnippet(body), Err: errors.New("articles field missing")}
	}

	articles, dropped := normalize(*env.Articles)
	if dropped.Total() > 0 {
		c.log.DebugObj("news api entries dropped", "normalize_meta", map[string]any{
			"query":    query,
			"received": len(*env.Articles),
			"kept":     len(articles),
			"dropped":  map[string]int(dropped),
		})
	}
	return articles, nil
}
