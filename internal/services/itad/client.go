package itad

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL   = "https://isthereanydeal.com"
	DefaultSeedSlug  = "red-dead-redemption-2"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Client talks to the IsThereAnyDeal website endpoints.
type Client struct {
	baseURL  string
	seedSlug string
	client   *resty.Client
	logger   *log.Logger
}

type Options struct {
	BaseURL    string
	SeedSlug   string
	UserAgent  string
	Timeout    time.Duration
	RetryCount int
	Logger     *log.Logger
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.SeedSlug == "" {
		opts.SeedSlug = DefaultSeedSlug
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[ITAD] ", log.LstdFlags)
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", opts.UserAgent)
	// cookies travel only through the explicit session header
	client.SetCookieJar(nil)
	client.SetRetryCount(opts.RetryCount)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil || r == nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		seedSlug: opts.SeedSlug,
		client:   client,
		logger:   opts.Logger,
	}
}

func (c *Client) get(ctx context.Context, path string, headers map[string]string, query map[string]string) (*resty.Response, error) {
	req := c.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	return req.Get(c.baseURL + path)
}

func historyPagePath(slug string) string {
	return "/game/" + slug + "/history/"
}
