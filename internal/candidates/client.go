package candidates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"atsassist/internal/logger"
	"atsassist/internal/state"
)

const maxBodyBytes = 4 << 20

// ErrNotFound 候选人不存在
var ErrNotFound = errors.New("candidate not found")

// Options 候选人接口配置
type Options struct {
	BaseURL      string
	OrgID        string
	Token        string
	CacheTTL     time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	HTTPClient   *http.Client
}

// Client 带缓存的候选人查询客户端
type Client struct {
	base  string
	opts  Options
	http  *retryablehttp.Client
	state *state.Repository
	log   logger.Logger
}

// New 创建客户端，repo 为空时不使用缓存
func New(opts Options, repo *state.Repository, l logger.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("candidates: base url is required")
	}
	if opts.OrgID == "" {
		return nil, errors.New("candidates: organization id is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("candidates: invalid base url: %w", err)
	}
	if l == nil {
		l = logger.NewNop()
	}

	rc := retryablehttp.NewClient()
	rc.Logger = l
	rc.RetryMax = opts.RetryMax
	// 重试耗尽后交回最后一次响应，由 fetch 统一解析状态码与错误信息
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	}

	return &Client{
		base:  strings.TrimRight(opts.BaseURL, "/"),
		opts:  opts,
		http:  rc,
		state: repo,
		log:   l,
	}, nil
}

// Get 查询候选人，缓存未过期时直接返回缓存
func (c *Client) Get(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" {
		return nil, errors.New("candidates: empty id")
	}
	if c.state != nil {
		if data, ok := c.state.CachedCandidate(ctx, id, c.opts.CacheTTL); ok {
			c.log.Debug("命中候选人缓存", "candidate", id)
			return data, nil
		}
	}

	data, err := c.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.state != nil {
		c.state.CacheCandidate(ctx, id, data, c.opts.CacheTTL)
	}
	return data, nil
}

func (c *Client) fetch(ctx context.Context, id string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/organizations/%s/candidates/%s",
		c.base, url.PathEscape(c.opts.OrgID), url.PathEscape(id))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read candidate %s: %w", id, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("fetch candidate %s: status %d: %s", id, resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("fetch candidate %s: invalid json body", id)
	}
	// 兼容 {data: {...}} 包装
	if data := gjson.GetBytes(body, "data"); data.IsObject() {
		return json.RawMessage(data.Raw), nil
	}
	return json.RawMessage(body), nil
}
