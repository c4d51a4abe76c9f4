package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// ErrForeignHost 表示绝对 URL 形式的 key 指向了上游之外的主机。
var ErrForeignHost = errors.New("resource key points outside the upstream")

// HTTPOptions 控制 HTTPFetcher 的上游与超时。
type HTTPOptions struct {
	Upstream  string
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// HTTPFetcher 将 key 解析为上游 URL 并发起 GET；绝对 URL 形式的 key 必须与上游同 scheme 与主机。
type HTTPFetcher struct {
	client    *http.Client
	base      *url.URL
	userAgent string
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher 构建共享 http.Client 的 Fetcher。
func NewHTTPFetcher(opts HTTPOptions) (*HTTPFetcher, error) {
	base, err := url.Parse(strings.TrimSpace(opts.Upstream))
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream must be http/https: %q", opts.Upstream)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("upstream missing host: %q", opts.Upstream)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	client := opts.Client
	if client == nil {
		timeout := 30 * time.Second
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport.Clone(),
		}
	}

	return &HTTPFetcher{client: client, base: base, userAgent: opts.UserAgent}, nil
}

// Fetch 发起 GET；任意状态码都作为 Response 返回，调用方负责关闭 Body。
func (f *HTTPFetcher) Fetch(ctx context.Context, key string) (*Response, error) {
	target, err := f.Resolve(key)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	return &Response{Status: resp.StatusCode, Body: resp.Body}, nil
}

// Resolve 计算 key 对应的上游 URL。
func (f *HTTPFetcher) Resolve(key string) (*url.URL, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, errors.New("empty resource key")
	}
	ref, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse resource key: %w", err)
	}
	if ref.Scheme != "" || ref.Host != "" {
		// 绝对 URL 只允许指向配置的上游。
		if !strings.EqualFold(ref.Scheme, f.base.Scheme) || !strings.EqualFold(ref.Host, f.base.Host) {
			return nil, fmt.Errorf("%w: %s", ErrForeignHost, ref.Redacted())
		}
		return ref, nil
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return f.base.ResolveReference(ref), nil
}
