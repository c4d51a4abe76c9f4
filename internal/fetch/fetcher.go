// Package fetch defines the network primitive the asset cache falls back to
// on a miss, together with an HTTP implementation that resolves resource
// keys against a configured upstream base URL.
package fetch

import (
	"context"
	"io"
)

// Response 是一次回源的结果：状态码与尚未读取的正文。
type Response struct {
	Status int
	Body   io.ReadCloser
}

// Fetcher 为 key 发起网络请求；DNS、传输或中断类错误直接返回 error，
// 只要拿到了状态码（包括 404/500）就必须返回 Response。
type Fetcher interface {
	Fetch(ctx context.Context, key string) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key string) (*Response, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, key string) (*Response, error) {
	return f(ctx, key)
}
