// Package resource wraps one fetched payload and exposes its byte, text and
// structured views. Views are computed on demand and never touch the network
// or the store.
package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Resource 由调用方独占，payload 在构造后不再修改。
type Resource struct {
	status    int
	payload   []byte
	fromCache bool
}

// New 基于 status/payload 构造 Resource；nil payload 视为空。
func New(status int, payload []byte) *Resource {
	if payload == nil {
		payload = []byte{}
	}
	return &Resource{status: status, payload: payload}
}

// Cached 构造来自缓存命中的 Resource。
func Cached(status int, payload []byte) *Resource {
	r := New(status, payload)
	r.fromCache = true
	return r
}

// Status 返回原始记录或上游响应的状态码。
func (r *Resource) Status() int { return r.status }

// OK 表示状态码是否为 200。
func (r *Resource) OK() bool { return r.status == http.StatusOK }

// FromCache 表示结果是否直接来自缓存（未发生网络请求）。
func (r *Resource) FromCache() bool { return r.fromCache }

// Bytes 原样返回 payload，调用方不应修改返回的切片。
func (r *Resource) Bytes() []byte { return r.payload }

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text 以 UTF-8 解码 payload，非法字节替换为 U+FFFD，开头的 BOM 会被去掉。
func (r *Resource) Text() string {
	payload := bytes.TrimPrefix(r.Bytes(), utf8BOM)
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), payload)
	if err != nil {
		return strings.ToValidUTF8(string(payload), "\uFFFD")
	}
	return string(out)
}

// Value 将文本视图按 JSON 解析为 map/slice/标量，数字保留为 json.Number。
func (r *Resource) Value() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode 将文本视图按 JSON 解析进 v，格式错误时返回 *DecodeError。
func (r *Resource) Decode(v any) error {
	dec := json.NewDecoder(strings.NewReader(r.Text()))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &DecodeError{Err: err}
	}
	// 只允许单个 JSON 值，尾随内容视为损坏。
	if dec.More() {
		return &DecodeError{Err: fmt.Errorf("unexpected trailing data after offset %d", dec.InputOffset())}
	}
	return nil
}

// Clone 返回持有独立 payload 副本的 Resource，用于共享结果的分发。
func (r *Resource) Clone() *Resource {
	return &Resource{
		status:    r.status,
		payload:   bytes.Clone(r.payload),
		fromCache: r.fromCache,
	}
}

// DecodeError 表示 payload 无法解析为结构化数据。
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode structured value: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
