package assetcache

import (
	"errors"
	"fmt"

	"github.com/any-hub/asset-hub/internal/resource"
	"github.com/any-hub/asset-hub/internal/store"
)

// 以下别名让调用方只引入 assetcache 就能对全部错误做 errors.As。
type (
	InitializationError = store.InitializationError
	PersistenceError    = store.PersistenceError
	DecodeError         = resource.DecodeError
)

// ErrEmptyKey 表示请求的资源 key 为空。
var ErrEmptyKey = errors.New("resource key required")

// FetchError 表示回源在拿到状态码之前就失败了（DNS、传输、中断、正文读取）。
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
