package store

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// SchemaVersion 是当前二进制理解的记录布局版本。
// v1 创建 {key, status, payload} 表；v2 追加 stored_at，只增不删。
const SchemaVersion = 2

// Store 负责记录的持久化读写，所有引擎共享同一份语义：
//
//	Open  仅由缓存客户端调用一次，首次打开时建表
//	Get   只读，未命中返回 (Record{}, false, nil)
//	Put   读写，同 key 覆盖写入，失败返回 *PersistenceError
type Store interface {
	Open(ctx context.Context) error
	Get(ctx context.Context, key string) (Record, bool, error)
	Put(ctx context.Context, rec Record) error
	Close() error
	Info() Info
}

// Record 是一次回源结果的持久化单元。
type Record struct {
	Key      string    `cbor:"key" msgpack:"key" json:"key"`
	Status   int       `cbor:"status" msgpack:"status" json:"status"`
	Payload  []byte    `cbor:"payload" msgpack:"payload" json:"payload"`
	StoredAt time.Time `cbor:"stored_at,omitempty" msgpack:"stored_at,omitempty" json:"stored_at,omitempty"`
}

// OK 表示记录是否为可直接命中的成功结果。
func (r Record) OK() bool {
	return r.Status == http.StatusOK
}

// Expired 判断在 maxAge 约束下记录是否过期；maxAge<=0 或缺少写入时间时永不过期。
func (r Record) Expired(maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 || r.StoredAt.IsZero() {
		return false
	}
	return now.Sub(r.StoredAt) > maxAge
}

// Info 描述存储引擎的身份信息，供日志与诊断接口使用。
type Info struct {
	Backend       string `json:"backend"`
	Name          string `json:"name"`
	SchemaVersion int    `json:"schema_version"`
	Location      string `json:"location,omitempty"`
}

// ErrNotOpen 表示在 Open 成功之前调用了 Get/Put。
var ErrNotOpen = errors.New("store is not open")

// ErrSchemaTooNew 表示磁盘上的 schema 版本高于当前二进制支持的版本。
var ErrSchemaTooNew = errors.New("store schema is newer than supported")

// ErrKeyRequired 表示记录缺少 key。
var ErrKeyRequired = errors.New("record key required")
