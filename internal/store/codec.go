package store

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec 负责 Record 与字节之间的转换，文件与 Redis 引擎通过它落盘。
type Codec interface {
	Name() string
	Encode(Record) ([]byte, error)
	Decode([]byte) (Record, error)
}

// CBORCodec 使用 RFC 8949 core deterministic 编码，保证同一记录输出稳定。
// 零值不可用，请通过 NewCBORCodec 构造。
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec 构造 CBOR 编解码器，时间字段统一为 RFC3339Nano。
func NewCBORCodec() (CBORCodec, error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBORCodec{}, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBORCodec{}, err
	}
	return CBORCodec{enc: em, dec: dm}, nil
}

func (CBORCodec) Name() string { return "cbor" }

func (c CBORCodec) Encode(rec Record) ([]byte, error) {
	return c.enc.Marshal(rec)
}

func (c CBORCodec) Decode(b []byte) (Record, error) {
	var rec Record
	err := c.dec.Unmarshal(b, &rec)
	return rec, err
}

// MsgpackCodec 基于 vmihailenco/msgpack，零值即可使用。
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(rec Record) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func (MsgpackCodec) Decode(b []byte) (Record, error) {
	var rec Record
	err := msgpack.Unmarshal(b, &rec)
	return rec, err
}

// CodecByName 根据配置名称返回编解码器，空字符串默认 cbor。
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cbor":
		c, err := NewCBORCodec()
		if err != nil {
			return nil, err
		}
		return c, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported record codec: %s", name)
	}
}
