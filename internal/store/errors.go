package store

import "fmt"

// InitializationError 表示存储无法打开（被禁用、配额、损坏等），对整个进程是致命的。
type InitializationError struct {
	Backend string
	Name    string
	Err     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("open %s store %q: %v", e.Backend, e.Name, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// PersistenceError 表示某条记录写回失败。
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist record %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// InitFailed 用 InitializationError 包装 err；err 为空时返回 nil。
func InitFailed(info Info, err error) error {
	if err == nil {
		return nil
	}
	return &InitializationError{Backend: info.Backend, Name: info.Name, Err: err}
}

// PersistFailed 用 PersistenceError 包装 err；err 为空时返回 nil。
func PersistFailed(key string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Key: key, Err: err}
}
