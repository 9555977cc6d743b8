package types

import (
	"errors"
	"fmt"
)

// Kind 标识错误的类别
// Kind 本身实现了 error，可以直接作为 errors.Is 的目标:
//
//	errors.Is(err, types.NotFound)
type Kind string

const (
	NotFound     Kind = "not found"
	IOError      Kind = "io error"
	CorruptData  Kind = "corrupt data"
	CorruptTree  Kind = "corrupt tree"
	InvalidInput Kind = "invalid input"
)

func (k Kind) Error() string { return string(k) }

// 各类别的哨兵错误，供 errors.Is 使用
var (
	ErrNotFound     error = NotFound
	ErrIO           error = IOError
	ErrCorruptData  error = CorruptData
	ErrCorruptTree  error = CorruptTree
	ErrInvalidInput error = InvalidInput
)

// Error 是所有核心操作返回的带标签错误
type Error struct {
	Kind Kind
	Op   string // 出错的操作，例如 "read object"
	Path string // 相关的路径或对象地址，可为空
	Err  error  // 底层错误，可为空
}

// NewError 构造一个带类别的错误
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf 构造一个带类别的错误，消息按 fmt 格式化
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// PathError 构造一个附带路径的错误
func PathError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if msg != "" {
		msg += ": "
	}
	if e.Err == nil {
		return msg + string(e.Kind)
	}
	return msg + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, types.NotFound) 按类别匹配
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf 返回错误链中第一个类别，没有则返回空字符串
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}
