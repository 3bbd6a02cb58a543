package domain

import "errors"

// 错误分类：传输层按 errors.Is 映射到 HTTP 状态
var (
	ErrValidation        = errors.New("validation error")
	ErrUnknownSampleType = wrapKind(ErrValidation, "unknown sample type")
	ErrUnknownField      = wrapKind(ErrValidation, "unknown query field")

	ErrAuthFailure       = errors.New("invalid credentials")
	ErrInvalidCredential = wrapKind(ErrAuthFailure, "invalid credential")
	ErrUnknownUser       = wrapKind(ErrAuthFailure, "unknown user")

	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")

	ErrPersistence = errors.New("persistence error")
	ErrDuplicate   = wrapKind(ErrPersistence, "duplicate key")
)

// kindErr 让子错误同时匹配自身与父类
type kindErr struct {
	parent error
	msg    string
}

func (e *kindErr) Error() string { return e.msg }
func (e *kindErr) Unwrap() error { return e.parent }

func wrapKind(parent error, msg string) error { return &kindErr{parent: parent, msg: msg} }
