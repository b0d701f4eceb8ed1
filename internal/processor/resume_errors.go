package processor

import (
	"errors"
	"fmt"
)

var (
	ErrExtractTextFailed  = errors.New("提取简历文本失败")
	ErrEmptyText          = errors.New("简历文本为空")
	ErrPersistLocalFailed = errors.New("写入本地文件失败")
	ErrArchiveFailed      = errors.New("归档到对象存储失败")
	ErrDatabaseFailed     = errors.New("数据库操作失败")
)

// ResumeProcessError 包含详细错误信息的自定义错误
type ResumeProcessError struct {
	SubmissionUUID string
	Op             string
	BaseErr        error
	Detail         string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %s", e.BaseErr, e.Op, e.SubmissionUUID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.SubmissionUUID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 支持 errors.Is 与哨兵错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newProcessError(uuid, op string, base error, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &ResumeProcessError{SubmissionUUID: uuid, Op: op, BaseErr: base, Detail: detail}
}

// NewExtractError 文本提取失败
func NewExtractError(uuid string, cause error) error {
	return newProcessError(uuid, "extract", ErrExtractTextFailed, cause)
}

// NewPersistError 本地文件写入失败
func NewPersistError(uuid string, cause error) error {
	return newProcessError(uuid, "persist", ErrPersistLocalFailed, cause)
}

// NewArchiveError 对象存储失败
func NewArchiveError(uuid string, cause error) error {
	return newProcessError(uuid, "archive", ErrArchiveFailed, cause)
}

// NewDatabaseError 数据库写入失败
func NewDatabaseError(uuid string, cause error) error {
	return newProcessError(uuid, "database", ErrDatabaseFailed, cause)
}
