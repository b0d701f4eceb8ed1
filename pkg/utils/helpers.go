package utils

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// TimePtr 零值返回 nil
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CalculateMD5 computes the MD5 hash of a byte slice.
func CalculateMD5(data []byte) string {
	hasher := md5.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// CalculateTextMD5 对文本计算 MD5
func CalculateTextMD5(text string) string {
	return CalculateMD5([]byte(text))
}

// NewSubmissionUUID 生成按时间有序的 UUIDv7，用作提交ID和分页游标
func NewSubmissionUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsValidUUID 校验 UUID 字符串
func IsValidUUID(s string) bool {
	_, err := uuid.FromString(s)
	return err == nil
}

// FileExt 返回小写扩展名，包含点号
func FileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
