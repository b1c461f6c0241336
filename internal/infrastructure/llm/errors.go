// Package llm 提供文本生成提供商的接入与错误分类
package llm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorClass 提供商错误的策略分桶
type ErrorClass string

const (
	// ClassRateLimited 速率限制，稍后可重试
	ClassRateLimited ErrorClass = "RATE_LIMITED"
	// ClassTransient 临时故障（超时、5xx、连接复位）
	ClassTransient ErrorClass = "TRANSIENT"
	// ClassAuth 凭证问题，重试无意义
	ClassAuth ErrorClass = "AUTH_ERROR"
	// ClassExhausted 配额耗尽
	ClassExhausted ErrorClass = "EXHAUSTED"
	// ClassGeneric 无法归类的其他错误
	ClassGeneric ErrorClass = "ERROR"
)

// TriggersFallback 判断该类错误是否应切换备用提供商
func (c ErrorClass) TriggersFallback() bool {
	switch c {
	case ClassRateLimited, ClassExhausted, ClassAuth:
		return true
	}
	return false
}

var (
	authMarkers = []string{
		"invalid api key",
		"api key not valid",
		"permission denied",
		"unauthorized",
		"forbidden",
		"401",
		"403",
	}
	exhaustedMarkers = []string{
		"quota exceeded",
		"resource_exhausted",
		"insufficient_quota",
		"project quota/billing",
		"exceeded your current quota",
	}
	rateLimitMarkers = []string{
		"rate limit",
		"rate-limited",
		"retry after",
		"retry in",
		"429",
	}
	transientMarkers = []string{
		"timeout",
		"timed out",
		"connection reset",
		"econnreset",
		"temporarily unavailable",
		"service unavailable",
		"bad gateway",
		"500",
		"502",
		"503",
		"504",
	}

	retryAfterRE = regexp.MustCompile(`(?i)(?:retry\s+after|retry\s+in)\s+([0-9]+(?:\.[0-9]+)?)`)
)

// Classify 将提供商错误归入重试/切换策略桶
// eino 的 OpenAI 适配器只暴露文本化错误，这里按消息标记匹配
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassGeneric
	}
	message := strings.ToLower(err.Error())

	if containsAny(message, authMarkers) {
		return ClassAuth
	}
	if containsAny(message, exhaustedMarkers) {
		return ClassExhausted
	}
	if containsAny(message, rateLimitMarkers) {
		return ClassRateLimited
	}
	if containsAny(message, transientMarkers) {
		return ClassTransient
	}
	return ClassGeneric
}

// RetryAfter 尽力从错误文本中提取 retry-after 秒数
func RetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	match := retryAfterRE.FindStringSubmatch(err.Error())
	if match == nil {
		return 0, false
	}
	seconds, perr := strconv.ParseFloat(match[1], 64)
	if perr != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func containsAny(message string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
