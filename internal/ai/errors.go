package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Kind 生成失败的类别
type Kind int

const (
	KindNone Kind = iota
	KindQuota
	KindTransport
	KindEmpty
	KindUnavailable
	KindNoMatch
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindQuota:
		return "quota"
	case KindTransport:
		return "transport"
	case KindEmpty:
		return "empty"
	case KindUnavailable:
		return "unavailable"
	case KindNoMatch:
		return "no_match"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// GenerationError 统一的生成错误，外部 SDK 的错误形态在各自适配器里翻译成 Kind
type GenerationError struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func newError(provider string, kind Kind, err error) *GenerationError {
	return &GenerationError{Provider: provider, Kind: kind, Err: err}
}

// KindOf 取错误类别；无法识别的一律当作传输错误
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindTransport
}

// 上游错误形态不统一，状态码之外还要看错误文本
var quotaPatterns = []string{"quota", "exceeded", "429", "resource_exhausted", "rate limit", "too many requests"}

// ClassifyGemini 把 genai 的错误翻译成 Kind
func ClassifyGemini(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && isQuotaAPIError(apiErr) {
		return KindQuota
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && isQuotaAPIError(*apiErrPtr) {
		return KindQuota
	}
	if matchesQuota(err.Error()) {
		return KindQuota
	}
	return KindTransport
}

func isQuotaAPIError(e genai.APIError) bool {
	return e.Code == http.StatusTooManyRequests || strings.EqualFold(e.Status, "RESOURCE_EXHAUSTED")
}

func matchesQuota(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range quotaPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
