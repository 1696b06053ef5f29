package session

import (
	"errors"
	"fmt"

	"github.com/s33g/companion-chat/internal/llm"
	"github.com/s33g/companion-chat/internal/ratelimit"
)

// GenericFailure is shown for errors without a more specific message
const GenericFailure = "网络错误，请检查网络连接后重试"

// Describe returns the user-facing message for a failed chat request
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		return fmt.Sprintf("请求过于频繁，请在%d秒后重试", int(exceeded.RetryAfter.Seconds()))
	}

	var chatErr *llm.Error
	if !errors.As(err, &chatErr) {
		return GenericFailure
	}

	switch chatErr.Kind {
	case llm.KindInvalidURL:
		return "无效的URL"
	case llm.KindUnauthorized:
		return "API密钥无效或已过期"
	case llm.KindRateLimited:
		return "超出API调用限制"
	case llm.KindHTTP:
		return fmt.Sprintf("HTTP错误: %d", chatErr.StatusCode)
	case llm.KindDecoding:
		if chatErr.Err == nil {
			return "无效的响应数据"
		}
		return fmt.Sprintf("数据解析错误: %v", chatErr.Err)
	case llm.KindEncoding:
		return fmt.Sprintf("请求数据编码错误: %v", chatErr.Err)
	case llm.KindAPI:
		if chatErr.Message != "" {
			return chatErr.Message
		}
		return "未知错误"
	default:
		return GenericFailure
	}
}
