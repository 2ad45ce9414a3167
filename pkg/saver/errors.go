package saver

import (
	"errors"
	"fmt"

	errs "notionx/pkg/errors"
)

// ExtractionError wraps a failure to open or read a page
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DeliveryError wraps a sink failure
type DeliveryError struct {
	Sink string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Describe returns the message shown to the user for err
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ex *ExtractionError
	if errors.As(err, &ex) {
		return "无法获取页面内容"
	}
	if errors.Is(err, errs.ErrThrottleExhausted) {
		return "请求过于频繁，请稍后再试"
	}
	switch errs.KindOf(err) {
	case errs.KindUnauthorized:
		return "Token 无效或已过期"
	case errs.KindPermission:
		return "无访问权限，请确保已将集成添加到数据库"
	case errs.KindRateLimited:
		return "请求过于频繁，请稍后再试"
	case errs.KindNetwork:
		return "网络错误，请检查网络连接"
	}
	return err.Error()
}
