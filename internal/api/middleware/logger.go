package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// slowRequest 匹配、归档等批量操作超过该耗时时单独告警
const slowRequest = 3 * time.Second

// Logger 请求日志中间件
// quietPaths（健康检查、指标抓取）只在 Debug 级别记录
func Logger(logger *zap.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if caller := c.GetString("registration_no"); caller != "" {
			fields = append(fields,
				zap.String("caller", caller),
				zap.String("role", c.GetString("role")))
			if dept := c.GetString("department_id"); dept != "" {
				fields = append(fields, zap.String("caller_department", dept))
			}
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("errors", errs.String()))
		}

		switch {
		case status >= 500:
			logger.Error("请求处理失败", fields...)
		case status >= 400:
			logger.Warn("请求被拒绝", fields...)
		case latency > slowRequest:
			logger.Warn("请求耗时过长", fields...)
		case quiet[c.Request.URL.Path]:
			logger.Debug("探活请求", fields...)
		default:
			logger.Info("请求完成", fields...)
		}
	}
}
