package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/pkg/metrics"
)

// Metrics Prometheus 请求计数与耗时
// route 使用路由模板（/participants/:reg_no），避免学号撑爆标签基数
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.ObserveSince(metrics.HTTPDuration.WithLabelValues(method, route), start)
	}
}
