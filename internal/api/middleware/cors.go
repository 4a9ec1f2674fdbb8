package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/Makarand-Tighare/project-api-sub000/config"
)

// CORS 跨域中间件（rs/cors 适配 gin）
// 预检请求在此结束；未在白名单内的来源不附加任何 CORS 头
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	origins := make([]string, 0, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		origins = append(origins, strings.TrimRight(strings.TrimSpace(o), "/"))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		// 导出接口需要前端读取下载文件名
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	})

	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}
