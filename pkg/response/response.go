package response

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
// code=0 表示成功；非 0 为业务错误码，前两位对应模块（11 参与者、12 匹配、19 范围锁…）
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Details   string      `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 分页响应数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

func write(c *gin.Context, status int, resp Response) {
	resp.RequestID = c.GetString("request_id")
	c.JSON(status, resp)
}

// ── 成功响应 ──

func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Response{Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, Response{Message: "success", Data: data})
}

// OKPage 分页列表；pageSize <= 0 时视为单页
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	totalPages := 1
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	write(c, http.StatusOK, Response{
		Message: "success",
		Data: PageData{
			List:       list,
			Pagination: Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages},
		},
	})
}

// ── 错误响应 ──

func Error(c *gin.Context, httpStatus int, code int, message string) {
	write(c, httpStatus, Response{Code: code, Message: message})
}

// ErrorWithDetails details 携带机器可读的补充信息（如待审批学号列表）
func ErrorWithDetails(c *gin.Context, httpStatus int, code int, message, details string) {
	write(c, httpStatus, Response{Code: code, Message: message, Details: details})
}

func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// Busy 批量操作占用范围锁时返回 409，并提示客户端重试间隔
func Busy(c *gin.Context, code int, message string, retryAfter time.Duration) {
	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	Error(c, http.StatusConflict, code, message)
}

// TooManyRequests 限流；retryAfter 为当前窗口长度
func TooManyRequests(c *gin.Context, message string, retryAfter time.Duration) {
	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	Error(c, http.StatusTooManyRequests, 42900, message)
}

func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 50000, "服务器内部错误")
}

// ── 文件下载 ──

// Attachment 返回导出文件（排行榜、匹配结果 Excel），文件名按 RFC 5987 编码
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, contentType, data)
}
