package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"taskagent/internal/pkg/apperr"
)

// 业务错误码，前三位与 HTTP 状态码一致
const (
	CodeInvalidRequest = 40001
	CodeUnauthorized   = 40101
	CodeInvalidToken   = 40102
	CodeForbidden      = 40301
	CodeNotFound       = 40401
	CodeConflict       = 40901
	CodeRateLimited    = 42901
	CodeInternal       = 50001
	CodeUnavailable    = 50301
)

// ErrorResponse 错误响应（所有API共用）
// 用于统一错误响应格式
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码（非0表示错误）
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情（可选）
}

// SuccessResponse 成功响应（所有API共用）
// 用于统一成功响应格式
type SuccessResponse struct {
	Code    int         `json:"code"`           // 状态码（0表示成功）
	Message string      `json:"message"`        // 响应消息
	Data    interface{} `json:"data,omitempty"` // 响应数据（可选）
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(message string, data interface{}) *SuccessResponse {
	return &SuccessResponse{
		Code:    0,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    code,
		Message: message,
	}
	if len(detail) > 0 && detail[0] != "" {
		resp.Detail = detail[0]
	}
	return resp
}

// OK 写成功响应
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse("success", data))
}

// BadRequest 写请求参数错误
func BadRequest(c *gin.Context, message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	c.AbortWithStatusJSON(stdhttp.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, message, detail))
}

// StatusOf 把错误类别映射为 HTTP 状态码与业务错误码
func StatusOf(err error) (int, int) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return stdhttp.StatusBadRequest, CodeInvalidRequest
	case apperr.KindNotFound:
		return stdhttp.StatusNotFound, CodeNotFound
	case apperr.KindRateLimited:
		return stdhttp.StatusTooManyRequests, CodeRateLimited
	case apperr.KindExternalService:
		return stdhttp.StatusBadGateway, CodeInternal
	default:
		return stdhttp.StatusInternalServerError, CodeInternal
	}
}

// Error 按错误类别写错误响应
// 内部错误只记录日志，不把底层细节返回给客户端
func Error(c *gin.Context, err error) {
	status, code := StatusOf(err)
	if status >= stdhttp.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("request failed")
		c.AbortWithStatusJSON(status, NewErrorResponse(code, "Internal server error"))
		return
	}

	message := err.Error()
	if appErr, ok := apperr.As(err); ok {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(status, NewErrorResponse(code, message))
}
