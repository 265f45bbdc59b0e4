package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/pkg/logger"
)

// OK 成功响应，body 结构由 handler 决定
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Fail 错误响应，对外只回 {"error": "<kind>: <message>"}
// 注意：绝不把订单明文或链上账户数据带进 error 文案
func Fail(c *gin.Context, httpStatus int, msg string) {
	c.JSON(httpStatus, gin.H{"error": msg})
}

// FailLogged 记日志再返回。日志里带完整错误链，响应里只带分类和摘要。
func FailLogged(c *gin.Context, httpStatus int, msg string, err error) {
	logger.Warn(c, "http error",
		zap.String("request_id", RequestIDFromGin(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", httpStatus),
		zap.String("message", msg),
		zap.Error(err),
	)
	Fail(c, httpStatus, msg)
}

// FailDomain 按领域错误分类映射状态码。
// 对外文案只有 kind + 摘要，底层 cause 只进日志。
func FailDomain(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		FailLogged(c, http.StatusInternalServerError, "internal error", err)
		return
	}
	status := http.StatusInternalServerError
	if de.Kind == domain.KindValidation {
		status = http.StatusBadRequest
	}
	FailLogged(c, status, fmt.Sprintf("%s: %s", de.Kind, de.Msg), err)
}
