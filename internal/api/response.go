package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/middleware"
)

// Response 成功响应
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// respondError 输出错误响应，状态码由错误码决定
func respondError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}

	// 调用栈只写日志，不返回给客户端
	out := *appErr
	out.Stack = nil

	c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(&out, middleware.GetRequestID(c)))
}

// invalidParam 查询参数错误，不会下发到设备
func invalidParam(name, raw string, cause error) *errors.AppError {
	return errors.Newf(errors.ErrInvalidParam, "参数 %s=%q 无效", name, raw).WithCause(cause)
}

// queryParam 读取并解析查询参数，失败时已写入错误响应
func queryParam[T any](c *gin.Context, name string, parse func(string) (T, error)) (T, bool) {
	raw := c.Query(name)
	v, err := parse(raw)
	if err != nil {
		respondError(c, invalidParam(name, raw, err))
		return v, false
	}
	return v, true
}
