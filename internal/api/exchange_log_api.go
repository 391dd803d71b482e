package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/models"
)

// ExchangeLogAPI 交互日志API
type ExchangeLogAPI struct {
	journal Journal
}

// NewExchangeLogAPI 创建交互日志API
func NewExchangeLogAPI(journal Journal) *ExchangeLogAPI {
	return &ExchangeLogAPI{journal: journal}
}

// RegisterRoutes 注册路由
func (api *ExchangeLogAPI) RegisterRoutes(router *gin.RouterGroup) {
	logs := router.Group("/exchanges")
	{
		logs.GET("", api.QueryLogs)            // 查询日志列表
		logs.GET("/latest", api.GetLatestLogs) // 获取最新日志
		logs.GET("/stats", api.GetStats)       // 获取统计信息
	}
}

// QueryLogs 查询日志列表
func (api *ExchangeLogAPI) QueryLogs(c *gin.Context) {
	query := &models.ExchangeLogQuery{}
	if err := c.ShouldBindQuery(query); err != nil {
		respondError(c, errors.Newf(errors.ErrInvalidParam, "查询参数错误: %v", err))
		return
	}

	logs, total, err := api.journal.Query(query)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// GetLatestLogs 获取最新日志
func (api *ExchangeLogAPI) GetLatestLogs(c *gin.Context) {
	raw := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, invalidParam("limit", raw, err))
		return
	}

	logs, err := api.journal.Latest(limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetStats 获取统计信息
func (api *ExchangeLogAPI) GetStats(c *gin.Context) {
	startTime, ok := optionalTime(c, "start_time")
	if !ok {
		return
	}
	endTime, ok := optionalTime(c, "end_time")
	if !ok {
		return
	}

	stats, err := api.journal.Stats(startTime, endTime)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, stats)
}

// optionalTime 解析可选的 RFC3339 时间参数
func optionalTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(c, invalidParam(name, raw, err))
		return nil, false
	}
	return &t, true
}
