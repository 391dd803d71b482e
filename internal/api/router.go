package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/estim2b/internal/device"
	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/logger"
	"github.com/wfunc/estim2b/internal/middleware"
	"github.com/wfunc/estim2b/internal/models"
	"go.uber.org/zap"
)

// Journal 交互日志查询接口
type Journal interface {
	Query(query *models.ExchangeLogQuery) ([]*models.ExchangeLog, int64, error)
	Latest(limit int) ([]*models.ExchangeLog, error)
	Stats(startTime, endTime *time.Time) (*models.ExchangeLogStats, error)
}

// Router API路由器
type Router struct {
	engine *gin.Engine
	mu     sync.Mutex // 串行化设备访问
	device device.Device
	log    *zap.Logger
}

// NewRouter 创建路由器，journal 为 nil 时不注册交互日志接口
func NewRouter(dev device.Device, journal Journal) *Router {
	engine := gin.New()

	r := &Router{
		engine: engine,
		device: dev,
		log:    logger.WithModule("api"),
	}

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.AccessLog())
	engine.Use(gin.CustomRecovery(r.recovery))

	r.setupRoutes(journal)

	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes(journal Journal) {
	r.engine.GET("/health", r.healthCheck)

	// 接口文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	api := r.engine.Group("/api")
	{
		// 设备命令
		api.GET("/refresh_state", r.refreshState)
		api.GET("/reset", r.reset)
		api.GET("/kill", r.kill)
		api.GET("/set_joined_channels", r.setJoinedChannels)
		api.GET("/set_mode", r.setMode)
		api.GET("/set_power", r.setPower)
		api.GET("/set_map", r.setMap)
		api.GET("/set_bias", r.setBias)
		api.GET("/set_ramp", r.setRamp)
		api.GET("/set_warp", r.setWarp)
		api.GET("/increment_channel", r.incrementChannel)
		api.GET("/decrement_channel", r.decrementChannel)
		api.GET("/set_channel", r.setChannel)
		api.POST("/set_state", r.setState)

		// 缓存状态查询
		api.GET("/", r.getState)
		api.GET("/get_state", r.getState)
		api.GET("/get_mode", r.getMode)
		api.GET("/get_power", r.getPower)
		api.GET("/get_bias", r.getBias)
		api.GET("/get_joined_channels", r.getJoinedChannels)
		api.GET("/get_map", r.getMap)
		api.GET("/get_ramp", r.getRamp)
		api.GET("/get_warp", r.getWarp)
		api.GET("/get_battery", r.getBattery)
		api.GET("/get_channel", r.getChannel)
		api.GET("/get_version", r.getVersion)

		if journal != nil {
			NewExchangeLogAPI(journal).RegisterRoutes(api)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		respondError(c, errors.Newf(errors.ErrNotFound, "接口不存在: %s", c.Request.URL.Path))
	})
}

func (r *Router) recovery(c *gin.Context, recovered interface{}) {
	r.log.Error("请求处理异常",
		zap.Any("panic", recovered),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	respondError(c, errors.Newf(errors.ErrUnknown, "%v", recovered))
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	r.mu.Lock()
	backend, version := r.device.Backend(), r.device.Version()
	r.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"backend": backend,
		"version": version,
	})
}

// Handler 返回HTTP处理器
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
