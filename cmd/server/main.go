package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/estim2b/internal/api"
	"github.com/wfunc/estim2b/internal/config"
	"github.com/wfunc/estim2b/internal/database"
	"github.com/wfunc/estim2b/internal/device"
	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/logger"
	"github.com/wfunc/estim2b/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db      *gorm.DB
	journal *service.ExchangeLogService
	device  device.Device
	http    *http.Server
	errCh   chan error
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 位置参数覆盖串口路径，"virtual" 选择模拟器
	if path := strings.TrimSpace(flag.Arg(0)); path != "" {
		cfg.Device.Port = path
	}

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		errCh:  make(chan error, 1),
	}
}

// Start 依次初始化交互日志、设备和HTTP服务
func (s *Server) Start() error {
	s.logger.Info("正在启动 2B 设备控制服务...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if s.cfg.Database.Enabled {
		if err := s.initJournal(); err != nil {
			return err
		}
	}

	if err := s.openDevice(); err != nil {
		s.closeJournal()
		return err
	}

	s.startHTTPServer()

	// 监听配置变化，仅日志级别支持热更新
	config.Watch(func(newCfg *config.Config) {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("日志级别已更新", zap.String("level", newCfg.Log.Level))
	})

	return nil
}

// initJournal 初始化数据库与交互日志服务
func (s *Server) initJournal() error {
	db, err := database.Open(&s.cfg.Database)
	if err != nil {
		return err
	}

	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			database.Close(db)
			return err
		}
	}

	s.db = db
	s.journal = service.NewExchangeLogService(db, s.cfg.Journal)
	s.logger.Info("交互日志已启用", zap.String("driver", s.cfg.Database.Driver))

	s.pruneJournal()
	return nil
}

// pruneJournal 清理超过保留天数的交互日志，失败不影响启动
func (s *Server) pruneJournal() {
	days := s.cfg.Journal.RetentionDays
	if days <= 0 {
		return
	}

	deleted, err := s.journal.Cleanup(days)
	if err != nil {
		s.logger.Warn("清理旧交互日志失败", zap.Int("retention_days", days), zap.Error(err))
		return
	}
	s.logger.Info("已清理旧交互日志", zap.Int("retention_days", days), zap.Int64("deleted", deleted))
}

// openDevice 打开设备，失败时服务不启动
func (s *Server) openDevice() error {
	opts := []device.Option{}
	if s.journal != nil {
		opts = append(opts, device.WithRecorder(s.journal))
	}

	dev, err := device.Open(device.Config{
		Backend:     s.cfg.Device.Backend,
		Port:        s.cfg.Device.Port,
		ReadTimeout: s.cfg.Device.ReadTimeout,
	}, opts...)
	if err != nil {
		return errors.Wrap(err, errors.ErrConnection, "未找到 2B 设备")
	}

	s.device = dev
	st := dev.State()
	s.logger.Info("设备已连接",
		zap.String("backend", dev.Backend()),
		zap.String("version", dev.Version()),
		zap.Uint16("battery", st.Battery),
		zap.Stringer("mode", st.Mode),
	)
	return nil
}

// startHTTPServer 启动HTTP服务
func (s *Server) startHTTPServer() {
	gin.SetMode(s.cfg.Server.Mode)

	var journal api.Journal
	if s.journal != nil {
		journal = s.journal
	}
	router := api.NewRouter(s.device, journal)

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	s.http = &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		s.logger.Info("HTTP服务已启动", zap.String("address", addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.errCh <- err
		}
	}()
}

// WaitForShutdown 等待退出信号或HTTP服务异常退出
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case err := <-s.errCh:
		s.logger.Error("HTTP服务异常退出", zap.Error(err))
	}
}

// Shutdown 优雅关闭：HTTP服务、设备、交互日志
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP服务关闭超时", zap.Error(err))
			firstErr = err
		}
	}

	if s.device != nil {
		if err := s.device.Close(); err != nil {
			s.logger.Error("关闭设备失败", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.closeJournal()
	return firstErr
}

// closeJournal 写入剩余日志并关闭数据库
func (s *Server) closeJournal() {
	if s.journal != nil {
		s.journal.Stop()
		s.journal = nil
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("关闭数据库失败", zap.Error(err))
		}
		s.db = nil
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("2B 设备控制服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("2B 设备控制服务")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  estim2b-server [选项] [串口路径|virtual]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  ESTIM2B_DEVICE_PORT      串口路径")
	fmt.Println("  ESTIM2B_SERVER_PORT      HTTP端口")
	fmt.Println("  ESTIM2B_DATABASE_ENABLED 启用交互日志")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  estim2b-server -config=/path/to/config.yaml")
	fmt.Println("  estim2b-server /dev/ttyUSB1")
	fmt.Println("  estim2b-server virtual")
}
