package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/estim2b/internal/config"
	"github.com/wfunc/estim2b/internal/device"
	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/logger"
	"github.com/wfunc/estim2b/internal/models"
	"github.com/wfunc/estim2b/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExchangeLogService 串口交互日志服务，后台批量写入
type ExchangeLogService struct {
	repo     *repository.ExchangeLogRepository
	logger   *zap.Logger
	cfg      config.JournalConfig
	buffer   []*models.ExchangeLog
	bufferCh chan *models.ExchangeLog
	flushCh  chan chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64
}

var _ device.ExchangeRecorder = (*ExchangeLogService)(nil)

// NewExchangeLogService 创建交互日志服务并启动后台写入协程
func NewExchangeLogService(db *gorm.DB, cfg config.JournalConfig) *ExchangeLogService {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	s := &ExchangeLogService{
		repo:     repository.NewExchangeLogRepository(db),
		logger:   logger.WithModule("journal"),
		cfg:      cfg,
		buffer:   make([]*models.ExchangeLog, 0, cfg.BatchSize),
		bufferCh: make(chan *models.ExchangeLog, cfg.BufferSize),
		flushCh:  make(chan chan struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go s.backgroundWriter()

	return s
}

// RecordExchange 异步记录一次交互，缓冲区满时丢弃
func (s *ExchangeLogService) RecordExchange(ex device.Exchange) {
	entry := NewExchangeLog(ex)

	select {
	case <-s.stopCh:
		s.dropped.Add(1)
		return
	default:
	}

	select {
	case s.bufferCh <- entry:
	default:
		s.dropped.Add(1)
		s.logger.Warn("交互日志缓冲区满，丢弃日志", zap.String("command", entry.Command))
	}
}

// NewExchangeLog 将一次交互转换为日志记录
func NewExchangeLog(ex device.Exchange) *models.ExchangeLog {
	entry := &models.ExchangeLog{
		CreatedAt: ex.Time,
		SessionID: ex.SessionID,
		Backend:   ex.Backend,
		Command:   ex.Command.String(),
		Response:  ex.Response,
		Success:   ex.Err == nil,
		Duration:  ex.Duration.Milliseconds(),
	}
	if !ex.Time.IsZero() {
		entry.Timestamp = ex.Time.UnixMilli()
	}
	if ex.Err != nil {
		entry.ErrorKind = errors.Kind(ex.Err)
		entry.ErrorCode = int(errors.GetCode(ex.Err))
		entry.ErrorMsg = ex.Err.Error()
	}
	return entry
}

// backgroundWriter 后台写入协程
func (s *ExchangeLogService) backgroundWriter() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-s.bufferCh:
			s.buffer = append(s.buffer, entry)
			// 缓冲区达到批量大小，立即写入
			if len(s.buffer) >= s.cfg.BatchSize {
				s.flushBuffer()
			}

		case <-ticker.C:
			s.flushBuffer()

		case done := <-s.flushCh:
			s.drain()
			s.flushBuffer()
			close(done)

		case <-s.stopCh:
			// 退出前写入剩余的日志
			s.drain()
			s.flushBuffer()
			return
		}
	}
}

// drain 取出通道中已排队的日志
func (s *ExchangeLogService) drain() {
	for {
		select {
		case entry := <-s.bufferCh:
			s.buffer = append(s.buffer, entry)
		default:
			return
		}
	}
}

// flushBuffer 写入缓冲区的日志到数据库
func (s *ExchangeLogService) flushBuffer() {
	if len(s.buffer) == 0 {
		return
	}

	if err := s.repo.CreateBatch(s.buffer); err != nil {
		s.logger.Error("批量写入交互日志失败", zap.Int("count", len(s.buffer)), zap.Error(err))
	} else {
		s.logger.Debug("批量写入交互日志成功", zap.Int("count", len(s.buffer)))
	}

	s.buffer = s.buffer[:0]
}

// Flush 立即写入已记录的日志，服务停止后直接返回
func (s *ExchangeLogService) Flush() {
	done := make(chan struct{})
	select {
	case s.flushCh <- done:
		<-done
	case <-s.doneCh:
	}
}

// Stop 停止后台协程并写入剩余日志，可重复调用
func (s *ExchangeLogService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh

	if n := s.dropped.Load(); n > 0 {
		s.logger.Warn("交互日志有丢弃", zap.Int64("dropped", n))
	}
}

// Dropped 因缓冲区满或服务停止而丢弃的条数
func (s *ExchangeLogService) Dropped() int64 {
	return s.dropped.Load()
}

// Query 查询日志
func (s *ExchangeLogService) Query(query *models.ExchangeLogQuery) ([]*models.ExchangeLog, int64, error) {
	return s.repo.Query(query)
}

// Latest 获取最新的日志
func (s *ExchangeLogService) Latest(limit int) ([]*models.ExchangeLog, error) {
	return s.repo.Latest(limit)
}

// Stats 获取统计信息
func (s *ExchangeLogService) Stats(startTime, endTime *time.Time) (*models.ExchangeLogStats, error) {
	return s.repo.Stats(startTime, endTime)
}

// Cleanup 清理旧日志
func (s *ExchangeLogService) Cleanup(retentionDays int) (int64, error) {
	return s.repo.CleanupOlderThan(retentionDays)
}
