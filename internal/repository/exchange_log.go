package repository

import (
	"time"

	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/models"
	"gorm.io/gorm"
)

const (
	// DefaultQueryLimit 未指定 limit 时的返回条数
	DefaultQueryLimit = 100
	// MaxQueryLimit 单次查询上限
	MaxQueryLimit = 1000

	batchSize = 100
)

// ExchangeLogRepository 串口交互日志仓库
type ExchangeLogRepository struct {
	db *gorm.DB
}

// NewExchangeLogRepository 创建串口交互日志仓库
func NewExchangeLogRepository(db *gorm.DB) *ExchangeLogRepository {
	return &ExchangeLogRepository{
		db: db,
	}
}

// Create 创建日志记录
func (r *ExchangeLogRepository) Create(log *models.ExchangeLog) error {
	if err := r.db.Create(log).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "exchange_logs")
	}
	return nil
}

// CreateBatch 批量创建日志记录
func (r *ExchangeLogRepository) CreateBatch(logs []*models.ExchangeLog) error {
	if len(logs) == 0 {
		return nil
	}
	if err := r.db.CreateInBatches(logs, batchSize).Error; err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseInsert, "exchange_logs 批量 %d 条", len(logs))
	}
	return nil
}

// Query 按条件查询，按时间倒序，返回当前页记录与总数
func (r *ExchangeLogRepository) Query(query *models.ExchangeLogQuery) ([]*models.ExchangeLog, int64, error) {
	db := r.db.Model(&models.ExchangeLog{})

	if query.SessionID != "" {
		db = db.Where("session_id = ?", query.SessionID)
	}
	if query.Backend != "" {
		db = db.Where("backend = ?", query.Backend)
	}
	if query.Command != "" {
		db = db.Where("command LIKE ?", query.Command+"%")
	}
	if query.Success != nil {
		db = db.Where("success = ?", *query.Success)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDatabaseQuery, "统计交互日志")
	}

	db = db.Order("created_at DESC").Order("id DESC").Limit(clampLimit(query.Limit))
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	var logs []*models.ExchangeLog
	if err := db.Find(&logs).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDatabaseQuery, "查询交互日志")
	}

	return logs, total, nil
}

// Latest 最新的 limit 条记录
func (r *ExchangeLogRepository) Latest(limit int) ([]*models.ExchangeLog, error) {
	var logs []*models.ExchangeLog
	err := r.db.Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&logs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "查询最新交互日志")
	}
	return logs, nil
}

// Stats 统计信息，时间范围可为空
func (r *ExchangeLogRepository) Stats(startTime, endTime *time.Time) (*models.ExchangeLogStats, error) {
	scope := func() *gorm.DB {
		db := r.db.Model(&models.ExchangeLog{})
		if startTime != nil {
			db = db.Where("created_at >= ?", *startTime)
		}
		if endTime != nil {
			db = db.Where("created_at <= ?", *endTime)
		}
		return db
	}

	stats := &models.ExchangeLogStats{}
	counts := []struct {
		dst   *int64
		where string
		args  []interface{}
	}{
		{&stats.TotalCount, "", nil},
		{&stats.SuccessCount, "success = ?", []interface{}{true}},
		{&stats.ConnectionErrors, "error_kind = ?", []interface{}{errors.KindConnection}},
		{&stats.ParserErrors, "error_kind = ?", []interface{}{errors.KindParser}},
	}
	for _, c := range counts {
		db := scope()
		if c.where != "" {
			db = db.Where(c.where, c.args...)
		}
		if err := db.Count(c.dst).Error; err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "统计交互日志")
		}
	}
	stats.ErrorCount = stats.TotalCount - stats.SuccessCount

	if err := scope().Distinct("session_id").Count(&stats.Sessions).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "统计会话数")
	}

	// 性能统计
	type durationStats struct {
		AvgDuration float64
		MaxDuration int64
	}
	var ds durationStats
	if err := scope().
		Select("COALESCE(AVG(duration), 0) as avg_duration, COALESCE(MAX(duration), 0) as max_duration").
		Scan(&ds).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "统计交互耗时")
	}
	stats.AvgDuration = ds.AvgDuration
	stats.MaxDuration = ds.MaxDuration

	return stats, nil
}

// CleanupBefore 删除指定时间之前的记录
func (r *ExchangeLogRepository) CleanupBefore(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&models.ExchangeLog{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrDatabaseDelete, "清理交互日志")
	}
	return result.RowsAffected, nil
}

// CleanupOlderThan 保留最近 retentionDays 天的记录
func (r *ExchangeLogRepository) CleanupOlderThan(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.Newf(errors.ErrInvalidParam, "保留天数必须大于 0: %d", retentionDays)
	}
	return r.CleanupBefore(time.Now().AddDate(0, 0, -retentionDays))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultQueryLimit
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return limit
	}
}
