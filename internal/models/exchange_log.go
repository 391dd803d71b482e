package models

import (
	"time"

	"gorm.io/gorm"
)

// ExchangeLog 一次串口命令/响应交互
type ExchangeLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`

	// 会话与后端
	SessionID string `gorm:"type:varchar(64);index;not null" json:"session_id"` // 每次打开设备生成
	Backend   string `gorm:"type:varchar(16);index" json:"backend"`             // serial / simulator

	// 命令与响应
	Command  string `gorm:"type:varchar(32);index" json:"command"`       // 不含结束符，如 "M10"
	Response string `gorm:"type:varchar(512)" json:"response,omitempty"` // 设备原始响应行

	// 结果
	Success   bool   `gorm:"index" json:"success"`
	ErrorKind string `gorm:"type:varchar(32)" json:"error_kind,omitempty"` // ConnectionError / ParserError
	ErrorCode int    `json:"error_code,omitempty"`
	ErrorMsg  string `gorm:"type:text" json:"error_msg,omitempty"`

	// 性能指标
	Duration  int64 `gorm:"default:0" json:"duration"` // 交互耗时（毫秒）
	Timestamp int64 `gorm:"index" json:"timestamp"`    // Unix时间戳（毫秒）
}

// TableName 指定表名
func (ExchangeLog) TableName() string {
	return "exchange_logs"
}

// BeforeCreate 创建前的钩子
func (e *ExchangeLog) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Timestamp == 0 {
		e.Timestamp = e.CreatedAt.UnixMilli()
	}
	return nil
}

// ExchangeLogQuery 查询参数
type ExchangeLogQuery struct {
	SessionID string     `form:"session_id" json:"session_id,omitempty"`
	Backend   string     `form:"backend" json:"backend,omitempty"`
	Command   string     `form:"command" json:"command,omitempty"` // 命令前缀，如 "M" 匹配所有模式切换
	Success   *bool      `form:"success" json:"success,omitempty"`
	StartTime *time.Time `form:"start_time" time_format:"2006-01-02T15:04:05Z07:00" json:"start_time,omitempty"`
	EndTime   *time.Time `form:"end_time" time_format:"2006-01-02T15:04:05Z07:00" json:"end_time,omitempty"`
	Limit     int        `form:"limit" json:"limit,omitempty"`
	Offset    int        `form:"offset" json:"offset,omitempty"`
}

// ExchangeLogStats 统计信息
type ExchangeLogStats struct {
	TotalCount       int64   `json:"total_count"`
	SuccessCount     int64   `json:"success_count"`
	ErrorCount       int64   `json:"error_count"`
	ConnectionErrors int64   `json:"connection_errors"`
	ParserErrors     int64   `json:"parser_errors"`
	Sessions         int64   `json:"sessions"`
	AvgDuration      float64 `json:"avg_duration"`
	MaxDuration      int64   `json:"max_duration"`
}
