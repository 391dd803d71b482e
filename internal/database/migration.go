package database

import (
	"fmt"

	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/logger"
	"github.com/wfunc/estim2b/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrationModels 需要迁移的模型
var migrationModels = []interface{}{
	&models.ExchangeLog{},
}

// indexes 额外的组合索引
var indexes = []struct {
	name string
	sql  string
}{
	{"idx_exchange_logs_session_created", "CREATE INDEX IF NOT EXISTS idx_exchange_logs_session_created ON exchange_logs(session_id, created_at)"},
	{"idx_exchange_logs_kind", "CREATE INDEX IF NOT EXISTS idx_exchange_logs_kind ON exchange_logs(error_kind)"},
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New(errors.ErrDatabaseConnect, "数据库未初始化")
	}

	log := logger.WithModule("database")

	// sqlite 文件库多进程同时迁移时加锁
	if dbPath := sqlitePath(db); dbPath != "" {
		CleanupStaleLocks(dbPath)
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			log.Error("无法获取迁移锁", zap.Error(err))
			return errors.Wrap(err, errors.ErrDatabaseConnect, "获取迁移锁")
		}
		defer releaseMigrationLock(lockFile)
	}

	log.Info("开始数据库迁移...")

	for _, model := range migrationModels {
		if err := db.AutoMigrate(model); err != nil {
			log.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return errors.Wrapf(err, errors.ErrDatabaseConnect, "迁移 %T", model)
		}
		log.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			log.Warn("创建索引失败", zap.String("index", idx.name), zap.Error(err))
		}
	}

	log.Info("数据库迁移完成")
	return nil
}
