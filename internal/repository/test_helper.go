package repository

import (
	"time"

	"github.com/wfunc/estim2b/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 内存库每个连接独立，限制为单连接
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.ExchangeLog{}); err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// CreateTestExchangeLog 创建测试交互日志
func CreateTestExchangeLog(sessionID, command string, success bool, at time.Time) *models.ExchangeLog {
	log := &models.ExchangeLog{
		CreatedAt: at,
		SessionID: sessionID,
		Backend:   "serial",
		Command:   command,
		Success:   success,
		Duration:  12,
	}
	if success {
		log.Response = "1000:0:0:100:100:0:L:0:0:0:0:0:2.122B"
	}
	return log
}
