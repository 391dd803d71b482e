package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/estim2b/internal/config"
	"github.com/wfunc/estim2b/internal/database"
	"github.com/wfunc/estim2b/internal/device"
	"github.com/wfunc/estim2b/internal/models"
	"github.com/wfunc/estim2b/internal/repository"
)

func testConfig(dsn string, retentionDays int) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			Mode:            "test",
			ShutdownTimeout: time.Second,
		},
		Device: config.DeviceConfig{
			Backend:     device.BackendSimulator,
			ReadTimeout: 100 * time.Millisecond,
		},
		Database: config.DatabaseConfig{
			Enabled:      true,
			Driver:       "sqlite",
			DSN:          dsn,
			MaxOpenConns: 1,
			LogLevel:     "silent",
			AutoMigrate:  true,
		},
		Journal: config.JournalConfig{
			BufferSize:    16,
			BatchSize:     16,
			FlushInterval: time.Hour,
			RetentionDays: retentionDays,
		},
	}
}

// seedJournal 写入一条 60 天前和一条当前的日志
func seedJournal(t *testing.T, dsn string) {
	t.Helper()
	cfg := testConfig(dsn, 0)
	db, err := database.Open(&cfg.Database)
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, database.AutoMigrate(db))

	repo := repository.NewExchangeLogRepository(db)
	now := time.Now()
	require.NoError(t, repo.Create(repository.CreateTestExchangeLog("old", "V", true, now.AddDate(0, 0, -60))))
	require.NoError(t, repo.Create(repository.CreateTestExchangeLog("new", "V", true, now)))
}

func countLogs(t *testing.T, s *Server) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&models.ExchangeLog{}).Count(&n).Error)
	return n
}

func TestInitJournal_PrunesOldLogs(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db")
	seedJournal(t, dsn)

	s := NewServer(testConfig(dsn, 30))
	require.NoError(t, s.initJournal())
	defer s.closeJournal()

	assert.Equal(t, int64(1), countLogs(t, s))
}

func TestInitJournal_RetentionDisabled(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db")
	seedJournal(t, dsn)

	s := NewServer(testConfig(dsn, 0))
	require.NoError(t, s.initJournal())
	defer s.closeJournal()

	assert.Equal(t, int64(2), countLogs(t, s))
}

func TestServer_StartShutdown(t *testing.T) {
	s := NewServer(testConfig(filepath.Join(t.TempDir(), "journal.db"), 30))
	require.NoError(t, s.Start())

	require.NotNil(t, s.device)
	assert.Equal(t, device.BackendSimulator, s.device.Backend())
	require.NotNil(t, s.journal)

	assert.NoError(t, s.Shutdown())
	assert.Nil(t, s.journal)
	assert.Nil(t, s.db)
}
