package config

import (
	"github.com/wfunc/estim2b/internal/errors"
)

// Validate 校验配置，只做声明式检查，不修改配置
func (c *Config) Validate() error {
	switch c.Device.Backend {
	case "serial", "simulator":
	default:
		return errors.Newf(errors.ErrConfigValidate, "device.backend 必须为 serial 或 simulator，当前为 %q", c.Device.Backend)
	}

	if c.Device.ReadTimeout <= 0 {
		return errors.Newf(errors.ErrConfigValidate, "device.read_timeout 必须大于0，当前为 %s", c.Device.ReadTimeout)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf(errors.ErrConfigValidate, "server.port 超出范围: %d", c.Server.Port)
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case "sqlite", "sqlite3", "mysql", "postgres", "postgresql":
		default:
			return errors.Newf(errors.ErrConfigValidate, "不支持的数据库驱动: %s", c.Database.Driver)
		}
		if c.Database.DSN == "" {
			return errors.New(errors.ErrConfigValidate, "database.dsn 不能为空")
		}
	}

	if c.Journal.BatchSize <= 0 || c.Journal.BufferSize <= 0 {
		return errors.New(errors.ErrConfigValidate, "journal.batch_size 与 journal.buffer_size 必须大于0")
	}

	if c.Journal.RetentionDays < 0 {
		return errors.Newf(errors.ErrConfigValidate, "journal.retention_days 不能为负数: %d", c.Journal.RetentionDays)
	}

	return nil
}
