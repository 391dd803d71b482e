package device

import (
	"strings"
	"time"
)

// SimulatorPath 作为串口路径时选择模拟器
const SimulatorPath = "virtual"

// Config 设备打开参数，对应配置文件 device 段
type Config struct {
	Backend     string
	Port        string
	ReadTimeout time.Duration
}

// Open 按配置打开设备
// backend=simulator 或 port=virtual 使用模拟器；port 为空使用平台默认串口
func Open(cfg Config, opts ...Option) (Device, error) {
	port := strings.TrimSpace(cfg.Port)
	if cfg.Backend == BackendSimulator || port == SimulatorPath {
		return NewSimulator(opts...), nil
	}

	serialCfg := DefaultSerialConfig()
	if port != "" {
		serialCfg.Port = port
	}
	if cfg.ReadTimeout > 0 {
		serialCfg.ReadTimeout = cfg.ReadTimeout
	}

	d, err := NewSerialDevice(serialCfg, opts...)
	if err != nil {
		return nil, err
	}
	return d, nil
}
