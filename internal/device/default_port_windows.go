//go:build windows

package device

// DefaultPort 平台默认串口
const DefaultPort = "COM3"
