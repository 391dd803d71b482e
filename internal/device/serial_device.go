package device

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tarm/serial"
	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/logger"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate 2B 固定波特率
	DefaultBaudRate = 9600
	// DefaultReadTimeout 单次读取超时
	DefaultReadTimeout = 100 * time.Millisecond

	readChunk     = 64
	maxLineLength = 512
)

// SerialPort 串口接口（用于测试）
type SerialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// SerialConfig 串口配置，流控始终关闭
type SerialConfig struct {
	Port        string
	BaudRate    int
	DataBits    byte
	StopBits    byte
	Parity      string
	ReadTimeout time.Duration
}

// DefaultSerialConfig 9600 8N1，100ms 超时，平台默认串口
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Port:        DefaultPort,
		BaudRate:    DefaultBaudRate,
		DataBits:    8,
		StopBits:    1,
		Parity:      "N",
		ReadTimeout: DefaultReadTimeout,
	}
}

// openPort 打开物理串口，测试中可替换
var openPort = func(cfg SerialConfig) (SerialPort, error) {
	parity := serial.ParityNone
	switch cfg.Parity {
	case "O", "odd":
		parity = serial.ParityOdd
	case "E", "even":
		parity = serial.ParityEven
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.BaudRate,
		Size:        cfg.DataBits,
		Parity:      parity,
		StopBits:    serial.StopBits(cfg.StopBits),
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// SerialDevice 通过串口连接的 2B 设备
type SerialDevice struct {
	config    SerialConfig
	port      SerialPort
	state     State
	version   string
	sessionID string
	closed    bool
	logger    *zap.Logger
	recorder  ExchangeRecorder
}

// NewSerialDevice 打开串口并完成握手（发送 V 读取初始状态）
// 任一步骤失败都会关闭串口，不返回设备
func NewSerialDevice(cfg SerialConfig, opts ...Option) (*SerialDevice, error) {
	cfg = normalizeSerialConfig(cfg)

	port, err := openPort(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSerialPortOpen, cfg.Port)
	}

	return newSerialDevice(port, cfg, opts...)
}

func newSerialDevice(port SerialPort, cfg SerialConfig, opts ...Option) (*SerialDevice, error) {
	o := buildOptions(opts, logger.WithModule("serial"))

	d := &SerialDevice{
		config:    cfg,
		port:      port,
		sessionID: uuid.New().String(),
		recorder:  o.recorder,
	}
	d.logger = o.logger.With(zap.String("port", cfg.Port), zap.String("session_id", d.sessionID))

	if err := d.send(CmdRefresh()); err != nil {
		d.logger.Error("设备握手失败", zap.Error(err))
		_ = port.Close()
		return nil, err
	}

	d.logger.Info("串口设备已连接",
		zap.Int("baud_rate", cfg.BaudRate),
		zap.String("version", d.version),
		zap.Uint16("battery", d.state.Battery))

	return d, nil
}

func normalizeSerialConfig(cfg SerialConfig) SerialConfig {
	def := DefaultSerialConfig()
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = def.BaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = def.DataBits
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = def.StopBits
	}
	if cfg.Parity == "" {
		cfg.Parity = def.Parity
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	return cfg
}

// send 一次完整交互，成功时替换缓存状态与版本
func (d *SerialDevice) send(cmd Command) error {
	if d.closed {
		return errors.New(errors.ErrDeviceClosed, cmd.String())
	}

	start := time.Now()
	response, err := d.roundTrip(cmd)

	var st State
	var version string
	if err == nil {
		st, version, err = DecodeResponse(response)
	}
	d.record(cmd, response, err, start)
	if err != nil {
		return err
	}

	d.state = st
	d.version = version
	return nil
}

// roundTrip 清空残留输入，写入命令帧，读取一行响应
// tarm 的 Flush 会丢弃未读输入，必须在写入之前调用，否则可能丢掉本次响应
func (d *SerialDevice) roundTrip(cmd Command) (string, error) {
	if err := d.port.Flush(); err != nil {
		return "", errors.Wrapf(err, errors.ErrConnection, "清空串口缓冲 %s", cmd)
	}

	n, err := d.port.Write(cmd.Frame())
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrSerialPortWrite, "命令 %s", cmd)
	}
	if n == 0 {
		return "", errors.Newf(errors.ErrSerialPortWrite, "命令 %s 未写入任何字节", cmd)
	}

	return d.readLine(cmd)
}

// readLine 读取一行响应，跳过前导的 \r \n
// 读取返回 0 字节视为超时
func (d *SerialDevice) readLine(cmd Command) (string, error) {
	line := make([]byte, 0, readChunk)
	buf := make([]byte, readChunk)

	for {
		n, err := d.port.Read(buf)
		for _, b := range buf[:n] {
			if b == '\r' || b == '\n' {
				if len(line) == 0 {
					continue
				}
				return string(line), nil
			}
			line = append(line, b)
		}

		if len(line) > maxLineLength {
			return "", errors.Newf(errors.ErrInvalidResponse, "命令 %s 响应超过 %d 字节", cmd, maxLineLength)
		}
		if err != nil && err != io.EOF {
			return "", errors.Wrapf(err, errors.ErrSerialPortRead, "命令 %s", cmd)
		}
		if n == 0 {
			if len(line) > 0 {
				return "", errors.Newf(errors.ErrSerialTimeout, "命令 %s 响应不完整: %q", cmd, string(line))
			}
			return "", errors.Newf(errors.ErrSerialTimeout, "命令 %s 在 %s 内无响应", cmd, d.config.ReadTimeout)
		}
	}
}

func (d *SerialDevice) record(cmd Command, response string, err error, start time.Time) {
	duration := time.Since(start)
	logger.LogExchange(d.logger, cmd.String(), response, duration, err)

	if d.recorder == nil {
		return
	}
	d.recorder.RecordExchange(Exchange{
		SessionID: d.sessionID,
		Backend:   BackendSerial,
		Command:   cmd,
		Response:  response,
		Err:       err,
		Duration:  duration,
		Time:      start,
	})
}

func (d *SerialDevice) RefreshState() error { return d.send(CmdRefresh()) }

func (d *SerialDevice) Reset() error { return d.send(CmdReset()) }

func (d *SerialDevice) Kill() error { return d.send(CmdKill()) }

func (d *SerialDevice) SetJoinedChannels(enable bool) error {
	return d.send(CmdJoinedChannels(enable))
}

func (d *SerialDevice) SetMode(mode Mode) error { return d.send(CmdMode(mode)) }

func (d *SerialDevice) SetPower(power Power) error { return d.send(CmdPower(power)) }

func (d *SerialDevice) SetMap(m Map) error { return d.send(CmdMap(m)) }

func (d *SerialDevice) SetBias(bias Bias) error { return d.send(CmdBias(bias)) }

func (d *SerialDevice) SetRamp(ramp Ramp) error { return d.send(CmdRamp(ramp)) }

func (d *SerialDevice) SetWarp(warp Warp) error { return d.send(CmdWarp(warp)) }

func (d *SerialDevice) IncrementChannel(ch Channel) error { return d.send(CmdIncrement(ch)) }

func (d *SerialDevice) DecrementChannel(ch Channel) error { return d.send(CmdDecrement(ch)) }

func (d *SerialDevice) SetChannel(ch Channel, value uint8) error {
	return d.send(CmdSetChannel(ch, value))
}

// SetState 逐字段下发差异
func (d *SerialDevice) SetState(target State) error { return SyncState(d, target) }

// State 最近一次成功交互的状态
func (d *SerialDevice) State() State { return d.state }

func (d *SerialDevice) Version() string { return d.version }

func (d *SerialDevice) Backend() string { return BackendSerial }

// SessionID 本次连接的会话标识
func (d *SerialDevice) SessionID() string { return d.sessionID }

// Close 关闭串口，之后的操作返回 ErrDeviceClosed
func (d *SerialDevice) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	if err := d.port.Close(); err != nil {
		d.logger.Error("关闭串口失败", zap.Error(err))
		return errors.Wrap(err, errors.ErrConnection, "关闭串口")
	}

	d.logger.Info("串口已断开")
	return nil
}
