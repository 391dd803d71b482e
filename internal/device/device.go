package device

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// 后端类型
const (
	BackendSerial    = "serial"
	BackendSimulator = "simulator"
)

// StateReader 可读取缓存状态的对象
type StateReader interface {
	State() State
}

// Device 2B 设备操作接口
// 实现不保证并发安全，由调用方串行化访问
type Device interface {
	StateReader

	// RefreshState 重新读取设备状态
	RefreshState() error
	// Reset 恢复出厂默认配置
	Reset() error
	// Kill 关闭 A/B 通道输出
	Kill() error

	SetJoinedChannels(enable bool) error
	SetMode(mode Mode) error
	SetPower(power Power) error
	SetMap(m Map) error
	SetBias(bias Bias) error
	SetRamp(ramp Ramp) error
	SetWarp(warp Warp) error

	IncrementChannel(ch Channel) error
	DecrementChannel(ch Channel) error
	SetChannel(ch Channel, value uint8) error

	// SetState 只下发与当前缓存不同的字段，电量字段忽略
	SetState(target State) error

	// Version 固件版本
	Version() string
	// Backend 后端类型（serial / simulator）
	Backend() string
	Close() error
}

// GetMode 当前模式
func GetMode(r StateReader) Mode { return r.State().Mode }

func GetPower(r StateReader) Power { return r.State().Power }

func GetBias(r StateReader) Bias { return r.State().Bias }

func GetJoinedChannels(r StateReader) bool { return r.State().JoinedChannels }

func GetMap(r StateReader) Map { return r.State().Map }

func GetRamp(r StateReader) Ramp { return r.State().Ramp }

func GetWarp(r StateReader) Warp { return r.State().Warp }

// GetBattery 最近一次上报的电量
func GetBattery(r StateReader) uint16 { return r.State().Battery }

// GetChannel 指定通道强度
func GetChannel(r StateReader, ch Channel) uint8 { return r.State().Channel(ch) }

// syncStep set_state 的一个字段步骤
type syncStep struct {
	name    string
	changed func(cur, target State) bool
	apply   func(d Device, target State) error
}

func channelStep(ch Channel) syncStep {
	return syncStep{
		name:    "channel_" + strings.ToLower(ch.String()),
		changed: func(cur, t State) bool { return cur.Channel(ch) != t.Channel(ch) },
		apply:   func(d Device, t State) error { return d.SetChannel(ch, t.Channel(ch)) },
	}
}

// syncSteps 下发顺序：mode, power, bias, joined_channels, map, ramp, warp, channel_a..d
var syncSteps = []syncStep{
	{
		name:    "mode",
		changed: func(cur, t State) bool { return cur.Mode != t.Mode },
		apply:   func(d Device, t State) error { return d.SetMode(t.Mode) },
	},
	{
		name:    "power",
		changed: func(cur, t State) bool { return cur.Power != t.Power },
		apply:   func(d Device, t State) error { return d.SetPower(t.Power) },
	},
	{
		name:    "bias",
		changed: func(cur, t State) bool { return cur.Bias != t.Bias },
		apply:   func(d Device, t State) error { return d.SetBias(t.Bias) },
	},
	{
		name:    "joined_channels",
		changed: func(cur, t State) bool { return cur.JoinedChannels != t.JoinedChannels },
		apply:   func(d Device, t State) error { return d.SetJoinedChannels(t.JoinedChannels) },
	},
	{
		name:    "map",
		changed: func(cur, t State) bool { return cur.Map != t.Map },
		apply:   func(d Device, t State) error { return d.SetMap(t.Map) },
	},
	{
		name:    "ramp",
		changed: func(cur, t State) bool { return cur.Ramp != t.Ramp },
		apply:   func(d Device, t State) error { return d.SetRamp(t.Ramp) },
	},
	{
		name:    "warp",
		changed: func(cur, t State) bool { return cur.Warp != t.Warp },
		apply:   func(d Device, t State) error { return d.SetWarp(t.Warp) },
	},
	channelStep(ChannelA),
	channelStep(ChannelB),
	channelStep(ChannelC),
	channelStep(ChannelD),
}

// SyncState 按固定顺序逐字段比较并下发差异
// 每一步都与最新缓存比较；遇到第一个错误即返回，已下发的字段不回滚
func SyncState(d Device, target State) error {
	for _, step := range syncSteps {
		if !step.changed(d.State(), target) {
			continue
		}
		if err := step.apply(d, target); err != nil {
			return err
		}
	}
	return nil
}

// DiffFields 返回 target 相对 cur 需要下发的字段名，顺序与 SyncState 一致
func DiffFields(cur, target State) []string {
	var out []string
	for _, step := range syncSteps {
		if step.changed(cur, target) {
			out = append(out, step.name)
		}
	}
	return out
}

// Exchange 一次命令/响应交互记录
type Exchange struct {
	SessionID string
	Backend   string
	Command   Command
	Response  string
	Err       error
	Duration  time.Duration
	Time      time.Time
}

// ExchangeRecorder 接收每一次交互（成功或失败）
type ExchangeRecorder interface {
	RecordExchange(ex Exchange)
}

// ExchangeRecorderFunc 函数形式的 ExchangeRecorder
type ExchangeRecorderFunc func(ex Exchange)

func (f ExchangeRecorderFunc) RecordExchange(ex Exchange) { f(ex) }

type options struct {
	logger   *zap.Logger
	recorder ExchangeRecorder
}

// Option 设备构造选项
type Option func(*options)

// WithLogger 指定日志器
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder 指定交互记录器
func WithRecorder(r ExchangeRecorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

func buildOptions(opts []Option, defaultLogger *zap.Logger) options {
	o := options{logger: defaultLogger}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
