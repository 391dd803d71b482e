package device

import (
	"fmt"

	"github.com/wfunc/estim2b/internal/errors"
)

// Mode 刺激模式，线上以序号 0-16 传输
type Mode uint8

const (
	ModePulse Mode = iota
	ModeBounce
	ModeContinuous
	ModeFlo
	ModeASplit
	ModeBSplit
	ModeWave
	ModeWaterfall
	ModeSqueeze
	ModeMilk
	ModeThrob
	ModeThrust
	ModeCycle
	ModeTwist
	ModeRandom
	ModeStep
	ModeTraining
)

var modeNames = []string{
	"Pulse", "Bounce", "Continuous", "Flo", "ASplit", "BSplit", "Wave", "Waterfall",
	"Squeeze", "Milk", "Throb", "Thrust", "Cycle", "Twist", "Random", "Step", "Training",
}

// Bias 通道联动时哪一路占主导
type Bias uint8

const (
	BiasA Bias = iota
	BiasB
	BiasAverage
	BiasMax
)

var biasNames = []string{"A", "B", "AVERAGE", "MAX"}

// Map 输出路由
type Map uint8

const (
	MapA Map = iota
	MapB
	MapC
)

var mapNames = []string{"A", "B", "C"}

// Ramp 斜坡倍率
type Ramp uint8

const (
	RampX1 Ramp = iota
	RampX2
	RampX3
	RampX4
)

var rampNames = []string{"X1", "X2", "X3", "X4"}

// Warp 节奏倍率
type Warp uint8

const (
	WarpX1 Warp = iota
	WarpX2
	WarpX4
	WarpX8
	WarpX16
	WarpX32
)

var warpNames = []string{"X1", "X2", "X4", "X8", "X16", "X32"}

// Power 功率档位，线上使用助记字母而不是序号
type Power uint8

const (
	PowerHigh Power = iota
	PowerLow
	PowerDynamic
)

var (
	powerNames   = []string{"HIGH", "LOW", "DYNAMIC"}
	powerLetters = []byte{'H', 'L', 'Y'}
)

// Channel 输出通道标识，线上使用字母
type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
	ChannelC
	ChannelD
)

var (
	channelNames   = []string{"A", "B", "C", "D"}
	channelLetters = []byte{'A', 'B', 'C', 'D'}
)

func nameOf(kind string, names []string, i uint8) string {
	if int(i) < len(names) {
		return names[i]
	}
	return fmt.Sprintf("%s(%d)", kind, i)
}

func parseName[T ~uint8](kind string, names []string, s string) (T, error) {
	for i, n := range names {
		if n == s {
			return T(i), nil
		}
	}
	return 0, errors.Newf(errors.ErrInvalidValue, "未知的%s名称: %q", kind, s)
}

func fromOrdinal[T ~uint8](kind string, names []string, n uint8) (T, error) {
	if int(n) >= len(names) {
		return 0, errors.Newf(errors.ErrInvalidValue, "%s序号超出范围: %d", kind, n)
	}
	return T(n), nil
}

func fromLetter[T ~uint8](kind string, letters []byte, b byte) (T, error) {
	for i, l := range letters {
		if l == b {
			return T(i), nil
		}
	}
	return 0, errors.Newf(errors.ErrInvalidValue, "未知的%s字母: %q", kind, string(b))
}

func marshalName(kind string, names []string, i uint8) ([]byte, error) {
	if int(i) >= len(names) {
		return nil, errors.Newf(errors.ErrInvalidValue, "%s取值无效: %d", kind, i)
	}
	return []byte(names[i]), nil
}

// Mode

func (m Mode) String() string { return nameOf("Mode", modeNames, uint8(m)) }

// Valid 是否为已定义的模式
func (m Mode) Valid() bool { return int(m) < len(modeNames) }

// ParseMode 按名称解析模式，如 "Throb"
func ParseMode(s string) (Mode, error) { return parseName[Mode]("模式", modeNames, s) }

// ModeFromOrdinal 按线上序号解析模式
func ModeFromOrdinal(n uint8) (Mode, error) { return fromOrdinal[Mode]("模式", modeNames, n) }

// AllModes 按声明顺序返回全部模式
func AllModes() []Mode {
	out := make([]Mode, len(modeNames))
	for i := range out {
		out[i] = Mode(i)
	}
	return out
}

func (m Mode) MarshalText() ([]byte, error) { return marshalName("Mode", modeNames, uint8(m)) }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Bias

func (b Bias) String() string { return nameOf("Bias", biasNames, uint8(b)) }

func (b Bias) Valid() bool { return int(b) < len(biasNames) }

// ParseBias 按名称解析偏置
func ParseBias(s string) (Bias, error) { return parseName[Bias]("偏置", biasNames, s) }

// BiasFromOrdinal 按线上序号解析偏置
func BiasFromOrdinal(n uint8) (Bias, error) { return fromOrdinal[Bias]("偏置", biasNames, n) }

func AllBiases() []Bias { return []Bias{BiasA, BiasB, BiasAverage, BiasMax} }

func (b Bias) MarshalText() ([]byte, error) { return marshalName("Bias", biasNames, uint8(b)) }

func (b *Bias) UnmarshalText(text []byte) error {
	v, err := ParseBias(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Map

func (m Map) String() string { return nameOf("Map", mapNames, uint8(m)) }

func (m Map) Valid() bool { return int(m) < len(mapNames) }

// ParseMap 按名称解析输出路由
func ParseMap(s string) (Map, error) { return parseName[Map]("路由", mapNames, s) }

// MapFromOrdinal 按线上序号解析输出路由
func MapFromOrdinal(n uint8) (Map, error) { return fromOrdinal[Map]("路由", mapNames, n) }

func AllMaps() []Map { return []Map{MapA, MapB, MapC} }

func (m Map) MarshalText() ([]byte, error) { return marshalName("Map", mapNames, uint8(m)) }

func (m *Map) UnmarshalText(b []byte) error {
	v, err := ParseMap(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Ramp

func (r Ramp) String() string { return nameOf("Ramp", rampNames, uint8(r)) }

func (r Ramp) Valid() bool { return int(r) < len(rampNames) }

// ParseRamp 按名称解析斜坡倍率
func ParseRamp(s string) (Ramp, error) { return parseName[Ramp]("斜坡倍率", rampNames, s) }

// RampFromOrdinal 按线上序号解析斜坡倍率
func RampFromOrdinal(n uint8) (Ramp, error) { return fromOrdinal[Ramp]("斜坡倍率", rampNames, n) }

func AllRamps() []Ramp { return []Ramp{RampX1, RampX2, RampX3, RampX4} }

func (r Ramp) MarshalText() ([]byte, error) { return marshalName("Ramp", rampNames, uint8(r)) }

func (r *Ramp) UnmarshalText(b []byte) error {
	v, err := ParseRamp(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Warp

func (w Warp) String() string { return nameOf("Warp", warpNames, uint8(w)) }

func (w Warp) Valid() bool { return int(w) < len(warpNames) }

// ParseWarp 按名称解析节奏倍率
func ParseWarp(s string) (Warp, error) { return parseName[Warp]("节奏倍率", warpNames, s) }

// WarpFromOrdinal 按线上序号解析节奏倍率
func WarpFromOrdinal(n uint8) (Warp, error) { return fromOrdinal[Warp]("节奏倍率", warpNames, n) }

func AllWarps() []Warp { return []Warp{WarpX1, WarpX2, WarpX4, WarpX8, WarpX16, WarpX32} }

func (w Warp) MarshalText() ([]byte, error) { return marshalName("Warp", warpNames, uint8(w)) }

func (w *Warp) UnmarshalText(b []byte) error {
	v, err := ParseWarp(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Power

func (p Power) String() string { return nameOf("Power", powerNames, uint8(p)) }

func (p Power) Valid() bool { return int(p) < len(powerNames) }

// Letter 线上助记字母 H/L/Y
func (p Power) Letter() byte {
	if !p.Valid() {
		return '?'
	}
	return powerLetters[p]
}

// ParsePower 按名称解析功率档位
func ParsePower(s string) (Power, error) { return parseName[Power]("功率", powerNames, s) }

// PowerFromLetter 按助记字母解析功率档位
func PowerFromLetter(b byte) (Power, error) { return fromLetter[Power]("功率", powerLetters, b) }

func AllPowers() []Power { return []Power{PowerHigh, PowerLow, PowerDynamic} }

func (p Power) MarshalText() ([]byte, error) { return marshalName("Power", powerNames, uint8(p)) }

func (p *Power) UnmarshalText(b []byte) error {
	v, err := ParsePower(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Channel

func (c Channel) String() string { return nameOf("Channel", channelNames, uint8(c)) }

func (c Channel) Valid() bool { return int(c) < len(channelNames) }

// Letter 线上通道字母 A-D
func (c Channel) Letter() byte {
	if !c.Valid() {
		return '?'
	}
	return channelLetters[c]
}

// ParseChannel 按名称解析通道
func ParseChannel(s string) (Channel, error) { return parseName[Channel]("通道", channelNames, s) }

// ChannelFromLetter 按字母解析通道
func ChannelFromLetter(b byte) (Channel, error) {
	return fromLetter[Channel]("通道", channelLetters, b)
}

func AllChannels() []Channel { return []Channel{ChannelA, ChannelB, ChannelC, ChannelD} }

func (c Channel) MarshalText() ([]byte, error) {
	return marshalName("Channel", channelNames, uint8(c))
}

func (c *Channel) UnmarshalText(b []byte) error {
	v, err := ParseChannel(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// State 设备配置的完整快照
type State struct {
	Mode           Mode   `json:"mode"`
	ChannelA       uint8  `json:"channel_a"`
	ChannelB       uint8  `json:"channel_b"`
	ChannelC       uint8  `json:"channel_c"`
	ChannelD       uint8  `json:"channel_d"`
	Power          Power  `json:"power"`
	Bias           Bias   `json:"bias"`
	JoinedChannels bool   `json:"joined_channels"`
	Map            Map    `json:"map"`
	Ramp           Ramp   `json:"ramp"`
	Warp           Warp   `json:"warp"`
	Battery        uint16 `json:"battery"` // 仅由设备上报，客户端写入时忽略
}

// Channel 读取指定通道的强度
func (s State) Channel(ch Channel) uint8 {
	switch ch {
	case ChannelA:
		return s.ChannelA
	case ChannelB:
		return s.ChannelB
	case ChannelC:
		return s.ChannelC
	case ChannelD:
		return s.ChannelD
	default:
		return 0
	}
}

// WithChannel 返回指定通道强度被替换后的副本
func (s State) WithChannel(ch Channel, value uint8) State {
	switch ch {
	case ChannelA:
		s.ChannelA = value
	case ChannelB:
		s.ChannelB = value
	case ChannelC:
		s.ChannelC = value
	case ChannelD:
		s.ChannelD = value
	}
	return s
}

func (s State) String() string {
	return fmt.Sprintf("State{mode:%s a:%d b:%d c:%d d:%d power:%s bias:%s joined:%t map:%s ramp:%s warp:%s battery:%d}",
		s.Mode, s.ChannelA, s.ChannelB, s.ChannelC, s.ChannelD,
		s.Power, s.Bias, s.JoinedChannels, s.Map, s.Ramp, s.Warp, s.Battery)
}
