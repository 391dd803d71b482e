package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wfunc/estim2b/internal/errors"
)

// 2B 串口协议
// 命令：ASCII 文本 + '\r'
// 响应：单行 battery:a:b:c:d:mode:power:bias:joined:map:warp:ramp:version
// 通道强度在响应中为设定值的两倍

const (
	// Terminator 命令结束符
	Terminator = "\r"

	// responseFields 响应字段数，最后一个字段为固件版本
	responseFields = 13
)

// Command 一条不含结束符的设备命令
type Command string

// Frame 返回带结束符的完整帧
func (c Command) Frame() []byte {
	return []byte(string(c) + Terminator)
}

func (c Command) String() string { return string(c) }

// CmdRefresh 查询状态
func CmdRefresh() Command { return "V" }

// CmdReset 恢复出厂默认
func CmdReset() Command { return "E" }

// CmdKill 关闭 A/B 通道输出
func CmdKill() Command { return "K" }

// CmdJoinedChannels 设置通道联动
func CmdJoinedChannels(enable bool) Command {
	if enable {
		return "J1"
	}
	return "J0"
}

func CmdMode(m Mode) Command { return Command(fmt.Sprintf("M%d", uint8(m))) }

func CmdPower(p Power) Command { return Command(string(p.Letter())) }

func CmdMap(m Map) Command { return Command(fmt.Sprintf("O%d", uint8(m))) }

func CmdBias(b Bias) Command { return Command(fmt.Sprintf("Q%d", uint8(b))) }

func CmdRamp(r Ramp) Command { return Command(fmt.Sprintf("R%d", uint8(r))) }

func CmdWarp(w Warp) Command { return Command(fmt.Sprintf("W%d", uint8(w))) }

func CmdIncrement(ch Channel) Command { return Command(string(ch.Letter()) + "+") }

func CmdDecrement(ch Channel) Command { return Command(string(ch.Letter()) + "-") }

// CmdSetChannel 直接设定通道强度，值以十进制发送
func CmdSetChannel(ch Channel, value uint8) Command {
	return Command(string(ch.Letter()) + strconv.FormatUint(uint64(value), 10))
}

// maxWireChannel 线上通道值上限，对应设定值 255
const maxWireChannel = 510

// responseFieldNames 响应字段名，按线上顺序
var responseFieldNames = [responseFields]string{
	"battery", "channel_a", "channel_b", "channel_c", "channel_d",
	"mode", "power", "bias", "joined_channels", "map", "warp", "ramp", "version",
}

// DecodeResponse 解析一行设备响应，返回状态与固件版本
// 任一字段缺失或非法都会导致整体失败，不返回部分状态
func DecodeResponse(line string) (State, string, error) {
	trimmed := strings.Trim(line, "\r\n ")
	// 版本取第 12 个冒号之后的全部内容，而不是最后一段
	fields := strings.SplitN(trimmed, ":", responseFields)
	if len(fields) < responseFields {
		missing := responseFieldNames[len(fields)]
		return State{}, "", errors.Newf(errors.ErrInvalidResponse,
			"缺少字段 %s (%d/%d): %q", missing, len(fields), responseFields, trimmed)
	}

	p := &responseParser{fields: fields}
	var st State

	st.Battery = p.u16(0)
	st.ChannelA = p.channel(1)
	st.ChannelB = p.channel(2)
	st.ChannelC = p.channel(3)
	st.ChannelD = p.channel(4)
	st.Mode = ordinal(p, 5, ModeFromOrdinal)
	st.Power = p.power(6)
	st.Bias = ordinal(p, 7, BiasFromOrdinal)
	st.JoinedChannels = p.u8(8) == 1
	st.Map = ordinal(p, 9, MapFromOrdinal)
	st.Warp = ordinal(p, 10, WarpFromOrdinal)
	st.Ramp = ordinal(p, 11, RampFromOrdinal)

	version := strings.TrimSpace(fields[12])
	if p.err == nil && version == "" {
		p.fail(12, version, "为空")
	}
	if p.err != nil {
		return State{}, "", p.err
	}

	return st, version, nil
}

// EncodeResponse 按设备格式生成响应行（不含结束符），通道值乘 2，线上范围 0-510
func EncodeResponse(st State, version string) string {
	joined := 0
	if st.JoinedChannels {
		joined = 1
	}
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d:%c:%d:%d:%d:%d:%d:%s",
		st.Battery,
		uint(st.ChannelA)*2, uint(st.ChannelB)*2, uint(st.ChannelC)*2, uint(st.ChannelD)*2,
		uint8(st.Mode), st.Power.Letter(), uint8(st.Bias), joined,
		uint8(st.Map), uint8(st.Warp), uint8(st.Ramp), version)
}

// responseParser 逐字段解析，记录第一个错误
type responseParser struct {
	fields []string
	err    error
}

func (p *responseParser) fail(i int, value, reason string) {
	if p.err != nil {
		return
	}
	p.err = errors.Newf(errors.ErrInvalidResponse, "字段 %s=%q %s", responseFieldNames[i], value, reason)
}

func (p *responseParser) u8(i int) uint8 {
	if p.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(p.fields[i], 10, 8)
	if err != nil {
		p.fail(i, p.fields[i], "不是有效的 u8")
		return 0
	}
	return uint8(n)
}

func (p *responseParser) u16(i int) uint16 {
	if p.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(p.fields[i], 10, 16)
	if err != nil {
		p.fail(i, p.fields[i], "不是有效的 u16")
		return 0
	}
	return uint16(n)
}

// channel 线上值为设定值的两倍，范围 0-510
func (p *responseParser) channel(i int) uint8 {
	if p.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(p.fields[i], 10, 16)
	if err != nil || n > maxWireChannel {
		p.fail(i, p.fields[i], "不是有效的通道值 (0-510)")
		return 0
	}
	return uint8(n / 2)
}

func (p *responseParser) power(i int) Power {
	if p.err != nil {
		return 0
	}
	v := p.fields[i]
	if len(v) != 1 {
		p.fail(i, v, "不是有效的功率字母")
		return 0
	}
	// 旧固件以 D 表示低功率
	if v[0] == 'D' {
		return PowerLow
	}
	pw, err := PowerFromLetter(v[0])
	if err != nil {
		p.fail(i, v, "不是有效的功率字母")
		return 0
	}
	return pw
}

func ordinal[T ~uint8](p *responseParser, i int, from func(uint8) (T, error)) T {
	n := p.u8(i)
	if p.err != nil {
		return 0
	}
	v, err := from(n)
	if err != nil {
		p.fail(i, p.fields[i], "序号超出范围")
		return 0
	}
	return v
}
