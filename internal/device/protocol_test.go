package device

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/estim2b/internal/errors"
)

// TestCommandEncoding 命令编码
func TestCommandEncoding(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"查询", CmdRefresh(), "V"},
		{"复位", CmdReset(), "E"},
		{"关闭", CmdKill(), "K"},
		{"联动开", CmdJoinedChannels(true), "J1"},
		{"联动关", CmdJoinedChannels(false), "J0"},
		{"模式 Pulse", CmdMode(ModePulse), "M0"},
		{"模式 Throb", CmdMode(ModeThrob), "M10"},
		{"模式 Training", CmdMode(ModeTraining), "M16"},
		{"高功率", CmdPower(PowerHigh), "H"},
		{"低功率", CmdPower(PowerLow), "L"},
		{"动态功率", CmdPower(PowerDynamic), "Y"},
		{"路由", CmdMap(MapC), "O2"},
		{"偏置", CmdBias(BiasMax), "Q3"},
		{"斜坡", CmdRamp(RampX4), "R3"},
		{"节奏", CmdWarp(WarpX32), "W5"},
		{"通道加", CmdIncrement(ChannelA), "A+"},
		{"通道减", CmdDecrement(ChannelD), "D-"},
		{"通道设定", CmdSetChannel(ChannelB, 42), "B42"},
		{"通道设定 0", CmdSetChannel(ChannelC, 0), "C0"},
		{"通道设定 255", CmdSetChannel(ChannelA, 255), "A255"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
			assert.Equal(t, []byte(tt.want+"\r"), tt.cmd.Frame())
		})
	}
}

// TestDecodeResponse_Example 真实设备响应
func TestDecodeResponse_Example(t *testing.T) {
	st, version, err := DecodeResponse("344:10:12:120:116:15:L:0:0:0:0:0:2.120B\r\n")
	require.NoError(t, err)

	assert.Equal(t, State{
		Battery:        344,
		ChannelA:       5,
		ChannelB:       6,
		ChannelC:       60,
		ChannelD:       58,
		Mode:           ModeStep,
		Power:          PowerLow,
		Bias:           BiasA,
		JoinedChannels: false,
		Map:            MapA,
		Ramp:           RampX1,
		Warp:           WarpX1,
	}, st)
	assert.Equal(t, "2.120B", version)
}

// TestDecodeResponse_FieldOrder warp 在 ramp 之前
func TestDecodeResponse_FieldOrder(t *testing.T) {
	st, _, err := DecodeResponse("1000:0:0:100:100:10:H:3:1:2:5:3:2.122B")
	require.NoError(t, err)
	assert.Equal(t, ModeThrob, st.Mode)
	assert.Equal(t, PowerHigh, st.Power)
	assert.Equal(t, BiasMax, st.Bias)
	assert.True(t, st.JoinedChannels)
	assert.Equal(t, MapC, st.Map)
	assert.Equal(t, WarpX32, st.Warp)
	assert.Equal(t, RampX4, st.Ramp)
}

// TestDecodeResponse_ChannelHalving 通道线上值整除 2
func TestDecodeResponse_ChannelHalving(t *testing.T) {
	for n := 0; n <= 510; n++ {
		line := fmt.Sprintf("0:%d:0:0:0:0:L:0:0:0:0:0:2.0", n)
		st, _, err := DecodeResponse(line)
		require.NoError(t, err, line)
		assert.Equal(t, uint8(n/2), st.ChannelA, line)
	}

	tests := []struct {
		wire string
		want uint8
	}{
		{"300", 150},
		{"509", 254},
		{"510", 255},
	}
	for _, tt := range tests {
		st, _, err := DecodeResponse("344:" + tt.wire + ":12:120:116:15:L:0:0:0:0:0:2.120B")
		require.NoError(t, err, tt.wire)
		assert.Equal(t, tt.want, st.ChannelA, tt.wire)
	}

	// 超出 510 的线上值无法解析
	for _, wire := range []string{"511", "70000", "-2"} {
		_, _, err := DecodeResponse("0:" + wire + ":0:0:0:0:L:0:0:0:0:0:2.0")
		assert.True(t, errors.IsParserError(err), wire)
		assert.True(t, errors.Is(err, errors.ErrInvalidResponse), wire)
	}
}

// TestEncodeResponse_HighChannels 通道设定值 128-255 可以往返
func TestEncodeResponse_HighChannels(t *testing.T) {
	st := baselineState(SimulatorBattery).WithChannel(ChannelA, 200).WithChannel(ChannelB, 255)
	line := EncodeResponse(st, SimulatorVersion)
	assert.Contains(t, line, ":400:510:")

	got, version, err := DecodeResponse(line)
	require.NoError(t, err)
	assert.Equal(t, st, got)
	assert.Equal(t, SimulatorVersion, version)
}

// TestDecodeResponse_Power 功率字母，兼容旧固件的 D
func TestDecodeResponse_Power(t *testing.T) {
	tests := []struct {
		letter string
		want   Power
	}{
		{"H", PowerHigh},
		{"L", PowerLow},
		{"Y", PowerDynamic},
		{"D", PowerLow},
	}

	for _, tt := range tests {
		t.Run(tt.letter, func(t *testing.T) {
			st, _, err := DecodeResponse("0:0:0:0:0:0:" + tt.letter + ":0:0:0:0:0:2.0")
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Power)
		})
	}
}

// TestDecodeResponse_Errors 任一字段非法都整体失败，错误信息包含字段与取值
func TestDecodeResponse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		contains []string
	}{
		{"字段不足", "344:10:12:120", []string{"channel_d"}},
		{"空行", "", []string{"channel_a"}},
		{"电量非数字", "abc:10:12:120:116:15:L:0:0:0:0:0:2.120B", []string{"battery", "abc"}},
		{"电量超出 u16", "70000:10:12:120:116:15:L:0:0:0:0:0:2.120B", []string{"battery", "70000"}},
		{"模式越界", "344:10:12:120:116:17:L:0:0:0:0:0:2.120B", []string{"mode", "17"}},
		{"功率未知", "344:10:12:120:116:15:X:0:0:0:0:0:2.120B", []string{"power", "X"}},
		{"功率多字符", "344:10:12:120:116:15:LL:0:0:0:0:0:2.120B", []string{"power"}},
		{"偏置越界", "344:10:12:120:116:15:L:4:0:0:0:0:2.120B", []string{"bias", "4"}},
		{"路由越界", "344:10:12:120:116:15:L:0:0:3:0:0:2.120B", []string{"map", "3"}},
		{"节奏越界", "344:10:12:120:116:15:L:0:0:0:6:0:2.120B", []string{"warp", "6"}},
		{"斜坡越界", "344:10:12:120:116:15:L:0:0:0:0:4:2.120B", []string{"ramp", "4"}},
		{"联动非数字", "344:10:12:120:116:15:L:0:x:0:0:0:2.120B", []string{"joined_channels"}},
		{"版本为空", "344:10:12:120:116:15:L:0:0:0:0:0:", []string{"version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, version, err := DecodeResponse(tt.line)
			require.Error(t, err)
			assert.True(t, errors.IsParserError(err))
			assert.True(t, errors.Is(err, errors.ErrInvalidResponse))
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
			assert.Equal(t, State{}, st)
			assert.Empty(t, version)
		})
	}
}

// TestDecodeResponse_VersionKeepsColons 第 13 个字段之后的内容都属于版本
func TestDecodeResponse_VersionKeepsColons(t *testing.T) {
	_, version, err := DecodeResponse("0:0:0:0:0:0:L:0:0:0:0:0:2.1:beta")
	require.NoError(t, err)
	assert.Equal(t, "2.1:beta", version)
}

// TestEncodeResponse 编码后可解析回相同状态
func TestEncodeResponse(t *testing.T) {
	st := State{
		Mode: ModeWaterfall, ChannelA: 16, ChannelB: 32, ChannelC: 64, ChannelD: 96,
		Power: PowerDynamic, Bias: BiasAverage, JoinedChannels: true,
		Map: MapB, Ramp: RampX2, Warp: WarpX16, Battery: 777,
	}

	line := EncodeResponse(st, "2.122B")
	assert.Equal(t, "777:32:64:128:192:7:Y:2:1:1:4:1:2.122B", line)

	back, version, err := DecodeResponse(line)
	require.NoError(t, err)
	assert.Equal(t, st, back)
	assert.Equal(t, "2.122B", version)
}
