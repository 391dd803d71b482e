package device

import (
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/estim2b/internal/logger"
	"go.uber.org/zap"
)

const (
	// SimulatorVersion 模拟器上报的固件版本
	SimulatorVersion = "2.122B"
	// SimulatorBattery 模拟器上报的电量
	SimulatorBattery = 1000
)

// baselineState 复位后的默认配置（不含电量）
func baselineState(battery uint16) State {
	return State{
		Mode:           ModePulse,
		ChannelA:       0,
		ChannelB:       0,
		ChannelC:       50,
		ChannelD:       50,
		Power:          PowerLow,
		Bias:           BiasA,
		JoinedChannels: false,
		Map:            MapA,
		Ramp:           RampX1,
		Warp:           WarpX1,
		Battery:        battery,
	}
}

// Simulator 内存中的虚拟 2B，所有操作都成功
type Simulator struct {
	state     State
	version   string
	sessionID string
	logger    *zap.Logger
	recorder  ExchangeRecorder
}

// NewSimulator 创建模拟器
func NewSimulator(opts ...Option) *Simulator {
	o := buildOptions(opts, logger.WithModule("simulator"))
	s := &Simulator{
		state:     baselineState(SimulatorBattery),
		version:   SimulatorVersion,
		sessionID: uuid.New().String(),
		logger:    o.logger,
		recorder:  o.recorder,
	}
	s.logger.Info("模拟设备已启动", zap.String("version", s.version))
	return s
}

// apply 执行一次状态变更并记录
func (s *Simulator) apply(cmd Command, mutate func(st *State)) error {
	if mutate != nil {
		mutate(&s.state)
	}
	s.logger.Debug("模拟设备状态变更", zap.String("command", cmd.String()), zap.Stringer("state", s.state))

	if s.recorder != nil {
		s.recorder.RecordExchange(Exchange{
			SessionID: s.sessionID,
			Backend:   BackendSimulator,
			Command:   cmd,
			Response:  EncodeResponse(s.state, s.version),
			Time:      time.Now(),
		})
	}
	return nil
}

func (s *Simulator) RefreshState() error { return s.apply(CmdRefresh(), nil) }

// Reset 恢复默认配置，电量与版本保持不变
func (s *Simulator) Reset() error {
	return s.apply(CmdReset(), func(st *State) { *st = baselineState(st.Battery) })
}

// Kill 只清零 A/B 通道
func (s *Simulator) Kill() error {
	return s.apply(CmdKill(), func(st *State) {
		st.ChannelA = 0
		st.ChannelB = 0
	})
}

func (s *Simulator) SetJoinedChannels(enable bool) error {
	return s.apply(CmdJoinedChannels(enable), func(st *State) { st.JoinedChannels = enable })
}

func (s *Simulator) SetMode(mode Mode) error {
	return s.apply(CmdMode(mode), func(st *State) { st.Mode = mode })
}

func (s *Simulator) SetPower(power Power) error {
	return s.apply(CmdPower(power), func(st *State) { st.Power = power })
}

func (s *Simulator) SetMap(m Map) error {
	return s.apply(CmdMap(m), func(st *State) { st.Map = m })
}

func (s *Simulator) SetBias(bias Bias) error {
	return s.apply(CmdBias(bias), func(st *State) { st.Bias = bias })
}

func (s *Simulator) SetRamp(ramp Ramp) error {
	return s.apply(CmdRamp(ramp), func(st *State) { st.Ramp = ramp })
}

func (s *Simulator) SetWarp(warp Warp) error {
	return s.apply(CmdWarp(warp), func(st *State) { st.Warp = warp })
}

// IncrementChannel 按 u8 回绕，255+1 = 0
func (s *Simulator) IncrementChannel(ch Channel) error {
	return s.apply(CmdIncrement(ch), func(st *State) { *st = st.WithChannel(ch, st.Channel(ch)+1) })
}

// DecrementChannel 按 u8 回绕，0-1 = 255
func (s *Simulator) DecrementChannel(ch Channel) error {
	return s.apply(CmdDecrement(ch), func(st *State) { *st = st.WithChannel(ch, st.Channel(ch)-1) })
}

func (s *Simulator) SetChannel(ch Channel, value uint8) error {
	return s.apply(CmdSetChannel(ch, value), func(st *State) { *st = st.WithChannel(ch, value) })
}

// SetState 与串口设备相同的差异下发，电量不会被覆盖
func (s *Simulator) SetState(target State) error { return SyncState(s, target) }

func (s *Simulator) State() State { return s.state }

func (s *Simulator) Version() string { return s.version }

func (s *Simulator) Backend() string { return BackendSimulator }

func (s *Simulator) SessionID() string { return s.sessionID }

func (s *Simulator) Close() error {
	s.logger.Info("模拟设备已关闭")
	return nil
}
