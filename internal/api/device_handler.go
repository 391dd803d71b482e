package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/estim2b/internal/device"
	"github.com/wfunc/estim2b/internal/errors"
)

// exec 加锁执行设备命令，成功后返回最新缓存状态
func (r *Router) exec(c *gin.Context, fn func(d device.Device) error) {
	r.mu.Lock()
	err := fn(r.device)
	st := r.device.State()
	r.mu.Unlock()

	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, st)
}

// snapshot 加锁读取缓存状态，不与设备交互
func (r *Router) snapshot() device.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device.State()
}

func parseEnable(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.New(errors.ErrInvalidParam, "取值必须为 true 或 false")
}

func parseChannelValue(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}

func (r *Router) refreshState(c *gin.Context) {
	r.exec(c, func(d device.Device) error { return d.RefreshState() })
}

func (r *Router) reset(c *gin.Context) {
	r.exec(c, func(d device.Device) error { return d.Reset() })
}

func (r *Router) kill(c *gin.Context) {
	r.exec(c, func(d device.Device) error { return d.Kill() })
}

func (r *Router) setJoinedChannels(c *gin.Context) {
	enable, ok := queryParam(c, "enable", parseEnable)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetJoinedChannels(enable) })
}

func (r *Router) setMode(c *gin.Context) {
	mode, ok := queryParam(c, "mode", device.ParseMode)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetMode(mode) })
}

func (r *Router) setPower(c *gin.Context) {
	power, ok := queryParam(c, "power", device.ParsePower)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetPower(power) })
}

func (r *Router) setMap(c *gin.Context) {
	m, ok := queryParam(c, "map", device.ParseMap)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetMap(m) })
}

func (r *Router) setBias(c *gin.Context) {
	bias, ok := queryParam(c, "bias", device.ParseBias)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetBias(bias) })
}

func (r *Router) setRamp(c *gin.Context) {
	ramp, ok := queryParam(c, "ramp", device.ParseRamp)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetRamp(ramp) })
}

func (r *Router) setWarp(c *gin.Context) {
	warp, ok := queryParam(c, "warp", device.ParseWarp)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetWarp(warp) })
}

func (r *Router) incrementChannel(c *gin.Context) {
	ch, ok := queryParam(c, "id", device.ParseChannel)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.IncrementChannel(ch) })
}

func (r *Router) decrementChannel(c *gin.Context) {
	ch, ok := queryParam(c, "id", device.ParseChannel)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.DecrementChannel(ch) })
}

func (r *Router) setChannel(c *gin.Context) {
	ch, ok := queryParam(c, "id", device.ParseChannel)
	if !ok {
		return
	}
	value, ok := queryParam(c, "value", parseChannelValue)
	if !ok {
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetChannel(ch, value) })
}

// setState 按请求体同步整组状态
func (r *Router) setState(c *gin.Context) {
	var target device.State
	if err := c.ShouldBindJSON(&target); err != nil {
		respondError(c, errors.Newf(errors.ErrInvalidParam, "状态格式错误: %v", err))
		return
	}
	r.exec(c, func(d device.Device) error { return d.SetState(target) })
}

func (r *Router) getState(c *gin.Context) {
	respondOK(c, r.snapshot())
}

func (r *Router) getMode(c *gin.Context) {
	respondOK(c, r.snapshot().Mode)
}

func (r *Router) getPower(c *gin.Context) {
	respondOK(c, r.snapshot().Power)
}

func (r *Router) getBias(c *gin.Context) {
	respondOK(c, r.snapshot().Bias)
}

func (r *Router) getJoinedChannels(c *gin.Context) {
	respondOK(c, r.snapshot().JoinedChannels)
}

func (r *Router) getMap(c *gin.Context) {
	respondOK(c, r.snapshot().Map)
}

func (r *Router) getRamp(c *gin.Context) {
	respondOK(c, r.snapshot().Ramp)
}

func (r *Router) getWarp(c *gin.Context) {
	respondOK(c, r.snapshot().Warp)
}

func (r *Router) getBattery(c *gin.Context) {
	respondOK(c, r.snapshot().Battery)
}

func (r *Router) getChannel(c *gin.Context) {
	ch, ok := queryParam(c, "id", device.ParseChannel)
	if !ok {
		return
	}
	respondOK(c, r.snapshot().Channel(ch))
}

func (r *Router) getVersion(c *gin.Context) {
	r.mu.Lock()
	version := r.device.Version()
	r.mu.Unlock()
	respondOK(c, version)
}
