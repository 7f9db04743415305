// Velocity-indexed PWM pattern output (LCM4 family)
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package counter

import (
	"math"
	"strconv"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
)

// PWMOutMode selects where the PWM output takes its setpoint from.
type PWMOutMode int

const (
	// PWMManual emits the manual (frequency, data) pair.
	PWMManual PWMOutMode = 0
	// PWMAuto indexes the velocity table with the live 2-D speed.
	PWMAuto PWMOutMode = 1
)

func (m PWMOutMode) String() string {
	switch m {
	case PWMManual:
		return "PWM_MANUAL"
	case PWMAuto:
		return "PWM_AUTO"
	}
	return "PWM_OUT_MODE_" + strconv.Itoa(int(m))
}

// PWMPulseControl selects how the data half of a PWM pair is read.
type PWMPulseControl int

const (
	// PWMDutyRatio interprets data as a duty percentage, 0 to 100.
	PWMDutyRatio PWMPulseControl = 0
	// PWMPulseWidth interprets data as an on-width in microseconds.
	PWMPulseWidth PWMPulseControl = 1
)

func (c PWMPulseControl) String() string {
	switch c {
	case PWMDutyRatio:
		return "PWM_DUTY_RATIO"
	case PWMPulseWidth:
		return "PWM_PULSE_WIDTH"
	}
	return "PWM_PULSE_CONTROL_" + strconv.Itoa(int(c))
}

const maxPWMBuckets = 5000

type pwmBucket struct {
	freq, data float64
	set        bool
}

type pwmState struct {
	enabled bool
	outMode PWMOutMode
	control PWMPulseControl

	minVel, maxVel, interval float64
	buckets                  []pwmBucket

	manualFreq, manualData float64

	curFreq, curData float64 // live emission
}

// pwmOnly guards the PWM surface to modules that carry the output
// stage.
func (c *Channel) pwmOnly(op string) error {
	if c.pwm == nil {
		return axt.Errorf(axt.CNTInvalidUse, op, "channel %d (%s) has no PWM output", c.no, c.mod.Info.Name)
	}
	return nil
}

// writableLocked rejects configuration writes while the output stage
// is enabled.
func (p *pwmState) writableLocked(op string, channelNo int) error {
	if p.enabled {
		return axt.Errorf(axt.CNTDuringPWMEnable, op, "channel %d PWM enabled", channelNo)
	}
	return nil
}

// PWMEnable switches the PWM output stage on or off.
func (c *Channel) PWMEnable(on bool) error {
	if err := c.pwmOnly("axc.TriggerSetPwmEnable"); err != nil {
		return err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.pwm.enabled = on
	if !on {
		c.pwm.curFreq, c.pwm.curData = 0, 0
	}
	c.m.log.Info("pwm output", zap.Int("channel", c.no), zap.Bool("enabled", on))
	return nil
}

// PWMEnabled reports the output stage state.
func (c *Channel) PWMEnabled() bool {
	if c.pwm == nil {
		return false
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.pwm.enabled
}

// SetPWMOutMode selects manual or velocity-indexed emission.
func (c *Channel) SetPWMOutMode(mode PWMOutMode) error {
	const op = "axc.TriggerSetPwmOutMode"
	if mode != PWMManual && mode != PWMAuto {
		return axt.Errorf(axt.CNTInvalidMode, op, "mode %d", mode)
	}
	if err := c.pwmOnly(op); err != nil {
		return err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.pwm.writableLocked(op, c.no); err != nil {
		return err
	}
	c.pwm.outMode = mode
	return nil
}

// PWMOutMode returns the emission mode.
func (c *Channel) PWMOutMode() (PWMOutMode, error) {
	if err := c.pwmOnly("axc.TriggerGetPwmOutMode"); err != nil {
		return 0, err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.pwm.outMode, nil
}

// SetPWMPulseControl selects duty-ratio or pulse-width data.
func (c *Channel) SetPWMPulseControl(ctl PWMPulseControl) error {
	const op = "axc.TriggerSetPwmPulseControl"
	if ctl != PWMDutyRatio && ctl != PWMPulseWidth {
		return axt.Errorf(axt.CNTInvalidMode, op, "control %d", ctl)
	}
	if err := c.pwmOnly(op); err != nil {
		return err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.pwm.writableLocked(op, c.no); err != nil {
		return err
	}
	c.pwm.control = ctl
	return nil
}

// PWMPulseControl returns the data interpretation.
func (c *Channel) PWMPulseControl() (PWMPulseControl, error) {
	if err := c.pwmOnly("axc.TriggerGetPwmPulseControl"); err != nil {
		return 0, err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.pwm.control, nil
}

// SetPWMVelInfo lays out the velocity table: buckets of width interval
// from minVel to maxVel, at most 5000 of them. Laying out the table
// drops any loaded pattern.
func (c *Channel) SetPWMVelInfo(minVel, maxVel, interval float64) error {
	const op = "axc.TriggerSetPwmVelInfo"
	if err := c.pwmOnly(op); err != nil {
		return err
	}
	if math.IsNaN(minVel) || math.IsNaN(maxVel) || math.IsNaN(interval) ||
		minVel < 0 || maxVel <= minVel || interval <= 0 {
		return axt.Errorf(axt.CNTInvalidVelocity, op,
			"velocity span %g..%g step %g", minVel, maxVel, interval)
	}
	n := int(math.Ceil((maxVel - minVel) / interval))
	if n > maxPWMBuckets {
		return axt.Errorf(axt.CNTInvalidVelocity, op,
			"%d buckets exceed %d", n, maxPWMBuckets)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.pwm.writableLocked(op, c.no); err != nil {
		return err
	}
	c.pwm.minVel, c.pwm.maxVel, c.pwm.interval = minVel, maxVel, interval
	c.pwm.buckets = make([]pwmBucket, n)
	return nil
}

// PWMVelInfo returns the velocity table layout.
func (c *Channel) PWMVelInfo() (minVel, maxVel, interval float64, err error) {
	if err := c.pwmOnly("axc.TriggerGetPwmVelInfo"); err != nil {
		return 0, 0, 0, err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.pwm.minVel, c.pwm.maxVel, c.pwm.interval, nil
}

// checkPairLocked validates one (frequency, data) pair against the
// pulse control mode.
func (p *pwmState) checkPairLocked(op string, freq, data float64) error {
	if freq < 0.017 || freq > 1e6 || math.IsNaN(freq) {
		return axt.Errorf(axt.CNTInvalidValue, op, "frequency %g Hz", freq)
	}
	switch p.control {
	case PWMDutyRatio:
		if data < 0 || data > 100 || math.IsNaN(data) {
			return axt.Errorf(axt.CNTInvalidValue, op, "duty %g%%", data)
		}
	case PWMPulseWidth:
		if data <= 0 || math.IsNaN(data) || data > 1e6/freq {
			return axt.Errorf(axt.CNTInvalidValue, op,
				"width %g us at %g Hz", data, freq)
		}
	}
	return nil
}

// SetPWMManualData sets the fixed emission pair for manual mode.
func (c *Channel) SetPWMManualData(freq, data float64) error {
	const op = "axc.TriggerSetPwmManualData"
	if err := c.pwmOnly(op); err != nil {
		return err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.pwm.writableLocked(op, c.no); err != nil {
		return err
	}
	if err := c.pwm.checkPairLocked(op, freq, data); err != nil {
		return err
	}
	c.pwm.manualFreq, c.pwm.manualData = freq, data
	return nil
}

// PWMManualData returns the manual emission pair.
func (c *Channel) PWMManualData() (freq, data float64, err error) {
	if err := c.pwmOnly("axc.TriggerGetPwmManualData"); err != nil {
		return 0, 0, err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.pwm.manualFreq, c.pwm.manualData, nil
}

// bucketIndex maps a velocity into the table, or -1 outside it.
func (p *pwmState) bucketIndex(vel float64) int {
	if len(p.buckets) == 0 || vel < p.minVel || vel > p.maxVel {
		return -1
	}
	idx := int((vel - p.minVel) / p.interval)
	if idx >= len(p.buckets) {
		idx = len(p.buckets) - 1
	}
	return idx
}

// SetPWMPatternData fills velocity buckets in bulk: vels[i] selects
// the bucket, (freqs[i], datas[i]) its emission pair.
func (c *Channel) SetPWMPatternData(vels, freqs, datas []float64) error {
	const op = "axc.TriggerSetPwmPatternData"
	if err := c.pwmOnly(op); err != nil {
		return err
	}
	if len(vels) != len(freqs) || len(vels) != len(datas) {
		return axt.Errorf(axt.CNTDimensionError, op,
			"%d velocities, %d frequencies, %d data", len(vels), len(freqs), len(datas))
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.pwm.writableLocked(op, c.no); err != nil {
		return err
	}
	if len(c.pwm.buckets) == 0 {
		return axt.Errorf(axt.CNTInvalidUse, op, "velocity table not laid out")
	}
	for i, v := range vels {
		if c.pwm.bucketIndex(v) < 0 {
			return axt.Errorf(axt.CNTInvalidVelocity, op, "velocity %g outside %g..%g",
				v, c.pwm.minVel, c.pwm.maxVel)
		}
		if err := c.pwm.checkPairLocked(op, freqs[i], datas[i]); err != nil {
			return err
		}
	}
	for i, v := range vels {
		c.pwm.buckets[c.pwm.bucketIndex(v)] = pwmBucket{freq: freqs[i], data: datas[i], set: true}
	}
	c.m.log.Info("pwm pattern loaded", zap.Int("channel", c.no), zap.Int("entries", len(vels)))
	return nil
}

// SetPWMData fills one velocity bucket.
func (c *Channel) SetPWMData(vel, freq, data float64) error {
	const op = "axc.TriggerSetPwmData"
	if err := c.pwmOnly(op); err != nil {
		return err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.pwm.writableLocked(op, c.no); err != nil {
		return err
	}
	if len(c.pwm.buckets) == 0 {
		return axt.Errorf(axt.CNTInvalidUse, op, "velocity table not laid out")
	}
	idx := c.pwm.bucketIndex(vel)
	if idx < 0 {
		return axt.Errorf(axt.CNTInvalidVelocity, op, "velocity %g outside %g..%g",
			vel, c.pwm.minVel, c.pwm.maxVel)
	}
	if err := c.pwm.checkPairLocked(op, freq, data); err != nil {
		return err
	}
	c.pwm.buckets[idx] = pwmBucket{freq: freq, data: data, set: true}
	return nil
}

// PWMData returns the emission pair of the bucket a velocity falls in.
func (c *Channel) PWMData(vel float64) (freq, data float64, err error) {
	const op = "axc.TriggerGetPwmData"
	if err := c.pwmOnly(op); err != nil {
		return 0, 0, err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	idx := c.pwm.bucketIndex(vel)
	if idx < 0 {
		return 0, 0, axt.Errorf(axt.CNTInvalidVelocity, op, "velocity %g outside %g..%g",
			vel, c.pwm.minVel, c.pwm.maxVel)
	}
	b := c.pwm.buckets[idx]
	return b.freq, b.data, nil
}

// PWMOutput returns the live emission pair; zeros when the stage is
// off or the current velocity maps to no bucket.
func (c *Channel) PWMOutput() (freq, data float64) {
	if c.pwm == nil {
		return 0, 0
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.pwm.curFreq, c.pwm.curData
}

// pwmTickLocked refreshes the live emission pair after the channel
// velocities of this tick are in.
func (c *Channel) pwmTickLocked() {
	p := c.pwm
	if !p.enabled {
		return
	}
	switch p.outMode {
	case PWMManual:
		p.curFreq, p.curData = p.manualFreq, p.manualData
	case PWMAuto:
		idx := p.bucketIndex(c.vel2DLocked())
		if idx < 0 || !p.buckets[idx].set {
			p.curFreq, p.curData = 0, 0
			return
		}
		p.curFreq, p.curData = p.buckets[idx].freq, p.buckets[idx].data
	}
}
