// Status and interrupt publishing onto the WebSocket hub
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"axl-go/pkg/axl"
	"axl-go/pkg/event"
	"axl-go/pkg/metrics"
)

// Publisher periodically snapshots axis status onto the hub and relays
// interrupt events from the library's flag banks.
type Publisher struct {
	log *zap.Logger
	lib *axl.Library
	hub *Hub
	rm  *metrics.RackMetrics

	quit chan struct{}
	wg   sync.WaitGroup
	subs []*event.Subscription
}

func NewPublisher(log *zap.Logger, lib *axl.Library, hub *Hub, rm *metrics.RackMetrics) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		log:  log,
		lib:  lib,
		hub:  hub,
		rm:   rm,
		quit: make(chan struct{}),
	}
}

// Start begins publishing: status snapshots every period, interrupt
// events as they are raised.
func (p *Publisher) Start(period time.Duration) {
	if period <= 0 {
		period = 100 * time.Millisecond
	}

	mask := event.HomeDone | event.MotionDone | event.MotionStart |
		event.StopDone | event.SoftLimitHit | event.EndLimitHit |
		event.ServoAlarm | event.SignalCapture
	ev := p.lib.Events()
	for no := 0; no < p.lib.Motion().AxisCount(); no++ {
		sub := ev.SubscribeChannel(event.AxisBank(no), mask, 64)
		p.subs = append(p.subs, sub)
		p.wg.Add(1)
		go p.relay(no, sub)
	}

	p.wg.Add(1)
	go p.snapshotLoop(period)
}

// Stop halts the publisher and closes its subscriptions.
func (p *Publisher) Stop() {
	close(p.quit)
	for _, sub := range p.subs {
		sub.Close()
	}
	p.wg.Wait()
}

func (p *Publisher) relay(axisNo int, sub *event.Subscription) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			p.hub.Broadcast(NewStreamMessage(MsgInterrupt, map[string]interface{}{
				"axis": axisNo,
				"bits": ev.Bits,
				"time": ev.Time,
			}))
		}
	}
}

func (p *Publisher) snapshotLoop(period time.Duration) {
	defer p.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			p.publishStatus()
		}
	}
}

func (p *Publisher) publishStatus() {
	mc := p.lib.Motion()
	axes := make([]map[string]interface{}, 0, mc.AxisCount())
	inMotion := 0
	for no := 0; no < mc.AxisCount(); no++ {
		ax, err := mc.Axis(no)
		if err != nil {
			continue
		}
		info, err := ax.MotionInfo()
		if err != nil {
			continue
		}
		if info.InMotion {
			inMotion++
		}
		labels := metrics.AxisLabels(no)
		p.rm.AxisCmdPos.Set(labels, info.CmdPos)
		p.rm.AxisActPos.Set(labels, info.ActPos)
		if info.ServoOn {
			p.rm.ServoOn.Set(labels, 1)
		} else {
			p.rm.ServoOn.Set(labels, 0)
		}
		axes = append(axes, map[string]interface{}{
			"axis":      no,
			"cmd_pos":   info.CmdPos,
			"act_pos":   info.ActPos,
			"vel":       info.Vel,
			"in_motion": info.InMotion,
			"servo_on":  info.ServoOn,
			"alarm":     info.Alarm,
		})
	}
	p.rm.AxesInMotion.Set(nil, float64(inMotion))
	p.rm.EventsDropped.Set(nil, float64(p.lib.Events().Dropped()))

	d := p.lib.DIO()
	for i := 0; i < d.ModuleCount(); i++ {
		mod, err := d.Module(i)
		if err != nil {
			continue
		}
		if faults, err := mod.GatewayFaults(); err == nil {
			p.rm.GatewayFaults.Set(metrics.ModuleLabels(i), float64(faults))
		}
	}

	if p.hub.ClientCount() > 0 {
		p.hub.Broadcast(NewStreamMessage(MsgAxisStatus, map[string]interface{}{
			"rack_time": p.lib.Rack().Now(),
			"axes":      axes,
		}))
	}
}
