// Remote Modbus-TCP gateway backend for digital modules
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package dio

import (
	"net"
	"sync"
	"time"

	modbus "github.com/hootrhino/gomodbus"
	"go.uber.org/zap"

	"axl-go/pkg/axt"
)

// GatewayConfig describes the remote I-O device a module mirrors. The
// device exposes its contact images as holding registers, one 16-bit
// word per register, inputs at InBase and outputs at OutBase.
type GatewayConfig struct {
	Address string // host:port of the Modbus-TCP device
	SlaveID uint16
	InBase  uint16
	OutBase uint16
	Period  time.Duration // refresh period, 50 ms when zero
	Timeout time.Duration // per-request timeout, 1 s when zero
}

// gateway runs the background refresh loop of one mirrored module:
// input registers are polled into the field image, and output writes
// are flushed whenever the logical image has changed.
type gateway struct {
	d      *Module
	log    *zap.Logger
	cfg    GatewayConfig
	conn   net.Conn
	client modbus.ModbusApi

	done chan struct{}
	wg   sync.WaitGroup

	mu        sync.Mutex
	faults    int
	lastFault error
}

// ConnectGateway attaches the module to a remote Modbus-TCP device and
// starts mirroring. The current output image is pushed on the first
// refresh pass.
func (d *Module) ConnectGateway(cfg GatewayConfig) error {
	const op = "axd.ConnectGateway"
	if cfg.Period <= 0 {
		cfg.Period = 50 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	conn, err := net.DialTimeout("tcp", cfg.Address, cfg.Timeout)
	if err != nil {
		return axt.Wrap(axt.DIOInvalidLink, op, err)
	}
	client := modbus.NewModbusTCPHandler(conn, cfg.Timeout)

	if err := d.attachGateway(op, cfg, conn, client); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// attachGateway installs a gateway built on any client, so tests can
// mirror through an in-process device.
func (d *Module) attachGateway(op string, cfg GatewayConfig, conn net.Conn, client modbus.ModbusApi) error {
	gw := &gateway{
		d:      d,
		log:    d.m.log.With(zap.Int("module", d.no), zap.String("gateway", cfg.Address)),
		cfg:    cfg,
		conn:   conn,
		client: client,
		done:   make(chan struct{}),
	}

	d.m.mu.Lock()
	if d.gw != nil {
		d.m.mu.Unlock()
		return axt.Errorf(axt.DIOInvalidUse, op, "module %d already mirrors a gateway", d.no)
	}
	d.gw = gw
	d.outDirty = true // push the held image on the first pass
	d.m.mu.Unlock()

	gw.wg.Add(1)
	go gw.run()
	gw.log.Info("gateway mirroring started",
		zap.Uint16("slave", cfg.SlaveID), zap.Duration("period", cfg.Period))
	return nil
}

// DisconnectGateway stops mirroring and returns the module to the
// local virtual wiring. The input image keeps its last mirrored state.
func (d *Module) DisconnectGateway() error {
	d.m.mu.Lock()
	gw := d.gw
	d.gw = nil
	d.m.mu.Unlock()
	if gw == nil {
		return axt.Errorf(axt.DIOInvalidUse, "axd.DisconnectGateway",
			"module %d has no gateway", d.no)
	}
	gw.stop()
	return nil
}

// GatewayConnected reports whether the module mirrors a remote device.
func (d *Module) GatewayConnected() bool {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.gw != nil
}

// GatewayFaults returns the refresh failure count and the most recent
// transport error.
func (d *Module) GatewayFaults() (int, error) {
	d.m.mu.Lock()
	gw := d.gw
	d.m.mu.Unlock()
	if gw == nil {
		return 0, nil
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return gw.faults, gw.lastFault
}

func (gw *gateway) stop() {
	close(gw.done)
	gw.wg.Wait()
	if gw.conn != nil {
		gw.conn.Close()
	}
	gw.log.Info("gateway mirroring stopped")
}

func (gw *gateway) run() {
	defer gw.wg.Done()
	tick := time.NewTicker(gw.cfg.Period)
	defer tick.Stop()
	for {
		select {
		case <-gw.done:
			return
		case <-tick.C:
			gw.refresh()
		}
	}
}

// refresh does one mirror pass: flush a dirty output image, then poll
// the input image. Transport failures leave the images unchanged and
// are retried on the next pass.
func (gw *gateway) refresh() {
	d := gw.d

	d.m.mu.Lock()
	flush := d.outDirty
	words := packWords(d.physOutLocked(), d.outBits)
	inWords := (d.inBits + widthWord - 1) / widthWord
	d.m.mu.Unlock()

	if flush && len(words) > 0 {
		if err := gw.client.WriteMultipleRegisters(gw.cfg.SlaveID, gw.cfg.OutBase, words); err != nil {
			gw.fault("output flush", err)
			return
		}
		d.m.mu.Lock()
		d.outDirty = false
		d.m.mu.Unlock()
	}

	if inWords == 0 {
		return
	}
	regs, err := gw.client.ReadHoldingRegisters(gw.cfg.SlaveID, gw.cfg.InBase, uint16(inWords))
	if err != nil {
		gw.fault("input poll", err)
		return
	}
	d.Inject(unpackWords(regs))
}

func (gw *gateway) fault(stage string, err error) {
	gw.mu.Lock()
	gw.faults++
	gw.lastFault = err
	n := gw.faults
	gw.mu.Unlock()
	gw.log.Warn("gateway refresh failed",
		zap.String("stage", stage), zap.Int("faults", n), zap.Error(err))
}

// physOutLocked is the electrical output image: the logical image with
// active-low contacts inverted.
func (d *Module) physOutLocked() uint32 {
	return (d.out ^ d.invOut) & mask(d.outBits)
}

// packWords splits a contact image into 16-bit register words, low
// word first.
func packWords(image uint32, bits int) []uint16 {
	n := (bits + widthWord - 1) / widthWord
	words := make([]uint16, n)
	for i := range words {
		words[i] = uint16(image >> (uint(i) * widthWord))
	}
	return words
}

// unpackWords reassembles a contact image from register words.
func unpackWords(words []uint16) uint32 {
	var image uint32
	for i, w := range words {
		if i >= 2 {
			break
		}
		image |= uint32(w) << (uint(i) * widthWord)
	}
	return image
}
