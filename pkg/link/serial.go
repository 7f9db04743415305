// Serial transport for the service link
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package link

import (
	"time"

	goserial "github.com/hootrhino/goserial"
	"go.uber.org/zap"

	"axl-go/pkg/axt"
)

// OpenSerial opens the service link over a serial port. The same
// timeout bounds the port reads and each request/response exchange.
func OpenSerial(log *zap.Logger, device string, baud int, timeout time.Duration) (*Link, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	port, err := goserial.Open(&goserial.Config{
		Address:  device,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  timeout,
	})
	if err != nil {
		return nil, axt.Wrap(axt.OpenError, "link.OpenSerial", err)
	}
	return New(log, port, timeout), nil
}
