// mock-dio is a simulated Modbus-TCP remote I/O device for exercising
// the daemon's gateway mirroring without field hardware. It exposes a
// holding-register map with the input contact image at -in-base; axld
// writes its output image to -out-base.
//
// Usage:
//
//	mock-dio [-listen :1502] [-slave 1] [-in-base 0] [-in-words 2]
//	         [-pattern walking|static] [-value 0xffff] [-period 500ms]
//
// With the walking pattern a single set bit advances through the input
// words every period, which shows up as changing input reads on the
// daemon side. The static pattern holds -value in every input word.
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mbserver "github.com/hootrhino/mbserver"
	"github.com/hootrhino/mbserver/store"
)

func main() {
	listen := flag.String("listen", ":1502", "TCP listen address")
	slave := flag.Uint("slave", 1, "Modbus slave ID")
	inBase := flag.Uint("in-base", 0, "first input register")
	inWords := flag.Uint("in-words", 2, "input register count")
	outBase := flag.Uint("out-base", 16, "first output register")
	outWords := flag.Uint("out-words", 2, "output register count")
	pattern := flag.String("pattern", "walking", "input pattern: walking or static")
	value := flag.Uint("value", 0xffff, "input word value for the static pattern")
	period := flag.Duration("period", 500*time.Millisecond, "walking pattern step period")
	verbose := flag.Bool("verbose", false, "log Modbus traffic")
	flag.Parse()

	if *pattern != "walking" && *pattern != "static" {
		fmt.Fprintf(os.Stderr, "mock-dio: unknown pattern %q\n", *pattern)
		os.Exit(2)
	}

	// The store is shared across connections; the slave ID is not part
	// of the register model and only appears in the startup log.
	srv := mbserver.NewServer(store.NewInMemoryStore(), 4)
	srv.SetErrorHandler(func(err error) {
		log.Printf("modbus error: %v", err)
	})
	if *verbose {
		srv.SetLogger(os.Stdout)
	}

	// The register image covers both windows; the daemon reads inputs
	// from in-base and writes its output image to out-base.
	size := *inBase + *inWords
	if end := *outBase + *outWords; end > size {
		size = end
	}
	regs := make([]uint16, size)
	setInputs(regs, *inBase, *inWords, *pattern, uint16(*value), 0)
	if err := srv.SetHoldingRegisters(regs); err != nil {
		log.Fatalf("set holding registers: %v", err)
	}

	if err := srv.Start(*listen); err != nil {
		log.Fatalf("start server: %v", err)
	}
	defer srv.Stop()
	log.Printf("mock-dio listening on %s (slave %d, inputs @%d x%d, outputs @%d x%d, %s pattern)",
		*listen, *slave, *inBase, *inWords, *outBase, *outWords, *pattern)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *pattern == "static" {
		<-sigCh
		log.Println("mock-dio stopped")
		return
	}

	// Walking pattern: one set bit advances through the input image.
	// Each refresh rewrites the whole register map, so output writes
	// from the daemon are visible to other readers only until the next
	// step; the daemon itself never reads them back.
	tick := time.NewTicker(*period)
	defer tick.Stop()
	step := 0
	for {
		select {
		case <-sigCh:
			log.Println("mock-dio stopped")
			return
		case <-tick.C:
			step++
			setInputs(regs, *inBase, *inWords, "walking", 0, step)
			if err := srv.SetHoldingRegisters(regs); err != nil {
				log.Printf("refresh failed: %v", err)
			}
		}
	}
}

// setInputs writes the input window of the register image.
func setInputs(regs []uint16, base, words uint, pattern string, value uint16, step int) {
	if pattern == "static" {
		for i := uint(0); i < words; i++ {
			regs[base+i] = value
		}
		return
	}
	bit := uint(step) % (words * 16)
	for i := uint(0); i < words; i++ {
		regs[base+i] = 0
	}
	regs[base+bit/16] = 1 << (bit % 16)
}
