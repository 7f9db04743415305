// REST handlers: digital, analog and counter I/O
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) getDIO(c *gin.Context) {
	d := s.lib.DIO()
	modules := make([]gin.H, 0, d.ModuleCount())
	for i := 0; i < d.ModuleCount(); i++ {
		boardNo, pos, moduleID, err := d.ModulePlacement(i)
		if err != nil {
			fail(c, err)
			return
		}
		mod, err := d.Module(i)
		if err != nil {
			fail(c, err)
			return
		}
		inputs, outputs := mod.ContactNum()
		in, err := mod.ReadInDword(0)
		if err != nil {
			fail(c, err)
			return
		}
		out, err := mod.ReadOutDword(0)
		if err != nil {
			fail(c, err)
			return
		}
		faults, err := mod.GatewayFaults()
		gw := gin.H{"connected": mod.GatewayConnected()}
		if err == nil {
			gw["faults"] = faults
		}
		modules = append(modules, gin.H{
			"module":    i,
			"board":     boardNo,
			"pos":       pos,
			"module_id": moduleID,
			"inputs":    inputs,
			"outputs":   outputs,
			"in":        in,
			"out":       out,
			"gateway":   gw,
		})
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

type outputRequest struct {
	Value uint32 `json:"value"`
}

// putDIOOutput writes one dword of the rack-wide output image.
func (s *Server) putDIOOutput(c *gin.Context) {
	offset, err := strconv.Atoi(c.Param("offset"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	var req outputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.lib.DIO().WriteOutport(offset, req.Value); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offset": offset, "value": req.Value})
}

func (s *Server) getAnalogInputs(c *gin.Context) {
	am := s.lib.Analog()
	channels := make([]gin.H, 0, am.InputCount())
	for no := 0; no < am.InputCount(); no++ {
		in, err := am.Input(no)
		if err != nil {
			fail(c, err)
			return
		}
		volt, err := in.ReadVolt()
		if err != nil {
			fail(c, err)
			return
		}
		minV, maxV := in.Range()
		channels = append(channels, gin.H{
			"channel": no,
			"module":  in.Module(),
			"volt":    volt,
			"min":     minV,
			"max":     maxV,
		})
	}
	c.JSON(http.StatusOK, gin.H{"inputs": channels})
}

type analogWriteRequest struct {
	Volt float64 `json:"volt"`
}

func (s *Server) putAnalogOutput(c *gin.Context) {
	no, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return
	}
	out, err := s.lib.Analog().Output(no)
	if err != nil {
		fail(c, err)
		return
	}
	var req analogWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := out.Write(req.Volt); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": no, "volt": req.Volt})
}

func (s *Server) getCounters(c *gin.Context) {
	cm := s.lib.Counter()
	channels := make([]gin.H, 0, cm.ChannelCount())
	for no := 0; no < cm.ChannelCount(); no++ {
		ch, err := cm.Channel(no)
		if err != nil {
			fail(c, err)
			return
		}
		capture, valid := ch.ReadCapture()
		entry := gin.H{
			"channel": no,
			"module":  ch.Module(),
			"count":   ch.Read(),
			"vel":     ch.Velocity(),
		}
		if valid {
			entry["capture"] = capture
		}
		channels = append(channels, entry)
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

type counterWriteRequest struct {
	Count *float64 `json:"count"`
	Clear bool     `json:"clear"`
}

func (s *Server) putCounter(c *gin.Context) {
	no, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return
	}
	ch, err := s.lib.Counter().Channel(no)
	if err != nil {
		fail(c, err)
		return
	}
	var req counterWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch {
	case req.Clear:
		ch.Clear()
	case req.Count != nil:
		if err := ch.Write(*req.Count); err != nil {
			fail(c, err)
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "count or clear required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": no, "count": ch.Read()})
}
