// REST handlers: topology, axis control, parameters
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"axl-go/pkg/axl"
	"axl-go/pkg/metrics"
	"axl-go/pkg/param"
	"axl-go/pkg/safety"
)

func (s *Server) getInfo(c *gin.Context) {
	topo := s.lib.Topology()
	c.JSON(http.StatusOK, gin.H{
		"version":          axl.Version,
		"boards":           topo.BoardCount(),
		"modules":          topo.TotalModuleCount(),
		"axes":             topo.AxisCount(),
		"counter_channels": topo.CounterChannelCount(),
		"analog_inputs":    topo.AIChannelCount(),
		"analog_outputs":   topo.AOChannelCount(),
		"rack_time":        s.lib.Rack().Now(),
		"estop":            s.chain.Tripped(),
	})
}

func (s *Server) listBoards(c *gin.Context) {
	topo := s.lib.Topology()
	boards := make([]gin.H, 0, topo.BoardCount())
	for no := 0; no < topo.BoardCount(); no++ {
		b, err := topo.Board(no)
		if err != nil {
			fail(c, err)
			return
		}
		boards = append(boards, gin.H{
			"board":   b.No,
			"type_id": b.TypeID,
			"address": b.Address,
			"version": b.Version,
			"modules": len(b.Modules),
		})
	}
	c.JSON(http.StatusOK, gin.H{"boards": boards})
}

func (s *Server) listModules(c *gin.Context) {
	boardNo, err := strconv.Atoi(c.Param("board"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid board number"})
		return
	}
	topo := s.lib.Topology()
	b, err2 := topo.Board(boardNo)
	if err2 != nil {
		fail(c, err2)
		return
	}
	modules := make([]gin.H, 0, len(b.Modules))
	for _, m := range b.Modules {
		modules = append(modules, gin.H{
			"module":  m.No,
			"pos":     m.Pos,
			"type_id": m.Info.TypeID,
			"name":    m.Info.Name,
			"class":   m.Info.Class.String(),
			"axes":    m.AxisCount,
			"version": m.Info.Version,
		})
	}
	c.JSON(http.StatusOK, gin.H{"board": boardNo, "modules": modules})
}

func (s *Server) listAxes(c *gin.Context) {
	mc := s.lib.Motion()
	axes := make([]gin.H, 0, mc.AxisCount())
	for no := 0; no < mc.AxisCount(); no++ {
		ax, err := mc.Axis(no)
		if err != nil {
			fail(c, err)
			return
		}
		info, err := ax.MotionInfo()
		if err != nil {
			fail(c, err)
			return
		}
		axes = append(axes, gin.H{
			"axis":      no,
			"cmd_pos":   info.CmdPos,
			"act_pos":   info.ActPos,
			"vel":       info.Vel,
			"in_motion": info.InMotion,
			"servo_on":  info.ServoOn,
			"alarm":     info.Alarm,
		})
	}
	c.JSON(http.StatusOK, gin.H{"axes": axes})
}

func (s *Server) getAxisStatus(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	info, err := ax.MotionInfo()
	if err != nil {
		fail(c, err)
		return
	}
	negLimit, posLimit, err := ax.ReadLimitStatus()
	if err != nil {
		fail(c, err)
		return
	}
	home, err := ax.ReadHomeSensor()
	if err != nil {
		fail(c, err)
		return
	}
	stop, err := ax.ReadStopCause()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"axis":       no,
		"cmd_pos":    info.CmdPos,
		"act_pos":    info.ActPos,
		"vel":        info.Vel,
		"in_motion":  info.InMotion,
		"servo_on":   info.ServoOn,
		"alarm":      info.Alarm,
		"neg_limit":  negLimit != 0,
		"pos_limit":  posLimit != 0,
		"home_input": home != 0,
		"stop_cause": int(stop),
	})
}

func (s *Server) getAxisParams(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	rec, err := ax.Parameters()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) putAxisParams(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	var rec param.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec.AxisNo = no
	if err := ax.SetParameters(rec); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"axis": no, "updated": true})
}

type servoRequest struct {
	On bool `json:"on"`
}

func (s *Server) postServo(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	if s.refuseTripped(c) {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	var req servoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ax.ServoOn(req.On); err != nil {
		fail(c, err)
		return
	}
	if req.On {
		s.rm.ServoOn.Set(metrics.AxisLabels(no), 1)
	} else {
		s.rm.ServoOn.Set(metrics.AxisLabels(no), 0)
	}
	c.JSON(http.StatusOK, gin.H{"axis": no, "servo_on": req.On})
}

type moveRequest struct {
	Pos   float64 `json:"pos"`
	Vel   float64 `json:"vel" binding:"required"`
	Accel float64 `json:"accel" binding:"required"`
	Decel float64 `json:"decel"`
}

func (s *Server) postMove(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	if s.refuseTripped(c) {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Decel == 0 {
		req.Decel = req.Accel
	}
	if err := ax.MoveStartPos(req.Pos, req.Vel, req.Accel, req.Decel); err != nil {
		fail(c, err)
		return
	}
	s.rm.MovesStarted.Inc(metrics.AxisLabels(no))
	c.JSON(http.StatusAccepted, gin.H{"axis": no, "target": req.Pos})
}

type jogRequest struct {
	Vel   float64 `json:"vel" binding:"required"`
	Accel float64 `json:"accel" binding:"required"`
	Decel float64 `json:"decel"`
}

func (s *Server) postJog(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	if s.refuseTripped(c) {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	var req jogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Decel == 0 {
		req.Decel = req.Accel
	}
	if err := ax.MoveVel(req.Vel, req.Accel, req.Decel); err != nil {
		fail(c, err)
		return
	}
	s.rm.MovesStarted.Inc(metrics.AxisLabels(no))
	c.JSON(http.StatusAccepted, gin.H{"axis": no, "vel": req.Vel})
}

type stopRequest struct {
	Decel     float64 `json:"decel"`
	Emergency bool    `json:"emergency"`
}

func (s *Server) postStop(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Emergency {
		err = ax.EStop()
	} else if req.Decel > 0 {
		err = ax.Stop(req.Decel)
	} else {
		err = ax.SStop()
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"axis": no, "stopped": true})
}

func (s *Server) postHome(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	if s.refuseTripped(c) {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	if err := ax.HomeSetStart(); err != nil {
		fail(c, err)
		return
	}
	s.rm.HomingAttempts.Inc(metrics.AxisLabels(no))
	c.JSON(http.StatusAccepted, gin.H{"axis": no, "homing": true})
}

func (s *Server) getHomeResult(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	result, err := ax.HomeGetResult()
	if err != nil {
		fail(c, err)
		return
	}
	main, sub, err := ax.HomeGetRate()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"axis":     no,
		"result":   int(result),
		"rate":     main,
		"sub_rate": sub,
	})
}

func (s *Server) postAlarmReset(c *gin.Context) {
	no, ok := axisParam(c)
	if !ok {
		return
	}
	ax, err := s.lib.Motion().Axis(no)
	if err != nil {
		fail(c, err)
		return
	}
	if err := ax.AlarmReset(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"axis": no, "alarm_reset": true})
}

type estopRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) postEStop(c *gin.Context) {
	var req estopRequest
	c.ShouldBindJSON(&req) // body optional
	s.chain.Trip(safety.ReasonOperator, req.Reason)
	s.rm.EStops.Inc(nil)
	s.hub.Broadcast(NewStreamMessage(MsgEStop, gin.H{
		"tripped": true,
		"reason":  string(safety.ReasonOperator),
		"msg":     req.Reason,
	}))
	c.JSON(http.StatusOK, gin.H{"tripped": true})
}

func (s *Server) getEStop(c *gin.Context) {
	state, reason, msg, at := s.chain.Info()
	resp := gin.H{
		"state":  state.String(),
		"reason": string(reason),
		"msg":    msg,
	}
	if !at.IsZero() {
		resp["tripped_at"] = at
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) postEStopRelease(c *gin.Context) {
	if err := s.chain.Release(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.hub.Broadcast(NewStreamMessage(MsgEStop, gin.H{"tripped": false}))
	c.JSON(http.StatusOK, gin.H{"released": true})
}

// refuseTripped rejects motion commands while the safety chain is
// latched.
func (s *Server) refuseTripped(c *gin.Context) bool {
	if s.chain.Tripped() {
		c.JSON(http.StatusLocked, gin.H{"error": "safety chain is tripped"})
		return true
	}
	return false
}
