// REST handlers: monitor sessions
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"axl-go/pkg/monitor"
)

type monitorItemSpec struct {
	Kind    string `json:"kind" binding:"required"`
	Name    string `json:"name"`
	Axis    int    `json:"axis"`
	Module  int    `json:"module"`
	Offset  int    `json:"offset"`
	Channel int    `json:"channel"`
}

type monitorSessionRequest struct {
	Items   []monitorItemSpec `json:"items" binding:"required"`
	Archive bool              `json:"archive"`
}

func (s *Server) buildItem(spec monitorItemSpec) (monitor.Item, error) {
	name := spec.Name
	if name == "" {
		name = spec.Kind
	}
	switch spec.Kind {
	case "axis_cmd_pos", "axis_act_pos", "axis_vel":
		ax, err := s.lib.Motion().Axis(spec.Axis)
		if err != nil {
			return monitor.Item{}, err
		}
		switch spec.Kind {
		case "axis_cmd_pos":
			return monitor.AxisCmdPos(name, ax), nil
		case "axis_act_pos":
			return monitor.AxisActPos(name, ax), nil
		default:
			return monitor.AxisVel(name, ax), nil
		}
	case "dio_in_word", "dio_out_word":
		mod, err := s.lib.DIO().Module(spec.Module)
		if err != nil {
			return monitor.Item{}, err
		}
		if spec.Kind == "dio_in_word" {
			return monitor.DIOInWord(name, mod, spec.Offset), nil
		}
		return monitor.DIOOutWord(name, mod, spec.Offset), nil
	case "analog_volt":
		in, err := s.lib.Analog().Input(spec.Channel)
		if err != nil {
			return monitor.Item{}, err
		}
		return monitor.AnalogVolt(name, in), nil
	case "counter_count":
		ch, err := s.lib.Counter().Channel(spec.Channel)
		if err != nil {
			return monitor.Item{}, err
		}
		return monitor.CounterCount(name, ch), nil
	default:
		return monitor.Item{}, fmt.Errorf("unknown item kind %q", spec.Kind)
	}
}

func (s *Server) postMonitorSession(c *gin.Context) {
	var req monitorSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items := make([]monitor.Item, 0, len(req.Items))
	for _, spec := range req.Items {
		item, err := s.buildItem(spec)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		items = append(items, item)
	}
	sess, err := monitor.NewSession(s.log, s.lib.Rack(), items...)
	if err != nil {
		fail(c, err)
		return
	}
	if req.Archive {
		if s.archive == nil {
			sess.Close()
			c.JSON(http.StatusBadRequest, gin.H{"error": "no archive configured"})
			return
		}
		if err := sess.SetArchive(s.archive); err != nil {
			fail(c, err)
			return
		}
	}
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{
		"id":    sess.ID().String(),
		"items": sess.ItemNames(),
	})
}

func (s *Server) listMonitorSessions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]gin.H, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sessions = append(sessions, gin.H{
			"id":       id.String(),
			"running":  sess.IsRunning(),
			"buffered": sess.Len(),
			"dropped":  sess.Dropped(),
			"items":    sess.ItemNames(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) sessionParam(c *gin.Context) (*monitor.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return nil, false
	}
	return sess, true
}

type monitorStartRequest struct {
	Period float64 `json:"period" binding:"required"`
}

func (s *Server) startMonitorSession(c *gin.Context) {
	sess, ok := s.sessionParam(c)
	if !ok {
		return
	}
	var req monitorStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := sess.Start(req.Period); err != nil {
		fail(c, err)
		return
	}
	s.rm.MonitorSessions.Inc(nil)
	c.JSON(http.StatusOK, gin.H{"id": sess.ID().String(), "running": true})
}

func (s *Server) stopMonitorSession(c *gin.Context) {
	sess, ok := s.sessionParam(c)
	if !ok {
		return
	}
	if err := sess.Stop(); err != nil {
		fail(c, err)
		return
	}
	s.rm.MonitorSessions.Dec(nil)
	c.JSON(http.StatusOK, gin.H{"id": sess.ID().String(), "running": false})
}

func (s *Server) readMonitorSession(c *gin.Context) {
	sess, ok := s.sessionParam(c)
	if !ok {
		return
	}
	max := 1024
	if q := c.Query("max"); q != "" {
		fmt.Sscanf(q, "%d", &max)
	}
	recs, err := sess.ReadData(max)
	if err != nil {
		fail(c, err)
		return
	}
	s.rm.MonitorDropped.Set(nil, float64(sess.Dropped()))
	c.JSON(http.StatusOK, gin.H{
		"id":      sess.ID().String(),
		"items":   sess.ItemNames(),
		"records": recs,
	})
}

func (s *Server) deleteMonitorSession(c *gin.Context) {
	sess, ok := s.sessionParam(c)
	if !ok {
		return
	}
	running := sess.IsRunning()
	sess.Close()
	if running {
		s.rm.MonitorSessions.Dec(nil)
	}
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
