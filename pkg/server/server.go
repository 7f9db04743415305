// REST and WebSocket control server
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package server exposes one open Library over HTTP: a REST API under
// /api/v1 for topology, axis control, parameters, I/O and monitor
// sessions, a WebSocket hub streaming status deltas and interrupt
// events, JWT bearer auth with an argon2id-verified operator password,
// and the Prometheus text endpoint.
package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"axl-go/pkg/axl"
	"axl-go/pkg/axt"
	"axl-go/pkg/config"
	"axl-go/pkg/metrics"
	"axl-go/pkg/monitor"
	"axl-go/pkg/safety"
)

type Server struct {
	log     *zap.Logger
	cfg     config.ServerConfig
	lib     *axl.Library
	rm      *metrics.RackMetrics
	hub     *Hub
	auth    *Auth
	chain   *safety.Chain
	router  *gin.Engine
	httpSrv *http.Server

	mu       sync.Mutex
	sessions map[uuid.UUID]*monitor.Session
	archive  *monitor.Archive
}

// New builds the server over an open library. The monitor archive may
// be nil.
func New(log *zap.Logger, cfg config.ServerConfig, lib *axl.Library,
	rm *metrics.RackMetrics, chain *safety.Chain, archive *monitor.Archive) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if rm == nil {
		rm = metrics.NewRackMetrics(metrics.NewRegistry())
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		log:      log,
		cfg:      cfg,
		lib:      lib,
		rm:       rm,
		chain:    chain,
		auth:     NewAuth(cfg.PasswordHash, cfg.JWTSecret(), cfg.TokenTTL),
		sessions: make(map[uuid.UUID]*monitor.Session),
		archive:  archive,
	}
	s.hub = NewHub(log, rm)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.observeRequests())
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:         cfg.Bind,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Hub returns the streaming hub so the daemon can attach publishers.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins serving in the background.
func (s *Server) Start() {
	s.log.Info("control server starting", zap.String("bind", s.httpSrv.Addr))
	go s.hub.Run()
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("control server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("control server shutting down")
	s.closeSessions()
	s.hub.Stop()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", s.metricsText)

	v1 := s.router.Group("/api/v1")
	v1.POST("/auth/login", s.login)

	api := v1.Group("")
	api.Use(s.auth.Middleware())
	{
		api.GET("/info", s.getInfo)
		api.GET("/boards", s.listBoards)
		api.GET("/boards/:board/modules", s.listModules)

		axes := api.Group("/axes")
		{
			axes.GET("", s.listAxes)
			axes.GET("/:axis/status", s.getAxisStatus)
			axes.GET("/:axis/params", s.getAxisParams)
			axes.PUT("/:axis/params", s.putAxisParams)
			axes.POST("/:axis/servo", s.postServo)
			axes.POST("/:axis/move", s.postMove)
			axes.POST("/:axis/jog", s.postJog)
			axes.POST("/:axis/stop", s.postStop)
			axes.POST("/:axis/home", s.postHome)
			axes.GET("/:axis/home", s.getHomeResult)
			axes.POST("/:axis/alarm-reset", s.postAlarmReset)
		}

		api.POST("/estop", s.postEStop)
		api.GET("/estop", s.getEStop)
		api.POST("/estop/release", s.postEStopRelease)

		api.GET("/dio", s.getDIO)
		api.PUT("/dio/outputs/:offset", s.putDIOOutput)

		api.GET("/analog/inputs", s.getAnalogInputs)
		api.PUT("/analog/outputs/:channel", s.putAnalogOutput)

		api.GET("/counters", s.getCounters)
		api.PUT("/counters/:channel", s.putCounter)

		mon := api.Group("/monitor")
		{
			mon.POST("/sessions", s.postMonitorSession)
			mon.GET("/sessions", s.listMonitorSessions)
			mon.POST("/sessions/:id/start", s.startMonitorSession)
			mon.POST("/sessions/:id/stop", s.stopMonitorSession)
			mon.GET("/sessions/:id/data", s.readMonitorSession)
			mon.DELETE("/sessions/:id", s.deleteMonitorSession)
		}

		api.GET("/ws", s.serveWS)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": axl.Version,
	})
}

func (s *Server) metricsText(c *gin.Context) {
	s.rm.UpdateSystem()
	s.rm.RackTime.Set(nil, s.lib.Rack().Now())
	c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(s.rm.Registry().Gather()))
}

// observeRequests records per-request metrics and a debug log line.
func (s *Server) observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		s.rm.APIRequests.Inc(metrics.RequestLabels(c.Request.Method, path, status))
		s.rm.APILatency.Observe(metrics.Labels{"method": c.Request.Method}, time.Since(start).Seconds())
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("status", status),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// fail renders a status error: unknown-resource codes map to 404,
// everything else from the status table to 400, foreign errors to 500.
func fail(c *gin.Context, err error) {
	code := axt.CodeOf(err)
	status := http.StatusBadRequest
	switch code {
	case axt.UnknownError:
		status = http.StatusInternalServerError
	case axt.InvalidBoardNo, axt.InvalidModuleNo, axt.MotionInvalidAxisNo,
		axt.AIOInvalidModuleNo, axt.DIOInvalidModuleNo, axt.CNTInvalidModuleNo,
		axt.CNTInvalidChannelNo:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  uint32(code),
		"name":  code.String(),
	})
}

func axisParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("axis"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid axis number"})
		return 0, false
	}
	return n, true
}
