// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"axl-go/pkg/axl"
	"axl-go/pkg/config"
	"axl-go/pkg/metrics"
	"axl-go/pkg/safety"
)

type testRig struct {
	lib   *axl.Library
	srv   *Server
	chain *safety.Chain
	token string
}

func newTestRig(t *testing.T, withAuth bool) *testRig {
	t.Helper()
	lib, err := axl.Open(axl.Config{
		LockPath: filepath.Join(t.TempDir(), "axl.lock"),
	})
	if err != nil {
		t.Fatalf("axl.Open: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	cfg := config.ServerConfig{
		Bind:         "127.0.0.1:0",
		JWTSecretEnv: "AXL_TEST_JWT_SECRET",
		TokenTTL:     time.Hour,
	}
	if withAuth {
		hash, err := HashPassword("hunter2")
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		cfg.PasswordHash = hash
	}

	chain := safety.NewChain(nil)
	for no := 0; no < lib.Motion().AxisCount(); no++ {
		ax, err := lib.Motion().Axis(no)
		if err != nil {
			t.Fatalf("Axis(%d): %v", no, err)
		}
		chain.RegisterAxis("axis", ax)
	}

	rig := &testRig{
		lib:   lib,
		chain: chain,
		srv: New(nil, cfg, lib,
			metrics.NewRackMetrics(metrics.NewRegistry()), chain, nil),
	}
	if withAuth {
		rig.token = rig.loginToken(t)
	}
	return rig
}

func (r *testRig) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	w := httptest.NewRecorder()
	r.srv.router.ServeHTTP(w, req)
	return w
}

func (r *testRig) loginToken(t *testing.T) string {
	t.Helper()
	w := r.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealthAndInfo(t *testing.T) {
	r := newTestRig(t, false)

	w := r.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}

	w = r.do(t, http.MethodGet, "/api/v1/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("info: %d %s", w.Code, w.Body.String())
	}
	var info struct {
		Version string `json:"version"`
		Axes    int    `json:"axes"`
		Boards  int    `json:"boards"`
	}
	decode(t, w, &info)
	if info.Version != axl.Version || info.Axes != 8 || info.Boards != 1 {
		t.Errorf("info = %+v", info)
	}
}

func TestAuthRequired(t *testing.T) {
	r := newTestRig(t, true)

	// No token: rejected.
	noAuth := &testRig{lib: r.lib, srv: r.srv, chain: r.chain}
	w := noAuth.do(t, http.MethodGet, "/api/v1/info", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated info: %d", w.Code)
	}

	// Bad password: rejected.
	w = noAuth.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", w.Code)
	}

	// Valid token: accepted.
	w = r.do(t, http.MethodGet, "/api/v1/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated info: %d %s", w.Code, w.Body.String())
	}
}

func TestTopologyRoutes(t *testing.T) {
	r := newTestRig(t, false)

	w := r.do(t, http.MethodGet, "/api/v1/boards", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("boards: %d", w.Code)
	}

	w = r.do(t, http.MethodGet, "/api/v1/boards/0/modules", nil)
	var mods struct {
		Modules []struct {
			Class string `json:"class"`
		} `json:"modules"`
	}
	decode(t, w, &mods)
	if len(mods.Modules) != 7 {
		t.Fatalf("modules = %d, want 7", len(mods.Modules))
	}
	if mods.Modules[2].Class != "dio" {
		t.Errorf("module 2 class = %q", mods.Modules[2].Class)
	}

	w = r.do(t, http.MethodGet, "/api/v1/boards/9/modules", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("bad board: %d", w.Code)
	}
}

func TestAxisMoveFlow(t *testing.T) {
	r := newTestRig(t, false)

	w := r.do(t, http.MethodPost, "/api/v1/axes/0/servo", map[string]bool{"on": true})
	if w.Code != http.StatusOK {
		t.Fatalf("servo: %d %s", w.Code, w.Body.String())
	}

	w = r.do(t, http.MethodPost, "/api/v1/axes/0/move",
		map[string]float64{"pos": 50, "vel": 1000, "accel": 4000})
	if w.Code != http.StatusAccepted {
		t.Fatalf("move: %d %s", w.Code, w.Body.String())
	}

	for i := 0; i < 1200; i++ {
		r.lib.Rack().Step(0.001)
	}

	w = r.do(t, http.MethodGet, "/api/v1/axes/0/status", nil)
	var st struct {
		CmdPos   float64 `json:"cmd_pos"`
		InMotion bool    `json:"in_motion"`
	}
	decode(t, w, &st)
	if st.InMotion || st.CmdPos != 50 {
		t.Errorf("status after move = %+v", st)
	}

	// A busy axis rejects the next move.
	w = r.do(t, http.MethodPost, "/api/v1/axes/0/move",
		map[string]float64{"pos": 500, "vel": 100, "accel": 400})
	if w.Code != http.StatusAccepted {
		t.Fatalf("second move: %d %s", w.Code, w.Body.String())
	}
	w = r.do(t, http.MethodPost, "/api/v1/axes/0/move",
		map[string]float64{"pos": 10, "vel": 1000, "accel": 4000})
	if w.Code != http.StatusBadRequest {
		t.Errorf("move while busy: %d", w.Code)
	}

	w = r.do(t, http.MethodGet, "/api/v1/axes/99/status", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("bad axis: %d", w.Code)
	}
}

func TestEStopRoutes(t *testing.T) {
	r := newTestRig(t, false)

	r.do(t, http.MethodPost, "/api/v1/axes/0/servo", map[string]bool{"on": true})

	w := r.do(t, http.MethodPost, "/api/v1/estop", map[string]string{"reason": "test"})
	if w.Code != http.StatusOK {
		t.Fatalf("estop: %d", w.Code)
	}

	// Tripped chain refuses motion.
	w = r.do(t, http.MethodPost, "/api/v1/axes/0/move",
		map[string]float64{"pos": 10, "vel": 100, "accel": 400})
	if w.Code != http.StatusLocked {
		t.Fatalf("move while tripped: %d", w.Code)
	}

	w = r.do(t, http.MethodGet, "/api/v1/estop", nil)
	var st struct {
		State  string `json:"state"`
		Reason string `json:"reason"`
	}
	decode(t, w, &st)
	if st.State != "tripped" || st.Reason != "operator" {
		t.Errorf("estop status = %+v", st)
	}

	w = r.do(t, http.MethodPost, "/api/v1/estop/release", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("release: %d", w.Code)
	}
	w = r.do(t, http.MethodPost, "/api/v1/estop/release", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("double release: %d", w.Code)
	}
}

func TestDIORoutes(t *testing.T) {
	r := newTestRig(t, false)

	w := r.do(t, http.MethodPut, "/api/v1/dio/outputs/0",
		map[string]uint32{"value": 0xa5a5})
	if w.Code != http.StatusOK {
		t.Fatalf("write output: %d %s", w.Code, w.Body.String())
	}

	w = r.do(t, http.MethodGet, "/api/v1/dio", nil)
	var dio struct {
		Modules []struct {
			Out uint32 `json:"out"`
		} `json:"modules"`
	}
	decode(t, w, &dio)
	if len(dio.Modules) != 1 {
		t.Fatalf("dio modules = %d", len(dio.Modules))
	}
	if dio.Modules[0].Out != 0xa5a5 {
		t.Errorf("out image = %#x", dio.Modules[0].Out)
	}
}

func TestMonitorRoutes(t *testing.T) {
	r := newTestRig(t, false)

	w := r.do(t, http.MethodPost, "/api/v1/monitor/sessions", map[string]interface{}{
		"items": []map[string]interface{}{
			{"kind": "axis_cmd_pos", "axis": 0, "name": "a0"},
			{"kind": "counter_count", "channel": 0},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	base := "/api/v1/monitor/sessions/" + created.ID
	w = r.do(t, http.MethodPost, base+"/start", map[string]float64{"period": 0.010})
	if w.Code != http.StatusOK {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}

	for i := 0; i < 100; i++ {
		r.lib.Rack().Step(0.001)
	}

	w = r.do(t, http.MethodGet, base+"/data?max=5", nil)
	var data struct {
		Records []struct {
			Seq    uint64    `json:"Seq"`
			Values []float64 `json:"Values"`
		} `json:"records"`
	}
	decode(t, w, &data)
	if len(data.Records) != 5 {
		t.Fatalf("records = %d, want 5", len(data.Records))
	}
	if len(data.Records[0].Values) != 2 {
		t.Errorf("record width = %d", len(data.Records[0].Values))
	}

	w = r.do(t, http.MethodPost, base+"/stop", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stop: %d", w.Code)
	}
	w = r.do(t, http.MethodDelete, base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	w = r.do(t, http.MethodGet, base+"/data", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("data after delete: %d", w.Code)
	}

	// Archive requested but none configured.
	w = r.do(t, http.MethodPost, "/api/v1/monitor/sessions", map[string]interface{}{
		"archive": true,
		"items":   []map[string]interface{}{{"kind": "axis_vel", "axis": 0}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("archive without DSN: %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRig(t, false)

	r.do(t, http.MethodGet, "/api/v1/info", nil)

	w := r.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "axl_api_requests_total") {
		t.Error("request counter missing from exposition")
	}
	if !strings.Contains(body, "axl_go_goroutines") {
		t.Error("runtime gauges missing from exposition")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	ok, err := VerifyPassword("s3cret", hash)
	if err != nil || !ok {
		t.Fatalf("verify correct = %v, %v", ok, err)
	}
	ok, err = VerifyPassword("wrong", hash)
	if err != nil || ok {
		t.Fatalf("verify wrong = %v, %v", ok, err)
	}
	if _, err := VerifyPassword("x", "not-a-hash"); err == nil {
		t.Fatal("malformed hash accepted")
	}
}

func TestTokenValidation(t *testing.T) {
	a := NewAuth("", []byte("secret-a"), time.Minute)
	b := NewAuth("", []byte("secret-b"), time.Minute)

	hash, _ := HashPassword("pw")
	a.passwordHash = hash
	token, err := a.Login("op", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	operator, err := a.Validate(token)
	if err != nil || operator != "op" {
		t.Fatalf("Validate = %q, %v", operator, err)
	}
	if _, err := b.Validate(token); err == nil {
		t.Fatal("token accepted across secrets")
	}
}
