// axlctl is the operator command line for a running axld daemon. It
// drives axes, inspects rack state, manages axis parameters and runs
// scripted motion jobs over the REST API.
//
// Usage:
//
//	axlctl [-server http://host:8417] <command> [options]
//
// Commands:
//
//	info                       Rack summary
//	status  -axis N            Axis status (all axes when -axis is omitted)
//	servo   -axis N -on        Switch a drive on or off
//	move    -axis N -pos P -vel V -accel A [-decel D] [-wait]
//	jog     -axis N -vel V -accel A
//	stop    -axis N [-decel D] [-emergency]
//	home    -axis N [-wait]
//	estop   [-reason text]     Trip the safety chain
//	release                    Release a tripped safety chain
//	params  -axis N            Print axis parameters
//	params-save -file F        Save all axis parameters to a YAML file
//	params-load -file F        Load axis parameters from a YAML file
//	output  -offset N -value V Write a digital output word
//	monitor -items SPEC -period S -duration S   Sample to CSV on stdout
//	job     -file F            Run a scripted YAML job
//	hash-password              Hash a password for the server config
//
// The server address and bearer token come from -server/-token or the
// AXL_SERVER and AXL_TOKEN environment variables. login obtains a
// token:
//
//	axlctl login -password secret
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "info":
		err = cmdInfo(args)
	case "status":
		err = cmdStatus(args)
	case "servo":
		err = cmdServo(args)
	case "move":
		err = cmdMove(args)
	case "jog":
		err = cmdJog(args)
	case "stop":
		err = cmdStop(args)
	case "home":
		err = cmdHome(args)
	case "estop":
		err = cmdEStop(args)
	case "release":
		err = cmdRelease(args)
	case "params":
		err = cmdParams(args)
	case "params-save":
		err = cmdParamsSave(args)
	case "params-load":
		err = cmdParamsLoad(args)
	case "output":
		err = cmdOutput(args)
	case "monitor":
		err = cmdMonitor(args)
	case "job":
		err = cmdJob(args)
	case "login":
		err = cmdLogin(args)
	case "hash-password":
		err = cmdHashPassword(args)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "axlctl: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "axlctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: axlctl <command> [options]

commands:
  info status servo move jog stop home estop release
  params params-save params-load output monitor job
  login hash-password

run "axlctl <command> -h" for command options`)
}

// newFlags builds a command flag set carrying the shared client flags.
func newFlags(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	server := fs.String("server", envDefault("AXL_SERVER", "http://127.0.0.1:8417"),
		"axld base URL")
	token := fs.String("token", os.Getenv("AXL_TOKEN"), "bearer token")
	return fs, server, token
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func cmdInfo(args []string) error {
	fs, server, token := newFlags("info")
	fs.Parse(args)
	c := newClient(*server, *token)

	var info struct {
		Version         string  `json:"version"`
		Boards          int     `json:"boards"`
		Modules         int     `json:"modules"`
		Axes            int     `json:"axes"`
		CounterChannels int     `json:"counter_channels"`
		RackTime        float64 `json:"rack_time"`
		EStop           bool    `json:"estop"`
	}
	if err := c.get("/api/v1/info", &info); err != nil {
		return err
	}
	fmt.Printf("version:  %s\n", info.Version)
	fmt.Printf("boards:   %d\n", info.Boards)
	fmt.Printf("modules:  %d\n", info.Modules)
	fmt.Printf("axes:     %d\n", info.Axes)
	fmt.Printf("counters: %d\n", info.CounterChannels)
	fmt.Printf("racktime: %.3f s\n", info.RackTime)
	fmt.Printf("estop:    %v\n", info.EStop)
	return nil
}

type axisStatus struct {
	Axis     int     `json:"axis"`
	CmdPos   float64 `json:"cmd_pos"`
	ActPos   float64 `json:"act_pos"`
	Vel      float64 `json:"vel"`
	InMotion bool    `json:"in_motion"`
	ServoOn  bool    `json:"servo_on"`
	Alarm    bool    `json:"alarm"`
}

func printAxis(st axisStatus) {
	state := "idle"
	if st.InMotion {
		state = "moving"
	}
	if st.Alarm {
		state = "ALARM"
	}
	servo := "off"
	if st.ServoOn {
		servo = "on"
	}
	fmt.Printf("axis %d: cmd=%.3f act=%.3f vel=%.3f servo=%s %s\n",
		st.Axis, st.CmdPos, st.ActPos, st.Vel, servo, state)
}

func cmdStatus(args []string) error {
	fs, server, token := newFlags("status")
	axis := fs.Int("axis", -1, "axis number (all when omitted)")
	fs.Parse(args)
	c := newClient(*server, *token)

	if *axis >= 0 {
		var st axisStatus
		if err := c.get(fmt.Sprintf("/api/v1/axes/%d/status", *axis), &st); err != nil {
			return err
		}
		printAxis(st)
		return nil
	}
	var list struct {
		Axes []axisStatus `json:"axes"`
	}
	if err := c.get("/api/v1/axes", &list); err != nil {
		return err
	}
	for _, st := range list.Axes {
		printAxis(st)
	}
	return nil
}

func cmdServo(args []string) error {
	fs, server, token := newFlags("servo")
	axis := fs.Int("axis", 0, "axis number")
	on := fs.Bool("on", false, "servo on")
	off := fs.Bool("off", false, "servo off")
	fs.Parse(args)
	c := newClient(*server, *token)

	if *on == *off {
		return fmt.Errorf("specify exactly one of -on or -off")
	}
	return c.post(fmt.Sprintf("/api/v1/axes/%d/servo", *axis),
		map[string]bool{"on": *on}, nil)
}

func cmdMove(args []string) error {
	fs, server, token := newFlags("move")
	axis := fs.Int("axis", 0, "axis number")
	pos := fs.Float64("pos", 0, "target position (units)")
	vel := fs.Float64("vel", 0, "velocity (units/s)")
	accel := fs.Float64("accel", 0, "acceleration (units/s^2)")
	decel := fs.Float64("decel", 0, "deceleration (defaults to accel)")
	wait := fs.Bool("wait", false, "block until the move completes")
	fs.Parse(args)
	c := newClient(*server, *token)

	body := map[string]float64{"pos": *pos, "vel": *vel, "accel": *accel}
	if *decel > 0 {
		body["decel"] = *decel
	}
	if err := c.post(fmt.Sprintf("/api/v1/axes/%d/move", *axis), body, nil); err != nil {
		return err
	}
	if *wait {
		return waitIdle(c, *axis)
	}
	return nil
}

// waitIdle polls axis status until motion completes.
func waitIdle(c *client, axis int) error {
	for {
		var st axisStatus
		if err := c.get(fmt.Sprintf("/api/v1/axes/%d/status", axis), &st); err != nil {
			return err
		}
		if st.Alarm {
			return fmt.Errorf("axis %d servo alarm", axis)
		}
		if !st.InMotion {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func cmdJog(args []string) error {
	fs, server, token := newFlags("jog")
	axis := fs.Int("axis", 0, "axis number")
	vel := fs.Float64("vel", 0, "signed velocity (units/s)")
	accel := fs.Float64("accel", 0, "acceleration (units/s^2)")
	fs.Parse(args)
	c := newClient(*server, *token)

	return c.post(fmt.Sprintf("/api/v1/axes/%d/jog", *axis),
		map[string]float64{"vel": *vel, "accel": *accel}, nil)
}

func cmdStop(args []string) error {
	fs, server, token := newFlags("stop")
	axis := fs.Int("axis", 0, "axis number")
	decel := fs.Float64("decel", 0, "deceleration (slowdown stop when set)")
	emergency := fs.Bool("emergency", false, "immediate stop, no ramp")
	fs.Parse(args)
	c := newClient(*server, *token)

	return c.post(fmt.Sprintf("/api/v1/axes/%d/stop", *axis),
		map[string]interface{}{"decel": *decel, "emergency": *emergency}, nil)
}

func cmdHome(args []string) error {
	fs, server, token := newFlags("home")
	axis := fs.Int("axis", 0, "axis number")
	wait := fs.Bool("wait", false, "block until homing completes")
	fs.Parse(args)
	c := newClient(*server, *token)

	path := fmt.Sprintf("/api/v1/axes/%d/home", *axis)
	if err := c.post(path, nil, nil); err != nil {
		return err
	}
	if !*wait {
		return nil
	}
	// Home result codes mirror AxmHomeGetResult: 0x01 success, 0x02
	// still searching, anything else is a failure code.
	for {
		var res struct {
			Result int     `json:"result"`
			Rate   float64 `json:"rate"`
		}
		if err := c.get(path, &res); err != nil {
			return err
		}
		switch res.Result {
		case 0x02:
			time.Sleep(100 * time.Millisecond)
		case 0x01:
			fmt.Println("homing complete")
			return nil
		default:
			return fmt.Errorf("homing failed: result %#02x", res.Result)
		}
	}
}

func cmdEStop(args []string) error {
	fs, server, token := newFlags("estop")
	reason := fs.String("reason", "operator estop via axlctl", "trip message")
	fs.Parse(args)
	c := newClient(*server, *token)
	return c.post("/api/v1/estop", map[string]string{"reason": *reason}, nil)
}

func cmdRelease(args []string) error {
	fs, server, token := newFlags("release")
	fs.Parse(args)
	c := newClient(*server, *token)
	return c.post("/api/v1/estop/release", nil, nil)
}

func cmdOutput(args []string) error {
	fs, server, token := newFlags("output")
	offset := fs.Int("offset", 0, "output word offset")
	value := fs.Uint("value", 0, "16-bit output value")
	fs.Parse(args)
	c := newClient(*server, *token)

	return c.put(fmt.Sprintf("/api/v1/dio/outputs/%d", *offset),
		map[string]uint32{"value": uint32(*value)}, nil)
}

func cmdLogin(args []string) error {
	fs, server, token := newFlags("login")
	operator := fs.String("operator", "", "operator name")
	password := fs.String("password", "", "operator password (prompted when empty)")
	fs.Parse(args)
	_ = token

	pw := *password
	if pw == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		pw = strings.TrimSpace(line)
	}

	c := newClient(*server, "")
	var resp struct {
		Token string `json:"token"`
		Auth  string `json:"auth"`
	}
	err := c.post("/api/v1/auth/login",
		map[string]string{"operator": *operator, "password": pw}, &resp)
	if err != nil {
		return err
	}
	if resp.Auth == "disabled" {
		fmt.Fprintln(os.Stderr, "server authentication is disabled; no token needed")
		return nil
	}
	fmt.Println(resp.Token)
	return nil
}
