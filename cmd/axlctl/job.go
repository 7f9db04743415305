// Scripted motion jobs: a YAML step list run against the daemon
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// jobFile is a named sequence of steps. Exactly one action is set per
// step:
//
//	name: demo cycle
//	steps:
//	  - servo: {axis: 0, on: true}
//	  - home:  {axis: 0}
//	  - move:  {axis: 0, pos: 100, vel: 1000, accel: 4000, wait: true}
//	  - output: {offset: 0, value: 255}
//	  - sleep: 0.5
//	  - move:  {axis: 0, pos: 0, vel: 1000, accel: 4000, wait: true}
type jobFile struct {
	Name  string    `yaml:"name"`
	Steps []jobStep `yaml:"steps"`
}

type jobStep struct {
	Servo *struct {
		Axis int  `yaml:"axis"`
		On   bool `yaml:"on"`
	} `yaml:"servo"`
	Home *struct {
		Axis int `yaml:"axis"`
	} `yaml:"home"`
	Move *struct {
		Axis  int     `yaml:"axis"`
		Pos   float64 `yaml:"pos"`
		Vel   float64 `yaml:"vel"`
		Accel float64 `yaml:"accel"`
		Decel float64 `yaml:"decel"`
		Wait  bool    `yaml:"wait"`
	} `yaml:"move"`
	Jog *struct {
		Axis  int     `yaml:"axis"`
		Vel   float64 `yaml:"vel"`
		Accel float64 `yaml:"accel"`
	} `yaml:"jog"`
	Stop *struct {
		Axis      int     `yaml:"axis"`
		Decel     float64 `yaml:"decel"`
		Emergency bool    `yaml:"emergency"`
	} `yaml:"stop"`
	Output *struct {
		Offset int    `yaml:"offset"`
		Value  uint32 `yaml:"value"`
	} `yaml:"output"`
	Sleep float64 `yaml:"sleep"`
}

func cmdJob(args []string) error {
	fs, server, token := newFlags("job")
	file := fs.String("file", "", "job YAML file (required)")
	fs.Parse(args)
	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	c := newClient(*server, *token)

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var job jobFile
	if err := yaml.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}
	if len(job.Steps) == 0 {
		return fmt.Errorf("%s: no steps", *file)
	}
	if job.Name != "" {
		fmt.Printf("running job: %s (%d steps)\n", job.Name, len(job.Steps))
	}

	for i, step := range job.Steps {
		if err := runStep(c, step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	fmt.Println("job complete")
	return nil
}

func runStep(c *client, step jobStep) error {
	switch {
	case step.Servo != nil:
		return c.post(fmt.Sprintf("/api/v1/axes/%d/servo", step.Servo.Axis),
			map[string]bool{"on": step.Servo.On}, nil)

	case step.Home != nil:
		path := fmt.Sprintf("/api/v1/axes/%d/home", step.Home.Axis)
		if err := c.post(path, nil, nil); err != nil {
			return err
		}
		for {
			var res struct {
				Result int `json:"result"`
			}
			if err := c.get(path, &res); err != nil {
				return err
			}
			switch res.Result {
			case 0x02:
				time.Sleep(100 * time.Millisecond)
			case 0x01:
				return nil
			default:
				return fmt.Errorf("homing failed: result %#02x", res.Result)
			}
		}

	case step.Move != nil:
		m := step.Move
		body := map[string]float64{"pos": m.Pos, "vel": m.Vel, "accel": m.Accel}
		if m.Decel > 0 {
			body["decel"] = m.Decel
		}
		err := c.post(fmt.Sprintf("/api/v1/axes/%d/move", m.Axis), body, nil)
		if err != nil {
			return err
		}
		if m.Wait {
			return waitIdle(c, m.Axis)
		}
		return nil

	case step.Jog != nil:
		return c.post(fmt.Sprintf("/api/v1/axes/%d/jog", step.Jog.Axis),
			map[string]float64{"vel": step.Jog.Vel, "accel": step.Jog.Accel}, nil)

	case step.Stop != nil:
		return c.post(fmt.Sprintf("/api/v1/axes/%d/stop", step.Stop.Axis),
			map[string]interface{}{
				"decel":     step.Stop.Decel,
				"emergency": step.Stop.Emergency,
			}, nil)

	case step.Output != nil:
		return c.put(fmt.Sprintf("/api/v1/dio/outputs/%d", step.Output.Offset),
			map[string]uint32{"value": step.Output.Value}, nil)

	case step.Sleep > 0:
		time.Sleep(time.Duration(step.Sleep * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("empty step")
}
