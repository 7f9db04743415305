// Monitor session driver: samples rack signals to CSV on stdout
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// parseItems turns a comma-separated item list into API item specs.
// Each item is kind:arg, where arg is an axis or channel number, or
// module:offset for the word kinds:
//
//	axis_cmd_pos:0,axis_vel:0,dio_in_word:0:0,counter_count:1
func parseItems(spec string) ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		kind := fields[0]
		nums := make([]int, 0, 2)
		for _, f := range fields[1:] {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("item %q: %v", part, err)
			}
			nums = append(nums, n)
		}
		item := map[string]interface{}{"kind": kind}
		switch kind {
		case "axis_cmd_pos", "axis_act_pos", "axis_vel":
			if len(nums) != 1 {
				return nil, fmt.Errorf("item %q: want %s:axis", part, kind)
			}
			item["axis"] = nums[0]
		case "dio_in_word", "dio_out_word":
			if len(nums) != 2 {
				return nil, fmt.Errorf("item %q: want %s:module:offset", part, kind)
			}
			item["module"] = nums[0]
			item["offset"] = nums[1]
		case "analog_volt", "counter_count":
			if len(nums) != 1 {
				return nil, fmt.Errorf("item %q: want %s:channel", part, kind)
			}
			item["channel"] = nums[0]
		default:
			return nil, fmt.Errorf("item %q: unknown kind %q", part, kind)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no items in %q", spec)
	}
	return items, nil
}

func cmdMonitor(args []string) error {
	fs, server, token := newFlags("monitor")
	itemSpec := fs.String("items", "", "items to sample, e.g. axis_cmd_pos:0,axis_vel:0")
	period := fs.Float64("period", 0.01, "sample period in rack seconds")
	duration := fs.Float64("duration", 5, "wall seconds to sample for (0 runs until interrupted)")
	fs.Parse(args)
	if *itemSpec == "" {
		return fmt.Errorf("-items is required")
	}
	c := newClient(*server, *token)

	items, err := parseItems(*itemSpec)
	if err != nil {
		return err
	}

	var created struct {
		ID    string   `json:"id"`
		Items []string `json:"items"`
	}
	err = c.post("/api/v1/monitor/sessions",
		map[string]interface{}{"items": items}, &created)
	if err != nil {
		return err
	}
	base := "/api/v1/monitor/sessions/" + created.ID
	defer c.delete(base)

	if err := c.post(base+"/start", map[string]float64{"period": *period}, nil); err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	w.Write(append([]string{"seq", "time"}, created.Items...))

	deadline := time.Now().Add(time.Duration(*duration * float64(time.Second)))
	for *duration == 0 || time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)

		var data struct {
			Records []struct {
				Seq    uint64    `json:"Seq"`
				Time   float64   `json:"Time"`
				Values []float64 `json:"Values"`
			} `json:"records"`
		}
		if err := c.get(base+"/data?max=4096", &data); err != nil {
			return err
		}
		for _, rec := range data.Records {
			row := make([]string, 0, len(rec.Values)+2)
			row = append(row,
				strconv.FormatUint(rec.Seq, 10),
				strconv.FormatFloat(rec.Time, 'f', 6, 64))
			for _, v := range rec.Values {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			w.Write(row)
		}
		w.Flush()
	}

	return c.post(base+"/stop", nil, nil)
}
