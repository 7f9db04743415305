// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package board

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"axl-go/pkg/axt"
)

func TestParseLayout(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"boards": [
			{"address": 53248, "modules": [
				{"type": "VIRTUAL_MOTION", "axes": 2},
				{"type": "SIO_HPC4"}
			]},
			{"modules": [
				{"type": "VIRTUAL_DIO"}
			]}
		]
	}`)
	layout, err := ParseLayout(data)
	if err != nil {
		t.Fatalf("ParseLayout error: %v", err)
	}
	if len(layout.Boards) != 2 {
		t.Fatalf("len(Boards) = %d, want 2", len(layout.Boards))
	}
	if layout.Boards[0].Address != 0xD000 {
		t.Errorf("Boards[0].Address = %#x, want 0xd000", layout.Boards[0].Address)
	}
	// Omitted fields are synthesized.
	if layout.Boards[1].Type != "VIRTUAL_BOARD" {
		t.Errorf("Boards[1].Type = %q, want VIRTUAL_BOARD", layout.Boards[1].Type)
	}
	if layout.Boards[1].Address != 0xE000 {
		t.Errorf("Boards[1].Address = %#x, want 0xe000", layout.Boards[1].Address)
	}
	if layout.Boards[0].Modules[0].Axes != 2 {
		t.Errorf("Modules[0].Axes = %d, want 2", layout.Boards[0].Modules[0].Axes)
	}
}

func TestParseLayoutRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{boards: []`},
		{"no boards", `{"boards": []}`},
		{"unknown module type", `{"boards": [{"modules": [{"type": "SMC_9K"}]}]}`},
		{"module without type", `{"boards": [{"modules": [{"axes": 4}]}]}`},
		{"empty module list", `{"boards": [{"modules": []}]}`},
		{"stray field", `{"boards": [{"modules": [{"type": "SIO_CN2CH"}], "slots": 4}]}`},
		{"bad version", `{"version": 2, "boards": [{"modules": [{"type": "SIO_CN2CH"}]}]}`},
		{"zero axes", `{"boards": [{"modules": [{"type": "VIRTUAL_MOTION", "axes": 0}]}]}`},
	}
	for _, tc := range tests {
		if _, err := ParseLayout([]byte(tc.data)); !axt.IsCode(err, axt.InvalidHardware) {
			t.Errorf("%s: ParseLayout error = %v, want INVALID_HARDWARE", tc.name, err)
		}
	}
}

func TestDefaultLayoutPassesSchema(t *testing.T) {
	data, err := json.Marshal(DefaultLayout())
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	layout, err := ParseLayout(data)
	if err != nil {
		t.Fatalf("ParseLayout(DefaultLayout) error: %v", err)
	}
	if _, err := New(layout); err != nil {
		t.Fatalf("New(reparsed default) error: %v", err)
	}
}

func TestLoadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rack.json")
	data := `{"boards": [{"modules": [{"type": "SIO_CN2CH"}, {"type": "SIO_DB32T"}]}]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	layout, err := LoadLayout(path)
	if err != nil {
		t.Fatalf("LoadLayout error: %v", err)
	}
	topo, err := New(layout)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if got := topo.CounterChannelCount(); got != 2 {
		t.Errorf("CounterChannelCount() = %d, want 2", got)
	}
	if got, _ := topo.IsDIOModule(0, 1); !got {
		t.Error("IsDIOModule(0, 1) = false, want true")
	}

	if _, err := LoadLayout(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadLayout(missing) succeeded, want error")
	}
}
