// Rack layout file loading and validation
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package board

import (
	"encoding/json"
	"os"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"axl-go/pkg/axt"
)

//go:embed schema/rack-layout-v1.json
var layoutSchemaJSON string

var layoutSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rack-layout-v1.json",
		strings.NewReader(layoutSchemaJSON)); err != nil {
		panic("board: schema resource: " + err.Error())
	}
	schema, err := compiler.Compile("rack-layout-v1.json")
	if err != nil {
		panic("board: schema compile: " + err.Error())
	}
	return schema
}

// Layout describes the rack to synthesize: which boards exist and the
// modules plugged into each.
type Layout struct {
	Version int           `json:"version,omitempty"`
	Boards  []BoardLayout `json:"boards"`
}

// BoardLayout is one board's slot list. Address defaults to a
// synthesized bus address when zero.
type BoardLayout struct {
	Type    string         `json:"type,omitempty"`
	Address uint32         `json:"address,omitempty"`
	Modules []ModuleLayout `json:"modules"`
}

// ModuleLayout selects a module type by catalog name. Axes overrides
// the type's default axis count and is meaningful only on motion
// modules.
type ModuleLayout struct {
	Type string `json:"type"`
	Axes int    `json:"axes,omitempty"`
}

// DefaultLayout is the rack used when no layout file is configured:
// one board carrying two 4-axis motion modules, combined digital and
// analog I/O, and the three counter/trigger module families.
func DefaultLayout() Layout {
	return Layout{
		Version: 1,
		Boards: []BoardLayout{{
			Type:    "VIRTUAL_BOARD",
			Address: 0xD000,
			Modules: []ModuleLayout{
				{Type: "VIRTUAL_MOTION"},
				{Type: "VIRTUAL_MOTION"},
				{Type: "VIRTUAL_DIO"},
				{Type: "VIRTUAL_AIO"},
				{Type: "SIO_HPC4"},
				{Type: "SIO_CN2CH"},
				{Type: "SIO_LCM4"},
			},
		}},
	}
}

// ParseLayout validates raw JSON against the layout schema and decodes
// it.
func ParseLayout(data []byte) (Layout, error) {
	const op = "axl.LoadLayout"

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Layout{}, axt.Wrap(axt.InvalidHardware, op, err)
	}
	if err := layoutSchema.Validate(doc); err != nil {
		return Layout{}, axt.Wrap(axt.InvalidHardware, op, err)
	}

	var layout Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		return Layout{}, axt.Wrap(axt.InvalidHardware, op, err)
	}
	for b := range layout.Boards {
		if layout.Boards[b].Type == "" {
			layout.Boards[b].Type = "VIRTUAL_BOARD"
		}
		if layout.Boards[b].Address == 0 {
			layout.Boards[b].Address = 0xD000 + uint32(b)*0x1000
		}
	}
	return layout, nil
}

// LoadLayout reads and parses a layout file.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, axt.Wrap(axt.InvalidHardware, "axl.LoadLayout", err)
	}
	return ParseLayout(data)
}
