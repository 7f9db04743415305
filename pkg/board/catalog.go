// Board and module type catalog
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package board models the rack: boards, the modules plugged into
// them, per-class numbering of axes and channels, and the virtual axis
// map. Everything above it addresses hardware through the identifiers
// assigned here.
package board

// Board type IDs.
const (
	VirtualBoard = 0xDD
)

// Module type IDs. Values match the hardware identification registers.
const (
	SMC4V04       = 0x06 // 4 axis motion
	SIODI32       = 0x97 // 32 digital inputs
	SIODB32T      = 0x9F // 16 in / 16 out, power TR outputs
	SIOAI16HB     = 0xA5 // 16 ch 16-bit analog input
	SIOAO2HB      = 0xA6 // 2 ch 16-bit analog output
	SIOCN2CH      = 0xB1 // 2 ch counter/trigger
	SIOHPC4       = 0xDA // 4 ch encoder/trigger, position based
	SIOLCM4       = 0xDB // 4 ch encoder/trigger, velocity based (PWM out)
	VirtualMotion = 0xEB
	VirtualDIO    = 0xEC
	VirtualAIO    = 0xED
)

// ModuleClass groups module types by the API family that serves them.
type ModuleClass int

const (
	ClassMotion ModuleClass = iota
	ClassDIO
	ClassAIO
	ClassCounter
)

func (c ModuleClass) String() string {
	switch c {
	case ClassMotion:
		return "motion"
	case ClassDIO:
		return "dio"
	case ClassAIO:
		return "aio"
	case ClassCounter:
		return "counter"
	default:
		return "unknown"
	}
}

// ModuleInfo is the static description of one module type. Zero counts
// mean the resource does not exist on that type.
type ModuleInfo struct {
	TypeID int
	Name   string
	Class  ModuleClass

	Axes       int // motion axes
	Channels   int // counter channels
	AIChannels int
	AOChannels int
	DIBits     int
	DOBits     int

	TriggerTables int // 2-D absolute trigger tables
	TableCapacity int // absolute-position entries per channel table
	PWMChannels   int // PWM pattern outputs

	Version string
}

// catalog holds every module type the rack loader accepts, keyed by
// layout name.
var catalog = map[string]ModuleInfo{
	"SMC_4V04": {
		TypeID: SMC4V04, Name: "SMC_4V04", Class: ClassMotion,
		Axes: 4, Version: "1.00",
	},
	"VIRTUAL_MOTION": {
		TypeID: VirtualMotion, Name: "VIRTUAL_MOTION", Class: ClassMotion,
		Axes: 4, Version: "3.30",
	},
	"SIO_DI32": {
		TypeID: SIODI32, Name: "SIO_DI32", Class: ClassDIO,
		DIBits: 32, Version: "1.00",
	},
	"SIO_DB32T": {
		TypeID: SIODB32T, Name: "SIO_DB32T", Class: ClassDIO,
		DIBits: 16, DOBits: 16, Version: "1.00",
	},
	"VIRTUAL_DIO": {
		TypeID: VirtualDIO, Name: "VIRTUAL_DIO", Class: ClassDIO,
		DIBits: 32, DOBits: 32, Version: "3.30",
	},
	"SIO_AI16HB": {
		TypeID: SIOAI16HB, Name: "SIO_AI16HB", Class: ClassAIO,
		AIChannels: 16, Version: "1.00",
	},
	"SIO_AO2HB": {
		TypeID: SIOAO2HB, Name: "SIO_AO2HB", Class: ClassAIO,
		AOChannels: 2, Version: "1.00",
	},
	"VIRTUAL_AIO": {
		TypeID: VirtualAIO, Name: "VIRTUAL_AIO", Class: ClassAIO,
		AIChannels: 16, AOChannels: 4, Version: "3.30",
	},
	"SIO_CN2CH": {
		TypeID: SIOCN2CH, Name: "SIO_CN2CH", Class: ClassCounter,
		Channels: 2, TableCapacity: 131072, Version: "1.00",
	},
	"SIO_HPC4": {
		TypeID: SIOHPC4, Name: "SIO_HPC4", Class: ClassCounter,
		Channels: 4, TriggerTables: 4, TableCapacity: 500, Version: "1.00",
	},
	"SIO_LCM4": {
		TypeID: SIOLCM4, Name: "SIO_LCM4", Class: ClassCounter,
		Channels: 4, PWMChannels: 4, TableCapacity: 500, Version: "1.00",
	},
}

// Lookup returns the catalog entry for a layout module name.
func Lookup(name string) (ModuleInfo, bool) {
	info, ok := catalog[name]
	return info, ok
}

// TypeNames lists every accepted module type name.
func TypeNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	return names
}
