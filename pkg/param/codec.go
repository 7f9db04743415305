// Keyed-text codec for parameter files
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package param

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"axl-go/pkg/axt"
)

// keyNames maps record index 00..39 to the on-disk key.
var keyNames = [40]string{
	"AXIS_NO", "PULSE_OUT_METHOD", "ENC_INPUT_METHOD", "INPOSITION",
	"ALARM", "NEG_END_LIMIT", "POS_END_LIMIT", "MIN_VELOCITY",
	"MAX_VELOCITY", "HOME_SIGNAL", "HOME_LEVEL", "HOME_DIR",
	"ZPHASE_LEVEL", "ZPHASE_USE", "STOP_SIGNAL_MODE", "STOP_SIGNAL_LEVEL",
	"HOME_FIRST_VELOCITY", "HOME_SECOND_VELOCITY", "HOME_THIRD_VELOCITY",
	"HOME_LAST_VELOCITY", "HOME_FIRST_ACCEL", "HOME_SECOND_ACCEL",
	"HOME_END_CLEAR_TIME", "HOME_END_OFFSET", "NEG_SOFT_LIMIT",
	"POS_SOFT_LIMIT", "MOVE_PULSE", "MOVE_UNIT", "INIT_POSITION",
	"INIT_VELOCITY", "INIT_ACCEL", "INIT_DECEL", "INIT_ABSRELMODE",
	"INIT_PROFILEMODE", "SVON_LEVEL", "ALARM_RESET_LEVEL", "ENCODER_TYPE",
	"SOFT_LIMIT_SEL", "SOFT_LIMIT_STOP_MODE", "SOFT_LIMIT_ENABLE",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// values renders every field in key order.
func (r *Record) values() [40]string {
	return [40]string{
		strconv.Itoa(r.AxisNo),
		strconv.Itoa(int(r.PulseOutMethod)),
		strconv.Itoa(r.EncInputMethod),
		strconv.Itoa(int(r.Inposition)),
		strconv.Itoa(int(r.Alarm)),
		strconv.Itoa(int(r.NegEndLimit)),
		strconv.Itoa(int(r.PosEndLimit)),
		formatFloat(r.MinVelocity),
		formatFloat(r.MaxVelocity),
		strconv.Itoa(int(r.HomeSignal)),
		strconv.Itoa(int(r.HomeLevel)),
		strconv.Itoa(int(r.HomeDir)),
		strconv.Itoa(int(r.ZPhaseLevel)),
		strconv.Itoa(r.ZPhaseUse),
		strconv.Itoa(r.StopSignalMode),
		strconv.Itoa(int(r.StopSignalLevel)),
		formatFloat(r.HomeFirstVelocity),
		formatFloat(r.HomeSecondVelocity),
		formatFloat(r.HomeThirdVelocity),
		formatFloat(r.HomeLastVelocity),
		formatFloat(r.HomeFirstAccel),
		formatFloat(r.HomeSecondAccel),
		formatFloat(r.HomeEndClearTime),
		formatFloat(r.HomeEndOffset),
		formatFloat(r.NegSoftLimit),
		formatFloat(r.PosSoftLimit),
		strconv.Itoa(r.MovePulse),
		formatFloat(r.MoveUnit),
		formatFloat(r.InitPosition),
		formatFloat(r.InitVelocity),
		formatFloat(r.InitAccel),
		formatFloat(r.InitDecel),
		strconv.Itoa(int(r.InitAbsRelMode)),
		strconv.Itoa(int(r.InitProfileMode)),
		strconv.Itoa(int(r.SvonLevel)),
		strconv.Itoa(int(r.AlarmResetLevel)),
		strconv.Itoa(int(r.EncoderType)),
		strconv.Itoa(int(r.SoftLimitSel)),
		strconv.Itoa(int(r.SoftLimitStopMode)),
		formatBool(r.SoftLimitEnable),
	}
}

// setField assigns one parsed value by key index.
func (r *Record) setField(index int, raw string) error {
	atoi := func() (int, error) { return strconv.Atoi(raw) }
	atof := func() (float64, error) { return strconv.ParseFloat(raw, 64) }

	var err error
	switch index {
	case 0:
		r.AxisNo, err = atoi()
	case 1:
		var v int
		v, err = atoi()
		r.PulseOutMethod = axt.PulseOutput(v)
	case 2:
		r.EncInputMethod, err = atoi()
	case 3:
		var v int
		v, err = atoi()
		r.Inposition = axt.LevelMode(v)
	case 4:
		var v int
		v, err = atoi()
		r.Alarm = axt.LevelMode(v)
	case 5:
		var v int
		v, err = atoi()
		r.NegEndLimit = axt.LevelMode(v)
	case 6:
		var v int
		v, err = atoi()
		r.PosEndLimit = axt.LevelMode(v)
	case 7:
		r.MinVelocity, err = atof()
	case 8:
		r.MaxVelocity, err = atof()
	case 9:
		var v int
		v, err = atoi()
		r.HomeSignal = axt.HomeDetectSignal(v)
	case 10:
		var v int
		v, err = atoi()
		r.HomeLevel = axt.LevelMode(v)
	case 11:
		var v int
		v, err = atoi()
		r.HomeDir = axt.MoveDir(v)
	case 12:
		var v int
		v, err = atoi()
		r.ZPhaseLevel = axt.LevelMode(v)
	case 13:
		r.ZPhaseUse, err = atoi()
	case 14:
		r.StopSignalMode, err = atoi()
	case 15:
		var v int
		v, err = atoi()
		r.StopSignalLevel = axt.LevelMode(v)
	case 16:
		r.HomeFirstVelocity, err = atof()
	case 17:
		r.HomeSecondVelocity, err = atof()
	case 18:
		r.HomeThirdVelocity, err = atof()
	case 19:
		r.HomeLastVelocity, err = atof()
	case 20:
		r.HomeFirstAccel, err = atof()
	case 21:
		r.HomeSecondAccel, err = atof()
	case 22:
		r.HomeEndClearTime, err = atof()
	case 23:
		r.HomeEndOffset, err = atof()
	case 24:
		r.NegSoftLimit, err = atof()
	case 25:
		r.PosSoftLimit, err = atof()
	case 26:
		r.MovePulse, err = atoi()
	case 27:
		r.MoveUnit, err = atof()
	case 28:
		r.InitPosition, err = atof()
	case 29:
		r.InitVelocity, err = atof()
	case 30:
		r.InitAccel, err = atof()
	case 31:
		r.InitDecel, err = atof()
	case 32:
		var v int
		v, err = atoi()
		r.InitAbsRelMode = axt.AbsRelMode(v)
	case 33:
		var v int
		v, err = atoi()
		r.InitProfileMode = axt.ProfileMode(v)
	case 34:
		var v int
		v, err = atoi()
		r.SvonLevel = axt.LevelMode(v)
	case 35:
		var v int
		v, err = atoi()
		r.AlarmResetLevel = axt.LevelMode(v)
	case 36:
		var v int
		v, err = atoi()
		r.EncoderType = axt.EncoderType(v)
	case 37:
		var v int
		v, err = atoi()
		r.SoftLimitSel = axt.Selection(v)
	case 38:
		var v int
		v, err = atoi()
		r.SoftLimitStopMode = axt.StopMode(v)
	case 39:
		var v int
		v, err = atoi()
		r.SoftLimitEnable = v != 0
	default:
		return fmt.Errorf("param: key index %d out of range", index)
	}
	return err
}

// Encode renders records in file format: one 40-line block per axis,
// blocks separated by a blank line.
func Encode(recs []Record) string {
	var b strings.Builder
	for i := range recs {
		if i > 0 {
			b.WriteByte('\n')
		}
		vals := recs[i].values()
		for k, v := range vals {
			fmt.Fprintf(&b, "%02d=[%s] : %s\n", k, keyNames[k], v)
		}
	}
	return b.String()
}

// Save writes all records to path atomically via a temp file in the
// same directory.
func Save(path string, recs []Record) error {
	const op = "axm.MotSaveParaAll"
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".para-*.tmp")
	if err != nil {
		return axt.Wrap(axt.MotionNotParaRead, op, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(Encode(recs)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return axt.Wrap(axt.MotionNotParaRead, op, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return axt.Wrap(axt.MotionNotParaRead, op, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return axt.Wrap(axt.MotionNotParaRead, op, err)
	}
	return nil
}

// parseLine splits "NN=[KEY] : value" into its parts. The key must
// match the name registered for NN.
func parseLine(line string) (index int, value string, err error) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return 0, "", fmt.Errorf("missing '='")
	}
	index, err = strconv.Atoi(strings.TrimSpace(line[:eq]))
	if err != nil || index < 0 || index >= len(keyNames) {
		return 0, "", fmt.Errorf("bad key index %q", line[:eq])
	}
	rest := strings.TrimSpace(line[eq+1:])
	if !strings.HasPrefix(rest, "[") {
		return 0, "", fmt.Errorf("missing '['")
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return 0, "", fmt.Errorf("missing ']'")
	}
	key := strings.TrimSpace(rest[1:end])
	if key != keyNames[index] {
		return 0, "", fmt.Errorf("key %q does not match index %02d (%s)", key, index, keyNames[index])
	}
	rest = strings.TrimSpace(rest[end+1:])
	if !strings.HasPrefix(rest, ":") {
		return 0, "", fmt.Errorf("missing ':'")
	}
	return index, strings.TrimSpace(rest[1:]), nil
}

// Decode parses file-format text into records. A new record opens at
// each AXIS_NO key; blank lines are ignored.
func Decode(text string) ([]Record, error) {
	const op = "axm.MotLoadParaAll"

	var recs []Record
	var cur *Record
	seen := 0

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		index, value, err := parseLine(line)
		if err != nil {
			return nil, axt.Errorf(axt.MotionNotParaRead, op, "line %d: %v", lineNum, err)
		}
		if index == 0 {
			if cur != nil && seen != len(keyNames) {
				return nil, axt.Errorf(axt.MotionNotParaRead, op,
					"axis %d: %d keys, want %d", cur.AxisNo, seen, len(keyNames))
			}
			recs = append(recs, Record{})
			cur = &recs[len(recs)-1]
			seen = 0
		}
		if cur == nil {
			return nil, axt.Errorf(axt.MotionNotParaRead, op,
				"line %d: %s before AXIS_NO", lineNum, keyNames[index])
		}
		if err := cur.setField(index, value); err != nil {
			return nil, axt.Errorf(axt.MotionNotParaRead, op, "line %d: %v", lineNum, err)
		}
		seen++
	}
	if err := scanner.Err(); err != nil {
		return nil, axt.Wrap(axt.MotionNotParaRead, op, err)
	}
	if cur != nil && seen != len(keyNames) {
		return nil, axt.Errorf(axt.MotionNotParaRead, op,
			"axis %d: %d keys, want %d", cur.AxisNo, seen, len(keyNames))
	}
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Load reads and parses a parameter file.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, axt.Wrap(axt.MotionNotParaRead, "axm.MotLoadParaAll", err)
	}
	return Decode(string(data))
}
