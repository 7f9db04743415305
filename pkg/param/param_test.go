package param

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"axl-go/pkg/axt"
)

func TestDefaultIsValid(t *testing.T) {
	r := Default(0)
	if err := r.Validate(); err != nil {
		t.Fatalf("default record invalid: %v", err)
	}
	if r.PulseOutMethod != axt.TwoCcwCwHigh {
		t.Errorf("default pulse method = %d, want %d", r.PulseOutMethod, axt.TwoCcwCwHigh)
	}
	if r.MaxVelocity != 700000 {
		t.Errorf("default max velocity = %g, want 700000", r.MaxVelocity)
	}
	if r.UnitPerPulse() != 1 {
		t.Errorf("default unit per pulse = %g, want 1", r.UnitPerPulse())
	}
}

func TestEncodeFormat(t *testing.T) {
	r := Default(3)
	text := Encode([]Record{r})

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) != 40 {
		t.Fatalf("encoded %d lines, want 40", len(lines))
	}
	if lines[0] != "00=[AXIS_NO] : 3" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "01=[PULSE_OUT_METHOD] : 4" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if lines[8] != "08=[MAX_VELOCITY] : 700000" {
		t.Errorf("line 8 = %q", lines[8])
	}
	if lines[24] != "24=[NEG_SOFT_LIMIT] : -1.34217728e+08" {
		t.Errorf("line 24 = %q", lines[24])
	}
	if lines[39] != "39=[SOFT_LIMIT_ENABLE] : 0" {
		t.Errorf("line 39 = %q", lines[39])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	recs := []Record{Default(0), Default(1), Default(2)}
	recs[0].MoveUnit = 1
	recs[0].MovePulse = 2000
	recs[0].MaxVelocity = 1000.5
	recs[1].NegSoftLimit = -250.125
	recs[1].PosSoftLimit = 1200.0625
	recs[1].SoftLimitEnable = true
	recs[2].HomeSignal = axt.NegEndLimit
	recs[2].HomeDir = axt.DirCW
	recs[2].InitProfileMode = axt.QuasiSCurveMode

	path := filepath.Join(t.TempDir(), "axes.mot")
	if err := Save(path, recs); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("loaded %d records, want %d", len(got), len(recs))
	}
	for i := range recs {
		if got[i] != recs[i] {
			t.Errorf("record %d mismatch:\n got %+v\nwant %+v", i, got[i], recs[i])
		}
	}

	// A second save of the loaded records is byte-identical.
	path2 := filepath.Join(t.TempDir(), "axes2.mot")
	if err := Save(path2, got); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	b1, _ := os.ReadFile(path)
	b2, _ := os.ReadFile(path2)
	if string(b1) != string(b2) {
		t.Error("second save not byte-identical to first")
	}
}

func TestDecodeToleratesWhitespace(t *testing.T) {
	text := Encode([]Record{Default(0)})
	loose := strings.ReplaceAll(text, "] : ", "]  :  ")
	loose = "\n\n" + loose + "\n"

	recs, err := Decode(loose)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(recs) != 1 || recs[0] != Default(0) {
		t.Errorf("loose decode mismatch: %+v", recs)
	}
}

func TestDecodeRejectsKeyMismatch(t *testing.T) {
	text := Encode([]Record{Default(0)})
	bad := strings.Replace(text, "01=[PULSE_OUT_METHOD]", "01=[PULSE_METHOD]", 1)

	_, err := Decode(bad)
	if err == nil {
		t.Fatal("Decode accepted mismatched key")
	}
	if !axt.IsCode(err, axt.MotionNotParaRead) {
		t.Errorf("error code = %d, want MOTION_NOT_PARA_READ", axt.CodeOf(err))
	}
}

func TestDecodeRejectsShortRecord(t *testing.T) {
	text := Encode([]Record{Default(0)})
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	short := strings.Join(lines[:39], "\n") + "\n"

	_, err := Decode(short)
	if err == nil {
		t.Fatal("Decode accepted 39-key record")
	}
}

func TestDecodeRejectsShortMiddleRecord(t *testing.T) {
	text := Encode([]Record{Default(0), Default(1)})
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	// Cut axis 0's block to 20 keys; axis 1's block stays complete.
	truncated := append(append([]string{}, lines[:20]...), lines[41:]...)

	_, err := Decode(strings.Join(truncated, "\n") + "\n")
	if err == nil {
		t.Fatal("Decode accepted a truncated middle record")
	}
	if !axt.IsCode(err, axt.MotionNotParaRead) {
		t.Errorf("error code = %d, want MOTION_NOT_PARA_READ", axt.CodeOf(err))
	}
}

func TestDecodeRejectsValueBeforeAxisNo(t *testing.T) {
	_, err := Decode("01=[PULSE_OUT_METHOD] : 4\n")
	if err == nil {
		t.Fatal("Decode accepted key before AXIS_NO")
	}
}

func TestDecodeValidates(t *testing.T) {
	r := Default(0)
	r.PulseOutMethod = 12 // out of range
	_, err := Decode(Encode([]Record{r}))
	if !axt.IsCode(err, axt.MotionInvalidMethod) {
		t.Errorf("error code = %d, want MOTION_INVALID_METHOD", axt.CodeOf(err))
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		code   axt.Code
	}{
		{"negative axis", func(r *Record) { r.AxisNo = -1 }, axt.MotionInvalidAxisNo},
		{"pulse method", func(r *Record) { r.PulseOutMethod = 10 }, axt.MotionInvalidMethod},
		{"enc method", func(r *Record) { r.EncInputMethod = 14 }, axt.MotionInvalidMethod},
		{"alarm level", func(r *Record) { r.Alarm = 4 }, axt.MotionInvalidLevel},
		{"velocity order", func(r *Record) { r.MinVelocity = 10; r.MaxVelocity = 5 }, axt.MotionInvalidVelocity},
		{"home velocity", func(r *Record) { r.HomeThirdVelocity = 0 }, axt.MotionInvalidVelocity},
		{"soft limit order", func(r *Record) { r.NegSoftLimit = 10; r.PosSoftLimit = -10 }, axt.BadParameter},
		{"move pulse", func(r *Record) { r.MovePulse = 0 }, axt.BadParameter},
		{"stop mode", func(r *Record) { r.SoftLimitStopMode = 2 }, axt.MotionInvalidStopMode},
	}

	for _, tt := range tests {
		r := Default(0)
		tt.mutate(&r)
		err := r.Validate()
		if err == nil {
			t.Errorf("%s: Validate accepted bad record", tt.name)
			continue
		}
		if !axt.IsCode(err, tt.code) {
			t.Errorf("%s: code = %d, want %d", tt.name, axt.CodeOf(err), tt.code)
		}
	}
}

func TestSoftLimitsArmed(t *testing.T) {
	r := Default(0)
	if r.SoftLimitsArmed() {
		t.Error("disabled soft limits report armed")
	}
	r.SoftLimitEnable = true
	if !r.SoftLimitsArmed() {
		t.Error("enabled soft limits report unarmed")
	}
	r.NegSoftLimit = 100
	r.PosSoftLimit = 100
	if r.SoftLimitsArmed() {
		t.Error("equal bounds should disarm soft limits")
	}
}
