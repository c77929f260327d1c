package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug"}, &buf).With(String("component", "ledger"))
	l.Info("totals computed", Int("zone", 3), Float64("total", 1.5), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if m["message"] != "totals computed" {
		t.Fatalf("message = %v", m["message"])
	}
	if m["component"] != "ledger" || m["zone"] != float64(3) || m["total"] != 1.5 || m["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", m)
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn"}, &buf)
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("warn not written")
	}
	if l.Enabled(LevelDebug) {
		t.Fatal("debug should be disabled")
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	l.Error("nothing happens", String("k", "v"))
	Nop().Info("still nothing")
}
