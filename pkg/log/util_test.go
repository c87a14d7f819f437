package log

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type mode string

func (m mode) String() string { return string(m) }

func TestToFields(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		input []any
		keys  []string
	}{
		{"empty input", []any{}, nil},
		{"coordinates", []any{"lat", 10.0, "lon", 20.5, "armed", true}, []string{"lat", "lon", "armed"}},
		{"duration and time", []any{"dwell", 10 * time.Second, "at", time.Unix(0, 0)}, []string{"dwell", "at"}},
		{"stringer", []any{"mode", mode("GUIDED")}, []string{"mode"}},
		{"bare error", []any{boom}, []string{"error"}},
		{"named error", []any{"cause", boom}, []string{"cause"}},
		{"zap field passthrough", []any{zap.String("x", "y"), "n", 1}, []string{"x", "n"}},
		{"dangling value", []any{"k1", "v1", "k2"}, []string{"k1", "arg#2"}},
		{"non-string key", []any{123, "value"}, []string{"invalid_key_1"}},
		{"nil value", []any{"a", nil}, []string{"a"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)

			if len(fields) != len(tt.keys) {
				t.Fatalf("got %d fields, want %d: %+v", len(fields), len(tt.keys), fields)
			}
			for i, f := range fields {
				if f.Key != tt.keys[i] {
					t.Errorf("field %d key = %q, want %q", i, f.Key, tt.keys[i])
				}
			}
		})
	}
}

func TestTypedFieldStringer(t *testing.T) {
	f := typedField("mode", mode("RTL"))
	if f.Type != zapcore.StringerType {
		t.Fatalf("field type = %v, want StringerType", f.Type)
	}
}

func TestSetLevel(t *testing.T) {
	l := NewLogger(&Options{Level: "info", Format: "json", OutputPaths: []string{"stderr"}})
	prev := std
	std = l
	defer func() { std = prev }()

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug): %v", err)
	}
	if got := l.(*zapLogger).level.Level(); got != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}
	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel(loud) succeeded, want error")
	}
}
