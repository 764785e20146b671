package sysutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := map[string]zerolog.Level{
		"debug":     zerolog.DebugLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"info":      zerolog.InfoLevel,
		"":          zerolog.InfoLevel,
		"warn":      zerolog.WarnLevel,
		"warning":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"verbose":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := SetLogLevel(in); got != want {
			t.Fatalf("SetLogLevel(%q) returned %v; want %v", in, got, want)
		}
		if got := zerolog.GlobalLevel(); got != want {
			t.Fatalf("SetLogLevel(%q) set %v; want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, false, "qrlink")
	l.Info().Str("slug", "promo1").Msg("resolved")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %v (%s)", err, buf.String())
	}
	if line["service"] != "qrlink" || line["slug"] != "promo1" || line["time"] == nil {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNewLogger_Pretty(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, true, "")
	l.Info().Msg("hello")
	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") || !strings.Contains(out, "hello") {
		t.Fatalf("expected console output, got %q", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("no args: %q", got)
	}
	if got := FirstNonEmpty(" ", "\t"); got != "" {
		t.Fatalf("blanks: %q", got)
	}
	if got := FirstNonEmpty("", "postgres://db/x", "qrlink.db"); got != "postgres://db/x" {
		t.Fatalf("got %q", got)
	}
}

func TestRedactDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://app:s3cret@db:5432/qr?sslmode=disable": "postgres://app:xxxxx@db:5432/qr?sslmode=disable",
		"postgres://app@db/qr":                             "postgres://app@db/qr",
		"qrlink.db":                                        "qrlink.db",
		"file:qr?mode=memory":                              "file:qr?mode=memory",
	}
	for in, want := range cases {
		if got := RedactDSN(in); got != want {
			t.Fatalf("RedactDSN(%q) = %q; want %q", in, got, want)
		}
	}
}
