package gwshare

import (
	"bytes"
	"strings"
	"testing"
)

func TestHexDump(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "Dump (0 bytes)"},
		{
			"short",
			[]byte("PING\x00\x01"),
			"Dump (6 bytes)\n" + "50 49 4E 47 00 01" + strings.Repeat(" ", 48-17) + "    PING..",
		},
		{
			"two rows",
			[]byte("0123456789ABCDEF\x7f"),
			"Dump (17 bytes)\n" +
				"30 31 32 33 34 35 36 37  38 39 41 42 43 44 45 46    01234567 89ABCDEF\n" +
				"7F" + strings.Repeat(" ", 46) + "    .",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HexDump(tt.data); got != tt.want {
				t.Errorf("HexDump() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	root := NewLoggerWithWriter(&buf, "root", LogLevelInfo)
	child := root.Fork("child %d", 1)

	child.DLogf("hidden")
	child.ILogf("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("DEBUG record written at INFO level")
	}
	if !strings.Contains(buf.String(), "[INF] root: child 1: shown") {
		t.Errorf("missing INFO record: %q", buf.String())
	}

	// The debug switch is shared by every fork
	root.SetDebug(true)
	if !child.IsDebug() {
		t.Fatalf("fork did not see SetDebug(true)")
	}
	child.DLogf("now shown")
	if !strings.Contains(buf.String(), "[DBG] root: child 1: now shown") {
		t.Errorf("missing DEBUG record: %q", buf.String())
	}
	child.SetDebug(false)
	if root.IsDebug() {
		t.Errorf("root did not see SetDebug(false) from fork")
	}

	buf.Reset()
	child.Dump(LogLevelInfo, []byte("AB"))
	if !strings.Contains(buf.String(), "[INF] root: child 1: Dump (2 bytes)\n41 42") {
		t.Errorf("dump record: %q", buf.String())
	}
}

func TestLoggerErrorf(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "far", LogLevelWarning).Fork("job")
	err := l.WLogErrorf("Accept failed: %s", "boom")
	if err.Error() != "far: job: Accept failed: boom" {
		t.Errorf("error = %q", err)
	}
	if !strings.Contains(buf.String(), "[WRN] far: job: Accept failed: boom") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestLogLevelFromString(t *testing.T) {
	tests := []struct {
		s    string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"wrn", LogLevelWarning},
		{"bogus", LogLevelUnknown},
	}
	for _, tt := range tests {
		if got := StringToLogLevel(tt.s); got != tt.want {
			t.Errorf("StringToLogLevel(%q) = %s, want %s", tt.s, got, tt.want)
		}
	}
}
