package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogWritesCategorizedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	if err := EnableAt(path); err != nil {
		t.Fatalf("enable: %v", err)
	}
	Log("transport", "play at %.2f", 1.5)
	Disable()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "transport") || !strings.Contains(string(data), "play at 1.50") {
		t.Fatalf("log missing expected line:\n%s", data)
	}
}

func TestLogIsNoOpWhenDisabled(t *testing.T) {
	Disable()
	Log("transport", "dropped")
}
