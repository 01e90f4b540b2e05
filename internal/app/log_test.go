package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFoHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&foHandler{w: &buf})

	logger.Info("file organized", "path", "/a/b.pdf", "rule", "Documents")

	line := strings.TrimSuffix(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		t.Fatalf("fields = %d, want 5: %q", len(fields), line)
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", fields[0]); err != nil {
		t.Errorf("timestamp %q not parseable: %v", fields[0], err)
	}
	if fields[1] != "INFO" {
		t.Errorf("level = %q", fields[1])
	}
	if fields[2] != "file organized" {
		t.Errorf("message = %q", fields[2])
	}
	if fields[3] != "path=/a/b.pdf" || fields[4] != "rule=Documents" {
		t.Errorf("attrs = %v", fields[3:])
	}
}

func TestFoHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&foHandler{w: &buf}).With("component", "backup")

	logger.Warn("upload failed", "attempt", 2)

	line := buf.String()
	if !strings.Contains(line, "\tcomponent=backup\t") {
		t.Errorf("pre-set attr missing: %q", line)
	}
	if !strings.Contains(line, "\tattempt=2") {
		t.Errorf("record attr missing: %q", line)
	}
}
