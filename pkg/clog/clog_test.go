package clog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerWritesTaggedLines(t *testing.T) {
	var buf bytes.Buffer
	l := New("test")
	l.SetOutput(&buf)

	l.Infof("hello %s", "world")

	got := buf.String()
	if !strings.Contains(got, "info") || !strings.Contains(got, "[test]") || !strings.Contains(got, "hello world") {
		t.Fatalf("log line = %q, missing expected parts", got)
	}
}

func TestLoggerRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("test")
	l.SetOutput(&buf)
	l.SetLevel(LevelWarn)

	l.Infof("should not appear")
	l.Warnf("should appear")

	got := buf.String()
	if strings.Contains(got, "should not appear") {
		t.Fatalf("debug/info line leaked through warn threshold: %q", got)
	}
	if !strings.Contains(got, "should appear") {
		t.Fatalf("warn line missing: %q", got)
	}
}

func TestWithTagInheritsOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("parent")
	l.SetOutput(&buf)
	l.SetLevel(LevelError)

	child := l.WithTag("child")
	child.Warnf("filtered by inherited level")
	child.Errorf("not filtered")

	got := buf.String()
	if strings.Contains(got, "filtered by inherited level") {
		t.Fatalf("child logger did not inherit level: %q", got)
	}
	if !strings.Contains(got, "[child]") || !strings.Contains(got, "not filtered") {
		t.Fatalf("child logger output missing: %q", got)
	}
}
