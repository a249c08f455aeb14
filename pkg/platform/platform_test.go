package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	p, err := Detect()
	if runtime.GOOS != "linux" {
		if err == nil {
			t.Error("Detect() should fail off linux")
		}
		return
	}
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if p.Triplet == "" {
		t.Error("Triplet is empty")
	}
	if p.String() == "" {
		t.Error("String() is empty")
	}
}

func TestResolveInterpreterAbsolute(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "runner")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := ResolveInterpreter(exe)
	if err != nil || got != exe {
		t.Errorf("ResolveInterpreter(%q) = %q, %v", exe, got, err)
	}

	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveInterpreter(plain); err == nil {
		t.Error("non-executable interpreter should be rejected")
	}
	if _, err := ResolveInterpreter(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing interpreter should be rejected")
	}
}

func TestResolveInterpreterPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "aspkg-test-runner"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	got, err := ResolveInterpreter("aspkg-test-runner")
	if err != nil {
		t.Fatalf("ResolveInterpreter() error = %v", err)
	}
	if got != filepath.Join(dir, "aspkg-test-runner") {
		t.Errorf("ResolveInterpreter() = %q", got)
	}
}
