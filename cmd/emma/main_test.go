package main

import "testing"

func TestRunVersionCommand(t *testing.T) {
	if code := run([]string{"version"}); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if code := run([]string{"unknown-command"}); code == 0 {
		t.Fatalf("expected non-zero exit code for unknown command")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	t.Setenv("EMMA_CONFIG", t.TempDir()+"/config.yaml")
	t.Setenv("EMMA_TOKEN_STORAGE", "vault")
	if code := run([]string{"auth", "status"}); code == 0 {
		t.Fatalf("expected non-zero exit code for unsupported token storage")
	}
}
