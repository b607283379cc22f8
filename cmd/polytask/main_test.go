package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf("storage:\n  path: %q\nlogging:\n  level: error\nscheduler:\n  timezone: UTC\n", filepath.Join(dir, "tasks.db"))
	p := filepath.Join(dir, "polytask.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func cli(t *testing.T, cfg string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(append([]string{"-config", cfg}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestCLITaskFlow(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("CHAT_ID", "")
	cfg := testConfig(t)

	code, out, errOut := cli(t, cfg, "add", "-title", "Pay rent", "-group", "home", "-priority", "high", "-due", "2030-01-05 18:00", "-tags", "money, monthly")
	if code != 0 || !strings.Contains(out, "added task 1") {
		t.Fatalf("add: code=%d out=%q err=%q", code, out, errOut)
	}

	code, out, _ = cli(t, cfg, "list")
	if code != 0 || !strings.Contains(out, "Pay rent") || !strings.Contains(out, "2030-01-05 18:00") || !strings.Contains(out, "high") {
		t.Fatalf("list: code=%d out=%q", code, out)
	}

	code, out, _ = cli(t, cfg, "groups")
	if code != 0 || strings.TrimSpace(out) != "home" {
		t.Fatalf("groups: code=%d out=%q", code, out)
	}

	code, out, _ = cli(t, cfg, "report")
	if code != 0 || !strings.Contains(out, "Weekly report") {
		t.Fatalf("report: code=%d out=%q", code, out)
	}

	if code, _, _ = cli(t, cfg, "done", "1"); code != 0 {
		t.Fatalf("done: code=%d", code)
	}
	code, out, _ = cli(t, cfg, "list")
	if code != 0 || strings.TrimSpace(out) != "no tasks" {
		t.Fatalf("list after done: %q", out)
	}
	code, out, _ = cli(t, cfg, "list", "-status", "done")
	if code != 0 || !strings.Contains(out, "Pay rent") {
		t.Fatalf("list done: %q", out)
	}

	if code, _, _ = cli(t, cfg, "delete", "1"); code != 0 {
		t.Fatalf("delete: code=%d", code)
	}
	if code, _, errOut = cli(t, cfg, "delete", "1"); code != 1 || !strings.Contains(errOut, "not found") {
		t.Fatalf("second delete: code=%d err=%q", code, errOut)
	}
}

func TestCLIUsageErrors(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("CHAT_ID", "")
	cfg := testConfig(t)
	cases := [][]string{
		{"add"},
		{"add", "-title", "x", "-priority", "urgent-ish"},
		{"add", "-title", "x", "-due", "tomorrow"},
		{"done", "abc"},
		{"groups", "rename", "x"},
		{"list", "-status", "maybe"},
	}
	for _, args := range cases {
		if code, _, _ := cli(t, cfg, args...); code != 2 {
			t.Fatalf("%v: code=%d, want 2", args, code)
		}
	}
	if code, _, _ := cli(t, cfg, "frobnicate"); code != 2 {
		t.Fatal("unknown command should be a usage error")
	}
}

func TestReportSendWithoutTelegramFails(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("CHAT_ID", "")
	code, _, errOut := cli(t, testConfig(t), "report", "-send")
	if code != 1 || !strings.Contains(errOut, "skipped") {
		t.Fatalf("code=%d err=%q", code, errOut)
	}
}
