package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
workspace_dir = %q
library_dir = %q
log_dir = %q
`,
		filepath.Join(base, "workspace"),
		filepath.Join(base, "library"),
		filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output %q does not contain %q", output, want)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
}

func TestConfigShowPrintsSample(t *testing.T) {
	out, err := runCLI(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, "[providers.script]")
}

func TestNewListShowRoundTrip(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, configPath, "new", "Glacier Caves",
		"--brief", "how meltwater carves blue ice", "--seconds", "45")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	requireContains(t, out, "Created output")

	out, err = runCLI(t, configPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Glacier Caves")
	requireContains(t, out, "draft")
	requireContains(t, out, "outline")

	// A short prefix resolves the output for show.
	fields := strings.Fields(out)
	var id string
	for i, field := range fields {
		if field == "Glacier" && i > 0 {
			id = fields[i-2]
		}
	}
	if id == "" {
		t.Fatalf("could not find id in list output: %q", out)
	}
	out, err = runCLI(t, configPath, "show", id)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Glacier Caves")
	requireContains(t, out, "not_started")

	// status is an alias for show.
	out, err = runCLI(t, configPath, "status", id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Glacier Caves")
}

func TestNewRequiresBrief(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, configPath, "new", "No Brief"); err == nil {
		t.Fatal("expected error without --brief")
	}
}

func TestResetRequiresConfirmation(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "new", "To Reset", "--brief", "something")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_ = out
	if _, err := runCLI(t, configPath, "reset", "deadbeef"); err == nil {
		t.Fatal("expected error without --yes")
	}
}

func TestDoctorReportsSections(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	requireContains(t, out, "Environment")
	requireContains(t, out, "Workspace directory:")
	requireContains(t, out, "Providers")
	requireContains(t, out, "Missing API key")
	requireContains(t, out, "System dependencies")
	requireContains(t, out, "FFmpeg:")
}
