package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJobConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.toml")
	body := `
program = "/opt/model/run"
args = ["-v"]
io_tasks = 2
iotype = "classic"

[[hosts]]
tasks = 4

[[hosts]]
host = "node-b"
user = "ops"
key_path = "/home/ops/.ssh/id_ed25519"
tasks = 2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadJobConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Program != "/opt/model/run" || cfg.IOTasks != 2 {
		t.Fatalf("parsed: %+v", cfg)
	}
	if cfg.TotalTasks() != 6 {
		t.Fatalf("total tasks: %d", cfg.TotalTasks())
	}
}

func TestValidateJobConfig(t *testing.T) {
	base := JobConfig{
		Program: "run",
		Hosts:   []HostConfig{{Tasks: 2}},
	}
	if err := ValidateJobConfig(base); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := base
	bad.Program = " "
	if err := ValidateJobConfig(bad); err == nil {
		t.Fatalf("missing program accepted")
	}

	bad = base
	bad.Hosts = nil
	if err := ValidateJobConfig(bad); err == nil {
		t.Fatalf("empty host list accepted")
	}

	bad = base
	bad.Hosts = []HostConfig{{Host: "node-b", Tasks: 1}}
	if err := ValidateJobConfig(bad); err == nil {
		t.Fatalf("remote host without user accepted")
	}

	bad = base
	bad.IOTasks = 2
	if err := ValidateJobConfig(bad); err == nil {
		t.Fatalf("io_tasks equal to total accepted")
	}
}
