package launch

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/pariolab/pario/internal/config"
)

func TestJoinCommandEscaping(t *testing.T) {
	got := joinCommand("echo", []string{"a b", "quote'v"})
	want := "'echo' 'a b' 'quote'\"'\"'v'"
	if got != want {
		t.Fatalf("unexpected joined command\nwant: %s\ngot:  %s", want, got)
	}
	if shellEscape("") != "''" {
		t.Fatalf("empty argument escape: %q", shellEscape(""))
	}
}

func TestPlanAssignsContiguousRanks(t *testing.T) {
	cfg := config.JobConfig{
		Program: "/opt/model/run",
		Args:    []string{"-v"},
		IOTasks: 1,
		Hosts: []config.HostConfig{
			{Tasks: 2},
			{Host: "node-b", User: "ops", KeyPath: "/k", Tasks: 2},
		},
	}
	tasks, err := Plan(cfg)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("planned %d tasks", len(tasks))
	}
	for i, task := range tasks {
		if task.Rank != i {
			t.Fatalf("task %d has rank %d", i, task.Rank)
		}
		joined := strings.Join(task.Args, " ")
		if !strings.Contains(joined, "-rank "+strconv.Itoa(i)) ||
			!strings.Contains(joined, "-size 4") ||
			!strings.Contains(joined, "-io-tasks 1") {
			t.Fatalf("task %d args: %v", i, task.Args)
		}
		if task.Args[0] != "-v" {
			t.Fatalf("task %d lost the program args: %v", i, task.Args)
		}
	}
	if _, ok := tasks[0].Runner.(LocalRunner); !ok {
		t.Fatalf("first host must run locally")
	}
	if _, ok := tasks[2].Runner.(SSHRunner); !ok {
		t.Fatalf("second host must run over ssh")
	}
	if tasks[2].Host != "node-b" {
		t.Fatalf("task 2 host: %s", tasks[2].Host)
	}
}

func TestPlanRejectsInvalidJob(t *testing.T) {
	if _, err := Plan(config.JobConfig{}); err == nil {
		t.Fatalf("empty job accepted")
	}
}

func TestLocalRunnerStreams(t *testing.T) {
	var out bytes.Buffer
	err := LocalRunner{}.RunStreaming("sh", []string{"-c", "printf hello"}, &out, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "hello" {
		t.Fatalf("stdout: %q", out.String())
	}
}

func TestSSHRunnerValidation(t *testing.T) {
	r := SSHRunner{}
	if _, err := r.dial(); err == nil {
		t.Fatalf("missing host accepted")
	}
	r.Host = config.HostConfig{Host: "node-a"}
	if _, err := r.clientConfig(); err == nil {
		t.Fatalf("missing user accepted")
	}
	r.Host.User = "ops"
	if _, err := r.clientConfig(); err == nil {
		t.Fatalf("missing key accepted")
	}
}
