package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// JobConfig describes one SPMD job for the launcher.
type JobConfig struct {
	Program  string       `toml:"program"`
	Args     []string     `toml:"args"`
	IOTasks  int          `toml:"io_tasks"`
	IOType   string       `toml:"iotype"`
	DiagAddr string       `toml:"diag_addr"`
	Hosts    []HostConfig `toml:"hosts"`
}

// HostConfig places tasks on one host. An empty Host means local
// execution; anything else is reached over ssh.
type HostConfig struct {
	Host            string `toml:"host"`
	Port            string `toml:"port"`
	User            string `toml:"user"`
	KeyPath         string `toml:"key_path"`
	KnownHostsPath  string `toml:"known_hosts_path"`
	InsecureHostKey bool   `toml:"insecure_host_key"`
	Tasks           int    `toml:"tasks"`
}

// TotalTasks sums the per-host task counts.
func (c JobConfig) TotalTasks() int {
	n := 0
	for _, h := range c.Hosts {
		n += h.Tasks
	}
	return n
}

// LoadJobConfig reads and validates a job description.
func LoadJobConfig(path string) (JobConfig, error) {
	var cfg JobConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return JobConfig{}, fmt.Errorf("job config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return JobConfig{}, fmt.Errorf("job config parse failed (%s): %w", path, err)
	}
	if err := ValidateJobConfig(cfg); err != nil {
		return JobConfig{}, err
	}
	return cfg, nil
}

func ValidateJobConfig(cfg JobConfig) error {
	if strings.TrimSpace(cfg.Program) == "" {
		return fmt.Errorf("job config missing program")
	}
	if len(cfg.Hosts) == 0 {
		return fmt.Errorf("job config needs at least one host")
	}
	for i, h := range cfg.Hosts {
		if h.Tasks < 1 {
			return fmt.Errorf("host[%d] needs a positive task count", i)
		}
		if strings.TrimSpace(h.Host) != "" && strings.TrimSpace(h.User) == "" {
			return fmt.Errorf("host[%d] user required for remote host", i)
		}
	}
	if cfg.IOTasks < 0 || cfg.IOTasks >= cfg.TotalTasks() {
		return fmt.Errorf("io_tasks must be in [0, total tasks)")
	}
	return nil
}
