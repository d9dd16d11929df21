package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// toolConfig drives one decompctl run: the task count of the in-process
// job, the global shape, and the per-task index lists.
type toolConfig struct {
	Tasks    int
	Shape    []int64
	Maps     [][]int64
	Path     string
	DiagAddr string
}

type fileConfig struct {
	Tasks    int       `toml:"tasks"`
	Shape    []int64   `toml:"shape"`
	Maps     [][]int64 `toml:"maps"`
	Path     string    `toml:"path"`
	DiagAddr string    `toml:"diag_addr"`
}

func defaultToolConfig() toolConfig {
	return toolConfig{
		Tasks: 4,
		Shape: []int64{4, 4},
		Path:  "decomp.dat",
	}
}

func loadToolConfig(path string) (toolConfig, error) {
	cfg := defaultToolConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return toolConfig{}, fmt.Errorf("load decompctl config: %w", err)
	}

	if meta.IsDefined("tasks") {
		cfg.Tasks = raw.Tasks
	}
	if meta.IsDefined("shape") {
		cfg.Shape = raw.Shape
	}
	if meta.IsDefined("maps") {
		cfg.Maps = raw.Maps
	}
	if meta.IsDefined("path") {
		p := strings.TrimSpace(raw.Path)
		if p != "" {
			cfg.Path = p
		}
	}
	if meta.IsDefined("diag_addr") {
		cfg.DiagAddr = strings.TrimSpace(raw.DiagAddr)
	}

	if cfg.Tasks < 1 {
		return toolConfig{}, fmt.Errorf("decompctl config: tasks must be positive")
	}
	if len(cfg.Shape) < 1 {
		return toolConfig{}, fmt.Errorf("decompctl config: shape must have at least one dimension")
	}
	if len(cfg.Maps) > 0 && len(cfg.Maps) != cfg.Tasks {
		return toolConfig{}, fmt.Errorf("decompctl config: maps must list one block per task")
	}
	return cfg, nil
}

// blockMaps partitions the flattened global index space evenly when the
// configuration does not pin explicit per-task lists.
func blockMaps(shape []int64, tasks int) [][]int64 {
	total := int64(1)
	for _, d := range shape {
		total *= d
	}
	maps := make([][]int64, tasks)
	per := total / int64(tasks)
	rem := total % int64(tasks)
	next := int64(0)
	for r := 0; r < tasks; r++ {
		n := per
		if int64(r) < rem {
			n++
		}
		m := make([]int64, 0, n)
		for j := int64(0); j < n; j++ {
			m = append(m, next)
			next++
		}
		maps[r] = m
	}
	return maps
}
