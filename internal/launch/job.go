package launch

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pariolab/pario/internal/config"
)

// Task is one planned program invocation: a rank, the host that runs it,
// and the full argument list including the rank and job-size flags.
type Task struct {
	Rank   int
	Host   string
	Runner Runner
	Args   []string
}

// Plan expands a job description into one task per rank. Ranks are
// assigned host by host in configuration order.
func Plan(cfg config.JobConfig) ([]Task, error) {
	if err := config.ValidateJobConfig(cfg); err != nil {
		return nil, err
	}
	total := cfg.TotalTasks()
	tasks := make([]Task, 0, total)
	rank := 0
	for _, h := range cfg.Hosts {
		var r Runner = LocalRunner{}
		hostName := "localhost"
		if strings.TrimSpace(h.Host) != "" {
			r = SSHRunner{Host: h}
			hostName = h.Host
		}
		for i := 0; i < h.Tasks; i++ {
			args := append([]string(nil), cfg.Args...)
			args = append(args,
				"-rank", strconv.Itoa(rank),
				"-size", strconv.Itoa(total),
				"-io-tasks", strconv.Itoa(cfg.IOTasks),
			)
			tasks = append(tasks, Task{Rank: rank, Host: hostName, Runner: r, Args: args})
			rank++
		}
	}
	return tasks, nil
}

// Run launches every task of the job and waits for all of them. The
// first failure is reported; the rest still run to completion.
func Run(cfg config.JobConfig, stdout, stderr io.Writer) error {
	tasks, err := Plan(cfg)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, len(tasks))
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			log.Info().Int("rank", t.Rank).Str("host", t.Host).
				Str("program", cfg.Program).Msg("launching task")
			errs[i] = t.Runner.RunStreaming(cfg.Program, t.Args, stdout, stderr)
		}(i, t)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("launch: rank %d on %s: %w", tasks[i].Rank, tasks[i].Host, err)
		}
	}
	return nil
}
