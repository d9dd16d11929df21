// pariorun launches an SPMD job from a toml description: one program,
// a task count spread over local or ssh-reachable hosts, and an I/O
// task pool size handed to every rank.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/pariolab/pario/internal/config"
	"github.com/pariolab/pario/internal/launch"
	"github.com/pariolab/pario/internal/observability"
)

func main() {
	cfgPath := flag.String("config", "pariorun.toml", "job description (toml)")
	flag.Parse()

	observability.InitLogger("pariorun", 0)

	cfg, err := config.LoadJobConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("bad job description")
	}

	log.Info().Str("program", cfg.Program).Int("tasks", cfg.TotalTasks()).
		Int("io_tasks", cfg.IOTasks).Msg("starting job")

	if err := launch.Run(cfg, os.Stdout, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("job failed")
	}
}
