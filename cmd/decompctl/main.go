// decompctl writes and replays decomposition map files over an
// in-process job, so a map produced on one task layout can be checked
// against another before a real run depends on it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pariolab/pario/internal/comm"
	"github.com/pariolab/pario/internal/config"
	"github.com/pariolab/pario/internal/decomp"
	"github.com/pariolab/pario/internal/diag"
	"github.com/pariolab/pario/internal/mapfile"
	"github.com/pariolab/pario/internal/observability"
	"github.com/pariolab/pario/internal/openfile"
)

func main() {
	cfgPath := flag.String("config", "", "decompctl config file (toml)")
	mode := flag.String("mode", "write", "write or read")
	flag.Parse()

	observability.InitLogger("decompctl", 0)

	cfg := defaultToolConfig()
	if *cfgPath != "" {
		var err error
		cfg, err = loadToolConfig(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Msg("bad configuration")
		}
	}

	if err := run(cfg, *mode); err != nil {
		log.Fatal().Err(err).Msg("decompctl failed")
	}
}

func run(cfg toolConfig, mode string) error {
	world, err := comm.NewFabric(cfg.Tasks)
	if err != nil {
		return err
	}

	decomps := decomp.NewRegistry()
	if cfg.DiagAddr != "" {
		srv := diag.NewServer(cfg.DiagAddr, openfile.NewRegistry(), decomps)
		go func() {
			if err := srv.Run(); err != nil {
				log.Error().Err(err).Msg("diagnostics server stopped")
			}
		}()
	}

	switch mode {
	case "write":
		return writeMap(cfg, world)
	case "read":
		return readMap(cfg, world, decomps)
	}
	return fmt.Errorf("unknown mode %q", mode)
}

func writeMap(cfg toolConfig, world []*comm.Comm) error {
	maps := cfg.Maps
	if len(maps) == 0 {
		maps = blockMaps(cfg.Shape, cfg.Tasks)
	}

	var wg sync.WaitGroup
	errs := make([]error, cfg.Tasks)
	for r := 0; r < cfg.Tasks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			errs[r] = mapfile.Write(cfg.Path, cfg.Shape, maps[r], world[r])
		}(r)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Info().Str("path", cfg.Path).Int("tasks", cfg.Tasks).Msg("map file written")
	return nil
}

func readMap(cfg toolConfig, world []*comm.Comm, decomps *decomp.Registry) error {
	mgr := decomp.NewManager(decomps, config.Snapshot())

	var wg sync.WaitGroup
	errs := make([]error, cfg.Tasks)
	lens := make([]int, cfg.Tasks)
	for r := 0; r < cfg.Tasks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			ndims, shape, local, err := mapfile.Read(cfg.Path, world[r])
			if err != nil {
				errs[r] = err
				return
			}
			if len(shape) != ndims {
				errs[r] = fmt.Errorf("rank %d: shape has %d dims, header says %d", r, len(shape), ndims)
				return
			}
			lens[r] = len(local)
			d, err := mgr.Create(decomp.ElemDouble, ndims)
			if err != nil {
				errs[r] = err
				return
			}
			d.LocalLen = int64(len(local))
		}(r)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for r, n := range lens {
		fmt.Fprintf(os.Stdout, "rank %d: %d elements\n", r, n)
	}
	return nil
}
